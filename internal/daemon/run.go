package daemon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/api"
)

const (
	staleCheckInterval = time.Minute
	shutdownTimeout    = 5 * time.Second
)

// Run starts the daemon: seeds defaults, arms all enabled routines, serves
// the control API, and runs the midnight-rollover and stale-routine jobs
// until ctx is cancelled.
func (c *Core) Run(ctx context.Context) error {
	c.mu.Lock()
	if err := c.store.EnsureSeed(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.planner.ScheduleAll(c.store.List())
	addr := c.cfg.ListenAddr
	c.mu.Unlock()

	// Midnight rollover: new usage day, fresh reminder/grace state.
	sched := cron.New()
	if _, err := sched.AddFunc("0 0 * * *", c.rollover); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	handler := api.NewHandler(c, c.logger.Named("api"))
	srv := &http.Server{
		Addr:    addr,
		Handler: handler.Router(),
	}
	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("control API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ticker := time.NewTicker(staleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			srv.Shutdown(shutdownCtx)
			c.Close()
			return nil
		case err := <-errCh:
			c.Close()
			return err
		case <-ticker.C:
			c.expireStale()
		}
	}
}

func (c *Core) rollover() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Info("daily rollover")
	c.usage.ResetWindow()
	c.routineLT.ResetWindow()
	c.dailyLT.ResetWindow()
}

func (c *Core) expireStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exec.ExpireStale()
}

// Close stops timers and releases the preference store.
func (c *Core) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alarms.Stop()
	if err := c.prefs.Close(); err != nil {
		c.logger.Warn("failed to close preference store", zap.Error(err))
	}
}
