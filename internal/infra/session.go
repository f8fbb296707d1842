package infra

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

// ProcessBlocker implements domain.Blocker using gopsutil. Blocking means
// suspending the processes backing a package, which takes the app out of
// the foreground without destroying user state.
type ProcessBlocker struct {
	logger *zap.Logger
}

// NewProcessBlocker creates a gopsutil-backed blocker.
func NewProcessBlocker(logger *zap.Logger) *ProcessBlocker {
	return &ProcessBlocker{logger: logger}
}

// BringHome suspends every process whose name matches pkg
// (case-insensitive). Matching no processes is not an error; the app may
// already be gone.
func (b *ProcessBlocker) BringHome(pkg string) error {
	procs, err := process.Processes()
	if err != nil {
		return err
	}

	pkgLower := strings.ToLower(pkg)
	suspended := 0
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // process may have exited
		}
		if !strings.EqualFold(name, pkg) && !strings.Contains(strings.ToLower(name), pkgLower) {
			continue
		}
		if err := p.Suspend(); err != nil {
			b.logger.Warn("failed to suspend process",
				zap.Int32("pid", p.Pid),
				zap.String("package", pkg),
				zap.Error(err))
			continue
		}
		suspended++
	}

	if suspended > 0 {
		b.logger.Info("sent app to background",
			zap.String("package", pkg),
			zap.Int("processes", suspended))
	}
	return nil
}

// Ensure ProcessBlocker implements domain.Blocker.
var _ domain.Blocker = (*ProcessBlocker)(nil)
