package infra

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

// DesktopNotifier implements domain.Notifier with native desktop
// notifications: notify-send on Linux, osascript on macOS. When neither
// binary is available notifications are logged and dropped.
type DesktopNotifier struct {
	mu       sync.RWMutex
	names    map[string]string // package id -> display name
	toolPath string
	logger   *zap.Logger
}

// NewDesktopNotifier probes for the platform notification tool.
func NewDesktopNotifier(names map[string]string, logger *zap.Logger) *DesktopNotifier {
	n := &DesktopNotifier{
		names:  make(map[string]string),
		logger: logger,
	}
	for k, v := range names {
		n.names[k] = v
	}

	tool := "notify-send"
	if runtime.GOOS == "darwin" {
		tool = "osascript"
	}
	path, err := exec.LookPath(tool)
	if err != nil {
		logger.Warn("notification tool not found, notifications will be logged only",
			zap.String("tool", tool))
	} else {
		n.toolPath = path
	}
	return n
}

// SetNames replaces the package display-name map (config reload).
func (n *DesktopNotifier) SetNames(names map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.names = make(map[string]string)
	for k, v := range names {
		n.names[k] = v
	}
}

// Notify sends a desktop notification for the given event.
func (n *DesktopNotifier) Notify(kind domain.NotificationKind, pkg string, detail string) {
	title, body := n.render(kind, pkg, detail)

	n.logger.Info("notification",
		zap.String("kind", string(kind)),
		zap.String("package", pkg),
		zap.String("title", title),
		zap.String("body", body))

	n.mu.RLock()
	toolPath := n.toolPath
	n.mu.RUnlock()
	if toolPath == "" {
		return
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		script := fmt.Sprintf(`display notification %q with title %q`, body, title)
		cmd = exec.Command(toolPath, "-e", script)
	} else {
		cmd = exec.Command(toolPath, "--app-name=routined", title, body)
	}
	if err := cmd.Run(); err != nil {
		n.logger.Warn("failed to send notification", zap.Error(err))
	}
}

func (n *DesktopNotifier) render(kind domain.NotificationKind, pkg string, detail string) (title, body string) {
	name := n.displayName(pkg)
	switch kind {
	case domain.NotifyBlocked:
		return "Distraction Blocked", fmt.Sprintf("%s is blocked right now", name)
	case domain.NotifyReminder:
		return "Time Limit Approaching", fmt.Sprintf("%s: %s", name, detail)
	case domain.NotifyGracePeriod:
		return "Time Limit Reached", fmt.Sprintf("%s: grace period started, wrap it up", name)
	case domain.NotifyLimitReached:
		return "Time Is Up", fmt.Sprintf("%s has reached its limit for today", name)
	case domain.NotifyRoutineActivated:
		return "Routine Started", detail
	case domain.NotifyRoutineDeactivated:
		return "Routine Ended", detail
	default:
		return "routined", detail
	}
}

func (n *DesktopNotifier) displayName(pkg string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if name, ok := n.names[pkg]; ok {
		return name
	}
	return pkg
}

// Ensure DesktopNotifier implements domain.Notifier.
var _ domain.Notifier = (*DesktopNotifier)(nil)
