package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// StartDetached spawns a new daemon process detached from the parent. The
// child runs `routined start` with the same config flag, logging to the
// given file since it has no terminal.
func StartDetached(configPath, logFile string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}

	args := []string{"start"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if logFile != "" {
		args = append(args, "--log-file", logFile)
	}
	cmd := exec.Command(executable, args...)

	// New session: survives terminal close.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	return cmd.Process.Pid, nil
}
