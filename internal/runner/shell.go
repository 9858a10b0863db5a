package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	dagerrors "github.com/stevehiehn/deployseq/internal/errors"
)

// ShellResult holds the output of a shell command.
type ShellResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes a command via sh -c and captures output.
func Run(ctx context.Context, command, workDir string) *ShellResult {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if workDir != "" {
		cmd.Dir = workDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
		}
	}

	return &ShellResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

// Build runs the plan's compile command (e.g. "forge build") before any
// artifact is loaded. A non-zero exit becomes a BUILD_FAILED error carrying
// the tail of stderr.
func Build(ctx context.Context, command, workDir string) (*ShellResult, error) {
	if strings.TrimSpace(command) == "" {
		return &ShellResult{}, nil
	}
	r := Run(ctx, command, workDir)
	if r.ExitCode != 0 {
		return r, &dagerrors.RunError{
			Type:    dagerrors.BuildFailed,
			Message: fmt.Sprintf("%q exited with code %d", command, r.ExitCode),
			Hint:    lastLines(r.Stderr, 5),
		}
	}
	return r, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
