// Package cppcheck exposes the cppcheck static analyzer as the run_cppcheck tool.
package cppcheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"code.cloudfoundry.org/lager/v3/lagerctx"
)

// DefaultTemplate renders one diagnostic per line.
const DefaultTemplate = "{file}:{line}:{severity}:{message}"

const (
	NoIssuesText = "✅ No errors or warnings found."
	notFoundText = "❌ path not found: "
	failedText   = "❌ cppcheck run failed: "
)

// waitDelay bounds how long a cancelled run may hold its output pipes open.
const waitDelay = 2 * time.Second

// Runner invokes the cppcheck binary on a file or directory.
type Runner struct {
	Binary   string
	Enable   string
	Template string
}

func NewRunner(binary, enable string) *Runner {
	if binary == "" {
		binary = "cppcheck"
	}
	if enable == "" {
		enable = "all"
	}
	return &Runner{Binary: binary, Enable: enable, Template: DefaultTemplate}
}

// Run analyzes path and returns the report text. A missing path, a binary that
// cannot be started, or an empty report are all reported as text. Only
// cancellation of ctx is returned as an error.
func (r *Runner) Run(ctx context.Context, path string) (string, error) {
	logger := lagerctx.FromContext(ctx).Session("cppcheck", lager.Data{"path": path})

	if _, err := os.Stat(path); err != nil {
		logger.Info("path-not-found", lager.Data{"error": err.Error()})
		return notFoundText + path, nil
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, r.Binary, r.args(path)...)
	cmd.WaitDelay = waitDelay

	// stderr is where cppcheck writes its diagnostics.
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	runErr := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		logger.Info("cancelled", lager.Data{"elapsed": elapsed.String()})
		return "", fmt.Errorf("cppcheck on %s: %w", path, ctx.Err())
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		logger.Error("failed-to-start", runErr)
		return failedText + runErr.Error(), nil
	}

	report := strings.TrimSpace(output.String())
	logger.Debug("finished", lager.Data{"elapsed": elapsed.String(), "bytes": len(report)})
	if report == "" {
		return NoIssuesText, nil
	}
	return report, nil
}

func (r *Runner) args(path string) []string {
	return []string{
		"--enable=" + r.Enable,
		"--quiet",
		"--template=" + r.Template,
		path,
	}
}
