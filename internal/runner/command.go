package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	errs "retrying/pkg/errors"
)

// Exit codes used when a command could not produce its own.
const (
	ExitFailure  = 1
	ExitNotFound = 127
)

// Command runs external processes and classifies their failures as
// errs.Error values, so that policies can filter on exit_status, signal
// and not_found.
type Command struct {
	Stdout io.Writer
	Stderr io.Writer
	Dir    string
}

// Run executes args[0] with args[1:] once.
func (c Command) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "" {
		return errs.New(errs.ErrorTypeInvalid, 0, "empty command")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = nil
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.Dir = c.Dir

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", args[0], context.Cause(ctx))
	}
	return classify(err)
}

// Operation adapts c to a pool Operation.
func (c Command) Operation() Operation {
	return func(ctx context.Context, job Job) error {
		return c.Run(ctx, job.Args)
	}
}

func classify(err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return errs.Wrap(errs.ErrorTypeNotFound, ExitNotFound, err)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// ExitCode is -1 when the process was terminated by a signal
		if code := exitErr.ExitCode(); code >= 0 {
			return errs.Wrap(errs.ErrorTypeExitStatus, code, err)
		}
		return errs.Wrap(errs.ErrorTypeSignal, -1, err)
	}

	return errs.Wrap(errs.ErrorTypeUnknown, 0, err)
}

// ExitCode maps a command error to the status the CLI should exit with.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *errs.Error
	if errors.As(err, &e) {
		switch e.Type {
		case errs.ErrorTypeExitStatus:
			if e.Code > 0 {
				return e.Code
			}
		case errs.ErrorTypeNotFound:
			return ExitNotFound
		}
	}
	return ExitFailure
}

// ParseJobs reads one command per line. Blank lines and lines starting
// with # are skipped. With shell set, each line is passed to "sh -c";
// otherwise it is split on whitespace.
func ParseJobs(r io.Reader, shell bool) ([]Job, error) {
	var jobs []Job
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var args []string
		if shell {
			args = []string{"sh", "-c", line}
		} else {
			args = strings.Fields(line)
		}
		jobs = append(jobs, Job{ID: len(jobs) + 1, Args: args})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read jobs: %w", err)
	}
	return jobs, nil
}

// ReadJobsFile is ParseJobs over a file; "-" reads standard input.
func ReadJobsFile(path string, shell bool) ([]Job, error) {
	if path == "-" {
		return ParseJobs(os.Stdin, shell)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open jobs file: %w", err)
	}
	defer f.Close()
	return ParseJobs(f, shell)
}
