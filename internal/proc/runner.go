package proc

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

// Result holds the captured output of a finished process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Elapsed  time.Duration
}

// Diagnostic returns stderr, or stdout when stderr is empty.
func (r Result) Diagnostic() string {
	if s := strings.TrimSpace(string(r.Stderr)); s != "" {
		return s
	}
	return strings.TrimSpace(string(r.Stdout))
}

// Runner starts an external command and waits for it. Implementations must
// kill the process when ctx is done.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Exec runs real processes.
type Exec struct {
	// WaitDelay bounds how long Run waits for pipes after the kill.
	WaitDelay time.Duration
	Dir       string
}

func (e Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Dir = e.Dir
	cmd.WaitDelay = e.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	started := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Elapsed:  time.Since(started),
	}
	return res, err
}

// RunFunc adapts a function to Runner.
type RunFunc func(ctx context.Context, name string, args ...string) (Result, error)

func (f RunFunc) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return f(ctx, name, args...)
}
