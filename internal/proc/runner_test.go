package proc

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExec_CapturesOutput(t *testing.T) {
	requireShell(t)

	res, err := Exec{}.Run(context.Background(), "sh", "-c", "echo out; echo oops 1>&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "oops", res.Diagnostic())
}

func TestExec_KilledOnDeadline(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := Exec{WaitDelay: time.Second}.Run(ctx, "sh", "-c", "sleep 10")
	require.Error(t, err)
	assert.Less(t, time.Since(started), 5*time.Second)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestResult_DiagnosticFallsBackToStdout(t *testing.T) {
	r := Result{Stdout: []byte(" ERROR: Private video \n")}
	assert.Equal(t, "ERROR: Private video", r.Diagnostic())
}
