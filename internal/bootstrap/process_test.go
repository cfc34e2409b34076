package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Hynox-org/aharraa-server/pkg/config"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
)

func testProcess(exitCode *int) *Process {
	return &Process{
		Name:       "cron-worker",
		InstanceID: "worker-1",
		Config:     &config.Config{App: config.AppConfig{Env: "test"}},
		Logger:     logger.Nop(),
		exit:       func(code int) { *exitCode = code },
	}
}

func TestMustClosesInReverseOrderAndExits(t *testing.T) {
	exitCode := -1
	proc := testProcess(&exitCode)
	var closed []string
	for _, name := range []string{"database", "redis", "order services"} {
		proc.OnClose(name, func() error {
			closed = append(closed, name)
			return nil
		})
	}

	proc.Must("redis", nil)
	require.Equal(t, -1, exitCode)
	require.Empty(t, closed)

	proc.Must("cron lock", errors.New("bad ttl"))
	require.Equal(t, 1, exitCode)
	require.Equal(t, []string{"order services", "redis", "database"}, closed)
}

func TestFinishTreatsCancellationAsCleanShutdown(t *testing.T) {
	exitCode := -1
	proc := testProcess(&exitCode)
	closes := 0
	proc.OnClose("redis", func() error {
		closes++
		return fmt.Errorf("already closed")
	})

	proc.Finish(context.Background(), fmt.Errorf("run: %w", context.Canceled))
	require.Equal(t, -1, exitCode)
	require.Equal(t, 1, closes)

	proc.Finish(context.Background(), nil)
	require.Equal(t, 1, closes, "resources close once")
}

func TestFinishExitsOnFailure(t *testing.T) {
	exitCode := -1
	proc := testProcess(&exitCode)
	proc.Finish(context.Background(), errors.New("subscription deleted"))
	require.Equal(t, 1, exitCode)
}

func TestSignalContextCarriesIdentity(t *testing.T) {
	exitCode := -1
	proc := testProcess(&exitCode)
	ctx, stop := proc.SignalContext(map[string]any{"interval": "5m0s"})
	defer stop()
	require.NoError(t, ctx.Err())
}
