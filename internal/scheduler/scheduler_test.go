package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterTaskValidatesExpression(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	require.NoError(t, reg.RegisterTask("ok", "*/5 * * * *", func(context.Context) error { return nil }))
	require.NoError(t, reg.RegisterTask("preset", "daily_2am", func(context.Context) error { return nil }))

	err := reg.RegisterTask("bad", "not a cron expr", func(context.Context) error { return nil })
	require.Error(t, err)

	err = reg.RegisterTask("", "hourly", func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestRegisterTaskReplacesExisting(t *testing.T) {
	reg := NewRegistry(zap.NewNop())

	var first, second atomic.Int32
	require.NoError(t, reg.RegisterTask("job", "hourly", func(context.Context) error {
		first.Add(1)
		return nil
	}))
	require.NoError(t, reg.RegisterTask("job", "daily_midnight", func(context.Context) error {
		second.Add(1)
		return nil
	}))

	tasks := reg.ListTasks()
	require.Len(t, tasks, 1, "re-registration must not duplicate the task")
	assert.Equal(t, "0 0 * * *", tasks[0].Expression)

	require.NoError(t, reg.RunTask(context.Background(), "job"))
	assert.Zero(t, first.Load(), "replaced action must never fire")
	assert.Equal(t, int32(1), second.Load())
}

func TestStopTask(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	require.NoError(t, reg.RegisterTask("job", "hourly", func(context.Context) error { return nil }))

	assert.True(t, reg.StopTask("job"))
	assert.False(t, reg.StopTask("job"), "second stop finds nothing")
	assert.Empty(t, reg.ListTasks())
}

func TestRunTaskUnknownName(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	require.Error(t, reg.RunTask(context.Background(), "missing"))
}

func TestRunTaskReportsActionError(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	boom := errors.New("boom")
	require.NoError(t, reg.RegisterTask("job", "hourly", func(context.Context) error { return boom }))

	err := reg.RunTask(context.Background(), "job")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRunTaskRecoversPanic(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	require.NoError(t, reg.RegisterTask("job", "hourly", func(context.Context) error {
		panic("kaboom")
	}))

	err := reg.RunTask(context.Background(), "job")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestOverlappingFiringsProceed(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	require.NoError(t, reg.RegisterTask("slow", "hourly", func(context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}))

	for i := 0; i < 2; i++ {
		go func() {
			_ = reg.RunTask(context.Background(), "slow")
		}()
	}
	<-started
	<-started

	tasks := reg.ListTasks()
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].Running)

	close(release)
	require.Eventually(t, func() bool {
		return !reg.ListTasks()[0].Running
	}, time.Second, 10*time.Millisecond)
}

func TestStartStopIdempotent(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg.Start(ctx)
	reg.Start(ctx)
	assert.True(t, reg.Started())

	reg.Stop()
	reg.Stop()
	assert.False(t, reg.Started())
}

func TestResolveExpressionPresets(t *testing.T) {
	expr, err := ResolveExpression("weekly_sunday_3am")
	require.NoError(t, err)
	assert.Equal(t, "0 3 * * 0", expr)

	expr, err = ResolveExpression("30 4 * * 1")
	require.NoError(t, err)
	assert.Equal(t, "30 4 * * 1", expr)

	_, err = ResolveExpression("whenever")
	require.Error(t, err)
}
