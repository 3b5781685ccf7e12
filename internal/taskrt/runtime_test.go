package taskrt

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_LevelsRunHighestPriorityFirst(t *testing.T) {
	rt := New(Options{})
	var mu sync.Mutex
	var seen []string
	record := func(name string) Func {
		return func(context.Context) error {
			mu.Lock()
			seen = append(seen, name)
			mu.Unlock()
			return nil
		}
	}
	require.NoError(t, rt.Spawn(Task{Name: "orchestrate", Priority: 1, Fn: record("orchestrate")}))
	require.NoError(t, rt.Spawn(Task{Name: "stage-b", Priority: 2, Fn: record("stage-b")}))
	require.NoError(t, rt.Spawn(Task{Name: "stage-a", Priority: 2, Fn: record("stage-a")}))

	res, err := rt.Run(context.Background())
	require.NoError(t, err)

	want := []string{"stage-a", "stage-b", "orchestrate"}
	if !reflect.DeepEqual(res.ExecutionOrder, want) {
		t.Fatalf("unexpected execution order\nexpected=%v\nactual  =%v", want, res.ExecutionOrder)
	}
	require.Equal(t, want, seen)
	for name, st := range res.FinalState {
		if st != TaskCompleted {
			t.Fatalf("expected %s completed, got %s", name, st)
		}
	}
}

func TestRun_SingleCoreNeverOverlaps(t *testing.T) {
	rt := New(Options{Cores: 1})
	var active, peak int32
	body := func(context.Context) error {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&active, -1)
		return nil
	}
	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, rt.Spawn(Task{Name: name, Priority: 5, Fn: body}))
	}
	_, err := rt.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestRun_JoinBarrierBetweenLevels(t *testing.T) {
	rt := New(Options{Cores: 4})
	var finished int32
	slow := func(context.Context) error {
		for i := 0; i < 1000; i++ {
			_ = i * i
		}
		atomic.AddInt32(&finished, 1)
		return nil
	}
	for _, name := range []string{"s1", "s2", "s3"} {
		require.NoError(t, rt.Spawn(Task{Name: name, Priority: 2, Fn: slow}))
	}
	var sawAll bool
	require.NoError(t, rt.Spawn(Task{Name: "low", Priority: 1, Fn: func(context.Context) error {
		sawAll = atomic.LoadInt32(&finished) == 3
		return nil
	}}))
	_, err := rt.Run(context.Background())
	require.NoError(t, err)
	require.True(t, sawAll, "lower level started before the higher level joined")
}

func TestRun_FailureSkipsLowerLevels(t *testing.T) {
	rt := New(Options{})
	boom := errors.New("boom")
	lowRan := false
	require.NoError(t, rt.Spawn(Task{Name: "a", Priority: 2, Fn: func(context.Context) error { return boom }}))
	require.NoError(t, rt.Spawn(Task{Name: "b", Priority: 2, Fn: func(context.Context) error { return nil }}))
	require.NoError(t, rt.Spawn(Task{Name: "low", Priority: 1, Fn: func(context.Context) error {
		lowRan = true
		return nil
	}}))

	res, err := rt.Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTaskFailed)
	require.ErrorIs(t, err, boom)
	var te *TaskError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "a", te.Task)

	require.False(t, lowRan)
	require.Equal(t, TaskFailed, res.FinalState["a"])
	require.Equal(t, TaskSkipped, res.FinalState["b"])
	require.Equal(t, TaskSkipped, res.FinalState["low"])
	require.Equal(t, []string{"a"}, res.ExecutionOrder)
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	rt := New(Options{})
	require.NoError(t, rt.Spawn(Task{Name: "p", Fn: func(context.Context) error { panic("oops") }}))
	res, err := rt.Run(context.Background())
	require.ErrorIs(t, err, ErrTaskFailed)
	require.Contains(t, err.Error(), "oops")
	require.Equal(t, TaskFailed, res.FinalState["p"])
}

func TestSpawn_RejectsInvalidTasks(t *testing.T) {
	rt := New(Options{StackLimit: 1024})
	noop := func(context.Context) error { return nil }

	cases := []Task{
		{Name: "", Fn: noop},
		{Name: "nil-body"},
		{Name: "negative", StackBudget: -1, Fn: noop},
		{Name: "too-big", StackBudget: 2048, Fn: noop},
	}
	for _, tc := range cases {
		if err := rt.Spawn(tc); !errors.Is(err, ErrInvalidTask) {
			t.Fatalf("expected ErrInvalidTask for %q, got %v", tc.Name, err)
		}
	}
	require.NoError(t, rt.Spawn(Task{Name: "ok", StackBudget: 1024, Fn: noop}))
	require.ErrorIs(t, rt.Spawn(Task{Name: "ok", Fn: noop}), ErrInvalidTask)
}

func TestRun_OnlyOnce(t *testing.T) {
	rt := New(Options{})
	require.NoError(t, rt.Spawn(Task{Name: "a", Fn: func(context.Context) error { return nil }}))
	_, err := rt.Run(context.Background())
	require.NoError(t, err)
	_, err = rt.Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, rt.Spawn(Task{Name: "late", Fn: func(context.Context) error { return nil }}), ErrInvalidTask)
}

func TestRun_CancelledContextSkipsEverything(t *testing.T) {
	rt := New(Options{})
	require.NoError(t, rt.Spawn(Task{Name: "a", Fn: func(context.Context) error { return nil }}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := rt.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, TaskSkipped, res.FinalState["a"])
	require.Empty(t, res.ExecutionOrder)
}

func TestRun_CancelAfterLastTaskIsNotAnError(t *testing.T) {
	rt := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, rt.Spawn(Task{Name: "stage", Priority: 1, Fn: func(context.Context) error { return nil }}))
	require.NoError(t, rt.Spawn(Task{Name: "last", Fn: func(context.Context) error {
		cancel()
		return nil
	}}))
	res, err := rt.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, TaskCompleted, res.FinalState["last"])
}

func TestRun_CancelBetweenLevelsSkipsTheRest(t *testing.T) {
	rt := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, rt.Spawn(Task{Name: "first", Priority: 1, Fn: func(context.Context) error {
		cancel()
		return nil
	}}))
	require.NoError(t, rt.Spawn(Task{Name: "second", Fn: func(context.Context) error { return nil }}))
	res, err := rt.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, TaskCompleted, res.FinalState["first"])
	require.Equal(t, TaskSkipped, res.FinalState["second"])
}

func TestYield_InsideAndOutsideTasks(t *testing.T) {
	require.NoError(t, Yield(context.Background()))

	rt := New(Options{})
	var yieldErr error
	require.NoError(t, rt.Spawn(Task{Name: "y", Fn: func(ctx context.Context) error {
		yieldErr = Yield(ctx)
		return yieldErr
	}}))
	res, err := rt.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, yieldErr)
	require.Equal(t, TaskCompleted, res.FinalState["y"])
}
