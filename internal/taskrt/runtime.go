package taskrt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Options configures a Runtime.
type Options struct {
	// Cores is how many tasks may hold a core at once. Zero means one.
	Cores int
	// StackLimit caps Task.StackBudget. Zero disables the check.
	StackLimit int
	Logger     *zap.Logger
}

// Runtime runs spawned tasks once.
type Runtime struct {
	cores      int64
	stackLimit int
	logger     *zap.Logger
	sem        *semaphore.Weighted

	mu      sync.Mutex
	tasks   map[string]Task
	state   ExecutionState
	started bool
}

// New creates an empty runtime.
func New(opts Options) *Runtime {
	cores := int64(opts.Cores)
	if cores <= 0 {
		cores = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		cores:      cores,
		stackLimit: opts.StackLimit,
		logger:     logger,
		sem:        semaphore.NewWeighted(cores),
		tasks:      make(map[string]Task),
		state:      make(ExecutionState),
	}
}

// Spawn registers a task. It does not run until Run.
func (r *Runtime) Spawn(t Task) error {
	if t.Name == "" {
		return invalidf("", "task name must be non-empty")
	}
	if t.Fn == nil {
		return invalidf(t.Name, "task body must be non-nil")
	}
	if t.StackBudget < 0 {
		return invalidf(t.Name, "stack budget must not be negative")
	}
	if r.stackLimit > 0 && t.StackBudget > r.stackLimit {
		return invalidf(t.Name, "stack budget %d exceeds limit %d", t.StackBudget, r.stackLimit)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return invalidf(t.Name, "runtime already started")
	}
	if _, dup := r.tasks[t.Name]; dup {
		return invalidf(t.Name, "duplicate task name")
	}
	r.tasks[t.Name] = t
	r.state[t.Name] = TaskPending
	return nil
}

// StateSnapshot returns a copy of the current execution state.
func (r *Runtime) StateSnapshot() ExecutionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := make(ExecutionState, len(r.state))
	for k, v := range r.state {
		cp[k] = v
	}
	return cp
}

// levels groups task names by priority, highest first, names sorted.
func (r *Runtime) levels() [][]string {
	byPriority := make(map[int][]string)
	for name, t := range r.tasks {
		byPriority[t.Priority] = append(byPriority[t.Priority], name)
	}
	prios := make([]int, 0, len(byPriority))
	for p := range byPriority {
		prios = append(prios, p)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(prios)))

	out := make([][]string, 0, len(prios))
	for _, p := range prios {
		names := byPriority[p]
		sort.Strings(names)
		out = append(out, names)
	}
	return out
}

// Run executes every spawned task and returns when all have reached a
// terminal state.
//
// Determinism:
//   - Levels run in descending priority with a join between them.
//   - Within a level, a core is acquired before each dispatch, in lexical
//     name order. With one core the level runs strictly serially.
//
// The first task failure stops dispatch in its level and skips every task
// still pending. The returned error wraps ErrTaskFailed and the task's error.
func (r *Runtime) Run(ctx context.Context) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil, fmt.Errorf("runtime already started")
	}
	r.started = true
	levels := r.levels()
	r.mu.Unlock()

	order := make([]string, 0, len(r.tasks))
	var firstErr error

	for i, names := range levels {
		if firstErr != nil {
			break
		}
		if ctx.Err() != nil {
			firstErr = fmt.Errorf("run cancelled: %w", ctx.Err())
			break
		}
		r.logger.Debug("Starting priority level",
			zap.Int("level", i),
			zap.Int("priority", r.tasks[names[0]].Priority),
			zap.Strings("tasks", names),
		)

		g, gctx := errgroup.WithContext(ctx)
		for _, name := range names {
			if err := r.sem.Acquire(gctx, 1); err != nil {
				// A task in this level failed or the caller cancelled.
				break
			}
			r.mu.Lock()
			// A task fails before releasing its core, so a failure in this
			// level is always visible here.
			if r.anyFailed(names) {
				r.mu.Unlock()
				r.sem.Release(1)
				break
			}
			if err := Transition(r.state, name, TaskPending, TaskRunning); err != nil {
				r.mu.Unlock()
				r.sem.Release(1)
				_ = g.Wait()
				return nil, err
			}
			order = append(order, name)
			r.mu.Unlock()

			task := r.tasks[name]
			g.Go(func() error {
				defer r.sem.Release(1)
				return r.runTask(gctx, task)
			})
		}
		firstErr = g.Wait()
		// Cancellation only matters while work is left undispatched.
		if firstErr == nil && ctx.Err() != nil && r.anyPending(names) {
			firstErr = fmt.Errorf("run cancelled: %w", ctx.Err())
		}
	}

	r.mu.Lock()
	var pending []string
	for name, st := range r.state {
		if st == TaskPending {
			pending = append(pending, name)
		}
	}
	if err := SkipPending(r.state, pending); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()

	return &Result{FinalState: r.StateSnapshot(), ExecutionOrder: order}, firstErr
}

func (r *Runtime) anyFailed(names []string) bool {
	for _, name := range names {
		if r.state[name] == TaskFailed {
			return true
		}
	}
	return false
}

func (r *Runtime) anyPending(names []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if r.state[name] == TaskPending {
			return true
		}
	}
	return false
}

func (r *Runtime) runTask(ctx context.Context, t Task) (err error) {
	r.logger.Debug("Task started", zap.String("task", t.Name), zap.Int("stackBudget", t.StackBudget))
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		to := TaskCompleted
		if err != nil {
			to = TaskFailed
			err = failed(t.Name, err)
			r.logger.Error("Task failed", zap.String("task", t.Name), zap.Error(err))
		} else {
			r.logger.Debug("Task completed", zap.String("task", t.Name))
		}
		r.mu.Lock()
		if terr := Transition(r.state, t.Name, TaskRunning, to); terr != nil {
			err = errors.Join(err, terr)
		}
		r.mu.Unlock()
	}()
	return t.Fn(withRuntime(ctx, r))
}

type runtimeKey struct{}

func withRuntime(ctx context.Context, r *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, r)
}

// Yield gives up the calling task's core and waits to get one back, letting
// the next dispatched task run. Outside a task it is a no-op.
func Yield(ctx context.Context) error {
	r, ok := ctx.Value(runtimeKey{}).(*Runtime)
	if !ok {
		return nil
	}
	r.sem.Release(1)
	// Reacquire even if ctx is done so the deferred release stays balanced.
	if err := r.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	return ctx.Err()
}
