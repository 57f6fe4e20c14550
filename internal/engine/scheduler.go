package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skaphos/repomon/internal/config"
	"github.com/skaphos/repomon/internal/interval"
	"github.com/skaphos/repomon/internal/logging"
	"github.com/skaphos/repomon/internal/model"
	"github.com/skaphos/repomon/internal/sortutil"
)

// DefaultMinInterval is the shortest interval the scheduler re-arms with.
const DefaultMinInterval = time.Second

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Checker *Checker
	Pool    *RepositoryPool
	// MinInterval raises shorter (including zero) intervals. Defaults to DefaultMinInterval.
	MinInterval time.Duration
	Logger      *zap.SugaredLogger
}

// TaskKey identifies one scheduled (repository, branch) pair.
type TaskKey struct {
	Repository string
	Branch     string
}

func (k TaskKey) String() string {
	return k.Repository + "/" + k.Branch
}

// TaskStatus is a point-in-time view of one task.
type TaskStatus struct {
	TaskKey
	State    model.TaskState
	Interval time.Duration
	Remotes  []string
}

// Scheduler owns one timer-driven task per monitored branch. The config it
// runs is an immutable snapshot replaced only through Reconfigure.
type Scheduler struct {
	checker     *Checker
	pool        *RepositoryPool
	minInterval time.Duration
	logger      *zap.SugaredLogger

	// reconfigureMu serializes Reconfigure so a pool release computed from
	// one snapshot never runs after a later snapshot is installed.
	reconfigureMu sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Config
	tasks   map[TaskKey]*task
	started bool
	stopped bool
	wg      sync.WaitGroup
}

type task struct {
	key      TaskKey
	path     string
	branch   config.Branch
	remotes  []config.Remote
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state model.TaskState
}

func (t *task) setState(state model.TaskState) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

func (t *task) getState() model.TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// sameAs reports whether other describes the same work as t.
func (t *task) sameAs(other *task) bool {
	return t.path == other.path && t.interval == other.interval &&
		t.branch.Equal(other.branch) && slices.Equal(t.remotes, other.remotes)
}

// NewScheduler validates cfg and prepares, but does not start, its tasks.
func NewScheduler(cfg *config.Config, opts SchedulerOptions) (*Scheduler, error) {
	if opts.Checker == nil {
		return nil, errors.New("scheduler requires a checker")
	}
	if opts.Pool == nil {
		return nil, errors.New("scheduler requires a repository pool")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	s := &Scheduler{
		checker:     opts.Checker,
		pool:        opts.Pool,
		minInterval: opts.MinInterval,
		logger:      logging.Nop(opts.Logger),
		cfg:         cfg.Clone(),
		tasks:       make(map[TaskKey]*task),
	}
	if s.minInterval <= 0 {
		s.minInterval = DefaultMinInterval
	}
	return s, nil
}

// Start arms every task; each runs its first cycle immediately. Tasks stop
// when ctx is cancelled or Shutdown is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	for key, t := range s.buildTasks(s.cfg) {
		s.tasks[key] = t
		s.arm(t)
	}
	s.logger.Infow("scheduler started", "tasks", len(s.tasks))
	return nil
}

// Reconfigure atomically replaces the running config. Tasks whose branch,
// referenced remotes, path and interval are unchanged keep running; removed
// or changed tasks are cancelled and waited for, so they emit nothing after
// Reconfigure returns; new and changed tasks are armed immediately.
// Concurrent calls are applied one at a time.
func (s *Scheduler) Reconfigure(ctx context.Context, cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	snapshot := cfg.Clone()

	s.reconfigureMu.Lock()
	defer s.reconfigureMu.Unlock()

	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return errors.New("scheduler is not running")
	}
	next := s.buildTasks(snapshot)
	var stopping []*task
	kept, armed := 0, 0
	for key, old := range s.tasks {
		if t, ok := next[key]; ok && old.sameAs(t) {
			next[key] = old
			kept++
			continue
		}
		old.cancel()
		stopping = append(stopping, old)
	}
	for key, t := range next {
		if t.done == nil {
			s.arm(t)
			armed++
		}
		next[key] = t
	}
	s.tasks = next
	s.cfg = snapshot
	s.mu.Unlock()

	s.logger.Infow("scheduler reconfigured", "kept", kept, "armed", armed, "stopped", len(stopping))
	for _, t := range stopping {
		select {
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.pool.Retain(s.paths(snapshot))
}

// Shutdown cancels every task, waits for in-flight cycles to stop and then
// releases repositories. If ctx expires first, repositories stay open.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
	s.logger.Infow("scheduler stopped")
	return s.pool.Close()
}

// Tasks returns the state of every task ordered by repository then branch.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskStatus, 0, len(s.tasks))
	for key, t := range s.tasks {
		out = append(out, TaskStatus{
			TaskKey:  key,
			State:    t.getState(),
			Interval: t.interval,
			Remotes:  append([]string(nil), t.branch.Remotes...),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return sortutil.LessRepositoryBranch(out[i].Repository, out[i].Branch, out[j].Repository, out[j].Branch)
	})
	return out
}

// Config returns the snapshot currently scheduled.
func (s *Scheduler) Config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Scheduler) buildTasks(cfg *config.Config) map[TaskKey]*task {
	tasks := make(map[TaskKey]*task)
	for _, name := range cfg.RepoNames() {
		repo := cfg.Repos[name]
		path := filepath.Clean(cfg.RepoPath(name))
		for _, branch := range repo.Branches {
			every, _ := interval.Parse(branch.Interval)
			if every < s.minInterval {
				s.logger.Debugw("interval raised to minimum",
					"repository", name, "branch", branch.Name, "interval", branch.Interval, "minimum", s.minInterval)
				every = s.minInterval
			}
			remotes := make([]config.Remote, 0, len(branch.Remotes))
			for _, ref := range branch.Remotes {
				remote, _ := repo.Remote(ref)
				remotes = append(remotes, remote)
			}
			key := TaskKey{Repository: name, Branch: branch.Name}
			tasks[key] = &task{
				key:      key,
				path:     path,
				branch:   branch,
				remotes:  remotes,
				interval: every,
				state:    model.TaskIdle,
			}
		}
	}
	return tasks
}

func (s *Scheduler) paths(cfg *config.Config) map[string]struct{} {
	out := make(map[string]struct{}, len(cfg.Repos))
	for name := range cfg.Repos {
		out[filepath.Clean(cfg.RepoPath(name))] = struct{}{}
	}
	return out
}

// arm starts t. Callers hold s.mu.
func (s *Scheduler) arm(t *task) {
	ctx, cancel := context.WithCancel(s.ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	if len(t.branch.Remotes) == 0 {
		t.setState(model.TaskDisabled)
		close(t.done)
		s.logger.Infow("branch has no remotes; task disabled", "repository", t.key.Repository, "branch", t.key.Branch)
		return
	}
	s.wg.Add(1)
	go s.run(ctx, t)
}

func (s *Scheduler) run(ctx context.Context, t *task) {
	defer s.wg.Done()
	defer close(t.done)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		t.setState(model.TaskChecking)
		ok := s.cycle(ctx, t)
		if ctx.Err() != nil {
			t.setState(model.TaskIdle)
			return
		}
		if !ok {
			t.setState(model.TaskFailed)
			return
		}
		t.setState(model.TaskIdle)
		timer.Reset(t.interval)
	}
}

// cycle runs one check of t. It returns false when the repository could not
// be opened, which stops the task until a reconfigure changes it.
func (s *Scheduler) cycle(ctx context.Context, t *task) bool {
	repo, release, err := s.pool.Acquire(ctx, t.path)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		repoErr := &RepositoryError{Repository: t.key.Repository, Path: t.path, Err: err}
		s.logger.Errorw("repository unavailable; task stopped",
			"repository", t.key.Repository, "branch", t.key.Branch, "path", t.path, "error", err)
		s.checker.Unavailable(t.key.Repository, t.key.Branch, t.branch.Remotes, repoErr)
		return false
	}
	defer release()
	s.checker.Check(ctx, repo, t.key.Repository, t.key.Branch, t.branch.Remotes)
	return true
}
