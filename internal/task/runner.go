package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned by Submit when the in-memory queue has no room.
	// The task stays pending in the store and is picked up on the next recovery.
	ErrQueueFull = errors.New("task queue is full, try again later")

	// ErrRunnerStopped is returned by Submit after Stop.
	ErrRunnerStopped = errors.New("task runner is stopped")
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckTaskAge is how long a task may stay in processing before it is
	// reset to pending and requeued
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defaults to 5 minutes when zero
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner manages background task processing
type TaskRunner struct {
	store      TaskStore
	registry   *Registry
	taskChan   chan Task
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)

	mu      sync.RWMutex
	stopped bool
}

// NewTaskRunner creates a new TaskRunner. registry rebuilds tasks recovered
// from the store.
func NewTaskRunner(store TaskStore, registry *Registry, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_runner")

	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		store:      store,
		registry:   registry,
		taskChan:   make(chan Task, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler replaces the function called when a task fails
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit persists task and adds it to the queue
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrRunnerStopped
	}

	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	select {
	case r.taskChan <- task:
		return nil
	default:
		r.logger.Warn("task queue full, task left pending",
			"task_id", task.ID(),
			"task_type", task.Type())
		return ErrQueueFull
	}
}

// Start recovers unfinished tasks and starts the workers and the stuck-task monitor
func (r *TaskRunner) Start() error {
	if err := r.Recover(r.ctx); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	r.logger.Info("task runner started", "workers", r.config.WorkerCount)
	return nil
}

// Stop cancels in-flight work and waits for workers to exit
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancelFunc()
	r.wg.Wait()
	close(r.taskChan)
	r.logger.Info("task runner stopped")
}

// Recover requeues pending tasks and resets tasks left in processing by a
// previous run
func (r *TaskRunner) Recover(ctx context.Context) error {
	pending, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	processing, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pending),
		"processing_count", len(processing))

	for _, rec := range pending {
		r.requeue(ctx, rec)
	}

	for _, rec := range processing {
		if err := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusPending, "Reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing task status",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}
		r.requeue(ctx, rec)
	}

	return nil
}

// requeue rebuilds rec and puts it on the queue. Records that cannot be
// rebuilt are marked failed.
func (r *TaskRunner) requeue(ctx context.Context, rec Record) {
	t, err := r.registry.Build(rec)
	if err != nil {
		r.logger.Error("failed to rebuild task",
			"task_id", rec.ID,
			"task_type", rec.Type,
			"error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusFailed, err.Error()); updateErr != nil {
			r.logger.Error("failed to mark task failed", "task_id", rec.ID, "error", updateErr)
		}
		return
	}

	select {
	case r.taskChan <- t:
	default:
		r.logger.Error("failed to requeue task, queue is full",
			"task_id", rec.ID,
			"task_type", rec.Type)
	}
}

func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-r.taskChan:
			if !ok {
				return
			}
			r.processTask(task, id)
		}
	}
}

func (r *TaskRunner) processTask(task Task, workerID int) {
	ctx := r.ctx
	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusProcessing, ""); err != nil {
		log.Error("failed to update task status to processing", "error", err)
		return
	}

	log.Info("processing task")
	started := time.Now()

	if err := task.Execute(ctx); err != nil {
		if ctx.Err() != nil {
			// Shutdown interrupted the task; recovery resets it on the next start.
			log.Warn("task interrupted by shutdown", "error", err)
			return
		}
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			log.Error("failed to update task status to failed", "error", updateErr)
		}
		r.errHandler(task, err)
		return
	}

	log.Info("task completed", "duration_ms", time.Since(started).Milliseconds())
	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusCompleted, ""); err != nil {
		log.Error("failed to update task status to completed", "error", err)
	}
}

// stuckTaskMonitor resets tasks that stayed in processing longer than
// StuckTaskAge and requeues them
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.resetStuckTasks(r.ctx)
		}
	}
}

func (r *TaskRunner) resetStuckTasks(ctx context.Context) {
	stuck, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		r.logger.Error("failed to check for stuck tasks", "error", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	r.logger.Info("found stuck tasks", "count", len(stuck))
	for _, rec := range stuck {
		if err := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusPending,
			"Reset after being stuck in processing state"); err != nil {
			r.logger.Error("failed to reset stuck task status",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}
		r.requeue(ctx, rec)
	}
}
