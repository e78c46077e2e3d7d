package taskmanager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrCapacityExceeded возвращается, когда активных задач уже maxTasks.
	ErrCapacityExceeded = errors.New("maximum number of active tasks exceeded")
	// ErrShuttingDown возвращается после начала Shutdown.
	ErrShuttingDown = errors.New("task manager is shutting down")
	ErrTaskNotFound = errors.New("task not found")
)

const defaultShutdownGrace = 5 * time.Second

// Submitter - то, что нужно сервисам: запустить задачу вне запроса.
type Submitter interface {
	SubmitTask(ctx context.Context, name string, taskFunc TaskFunc) (uuid.UUID, error)
}

// Task представляет асинхронную задачу
type Task struct {
	ID        uuid.UUID
	Name      string
	Status    TaskStatus
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
	Cancel    context.CancelFunc
}

// TaskStatus представляет статус задачи
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

func (s TaskStatus) isActive() bool {
	return s == TaskStatusPending || s == TaskStatusRunning
}

// TaskFunc выполняется в собственном контексте, не связанном с HTTP запросом.
type TaskFunc func(ctx context.Context) error

// Config содержит конфигурацию для TaskManager
type Config struct {
	MaxTasks int
}

// TaskManager управляет асинхронными задачами
type TaskManager struct {
	tasks    map[uuid.UUID]*Task
	mu       sync.RWMutex
	maxTasks int
	closed   bool
	wg       sync.WaitGroup
	logger   *zap.Logger

	// shutdownGrace - сколько ждать отмененные задачи после дедлайна Shutdown.
	shutdownGrace time.Duration
}

var _ Submitter = (*TaskManager)(nil)

// New создает новый экземпляр TaskManager
func New(cfg Config, logger *zap.Logger) *TaskManager {
	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10
	}

	return &TaskManager{
		tasks:         make(map[uuid.UUID]*Task),
		maxTasks:      maxTasks,
		shutdownGrace: defaultShutdownGrace,
		logger:        logger.Named("TaskManager"),
	}
}

// SubmitTask создает и запускает новую задачу.
// ctx используется только для логирования: задача получает контекст от context.Background().
func (tm *TaskManager) SubmitTask(_ context.Context, name string, taskFunc TaskFunc) (uuid.UUID, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.closed {
		return uuid.Nil, ErrShuttingDown
	}

	activeTasks := 0
	for _, task := range tm.tasks {
		if task.Status.isActive() {
			activeTasks++
		}
	}
	if activeTasks >= tm.maxTasks {
		tm.logger.Warn("Task rejected, capacity exhausted", zap.String("task", name), zap.Int("active", activeTasks))
		tasksRejected.Inc()
		return uuid.Nil, ErrCapacityExceeded
	}

	taskID := uuid.New()
	taskCtx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	task := &Task{
		ID:        taskID,
		Name:      name,
		Status:    TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Cancel:    cancel,
	}
	tm.tasks[taskID] = task
	tasksSubmitted.Inc()

	tm.wg.Add(1)
	go func() {
		defer tm.wg.Done()
		defer cancel()

		tm.runTask(taskCtx, task, taskFunc)
	}()

	return taskID, nil
}

// runTask выполняет задачу и обновляет ее статус
func (tm *TaskManager) runTask(ctx context.Context, task *Task, taskFunc TaskFunc) {
	log := tm.logger.With(zap.String("taskID", task.ID.String()), zap.String("task", task.Name))
	tm.updateTaskStatus(task, TaskStatusRunning, "Task started")
	activeTasksGauge.Inc()
	defer activeTasksGauge.Dec()

	start := time.Now()
	err := tm.safeRun(ctx, taskFunc)
	taskDuration.Observe(time.Since(start).Seconds())

	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		log.Info("Task context was cancelled")
		tm.updateTaskStatus(task, TaskStatusCancelled, "Task cancelled")
		tasksFinished.WithLabelValues(string(TaskStatusCancelled)).Inc()
	case err != nil:
		log.Error("Task failed", zap.Error(err))
		tm.updateTaskStatus(task, TaskStatusFailed, err.Error())
		tasksFinished.WithLabelValues(string(TaskStatusFailed)).Inc()
	default:
		log.Info("Task completed", zap.Duration("duration", time.Since(start)))
		tm.updateTaskStatus(task, TaskStatusCompleted, "Task completed")
		tasksFinished.WithLabelValues(string(TaskStatusCompleted)).Inc()
	}
}

// safeRun превращает панику задачи в ошибку, чтобы не уронить процесс.
func (tm *TaskManager) safeRun(ctx context.Context, taskFunc TaskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return taskFunc(ctx)
}

func (tm *TaskManager) updateTaskStatus(task *Task, status TaskStatus, message string) {
	tm.mu.Lock()
	task.Status = status
	task.Message = message
	task.UpdatedAt = time.Now()
	tm.mu.Unlock()

	tm.logger.Debug("Task status updated",
		zap.String("taskID", task.ID.String()),
		zap.String("newStatus", string(status)),
		zap.String("message", message),
	)
}

// getTask возвращает копию задачи по ID.
func (tm *TaskManager) getTask(taskID uuid.UUID) (Task, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	task, ok := tm.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return *task, nil
}

// ActiveTasks returns the number of pending and running tasks.
func (tm *TaskManager) ActiveTasks() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	n := 0
	for _, task := range tm.tasks {
		if task.Status.isActive() {
			n++
		}
	}
	return n
}

// cancelTask отменяет контекст задачи. Сама задача решает, как реагировать.
func (tm *TaskManager) cancelTask(taskID uuid.UUID) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task, ok := tm.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if !task.Status.isActive() {
		return fmt.Errorf("cannot cancel task in status %s", task.Status)
	}
	if task.Cancel != nil {
		task.Cancel()
	}
	return nil
}

// activeSnapshot returns copies of pending and running tasks, oldest first.
func (tm *TaskManager) activeSnapshot() []Task {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	var active []Task
	for _, task := range tm.tasks {
		if task.Status.isActive() {
			active = append(active, *task)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
	return active
}

// CleanupTasks удаляет завершенные задачи, которые старше указанного времени
func (tm *TaskManager) CleanupTasks(age time.Duration) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, task := range tm.tasks {
		if !task.Status.isActive() && now.Sub(task.UpdatedAt) > age {
			delete(tm.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		tm.logger.Debug("Finished tasks cleaned up", zap.Int("removed", removed))
	}
	return removed
}

// StartCleanup periodically removes finished tasks until ctx is done.
func (tm *TaskManager) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tm.CleanupTasks(interval)
			}
		}
	}()
}

// Shutdown перестает принимать задачи и ждет завершения запущенных до дедлайна ctx.
// Задачи, не успевшие к дедлайну, отменяются и получают shutdownGrace,
// чтобы записать свой итог (например, пометить историю FAILED).
func (tm *TaskManager) Shutdown(ctx context.Context) error {
	tm.mu.Lock()
	tm.closed = true
	tm.mu.Unlock()

	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		tm.logger.Info("All background tasks finished")
		return nil
	case <-ctx.Done():
	}

	stuck := tm.activeSnapshot()
	tm.logger.Warn("Timed out waiting for background tasks, cancelling", zap.Int("active", len(stuck)))
	for _, task := range stuck {
		tm.logger.Warn("Cancelling unfinished task",
			zap.String("taskID", task.ID.String()),
			zap.String("task", task.Name),
			zap.String("status", string(task.Status)),
			zap.Duration("age", time.Since(task.CreatedAt)),
		)
		if err := tm.cancelTask(task.ID); err != nil {
			// Задача успела завершиться сама.
			tm.logger.Debug("Task not cancelled", zap.String("taskID", task.ID.String()), zap.Error(err))
		}
	}

	select {
	case <-done:
	case <-time.After(tm.shutdownGrace):
		tm.logger.Warn("Cancelled tasks did not stop within grace period", zap.Int("active", tm.ActiveTasks()))
	}
	return fmt.Errorf("timeout waiting for tasks to finish: %w", ctx.Err())
}
