package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/events"
)

// TaskCreator creates a task for an avatar.
type TaskCreator interface {
	CreateTask(avatarID uuid.UUID) (Task, error)
}

// TaskSubmitter accepts tasks for execution.
type TaskSubmitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskFactoryEventHandler turns avatar conversion requests into submitted tasks.
type TaskFactoryEventHandler struct {
	factory TaskCreator
	runner  TaskSubmitter
	logger  *slog.Logger
}

var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)

// NewTaskFactoryEventHandler creates a handler submitting tasks from factory to runner.
func NewTaskFactoryEventHandler(factory TaskCreator, runner TaskSubmitter, logger *slog.Logger) *TaskFactoryEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskFactoryEventHandler{
		factory: factory,
		runner:  runner,
		logger:  logger.With("component", "task_factory_event_handler"),
	}
}

// HandleEvent submits a conversion task for avatar conversion requests and
// ignores every other event type.
func (h *TaskFactoryEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if event.Type != TaskTypeAvatarConversion {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload AvatarConversionPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	t, err := h.factory.CreateTask(payload.AvatarID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.runner.Submit(ctx, t); err != nil {
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Info("task submitted",
		"task_id", t.ID(),
		"avatar_id", payload.AvatarID,
		"event_id", event.ID)
	return nil
}
