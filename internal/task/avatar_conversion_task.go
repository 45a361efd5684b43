package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

var (
	// ErrNilConverter is returned when no AvatarConverter is supplied.
	ErrNilConverter = errors.New("avatar converter cannot be nil")

	// ErrEmptyAvatarID is returned for a conversion without an avatar.
	ErrEmptyAvatarID = errors.New("avatar ID cannot be empty")
)

// AvatarConverter derives an avatar's missing SVG or PNG from the other.
type AvatarConverter interface {
	ConvertMissing(ctx context.Context, avatarID uuid.UUID) error
}

// AvatarConversionPayload is the JSON payload of an avatar conversion task.
type AvatarConversionPayload struct {
	AvatarID uuid.UUID `json:"avatar_id"`
}

// AvatarConversionTask fills in the missing format of one avatar.
type AvatarConversionTask struct {
	id        uuid.UUID
	avatarID  uuid.UUID
	converter AvatarConverter
	logger    *slog.Logger
	status    TaskStatus
}

var _ Task = (*AvatarConversionTask)(nil)

// NewAvatarConversionTask creates a pending conversion task for avatarID.
func NewAvatarConversionTask(avatarID uuid.UUID, converter AvatarConverter, logger *slog.Logger) (*AvatarConversionTask, error) {
	return newAvatarConversionTask(uuid.New(), avatarID, converter, logger)
}

func newAvatarConversionTask(id, avatarID uuid.UUID, converter AvatarConverter, logger *slog.Logger) (*AvatarConversionTask, error) {
	if converter == nil {
		return nil, ErrNilConverter
	}
	if avatarID == uuid.Nil {
		return nil, ErrEmptyAvatarID
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AvatarConversionTask{
		id:        id,
		avatarID:  avatarID,
		converter: converter,
		logger:    logger.With("task_type", TaskTypeAvatarConversion, "avatar_id", avatarID),
		status:    TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *AvatarConversionTask) ID() uuid.UUID { return t.id }

// Type returns TaskTypeAvatarConversion
func (t *AvatarConversionTask) Type() string { return TaskTypeAvatarConversion }

// AvatarID returns the avatar being converted
func (t *AvatarConversionTask) AvatarID() uuid.UUID { return t.avatarID }

// Payload returns the JSON encoded AvatarConversionPayload
func (t *AvatarConversionTask) Payload() []byte {
	data, err := json.Marshal(AvatarConversionPayload{AvatarID: t.avatarID})
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return nil
	}
	return data
}

// Status returns the current task status
func (t *AvatarConversionTask) Status() TaskStatus { return t.status }

// Execute converts the avatar's missing format
func (t *AvatarConversionTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing
	t.logger.Debug("converting avatar")

	if err := t.converter.ConvertMissing(ctx, t.avatarID); err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to convert avatar %s: %w", t.avatarID, err)
	}

	t.status = TaskStatusCompleted
	return nil
}

// AvatarConversionTaskFactory creates conversion tasks bound to one converter.
type AvatarConversionTaskFactory struct {
	converter AvatarConverter
	logger    *slog.Logger
}

// NewAvatarConversionTaskFactory creates a factory.
func NewAvatarConversionTaskFactory(converter AvatarConverter, logger *slog.Logger) *AvatarConversionTaskFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &AvatarConversionTaskFactory{converter: converter, logger: logger}
}

// CreateTask creates a new conversion task for avatarID.
func (f *AvatarConversionTaskFactory) CreateTask(avatarID uuid.UUID) (Task, error) {
	return NewAvatarConversionTask(avatarID, f.converter, f.logger)
}

// Build rebuilds a persisted conversion task. It satisfies Builder.
func (f *AvatarConversionTaskFactory) Build(rec Record) (Task, error) {
	var payload AvatarConversionPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", TaskTypeAvatarConversion, err)
	}
	return newAvatarConversionTask(rec.ID, payload.AvatarID, f.converter, f.logger)
}
