package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/service"
)

// MockAvatarService implements service.AvatarService for testing
type MockAvatarService struct {
	CreateCustomFn     func(ctx context.Context, profileID uuid.UUID, cfg *domain.AvatarConfig) (*service.Result, error)
	SelectFn           func(ctx context.Context, avatarID, profileID uuid.UUID) (*service.Result, error)
	CreateFromSocialFn func(ctx context.Context, profileID uuid.UUID, image []byte) (*service.Result, error)
	ImportGitHubFn     func(ctx context.Context, profileID uuid.UUID) (*service.Result, error)
	ActivateFn         func(ctx context.Context, profileID, avatarID uuid.UUID) (*domain.Avatar, error)
	ListFn             func(ctx context.Context, profileID uuid.UUID) ([]*domain.Avatar, error)
	RecommendedFn      func(ctx context.Context, limit int) ([]*domain.Avatar, error)
	SetRecommendedFn   func(ctx context.Context, avatarID uuid.UUID, recommended bool) (*domain.Avatar, error)
	RenderFn           func(ctx context.Context, handle string, useSVG bool) (*service.Rendered, error)
	ConvertMissingFn   func(ctx context.Context, avatarID uuid.UUID) error

	// Defaults used when the function fields are nil
	Avatar   *domain.Avatar
	Avatars  []*domain.Avatar
	Rendered *service.Rendered
	Err      error

	mu    sync.Mutex
	calls []string
}

var _ service.AvatarService = (*MockAvatarService)(nil)

func (m *MockAvatarService) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

// Calls returns the names of the methods called so far, in order.
func (m *MockAvatarService) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockAvatarService) result() (*service.Result, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &service.Result{Avatar: m.Avatar}, nil
}

// CreateCustom implements service.AvatarService
func (m *MockAvatarService) CreateCustom(ctx context.Context, profileID uuid.UUID, cfg *domain.AvatarConfig) (*service.Result, error) {
	m.record("CreateCustom")
	if m.CreateCustomFn != nil {
		return m.CreateCustomFn(ctx, profileID, cfg)
	}
	return m.result()
}

// Select implements service.AvatarService
func (m *MockAvatarService) Select(ctx context.Context, avatarID, profileID uuid.UUID) (*service.Result, error) {
	m.record("Select")
	if m.SelectFn != nil {
		return m.SelectFn(ctx, avatarID, profileID)
	}
	return m.result()
}

// CreateFromSocial implements service.AvatarService
func (m *MockAvatarService) CreateFromSocial(ctx context.Context, profileID uuid.UUID, image []byte) (*service.Result, error) {
	m.record("CreateFromSocial")
	if m.CreateFromSocialFn != nil {
		return m.CreateFromSocialFn(ctx, profileID, image)
	}
	return m.result()
}

// ImportGitHub implements service.AvatarService
func (m *MockAvatarService) ImportGitHub(ctx context.Context, profileID uuid.UUID) (*service.Result, error) {
	m.record("ImportGitHub")
	if m.ImportGitHubFn != nil {
		return m.ImportGitHubFn(ctx, profileID)
	}
	return m.result()
}

// Activate implements service.AvatarService
func (m *MockAvatarService) Activate(ctx context.Context, profileID, avatarID uuid.UUID) (*domain.Avatar, error) {
	m.record("Activate")
	if m.ActivateFn != nil {
		return m.ActivateFn(ctx, profileID, avatarID)
	}
	return m.Avatar, m.Err
}

// List implements service.AvatarService
func (m *MockAvatarService) List(ctx context.Context, profileID uuid.UUID) ([]*domain.Avatar, error) {
	m.record("List")
	if m.ListFn != nil {
		return m.ListFn(ctx, profileID)
	}
	return m.Avatars, m.Err
}

// Recommended implements service.AvatarService
func (m *MockAvatarService) Recommended(ctx context.Context, limit int) ([]*domain.Avatar, error) {
	m.record("Recommended")
	if m.RecommendedFn != nil {
		return m.RecommendedFn(ctx, limit)
	}
	return m.Avatars, m.Err
}

// SetRecommended implements service.AvatarService
func (m *MockAvatarService) SetRecommended(ctx context.Context, avatarID uuid.UUID, recommended bool) (*domain.Avatar, error) {
	m.record("SetRecommended")
	if m.SetRecommendedFn != nil {
		return m.SetRecommendedFn(ctx, avatarID, recommended)
	}
	return m.Avatar, m.Err
}

// Render implements service.AvatarService
func (m *MockAvatarService) Render(ctx context.Context, handle string, useSVG bool) (*service.Rendered, error) {
	m.record("Render")
	if m.RenderFn != nil {
		return m.RenderFn(ctx, handle, useSVG)
	}
	return m.Rendered, m.Err
}

// ConvertMissing implements service.AvatarService
func (m *MockAvatarService) ConvertMissing(ctx context.Context, avatarID uuid.UUID) error {
	m.record("ConvertMissing")
	if m.ConvertMissingFn != nil {
		return m.ConvertMissingFn(ctx, avatarID)
	}
	return m.Err
}
