package service

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/events"
	"github.com/phrazzld/avatar-api/internal/imaging"
	"github.com/phrazzld/avatar-api/internal/storage"
	"github.com/phrazzld/avatar-api/internal/store"
)

type memProfileStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*domain.Profile
}

func newMemProfileStore() *memProfileStore {
	return &memProfileStore{profiles: map[uuid.UUID]*domain.Profile{}}
}

func (s *memProfileStore) Create(_ context.Context, p *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.profiles {
		if strings.EqualFold(existing.Handle, p.Handle) {
			return store.ErrHandleExists
		}
	}
	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

func (s *memProfileStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, store.ErrProfileNotFound
}

func (s *memProfileStore) GetByHandle(_ context.Context, handle string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.Handle, handle) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrProfileNotFound
}

func (s *memProfileStore) WithTx(*sql.Tx) store.ProfileStore { return s }

// memAvatarStore keeps avatars in insertion order.
type memAvatarStore struct {
	mu      sync.Mutex
	avatars []*domain.Avatar
}

func (s *memAvatarStore) find(id uuid.UUID) int {
	for i, a := range s.avatars {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *memAvatarStore) Create(_ context.Context, a *domain.Avatar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := a.Validate(); err != nil {
		return store.ErrInvalidEntity
	}
	cp := *a
	s.avatars = append(s.avatars, &cp)
	return nil
}

func (s *memAvatarStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Avatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(id); i >= 0 {
		cp := *s.avatars[i]
		return &cp, nil
	}
	return nil, store.ErrAvatarNotFound
}

func (s *memAvatarStore) Update(_ context.Context, a *domain.Avatar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(a.ID)
	if i < 0 {
		return store.ErrAvatarNotFound
	}
	cp := *a
	s.avatars[i] = &cp
	return nil
}

func (s *memAvatarStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return store.ErrAvatarNotFound
	}
	s.avatars = append(s.avatars[:i], s.avatars[i+1:]...)
	return nil
}

func (s *memAvatarStore) filter(keep func(*domain.Avatar) bool, newestFirst bool) []*domain.Avatar {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.Avatar{}
	for _, a := range s.avatars {
		if keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	if newestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func (s *memAvatarStore) ListByProfile(_ context.Context, profileID uuid.UUID) ([]*domain.Avatar, error) {
	return s.filter(func(a *domain.Avatar) bool { return a.OwnedBy(profileID) }, true), nil
}

func (s *memAvatarStore) ListRecommended(_ context.Context, limit int) ([]*domain.Avatar, error) {
	out := s.filter(func(a *domain.Avatar) bool { return a.RecommendedByStaff }, true)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memAvatarStore) FindSimilar(_ context.Context, profileID uuid.UUID, hash string) (*domain.Avatar, error) {
	matches := s.filter(func(a *domain.Avatar) bool { return hash != "" && a.OwnedBy(profileID) && a.Hash == hash }, true)
	if len(matches) == 0 {
		return nil, store.ErrAvatarNotFound
	}
	return matches[0], nil
}

func (s *memAvatarStore) GetActive(_ context.Context, profileID uuid.UUID) (*domain.Avatar, error) {
	matches := s.filter(func(a *domain.Avatar) bool { return a.Active && a.OwnedBy(profileID) }, false)
	if len(matches) == 0 {
		return nil, store.ErrAvatarNotFound
	}
	return matches[0], nil
}

func (s *memAvatarStore) SetActive(_ context.Context, profileID, avatarID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(avatarID)
	if i < 0 || !s.avatars[i].OwnedBy(profileID) {
		return store.ErrAvatarNotFound
	}
	for _, a := range s.avatars {
		if a.OwnedBy(profileID) {
			a.Active = a.ID == avatarID
		}
	}
	return nil
}

func (s *memAvatarStore) ListMissingFormats(_ context.Context, limit int, _ time.Time) ([]*domain.Avatar, error) {
	out := s.filter(func(a *domain.Avatar) bool { _, ok := a.MissingFormat(); return ok }, false)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memAvatarStore) WithTx(*sql.Tx) store.AvatarStore { return s }

type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.TaskRequestEvent
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.TaskRequestEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

type fakeFetcher struct {
	data []byte
	err  error
	got  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, handle string) ([]byte, error) {
	f.got = append(f.got, handle)
	return f.data, f.err
}

const (
	headAsset = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100"><circle cx="50" cy="50" r="40" fill="#E8B796"/></svg>`
	eyesAsset = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100"><rect x="25" y="40" width="50" height="8" fill="#000"/></svg>`
	hairAsset = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100"><rect x="10" y="0" width="80" height="30" fill="#603010"/></svg>`
)

type harness struct {
	svc      AvatarService
	profiles *memProfileStore
	avatars  *memAvatarStore
	files    *storage.AferoFileStore
	emitter  *recordingEmitter
	fetcher  *fakeFetcher
	mock     sqlmock.Sqlmock
	profile  *domain.Profile
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assetFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(assetFs, "head/round.svg", []byte(headAsset), 0o644))
	require.NoError(t, afero.WriteFile(assetFs, "eyes/wide.svg", []byte(eyesAsset), 0o644))
	require.NoError(t, afero.WriteFile(assetFs, "hair/short.svg", []byte(hairAsset), 0o644))

	h := &harness{
		profiles: newMemProfileStore(),
		avatars:  &memAvatarStore{},
		files:    storage.NewAferoFileStore(afero.NewMemMapFs(), "/media/", nil),
		emitter:  &recordingEmitter{},
		fetcher:  &fakeFetcher{},
		mock:     mock,
	}

	h.svc, err = NewAvatarService(AvatarServiceDeps{
		DB:       db,
		Profiles: h.profiles,
		Avatars:  h.avatars,
		Files:    h.files,
		Assets:   imaging.NewAssetLibrary(assetFs, nil),
		Events:   h.emitter,
		Fetcher:  h.fetcher,
	}, nil)
	require.NoError(t, err)

	h.profile = h.addProfile(t, "octocat")
	return h
}

func (h *harness) addProfile(t *testing.T, handle string) *domain.Profile {
	t.Helper()
	p, err := domain.NewProfile(handle)
	require.NoError(t, err)
	require.NoError(t, h.profiles.Create(context.Background(), p))
	return p
}

func sampleConfig(hair bool) *domain.AvatarConfig {
	layers := []domain.Layer{
		{Name: "Head", ComponentType: "head", SVGAsset: "round.svg"},
		{Name: "Eyes", ComponentType: "eyes", SVGAsset: "wide.svg"},
	}
	if hair {
		layers = append(layers, domain.Layer{Name: "Hair", ComponentType: "hair", SVGAsset: "short.svg"})
	}
	return domain.NewAvatarConfig("F0F0F0", layers...)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func checkerPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			if (x/8+y/8)%2 == 0 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return encodePNG(t, img)
}

func gradientPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 4)})
		}
	}
	return encodePNG(t, img)
}
