package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/avatar-api/internal/api/shared"
	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/mocks"
	"github.com/phrazzld/avatar-api/internal/service"
	"github.com/phrazzld/avatar-api/internal/storage"
)

const testBaseURL = "https://avatars.example.com/"

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type testServer struct {
	avatars  *mocks.MockAvatarService
	profiles *mocks.MockProfileService
	jwt      *mocks.MockJWTService
	files    *storage.AferoFileStore
	router   chi.Router
	profile  *domain.Profile
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	profile, err := domain.NewProfile("octocat")
	require.NoError(t, err)

	ts := &testServer{
		avatars:  &mocks.MockAvatarService{},
		profiles: &mocks.MockProfileService{Profile: profile},
		jwt:      mocks.NewMockJWTServiceFor(profile.ID),
		files:    storage.NewAferoFileStore(afero.NewMemMapFs(), "/media/", nil),
		profile:  profile,
	}

	ph := NewProfileHandler(ts.profiles, ts.jwt, time.Hour, discardLogger)
	ah := NewAvatarHandler(ts.avatars, ts.profiles, ts.files,
		AvatarHandlerConfig{BaseURL: testBaseURL, MaxUploadBytes: 64}, discardLogger)

	r := chi.NewRouter()
	r.Post("/api/profiles", ph.CreateProfile)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if req.Header.Get("Authorization") == "" {
					next.ServeHTTP(w, req)
					return
				}
				next.ServeHTTP(w, req.WithContext(shared.WithProfileID(req.Context(), profile.ID)))
			})
		})
		r.Get("/api/avatars", ah.ListAvatars)
		r.Get("/api/avatars/recommended", ah.Recommended)
		r.Post("/api/avatars/custom", ah.CreateCustom)
		r.Post("/api/avatars/social", ah.CreateFromSocial)
		r.Post("/api/avatars/github", ah.ImportGitHub)
		r.Post("/api/avatars/{id}/select", ah.SelectAvatar)
		r.Post("/api/avatars/{id}/activate", ah.ActivateAvatar)
	})
	r.Get("/dynamic/avatar/{handle}", ah.DynamicAvatar)
	r.Get("/media/*", ah.Media)
	r.Get("/health", Health)

	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if authed {
		req.Header.Set("Authorization", "Bearer test")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) avatar(t *testing.T) *domain.Avatar {
	t.Helper()
	a, err := domain.NewCustomAvatar(ts.profile.ID, domain.NewAvatarConfig("fff",
		domain.Layer{Name: "Head", ComponentType: "head", SVGAsset: "round.svg"}))
	require.NoError(t, err)
	a.SVG = "avatars/abc/octocat.svg"
	a.PNG = "avatars/def/octocat.png"
	a.Hash = "00ff00ff00ff00ff"
	return a
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestCreateProfile(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.profiles.CreateProfileFn = func(_ context.Context, handle string) (*domain.Profile, error) {
			assert.Equal(t, "octocat", handle)
			return ts.profile, nil
		}

		w := ts.do(t, http.MethodPost, "/api/profiles", strings.NewReader(`{"handle":"octocat"}`), false)
		require.Equal(t, http.StatusCreated, w.Code)

		resp := decode[ProfileResponse](t, w)
		assert.Equal(t, ts.profile.ID, resp.ID)
		assert.Equal(t, "token-"+ts.profile.ID.String(), resp.AccessToken)
		assert.NotEmpty(t, resp.ExpiresAt)
	})

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantError  string
	}{
		{"malformed body", `{"handle":`, nil, http.StatusBadRequest, "Invalid request format"},
		{"missing handle", `{}`, nil, http.StatusBadRequest, "Invalid Handle: required field"},
		{"handle taken", `{"handle":"octocat"}`, service.ErrHandleTaken, http.StatusConflict, "Handle is already taken"},
		{"invalid handle", `{"handle":"-bad-"}`, errors.Join(service.ErrInvalidProfile, domain.ErrInvalidHandle), http.StatusBadRequest, "Invalid handle"},
		{"store failure", `{"handle":"octocat"}`, errors.New("connection reset"), http.StatusInternalServerError, "Failed to create profile"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t)
			ts.profiles.Err = tc.serviceErr

			w := ts.do(t, http.MethodPost, "/api/profiles", strings.NewReader(tc.body), false)
			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, tc.wantError, decode[shared.ErrorResponse](t, w).Error)
		})
	}
}

func TestAvatarEndpointsRequireProfile(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	for _, path := range []string{"/api/avatars/custom", "/api/avatars/social", "/api/avatars/github"} {
		w := ts.do(t, http.MethodPost, path, strings.NewReader(`{}`), false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := ts.do(t, http.MethodGet, "/api/avatars", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, ts.avatars.Calls())
}

func TestListAvatars(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	a := ts.avatar(t)
	ts.avatars.Avatars = []*domain.Avatar{a}

	w := ts.do(t, http.MethodGet, "/api/avatars", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[AvatarListResponse](t, w)
	require.Len(t, resp.Avatars, 1)
	got := resp.Avatars[0]
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "/media/avatars/def/octocat.png", got.AvatarURL)
	assert.Equal(t, "/media/avatars/abc/octocat.svg", got.SVGURL)
	assert.Equal(t, testBaseURL+"dynamic/avatar/octocat", got.DynamicURL)
	require.NotNil(t, got.Config)
	assert.Equal(t, "fff", got.Config.Background)
}

func TestRecommended(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	var gotLimit int
	ts.avatars.RecommendedFn = func(_ context.Context, limit int) ([]*domain.Avatar, error) {
		gotLimit = limit
		return nil, nil
	}

	w := ts.do(t, http.MethodGet, "/api/avatars/recommended", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.DefaultRecommendedLimit, gotLimit)
	assert.JSONEq(t, `{"avatars":[]}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/avatars/recommended?limit=5", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, gotLimit)

	w = ts.do(t, http.MethodGet, "/api/avatars/recommended?limit=500", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.DefaultRecommendedLimit, gotLimit)

	w = ts.do(t, http.MethodGet, "/api/avatars/recommended?limit=-1", nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCustom(t *testing.T) {
	t.Parallel()

	t.Run("created", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		a := ts.avatar(t)
		ts.avatars.CreateCustomFn = func(_ context.Context, profileID uuid.UUID, cfg *domain.AvatarConfig) (*service.Result, error) {
			assert.Equal(t, ts.profile.ID, profileID)
			require.NotNil(t, cfg)
			layers := cfg.Layers()
			require.Len(t, layers, 2)
			assert.Equal(t, "Head", layers[0].Name)
			assert.Equal(t, "Eyes", layers[1].Name)
			return &service.Result{Avatar: a}, nil
		}

		body := `{"config":{"Background":"fff",
			"Head":{"component_type":"head","svg_asset":"round.svg"},
			"Eyes":{"component_type":"eyes","svg_asset":"wide.svg"}}}`
		w := ts.do(t, http.MethodPost, "/api/avatars/custom", strings.NewReader(body), true)
		require.Equal(t, http.StatusCreated, w.Code)

		resp := decode[CreateAvatarResponse](t, w)
		assert.False(t, resp.Reused)
		assert.Equal(t, a.ID, resp.Avatar.ID)
	})

	t.Run("reused", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.avatars.CreateCustomFn = func(context.Context, uuid.UUID, *domain.AvatarConfig) (*service.Result, error) {
			return &service.Result{Avatar: ts.avatar(t), Reused: true}, nil
		}

		w := ts.do(t, http.MethodPost, "/api/avatars/custom", strings.NewReader(`{"config":{"Background":"fff"}}`), true)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[CreateAvatarResponse](t, w).Reused)
	})

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{"missing config", `{}`, nil, http.StatusBadRequest},
		{"config not an object", `{"config":[1]}`, nil, http.StatusBadRequest},
		{"unknown asset", `{"config":{"Background":"fff"}}`, service.ErrInvalidConfig, http.StatusBadRequest},
		{"internal", `{"config":{"Background":"fff"}}`, errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t)
			ts.avatars.Err = tc.serviceErr
			w := ts.do(t, http.MethodPost, "/api/avatars/custom", strings.NewReader(tc.body), true)
			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestCreateFromSocial(t *testing.T) {
	t.Parallel()

	t.Run("passes the raw body", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		a := ts.avatar(t)
		a.Kind = domain.AvatarKindSocial
		ts.avatars.CreateFromSocialFn = func(_ context.Context, _ uuid.UUID, image []byte) (*service.Result, error) {
			assert.Equal(t, []byte("\x89PNG fake"), image)
			return &service.Result{Avatar: a}, nil
		}

		w := ts.do(t, http.MethodPost, "/api/avatars/social", bytes.NewReader([]byte("\x89PNG fake")), true)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		w := ts.do(t, http.MethodPost, "/api/avatars/social", bytes.NewReader(make([]byte, 65)), true)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Empty(t, ts.avatars.Calls())
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		w := ts.do(t, http.MethodPost, "/api/avatars/social", http.NoBody, true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not an image", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		ts.avatars.Err = service.ErrInvalidImage
		w := ts.do(t, http.MethodPost, "/api/avatars/social", strings.NewReader("hello"), true)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Unsupported or corrupt image", decode[shared.ErrorResponse](t, w).Error)
	})
}

func TestImportGitHub(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"imported", nil, http.StatusCreated},
		{"unknown user", service.ErrUpstreamNotFound, http.StatusNotFound},
		{"github down", service.ErrUpstreamUnavailable, http.StatusBadGateway},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t)
			ts.avatars.Avatar = ts.avatar(t)
			ts.avatars.Err = tc.err
			w := ts.do(t, http.MethodPost, "/api/avatars/github", nil, true)
			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestSelectAndActivate(t *testing.T) {
	t.Parallel()

	t.Run("select", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		sourceID := uuid.New()
		ts.avatars.SelectFn = func(_ context.Context, avatarID, profileID uuid.UUID) (*service.Result, error) {
			assert.Equal(t, sourceID, avatarID)
			assert.Equal(t, ts.profile.ID, profileID)
			return &service.Result{Avatar: ts.avatar(t)}, nil
		}
		w := ts.do(t, http.MethodPost, "/api/avatars/"+sourceID.String()+"/select", nil, true)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("activate", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t)
		a := ts.avatar(t)
		a.Active = true
		ts.avatars.Avatar = a
		w := ts.do(t, http.MethodPost, "/api/avatars/"+a.ID.String()+"/activate", nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[AvatarResponse](t, w).Active)
	})

	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{"bad id", "/api/avatars/not-a-uuid/activate", nil, http.StatusBadRequest},
		{"not owned", "/api/avatars/" + uuid.NewString() + "/activate", service.ErrNotOwned, http.StatusForbidden},
		{"missing", "/api/avatars/" + uuid.NewString() + "/activate", service.ErrAvatarNotFound, http.StatusNotFound},
		{"select social", "/api/avatars/" + uuid.NewString() + "/select", service.ErrNotCustom, http.StatusBadRequest},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t)
			ts.avatars.Err = tc.err
			w := ts.do(t, http.MethodPost, tc.path, nil, true)
			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestDynamicAvatar(t *testing.T) {
	t.Parallel()

	modTime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		query       string
		wantSVG     bool
		wantStatus  int
		wantType    string
		renderError error
	}{
		{"svg by default", "", true, http.StatusOK, domain.ContentTypeSVG, nil},
		{"png on request", "?format=png", false, http.StatusOK, domain.ContentTypePNG, nil},
		{"format is case insensitive", "?format=PNG", false, http.StatusOK, domain.ContentTypePNG, nil},
		{"unknown format", "?format=gif", true, http.StatusBadRequest, "", nil},
		{"no active avatar", "", true, http.StatusNotFound, "", service.ErrNoActiveAvatar},
		{"unknown handle", "", true, http.StatusNotFound, "", service.ErrProfileNotFound},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t)
			ts.avatars.RenderFn = func(_ context.Context, handle string, useSVG bool) (*service.Rendered, error) {
				assert.Equal(t, "octocat", handle)
				assert.Equal(t, tc.wantSVG, useSVG)
				if tc.renderError != nil {
					return nil, tc.renderError
				}
				ct := domain.ContentTypePNG
				if useSVG {
					ct = domain.ContentTypeSVG
				}
				return &service.Rendered{
					Body:        io.NopCloser(strings.NewReader("image-bytes")),
					ContentType: ct,
					ModTime:     modTime,
				}, nil
			}

			w := ts.do(t, http.MethodGet, "/dynamic/avatar/octocat"+tc.query, nil, false)
			require.Equal(t, tc.wantStatus, w.Code)
			if tc.wantStatus != http.StatusOK {
				return
			}
			assert.Equal(t, tc.wantType, w.Header().Get("Content-Type"))
			assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
			assert.Equal(t, modTime.Format(http.TimeFormat), w.Header().Get("Last-Modified"))
			assert.Equal(t, "image-bytes", w.Body.String())
		})
	}
}

func TestMedia(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	svgDoc := []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`)
	key := storage.UploadKey("octocat.svg", svgDoc)
	require.NoError(t, ts.files.Save(context.Background(), key, svgDoc))

	w := ts.do(t, http.MethodGet, "/media/"+key, nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.ContentTypeSVG, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Cache-Control"), "immutable")
	assert.Equal(t, svgDoc, w.Body.Bytes())

	w = ts.do(t, http.MethodGet, "/media/avatars/nope/missing.png", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
