package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/events"
	"github.com/phrazzld/avatar-api/internal/imaging"
	"github.com/phrazzld/avatar-api/internal/platform/logger"
	"github.com/phrazzld/avatar-api/internal/storage"
	"github.com/phrazzld/avatar-api/internal/store"
	"github.com/phrazzld/avatar-api/internal/task"
)

// DefaultRecommendedLimit caps the staff picks returned by Recommended.
const DefaultRecommendedLimit = 50

// AvatarService provides the avatar operations.
type AvatarService interface {
	// CreateCustom composes an avatar from cfg for profileID. An existing
	// avatar of the profile with the same picture is returned instead of a
	// new one.
	CreateCustom(ctx context.Context, profileID uuid.UUID, cfg *domain.AvatarConfig) (*Result, error)

	// Select copies the custom avatar avatarID to profileID.
	Select(ctx context.Context, avatarID, profileID uuid.UUID) (*Result, error)

	// CreateFromSocial stores an uploaded picture as a social avatar.
	CreateFromSocial(ctx context.Context, profileID uuid.UUID, image []byte) (*Result, error)

	// ImportGitHub downloads the GitHub avatar of the profile's handle.
	ImportGitHub(ctx context.Context, profileID uuid.UUID) (*Result, error)

	// Activate makes avatarID the active avatar of profileID.
	Activate(ctx context.Context, profileID, avatarID uuid.UUID) (*domain.Avatar, error)

	// List returns the avatars of profileID, newest first.
	List(ctx context.Context, profileID uuid.UUID) ([]*domain.Avatar, error)

	// Recommended returns the staff picks, newest first.
	Recommended(ctx context.Context, limit int) ([]*domain.Avatar, error)

	// SetRecommended flags or unflags a custom avatar as a staff pick.
	SetRecommended(ctx context.Context, avatarID uuid.UUID, recommended bool) (*domain.Avatar, error)

	// Render opens the active avatar of handle for the dynamic avatar endpoint.
	Render(ctx context.Context, handle string, useSVG bool) (*Rendered, error)

	// ConvertMissing derives whichever of SVG and PNG an avatar lacks.
	ConvertMissing(ctx context.Context, avatarID uuid.UUID) error
}

// Result is the outcome of an avatar creation. Reused is set when an
// existing avatar with the same picture was returned.
type Result struct {
	Avatar *domain.Avatar
	Reused bool
}

// Rendered is an open avatar file. Close Body when done.
type Rendered struct {
	Body        io.ReadCloser
	ContentType string
	Key         string
	ModTime     time.Time
}

// AvatarServiceDeps groups the collaborators of the avatar service.
type AvatarServiceDeps struct {
	DB       *sql.DB
	Profiles store.ProfileStore
	Avatars  store.AvatarStore
	Files    storage.FileStore
	Assets   imaging.AssetSource
	Events   events.EventEmitter
	Fetcher  AvatarFetcher
}

type avatarServiceImpl struct {
	db       *sql.DB
	profiles store.ProfileStore
	avatars  store.AvatarStore
	files    storage.FileStore
	assets   imaging.AssetSource
	events   events.EventEmitter
	fetcher  AvatarFetcher
	logger   *slog.Logger

	convert func(src []byte, from, to domain.ImageFormat) ([]byte, error)
	hash    func(data []byte) (string, error)
}

var (
	_ AvatarService        = (*avatarServiceImpl)(nil)
	_ task.AvatarConverter = (*avatarServiceImpl)(nil)
)

// NewAvatarService creates an AvatarService. Every dependency except the
// fetcher is required.
func NewAvatarService(deps AvatarServiceDeps, l *slog.Logger) (AvatarService, error) {
	missing := ""
	switch {
	case deps.DB == nil:
		missing = "db"
	case deps.Profiles == nil:
		missing = "profile store"
	case deps.Avatars == nil:
		missing = "avatar store"
	case deps.Files == nil:
		missing = "file store"
	case deps.Assets == nil:
		missing = "asset source"
	case deps.Events == nil:
		missing = "event emitter"
	}
	if missing != "" {
		return nil, &AvatarServiceError{Operation: "create_service", Message: missing + " cannot be nil"}
	}

	if l == nil {
		l = slog.Default()
	}
	return &avatarServiceImpl{
		db:       deps.DB,
		profiles: deps.Profiles,
		avatars:  deps.Avatars,
		files:    deps.Files,
		assets:   deps.Assets,
		events:   deps.Events,
		fetcher:  deps.Fetcher,
		logger:   l.With("component", "avatar_service"),
		convert:  imaging.Convert,
		hash:     imaging.HashBytes,
	}, nil
}

func (s *avatarServiceImpl) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}

// CreateCustom composes, converts and hashes the avatar before anything is
// stored so a duplicate leaves no files behind.
func (s *avatarServiceImpl) CreateCustom(ctx context.Context, profileID uuid.UUID, cfg *domain.AvatarConfig) (*Result, error) {
	const op = "create_custom"
	log := s.log(ctx).With("profile_id", profileID)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, NewAvatarServiceError(op, "failed to load profile", err)
	}

	svgData, err := imaging.Compose(cfg, s.assets, imaging.IconSize)
	if err != nil {
		log.Warn("failed to compose avatar", "error", err)
		return nil, NewAvatarServiceError(op, "failed to compose avatar", err)
	}

	avatar, err := domain.NewCustomAvatar(profileID, cfg)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	// Without a hash the PNG is dropped too, so the conversion task
	// produces both.
	pngData, err := s.convert(svgData, domain.FormatSVG, domain.FormatPNG)
	if err != nil {
		log.Warn("failed to convert avatar to png, deferring", "error", err)
		pngData = nil
	} else if hash, err := s.hash(pngData); err != nil {
		log.Warn("failed to hash avatar, deferring", "error", err)
		pngData = nil
	} else {
		avatar.Hash = hash
	}

	if similar, err := s.findSimilar(ctx, profileID, avatar.Hash); err != nil {
		return nil, NewAvatarServiceError(op, "failed to look up similar avatars", err)
	} else if similar != nil {
		log.Info("reusing similar avatar", "avatar_id", similar.ID)
		return &Result{Avatar: similar, Reused: true}, nil
	}

	stem := fileStem(profile)
	if avatar.SVG, err = s.save(ctx, stem, domain.FormatSVG, svgData); err != nil {
		return nil, NewAvatarServiceError(op, "failed to store svg", err)
	}
	if pngData != nil {
		if avatar.PNG, err = s.save(ctx, stem, domain.FormatPNG, pngData); err != nil {
			return nil, NewAvatarServiceError(op, "failed to store png", err)
		}
	}

	if err := s.avatars.Create(ctx, avatar); err != nil {
		return nil, NewAvatarServiceError(op, "failed to save avatar", err)
	}
	log.Info("custom avatar created", "avatar_id", avatar.ID)

	s.requestConversion(ctx, avatar)
	return &Result{Avatar: avatar}, nil
}

// Select copies a custom avatar, sharing its files.
func (s *avatarServiceImpl) Select(ctx context.Context, avatarID, profileID uuid.UUID) (*Result, error) {
	const op = "select"

	source, err := s.avatars.GetByID(ctx, avatarID)
	if err != nil {
		return nil, NewAvatarServiceError(op, "failed to load avatar", err)
	}

	avatar, err := source.Select(profileID)
	if err != nil {
		return nil, NewAvatarServiceError(op, "failed to copy avatar", err)
	}

	if similar, err := s.findSimilar(ctx, profileID, avatar.Hash); err != nil {
		return nil, NewAvatarServiceError(op, "failed to look up similar avatars", err)
	} else if similar != nil {
		return &Result{Avatar: similar, Reused: true}, nil
	}

	if err := s.avatars.Create(ctx, avatar); err != nil {
		return nil, NewAvatarServiceError(op, "failed to save avatar", err)
	}
	s.log(ctx).Info("avatar selected",
		"source_avatar_id", avatarID,
		"avatar_id", avatar.ID,
		"profile_id", profileID)

	s.requestConversion(ctx, avatar)
	return &Result{Avatar: avatar}, nil
}

// CreateFromSocial hashes the picture first and only stores it when the
// profile has no avatar with the same hash.
func (s *avatarServiceImpl) CreateFromSocial(ctx context.Context, profileID uuid.UUID, data []byte) (*Result, error) {
	const op = "create_from_social"
	log := s.log(ctx).With("profile_id", profileID)

	if err := checkImage(data); err != nil {
		return nil, err
	}
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, errors.Join(ErrInvalidImage, err)
	}
	img = imaging.Fit(img, imaging.MaxSocialSize)

	hash, err := imaging.CalculateHash(img)
	if err != nil {
		return nil, NewAvatarServiceError(op, "failed to hash image", err)
	}

	if similar, err := s.findSimilar(ctx, profileID, hash); err != nil {
		return nil, NewAvatarServiceError(op, "failed to look up similar avatars", err)
	} else if similar != nil {
		log.Info("reusing similar avatar", "avatar_id", similar.ID)
		return &Result{Avatar: similar, Reused: true}, nil
	}

	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, NewAvatarServiceError(op, "failed to load profile", err)
	}

	avatar, err := domain.NewSocialAvatar(profileID, hash)
	if err != nil {
		return nil, NewAvatarServiceError(op, "failed to build avatar", err)
	}

	pngData, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, NewAvatarServiceError(op, "failed to encode png", err)
	}
	stem := fileStem(profile)
	if avatar.PNG, err = s.save(ctx, stem, domain.FormatPNG, pngData); err != nil {
		return nil, NewAvatarServiceError(op, "failed to store png", err)
	}

	if svgData, err := s.convert(pngData, domain.FormatPNG, domain.FormatSVG); err != nil {
		log.Warn("failed to convert avatar to svg, deferring", "error", err)
	} else if avatar.SVG, err = s.save(ctx, stem, domain.FormatSVG, svgData); err != nil {
		return nil, NewAvatarServiceError(op, "failed to store svg", err)
	}

	if err := s.avatars.Create(ctx, avatar); err != nil {
		return nil, NewAvatarServiceError(op, "failed to save avatar", err)
	}
	log.Info("social avatar created", "avatar_id", avatar.ID)

	s.requestConversion(ctx, avatar)
	return &Result{Avatar: avatar}, nil
}

// ImportGitHub fetches the profile handle's GitHub avatar.
func (s *avatarServiceImpl) ImportGitHub(ctx context.Context, profileID uuid.UUID) (*Result, error) {
	const op = "import_github"

	if s.fetcher == nil {
		return nil, ErrUpstreamUnavailable
	}

	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, NewAvatarServiceError(op, "failed to load profile", err)
	}

	data, err := s.fetcher.Fetch(ctx, profile.Handle)
	if err != nil {
		return nil, NewAvatarServiceError(op, "failed to download avatar", err)
	}
	return s.CreateFromSocial(ctx, profileID, data)
}

// Activate switches the active avatar inside a transaction.
func (s *avatarServiceImpl) Activate(ctx context.Context, profileID, avatarID uuid.UUID) (*domain.Avatar, error) {
	const op = "activate"

	var activated *domain.Avatar
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		avatars := s.avatars.WithTx(tx)

		avatar, err := avatars.GetByID(ctx, avatarID)
		if err != nil {
			return NewAvatarServiceError(op, "failed to load avatar", err)
		}
		if !avatar.OwnedBy(profileID) {
			return ErrNotOwned
		}
		if err := avatars.SetActive(ctx, profileID, avatarID); err != nil {
			return NewAvatarServiceError(op, "failed to activate avatar", err)
		}
		avatar.Active = true
		activated = avatar
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).Info("avatar activated", "avatar_id", avatarID, "profile_id", profileID)
	return activated, nil
}

// List returns the avatars of profileID.
func (s *avatarServiceImpl) List(ctx context.Context, profileID uuid.UUID) ([]*domain.Avatar, error) {
	avatars, err := s.avatars.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, NewAvatarServiceError("list", "failed to list avatars", err)
	}
	return avatars, nil
}

// Recommended returns up to limit staff picks.
func (s *avatarServiceImpl) Recommended(ctx context.Context, limit int) ([]*domain.Avatar, error) {
	if limit <= 0 || limit > DefaultRecommendedLimit {
		limit = DefaultRecommendedLimit
	}
	avatars, err := s.avatars.ListRecommended(ctx, limit)
	if err != nil {
		return nil, NewAvatarServiceError("recommended", "failed to list recommended avatars", err)
	}
	return avatars, nil
}

// SetRecommended flags a custom avatar as a staff pick.
func (s *avatarServiceImpl) SetRecommended(ctx context.Context, avatarID uuid.UUID, recommended bool) (*domain.Avatar, error) {
	const op = "set_recommended"

	avatar, err := s.avatars.GetByID(ctx, avatarID)
	if err != nil {
		return nil, NewAvatarServiceError(op, "failed to load avatar", err)
	}
	if avatar.Kind != domain.AvatarKindCustom {
		return nil, ErrNotCustom
	}

	avatar.RecommendedByStaff = recommended
	if err := s.avatars.Update(ctx, avatar); err != nil {
		return nil, NewAvatarServiceError(op, "failed to update avatar", err)
	}
	return avatar, nil
}

// Render resolves handle to its active avatar and opens the file to serve.
// When the requested format is still being converted the other one is served.
func (s *avatarServiceImpl) Render(ctx context.Context, handle string, useSVG bool) (*Rendered, error) {
	const op = "render"

	profile, err := s.profiles.GetByHandle(ctx, handle)
	if err != nil {
		return nil, NewAvatarServiceError(op, "failed to load profile", err)
	}

	avatar, err := s.avatars.GetActive(ctx, profile.ID)
	if err != nil {
		if errors.Is(err, store.ErrAvatarNotFound) {
			return nil, ErrNoActiveAvatar
		}
		return nil, NewAvatarServiceError(op, "failed to load active avatar", err)
	}

	key, contentType := avatar.DetermineResponse(useSVG)
	if key == "" {
		key, contentType = avatar.DetermineResponse(!useSVG)
	}
	if key == "" {
		return nil, ErrFormatUnavailable
	}

	body, err := s.files.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			s.log(ctx).Error("active avatar file is missing", "avatar_id", avatar.ID, "key", key)
			return nil, ErrFormatUnavailable
		}
		return nil, NewAvatarServiceError(op, "failed to open avatar file", err)
	}

	return &Rendered{Body: body, ContentType: contentType, Key: key, ModTime: avatar.UpdatedAt}, nil
}

// ConvertMissing fills in the missing format of an avatar. Avatars with both
// or neither file are left alone.
func (s *avatarServiceImpl) ConvertMissing(ctx context.Context, avatarID uuid.UUID) error {
	const op = "convert_missing"
	log := s.log(ctx).With("avatar_id", avatarID)

	avatar, err := s.avatars.GetByID(ctx, avatarID)
	if err != nil {
		return NewAvatarServiceError(op, "failed to load avatar", err)
	}

	missing, ok := avatar.MissingFormat()
	if !ok {
		log.Debug("nothing to convert")
		return nil
	}
	from := domain.FormatSVG
	if missing == domain.FormatSVG {
		from = domain.FormatPNG
	}

	src, err := s.files.Read(ctx, avatar.File(from))
	if err != nil {
		return NewAvatarServiceError(op, "failed to read source file", err)
	}
	out, err := s.convert(src, from, missing)
	if err != nil {
		return NewAvatarServiceError(op, "failed to convert avatar", err)
	}

	if missing == domain.FormatPNG && avatar.Hash == "" {
		hash, err := s.hash(out)
		if err != nil {
			return NewAvatarServiceError(op, "failed to hash converted avatar", err)
		}
		avatar.Hash = hash
	}

	key, err := s.save(ctx, stemOf(avatar.File(from)), missing, out)
	if err != nil {
		return NewAvatarServiceError(op, "failed to store converted file", err)
	}
	avatar.SetFile(missing, key)

	if err := s.avatars.Update(ctx, avatar); err != nil {
		return NewAvatarServiceError(op, "failed to update avatar", err)
	}
	log.Info("avatar converted", "format", missing, "key", key)
	return nil
}

// findSimilar returns nil without error when nothing matches.
func (s *avatarServiceImpl) findSimilar(ctx context.Context, profileID uuid.UUID, hash string) (*domain.Avatar, error) {
	if hash == "" || profileID == uuid.Nil {
		return nil, nil
	}
	similar, err := s.avatars.FindSimilar(ctx, profileID, hash)
	if errors.Is(err, store.ErrAvatarNotFound) {
		return nil, nil
	}
	return similar, err
}

func (s *avatarServiceImpl) save(ctx context.Context, stem string, format domain.ImageFormat, data []byte) (string, error) {
	key := storage.UploadKey(stem+"."+string(format), data)
	if err := s.files.Save(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// requestConversion emits a conversion task for an avatar missing a format.
// Failures are logged; the backfill picks the avatar up later.
func (s *avatarServiceImpl) requestConversion(ctx context.Context, avatar *domain.Avatar) {
	if _, ok := avatar.MissingFormat(); !ok {
		return
	}
	log := s.log(ctx).With("avatar_id", avatar.ID)

	event, err := events.NewTaskRequestEvent(task.TaskTypeAvatarConversion,
		task.AvatarConversionPayload{AvatarID: avatar.ID})
	if err != nil {
		log.Error("failed to create conversion event", "error", err)
		return
	}
	if err := s.events.EmitEvent(ctx, event); err != nil {
		log.Warn("failed to request conversion", "error", err)
	}
}

// fileStem names generated files after the profile handle, or 16 random hex
// digits when there is no handle.
func fileStem(p *domain.Profile) string {
	if p != nil && p.Handle != "" {
		return p.Handle
	}
	return randomHex(8)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func stemOf(key string) string {
	base := path.Base(key)
	if stem := strings.TrimSuffix(base, path.Ext(base)); stem != "" && stem != "." && stem != "/" {
		return stem
	}
	return randomHex(8)
}
