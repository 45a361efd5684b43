package commands

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/avatar-api/internal/config"
	"github.com/phrazzld/avatar-api/internal/imaging"
	"github.com/phrazzld/avatar-api/internal/service/auth"
)

const (
	testSecret = "avatarctl-test-secret-0123456789abcdef"
	headSVG    = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100"><circle cx="50" cy="50" r="40" fill="#E8B796"/></svg>`
	configJSON = `{"Background":"F0F0F0","Head":{"component_type":"head","svg_asset":"round.svg"}}`
)

// run executes avatarctl with args against fs and returns stdout.
func run(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(Options{Fs: fs, Version: "1.2.3"})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for x := 0; x < 24; x++ {
		for y := 0; y < 24; y++ {
			if x < 12 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func composeFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "assets/head/round.svg", []byte(headSVG), 0o644))
	require.NoError(t, afero.WriteFile(fs, "avatar.json", []byte(configJSON), 0o644))
	return fs
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, err := run(t, afero.NewMemMapFs(), "version")
	require.NoError(t, err)
	assert.Equal(t, "avatarctl 1.2.3\n", out)
}

func TestHashCommand(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	data := testPNG(t)
	require.NoError(t, afero.WriteFile(fs, "pic.png", data, 0o644))

	want, err := imaging.HashBytes(data)
	require.NoError(t, err)

	out, err := run(t, fs, "hash", "pic.png")
	require.NoError(t, err)
	assert.Equal(t, want, strings.TrimSpace(out))
}

func TestHashCommandErrors(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "notes.txt", []byte("not an image"), 0o644))

	_, err := run(t, fs, "hash", "missing.png")
	assert.ErrorContains(t, err, "failed to read missing.png")

	_, err = run(t, fs, "hash", "notes.txt")
	assert.ErrorContains(t, err, "failed to hash notes.txt")

	_, err = run(t, fs, "hash")
	assert.Error(t, err)
}

func TestComposeCommand(t *testing.T) {
	t.Parallel()

	t.Run("svg to stdout", func(t *testing.T) {
		t.Parallel()
		out, err := run(t, composeFs(t), "compose", "--config", "avatar.json", "--assets", "assets")
		require.NoError(t, err)
		assert.Contains(t, out, "<svg")
		assert.Contains(t, out, "F0F0F0")
		assert.Contains(t, out, "<circle")
	})

	t.Run("png to file", func(t *testing.T) {
		t.Parallel()
		fs := composeFs(t)
		out, err := run(t, fs, "compose", "--config", "avatar.json", "--assets", "assets", "--png", "-o", "avatar.png")
		require.NoError(t, err)
		assert.Empty(t, out)

		data, err := afero.ReadFile(fs, "avatar.png")
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, imaging.IconSize.W, cfg.Width)
		assert.Equal(t, imaging.IconSize.H, cfg.Height)
	})

	t.Run("missing asset", func(t *testing.T) {
		t.Parallel()
		_, err := run(t, composeFs(t), "compose", "--config", "avatar.json", "--assets", "elsewhere")
		assert.ErrorContains(t, err, "failed to compose avatar")
	})

	t.Run("config required", func(t *testing.T) {
		t.Parallel()
		_, err := run(t, composeFs(t), "compose")
		assert.ErrorContains(t, err, "config")
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		fs := composeFs(t)
		require.NoError(t, afero.WriteFile(fs, "bad.json", []byte(`[1,2]`), 0o644))
		_, err := run(t, fs, "compose", "--config", "bad.json", "--assets", "assets")
		assert.ErrorContains(t, err, "invalid avatar config")
	})
}

func TestConvertCommand(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "in.svg", []byte(headSVG), 0o644))
	require.NoError(t, afero.WriteFile(fs, "in.png", testPNG(t), 0o644))

	_, err := run(t, fs, "convert", "in.svg", "out.png")
	require.NoError(t, err)
	data, err := afero.ReadFile(fs, "out.png")
	require.NoError(t, err)
	_, err = png.DecodeConfig(bytes.NewReader(data))
	assert.NoError(t, err)

	_, err = run(t, fs, "convert", "--from", "PNG", "--to", "svg", "in.png", "out.svg")
	require.NoError(t, err)
	data, err = afero.ReadFile(fs, "out.svg")
	require.NoError(t, err)
	assert.Contains(t, string(data), "data:image/png;base64,")

	_, err = run(t, fs, "convert", "--to", "gif", "in.svg", "out.gif")
	assert.Error(t, err)

	_, err = run(t, fs, "convert", "in.svg")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	profileID := uuid.New()
	jwt, err := auth.NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60})
	require.NoError(t, err)

	t.Run("secret flag", func(t *testing.T) {
		t.Setenv("AVATAR_AUTH_JWT_SECRET", "")
		out, err := run(t, afero.NewMemMapFs(), "token", "--profile", profileID.String(), "--secret", testSecret)
		require.NoError(t, err)

		claims, err := jwt.ValidateToken(context.Background(), strings.TrimSpace(out))
		require.NoError(t, err)
		assert.Equal(t, profileID, claims.ProfileID)
	})

	t.Run("secret from environment", func(t *testing.T) {
		t.Setenv("AVATAR_AUTH_JWT_SECRET", testSecret)
		t.Setenv("AVATAR_AUTH_TOKEN_LIFETIME_MINUTES", "5")
		out, err := run(t, afero.NewMemMapFs(), "token", "--profile", profileID.String())
		require.NoError(t, err)

		claims, err := jwt.ValidateToken(context.Background(), strings.TrimSpace(out))
		require.NoError(t, err)
		assert.WithinDuration(t, claims.IssuedAt.Add(5*time.Minute), claims.ExpiresAt, 2*time.Second)
	})

	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("AVATAR_AUTH_JWT_SECRET", "")
		_, err := run(t, afero.NewMemMapFs(), "token", "--profile", profileID.String())
		assert.Error(t, err)
	})

	t.Run("invalid profile", func(t *testing.T) {
		t.Setenv("AVATAR_AUTH_JWT_SECRET", testSecret)
		_, err := run(t, afero.NewMemMapFs(), "token", "--profile", "nope")
		assert.ErrorContains(t, err, "invalid --profile")

		_, err = run(t, afero.NewMemMapFs(), "token")
		assert.ErrorContains(t, err, "profile")
	})
}

func TestRecommendCommandRejectsBadID(t *testing.T) {
	t.Parallel()

	_, err := run(t, afero.NewMemMapFs(), "recommend", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid avatar ID")

	_, err = run(t, afero.NewMemMapFs(), "recommend")
	assert.Error(t, err)
}
