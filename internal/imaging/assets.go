package imaging

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

// Asset is a parsed component SVG ready to be painted as a layer.
type Asset struct {
	// ViewBox is min-x, min-y, width, height of the asset's coordinate system.
	ViewBox [4]float64
	// Inner is the raw markup inside the asset's root <svg> element.
	Inner []byte
}

// AssetSource resolves layer asset paths such as "head/round.svg".
type AssetSource interface {
	Load(name string) (*Asset, error)
}

type svgRoot struct {
	XMLName xml.Name `xml:"svg"`
	ViewBox string   `xml:"viewBox,attr"`
	Width   string   `xml:"width,attr"`
	Height  string   `xml:"height,attr"`
	Inner   []byte   `xml:",innerxml"`
}

// ParseAsset reads the root element of a component SVG.
func ParseAsset(data []byte) (*Asset, error) {
	var root svgRoot
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}

	a := &Asset{Inner: bytes.TrimSpace(root.Inner)}
	if vb, ok := parseViewBox(root.ViewBox); ok {
		a.ViewBox = vb
		return a, nil
	}

	w, wok := parseLength(root.Width)
	h, hok := parseLength(root.Height)
	if !wok || !hok {
		w, h = float64(IconSize.W), float64(IconSize.H)
	}
	a.ViewBox = [4]float64{0, 0, w, h}
	return a, nil
}

func parseViewBox(s string) ([4]float64, bool) {
	var vb [4]float64
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) != 4 {
		return vb, false
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return vb, false
		}
		vb[i] = v
	}
	return vb, vb[2] > 0 && vb[3] > 0
}

func parseLength(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "px"), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// AssetLibrary loads component SVGs from a filesystem and caches the parsed
// result. Concurrent loads of the same asset share one read.
type AssetLibrary struct {
	fs     afero.Fs
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*Asset
	group singleflight.Group
}

// NewAssetLibrary creates a library reading from fsys. Production callers pass
// an afero.BasePathFs rooted at the assets directory.
func NewAssetLibrary(fsys afero.Fs, logger *slog.Logger) *AssetLibrary {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetLibrary{
		fs:     fsys,
		logger: logger.With("component", "asset_library"),
		cache:  make(map[string]*Asset),
	}
}

// NewDirAssetLibrary creates a library over an OS directory.
func NewDirAssetLibrary(dir string, logger *slog.Logger) *AssetLibrary {
	return NewAssetLibrary(afero.NewBasePathFs(afero.NewOsFs(), dir), logger)
}

// Load returns the parsed asset at name, reading it on first use.
func (l *AssetLibrary) Load(name string) (*Asset, error) {
	name = filepath.ToSlash(filepath.Clean(name))

	l.mu.RLock()
	a, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return a, nil
	}

	v, err, _ := l.group.Do(name, func() (any, error) {
		data, err := afero.ReadFile(l.fs, name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
			}
			return nil, fmt.Errorf("failed to read asset %s: %w", name, err)
		}
		parsed, err := ParseAsset(data)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", name, err)
		}

		l.mu.Lock()
		l.cache[name] = parsed
		l.mu.Unlock()
		return parsed, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Asset), nil
}

// Invalidate drops every cached asset.
func (l *AssetLibrary) Invalidate() {
	l.mu.Lock()
	l.cache = make(map[string]*Asset)
	l.mu.Unlock()
}

// Cached reports how many assets are currently cached.
func (l *AssetLibrary) Cached() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}

// Watch invalidates the cache whenever a file under dir changes. dir must be
// the OS directory backing the library. It blocks until ctx is done.
func (l *AssetLibrary) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create asset watcher: %w", err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil {
			l.logger.Warn("failed to close asset watcher", slog.String("error", cerr.Error()))
		}
	}()

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch asset directory %s: %w", dir, err)
	}

	l.logger.Info("watching avatar assets", slog.String("dir", dir))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if addErr := w.Add(event.Name); addErr != nil {
						l.logger.Warn("failed to watch new asset directory",
							slog.String("dir", event.Name),
							slog.String("error", addErr.Error()))
					}
				}
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				l.logger.Debug("avatar assets changed", slog.String("path", event.Name))
				l.Invalidate()
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("asset watcher error", slog.String("error", werr.Error()))
		}
	}
}
