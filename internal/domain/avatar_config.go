package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Color option keys. Every other key in a configuration is a layer.
const (
	ConfigKeyBackground    = "Background"
	ConfigKeyClothingColor = "ClothingColor"
	ConfigKeyHairColor     = "HairColor"
	ConfigKeySkinTone      = "SkinTone"
)

// Avatar configuration errors
var (
	ErrConfigEmpty        = errors.New("avatar configuration cannot be empty")
	ErrConfigBackground   = errors.New("avatar background must be a 3, 6 or 8 digit hex color")
	ErrConfigInvalidLayer = errors.New("avatar layer is invalid")
	ErrConfigNotAnObject  = errors.New("avatar configuration must be a JSON object")
	ErrConfigColorNotText = errors.New("avatar color options must be strings")
)

var hexColorPattern = regexp.MustCompile(`^(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})$`)

var layerValidator = validator.New()

// Layer is one component painted onto a custom avatar. The asset lives at
// <ComponentType>/<SVGAsset> inside the asset library.
type Layer struct {
	Name          string `json:"-"`
	ComponentType string `json:"component_type" validate:"required,excludesall=/\\,ne=.,ne=.."`
	SVGAsset      string `json:"svg_asset"      validate:"required,excludesall=/\\,endswith=.svg"`
}

// AssetPath returns the layer's path inside the asset library.
func (l Layer) AssetPath() string {
	return path.Join(l.ComponentType, l.SVGAsset)
}

// AvatarConfig is the JSON configuration a custom avatar is built from.
// Layer order is paint order, so the order keys appear in the source
// document is kept through decoding and encoding.
type AvatarConfig struct {
	Background    string
	ClothingColor string
	HairColor     string
	SkinTone      string
	layers        []Layer
}

// NewAvatarConfig builds a configuration from a background and ordered layers.
func NewAvatarConfig(background string, layers ...Layer) *AvatarConfig {
	c := &AvatarConfig{Background: background}
	for _, l := range layers {
		c.SetLayer(l)
	}
	return c
}

// Layers returns the component layers in configuration order.
func (c *AvatarConfig) Layers() []Layer {
	out := make([]Layer, len(c.layers))
	copy(out, c.layers)
	return out
}

// SetLayer appends l, or replaces the layer with the same name in place.
func (c *AvatarConfig) SetLayer(l Layer) {
	for i := range c.layers {
		if c.layers[i].Name == l.Name {
			c.layers[i] = l
			return
		}
	}
	c.layers = append(c.layers, l)
}

// Validate checks the background color and every layer's asset path.
func (c *AvatarConfig) Validate() error {
	if c == nil || (c.Background == "" && len(c.layers) == 0) {
		return ErrConfigEmpty
	}
	if !hexColorPattern.MatchString(c.Background) {
		return NewValidationError(ConfigKeyBackground, "must be a hex color", ErrConfigBackground)
	}
	for _, l := range c.layers {
		if err := layerValidator.Struct(l); err != nil {
			return NewValidationError(l.Name, "has an invalid component_type or svg_asset", ErrConfigInvalidLayer)
		}
	}
	return nil
}

// UnmarshalJSON decodes a configuration object, keeping key order.
func (c *AvatarConfig) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrConfigNotAnObject
	}

	decoded := AvatarConfig{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}

		if color := decoded.colorField(key); color != nil {
			if err := json.Unmarshal(raw, color); err != nil {
				return fmt.Errorf("%w: %s", ErrConfigColorNotText, key)
			}
			continue
		}

		var l Layer
		if err := json.Unmarshal(raw, &l); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrConfigInvalidLayer, key, err)
		}
		l.Name = key
		decoded.SetLayer(l)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*c = decoded
	return nil
}

// MarshalJSON encodes the color options followed by the layers in order.
func (c AvatarConfig) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	colors := []struct {
		key   string
		value string
	}{
		{ConfigKeyBackground, c.Background},
		{ConfigKeyClothingColor, c.ClothingColor},
		{ConfigKeyHairColor, c.HairColor},
		{ConfigKeySkinTone, c.SkinTone},
	}
	for _, color := range colors {
		if color.value == "" && color.key != ConfigKeyBackground {
			continue
		}
		if err := write(color.key, color.value); err != nil {
			return nil, err
		}
	}
	for _, l := range c.layers {
		if err := write(l.Name, l); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Value implements driver.Valuer for JSON columns.
func (c *AvatarConfig) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	b, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSON columns.
func (c *AvatarConfig) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = AvatarConfig{}
		return nil
	case []byte:
		return c.UnmarshalJSON(v)
	case string:
		return c.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("%w: cannot scan %T into AvatarConfig", ErrInvalidFormat, src)
	}
}

func (c *AvatarConfig) colorField(key string) *string {
	switch key {
	case ConfigKeyBackground:
		return &c.Background
	case ConfigKeyClothingColor:
		return &c.ClothingColor
	case ConfigKeyHairColor:
		return &c.HairColor
	case ConfigKeySkinTone:
		return &c.SkinTone
	default:
		return nil
	}
}
