// Package itemimage provides the built-in image item loader: it recognises
// items carrying image data, picks the preferred representation and decides
// which image formats are worth persisting. Payloads stay opaque bytes;
// decoding and rendering are someone else's problem.
package itemimage

import (
	"github.com/spf13/viper"

	"go.klb.dev/scrivener/internal/item"
	"go.klb.dev/scrivener/internal/loader"
)

// IconCamera is the glyph shown for the image loader in listings.
const IconCamera = ""

const loaderPriority = 30

// formatPreference orders candidate representations, most preferred first.
// PNG wins because it is lossless and universally supported.
var formatPreference = []string{
	item.MimePNG,
	item.MimeBMP,
	item.MimeJPEG,
	item.MimeGIF,
	item.MimeSVG,
}

// formatsToSave lists the image formats worth keeping in history. Raster
// formats other than PNG and GIF are converted upstream or dropped.
var formatsToSave = []string{item.MimeSVG, item.MimePNG, item.MimeGIF}

// FindFormat returns the preferred image format present in data, or "" when
// data carries no image. Hidden items never match.
func FindFormat(data item.Data) string {
	if data.Has(item.MimeHidden) {
		return ""
	}
	for _, format := range formatPreference {
		if len(data[format]) > 0 {
			return format
		}
	}
	return ""
}

// ImageData returns the payload of the preferred image format, or nil.
func ImageData(data item.Data) []byte {
	format := FindFormat(data)
	if format == "" {
		return nil
	}
	return data[format]
}

// Settings holds the image loader configuration.
type Settings struct {
	MaxWidth    int
	MaxHeight   int
	ImageEditor string
	SVGEditor   string
}

// DefaultSettings returns the built-in defaults: previews capped at 320x240,
// no editors configured.
func DefaultSettings() Settings {
	return Settings{MaxWidth: 320, MaxHeight: 240}
}

// LoadSettings reads the itemimage.* configuration keys, falling back to
// DefaultSettings for anything unset.
func LoadSettings(v *viper.Viper) Settings {
	s := DefaultSettings()
	if v == nil {
		return s
	}
	if v.IsSet("itemimage.max_image_width") {
		s.MaxWidth = v.GetInt("itemimage.max_image_width")
	}
	if v.IsSet("itemimage.max_image_height") {
		s.MaxHeight = v.GetInt("itemimage.max_image_height")
	}
	s.ImageEditor = v.GetString("itemimage.image_editor")
	s.SVGEditor = v.GetString("itemimage.svg_editor")
	return s
}

// Loader is the built-in image item loader.
type Loader struct {
	settings Settings
}

// New returns the image loader with the given settings.
func New(settings Settings) *Loader {
	return &Loader{settings: settings}
}

func (l *Loader) ID() string          { return "itemimage" }
func (l *Loader) Name() string        { return "Image" }
func (l *Loader) Author() string      { return "" }
func (l *Loader) Description() string { return "Display images and control which formats are saved." }
func (l *Loader) Icon() string        { return IconCamera }
func (l *Loader) Priority() int       { return loaderPriority }

// Settings returns the loader's active configuration.
func (l *Loader) Settings() Settings { return l.settings }

// FormatsToSave lists the image formats this loader wants persisted.
func (l *Loader) FormatsToSave() []string {
	return append([]string(nil), formatsToSave...)
}

// Matches reports whether data carries an image this loader would claim.
func (l *Loader) Matches(data item.Data) bool {
	return FindFormat(data) != ""
}

// WrapSaver returns s unchanged; the image loader has no save-path hooks.
func (l *Loader) WrapSaver(s loader.Saver) loader.Saver { return s }
