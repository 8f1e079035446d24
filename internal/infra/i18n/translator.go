// Package i18n holds the admin panel's UI strings, one YAML file per language.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

const DefaultLang = "en"

type Translator struct {
	lang         string
	translations map[string]string
}

// NewTranslator loads locales/<lang>.yaml from fsys.
func NewTranslator(fsys fs.FS, lang string) (*Translator, error) {
	if lang == "" {
		lang = DefaultLang
	}
	filePath := path.Join("locales", fmt.Sprintf("%s.yaml", lang))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, err
	}
	t.lang = lang
	return t, nil
}

// MustLoad is NewTranslator over the embedded locales. It panics on a
// missing or broken file.
func MustLoad(lang string) *Translator {
	t, err := NewTranslator(LocalesFS, lang)
	if err != nil {
		panic(err)
	}
	return t
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{lang: DefaultLang, translations: translations}, nil
}

// T returns the string for key, formatted with args. Unknown keys come back
// as the key itself so a missing entry is visible on the page.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

func (t *Translator) Lang() string { return t.lang }
