// Package registry maps language identifiers to their runner settings.
package registry

import (
	"sort"
	"time"

	appErr "exrun/pkg/errors"
)

const defaultLanguageTimeout = 60 * time.Second

// LanguageSpec describes how one language's test runner is executed.
type LanguageSpec struct {
	ID            string        `yaml:"id"`
	Image         string        `yaml:"image"`
	FileExtension string        `yaml:"fileExtension"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Registry is a read-only language table populated at startup.
type Registry struct {
	languages map[string]LanguageSpec
}

// New creates a registry from config entries. Entries without an id or image
// are skipped; a missing timeout gets the default.
func New(specs []LanguageSpec) *Registry {
	langMap := make(map[string]LanguageSpec, len(specs))
	for _, lang := range specs {
		if lang.ID == "" || lang.Image == "" {
			continue
		}
		if lang.Timeout <= 0 {
			lang.Timeout = defaultLanguageTimeout
		}
		langMap[lang.ID] = lang
	}
	return &Registry{languages: langMap}
}

// Default returns the built-in registry used when no languages are configured.
func Default() *Registry {
	return New([]LanguageSpec{
		{
			ID:            "python",
			Image:         "exercism/python-test-runner:latest",
			FileExtension: "py",
			Timeout:       defaultLanguageTimeout,
		},
	})
}

// Lookup returns the spec for a language id.
func (r *Registry) Lookup(language string) (LanguageSpec, error) {
	if language == "" {
		return LanguageSpec{}, appErr.ValidationError("language", "required")
	}
	lang, ok := r.languages[language]
	if !ok {
		return LanguageSpec{}, appErr.Newf(appErr.LanguageNotSupported, "Unsupported language: %s", language)
	}
	return lang, nil
}

// Languages returns the sorted list of registered language ids.
func (r *Registry) Languages() []string {
	ids := make([]string, 0, len(r.languages))
	for id := range r.languages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
