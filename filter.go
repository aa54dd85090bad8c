package autocompact

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
)

// Filter decides which sessions the Hook handles.
//
// Directory patterns use doublestar syntax ("/work/**", "/home/*/src/app") and
// restrict handling to matching project directories; with no patterns every
// directory is allowed. Model patterns are globs over "provider/model"
// ("anthropic/*", "*/gpt-4o-mini") naming models to leave alone.
type Filter struct {
	directories   []string
	excludeModels []glob.Glob
}

// NewFilter compiles the given patterns.
func NewFilter(directories, excludeModels []string) (*Filter, error) {
	f := &Filter{}
	for _, pattern := range directories {
		pattern = filepath.ToSlash(pattern)
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: bad directory pattern %q", ErrInvalidConfig, pattern)
		}
		f.directories = append(f.directories, pattern)
	}
	for _, pattern := range excludeModels {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: bad model pattern %q: %v", ErrInvalidConfig, pattern, err)
		}
		f.excludeModels = append(f.excludeModels, g)
	}
	return f, nil
}

// AllowsDirectory reports whether sessions in dir are handled.
func (f *Filter) AllowsDirectory(dir string) bool {
	if f == nil || len(f.directories) == 0 {
		return true
	}
	dir = filepath.ToSlash(filepath.Clean(dir))
	for _, pattern := range f.directories {
		if ok, _ := doublestar.Match(pattern, dir); ok {
			return true
		}
	}
	return false
}

// AllowsModel reports whether sessions using the model are handled. Unknown
// models are allowed.
func (f *Filter) AllowsModel(providerID, modelID string) bool {
	if f == nil || providerID == "" || modelID == "" {
		return true
	}
	name := providerID + "/" + modelID
	for _, g := range f.excludeModels {
		if g.Match(name) {
			return false
		}
	}
	return true
}
