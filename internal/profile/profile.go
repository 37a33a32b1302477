// Package profile loads the YAML rules that decide what the watch pipeline
// does with a new file: which target format it becomes and with which
// encoder settings.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/imgbridge/imgbridge/internal/imaging"
)

// Profile is one conversion rule. The first profile whose extension set
// matches a file wins; a profile with no extensions matches everything.
type Profile struct {
	Name        string `yaml:"name"`
	Match       Match  `yaml:"match"`
	Target      string `yaml:"target"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	GIFColors   int    `yaml:"gif_colors"`
}

// Match restricts a profile to certain source files.
type Match struct {
	Extensions []string `yaml:"extensions"`
}

// File is the on-disk profiles document.
type File struct {
	Profiles []Profile `yaml:"profiles"`
}

// Parse parses a profiles document.
func Parse(content []byte) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(content, f); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	return f, nil
}

// Load reads and parses the profiles file at path. A missing file is not
// an error: the default profile set applies.
func Load(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return Parse(content)
}

// Default returns the catch-all profile used when nothing is configured:
// every watched image becomes a PNG.
func Default() *File {
	return &File{Profiles: []Profile{{
		Name:   "default-png",
		Target: imaging.PNG.String(),
	}}}
}

// Validate returns the list of problems with the document; an empty list
// means it is usable.
func (f *File) Validate() []string {
	var errs []string

	if len(f.Profiles) == 0 {
		errs = append(errs, "at least one profile is required")
	}

	for i, p := range f.Profiles {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("profile %d: name is required", i))
		} else if !isValidName(p.Name) {
			errs = append(errs, fmt.Sprintf("profile %d: name must be alphanumeric with hyphens/underscores", i))
		}

		if _, err := imaging.ResolveTarget(p.Target); err != nil {
			errs = append(errs, fmt.Sprintf("profile %d (%s): %v", i, p.Name, err))
		}

		for j, ext := range p.Match.Extensions {
			if !strings.HasPrefix(ext, ".") {
				errs = append(errs, fmt.Sprintf("profile %d (%s): extensions[%d] should start with '.' (got %q)", i, p.Name, j, ext))
			}
		}

		if p.JPEGQuality < 0 || p.JPEGQuality > 100 {
			errs = append(errs, fmt.Sprintf("profile %d (%s): jpeg_quality must be within 0..100", i, p.Name))
		}
		if p.GIFColors < 0 || p.GIFColors > 256 {
			errs = append(errs, fmt.Sprintf("profile %d (%s): gif_colors must be within 0..256", i, p.Name))
		}
	}

	return errs
}

// Select returns the first profile matching path's extension.
func (f *File) Select(path string) (Profile, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, p := range f.Profiles {
		if len(p.Match.Extensions) == 0 {
			return p, true
		}
		for _, e := range p.Match.Extensions {
			if strings.EqualFold(e, ext) {
				return p, true
			}
		}
	}
	return Profile{}, false
}

// Options maps a profile's encoder settings onto engine options.
func (p Profile) Options() imaging.EncodeOptions {
	return imaging.EncodeOptions{JPEGQuality: p.JPEGQuality, GIFColors: p.GIFColors}
}

// isValidName checks if name is valid (alphanumeric, hyphens, underscores).
func isValidName(name string) bool {
	match, _ := regexp.MatchString(`^[a-zA-Z0-9_-]+$`, name)
	return match
}
