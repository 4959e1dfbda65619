package audio

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	presetExtensions = map[string]bool{".mp3": true, ".wav": true, ".ogg": true}
	whitespaceRun    = regexp.MustCompile(`\s+`)
	nameSeparators   = strings.NewReplacer("_", " ", "-", " ")
)

// Preset is a pre-recorded audio file.
type Preset struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
	Path     string `json:"-"`
}

// PresetRegistry is built once from a directory and never changes afterwards.
type PresetRegistry struct {
	dir     string
	presets []Preset
	byID    map[string]Preset
}

// LoadPresets scans dir for audio files. A missing directory yields an
// empty registry.
func LoadPresets(dir string) (*PresetRegistry, error) {
	registry := &PresetRegistry{dir: dir, byID: make(map[string]Preset)}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return registry, nil
	}
	if err != nil {
		return nil, err
	}

	title := cases.Title(language.Und)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !presetExtensions[ext] {
			continue
		}

		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		preset := Preset{
			ID:       whitespaceRun.ReplaceAllString(strings.ToLower(base), "_"),
			Name:     title.String(strings.Join(strings.Fields(nameSeparators.Replace(base)), " ")),
			Filename: entry.Name(),
			Path:     filepath.Join(dir, entry.Name()),
		}
		if _, dup := registry.byID[preset.ID]; dup {
			continue
		}
		registry.presets = append(registry.presets, preset)
		registry.byID[preset.ID] = preset
	}

	sort.Slice(registry.presets, func(i, j int) bool {
		return registry.presets[i].ID < registry.presets[j].ID
	})
	return registry, nil
}

// List returns a copy of the presets ordered by id.
func (r *PresetRegistry) List() []Preset {
	out := make([]Preset, len(r.presets))
	copy(out, r.presets)
	return out
}

func (r *PresetRegistry) Lookup(id string) (Preset, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *PresetRegistry) Dir() string { return r.dir }

func (r *PresetRegistry) Len() int { return len(r.presets) }
