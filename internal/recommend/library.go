package recommend

import (
	_ "embed"
	"fmt"
	"math"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/scoreapp/score/internal/model"
)

//go:embed library.yaml
var libraryYAML []byte

// Track is one reference entry
type Track struct {
	Title    string
	Artist   string
	Features model.FeatureVector
}

// Library is an ordered, read-only set of reference tracks.
type Library struct {
	tracks []Track
}

type libraryFile struct {
	Tracks []struct {
		Title    string             `yaml:"title"`
		Artist   string             `yaml:"artist"`
		Features map[string]float64 `yaml:"features"`
	} `yaml:"tracks"`
}

// DefaultLibrary returns the built-in reference library. It is parsed on first
// use and shared afterwards.
var DefaultLibrary = sync.OnceValues(func() (*Library, error) {
	return ParseLibrary(libraryYAML)
})

// ParseLibrary decodes a YAML track list. Every track must carry all feature
// dimensions with finite values.
func ParseLibrary(data []byte) (*Library, error) {
	var f libraryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse library: %w", err)
	}
	if len(f.Tracks) == 0 {
		return nil, fmt.Errorf("library has no tracks")
	}

	tracks := make([]Track, 0, len(f.Tracks))
	for i, t := range f.Tracks {
		features, err := FeatureVectorFromMap(t.Features)
		if err != nil {
			return nil, fmt.Errorf("track %d (%s): %w", i, t.Title, err)
		}
		tracks = append(tracks, Track{Title: t.Title, Artist: t.Artist, Features: features})
	}

	return NewLibrary(tracks), nil
}

// NewLibrary builds a library from tracks. The slice is copied.
func NewLibrary(tracks []Track) *Library {
	return &Library{tracks: append([]Track(nil), tracks...)}
}

func (l *Library) Len() int {
	return len(l.tracks)
}

func (l *Library) Track(i int) Track {
	return l.tracks[i]
}

// Features returns the feature columns of every track in library order.
func (l *Library) Features() []model.FeatureVector {
	out := make([]model.FeatureVector, len(l.tracks))
	for i, t := range l.tracks {
		out[i] = t.Features
	}
	return out
}

// FeatureVectorFromMap assembles a vector from named dimensions. Missing or
// non-finite dimensions are rejected rather than defaulted.
func FeatureVectorFromMap(m map[string]float64) (model.FeatureVector, error) {
	var v model.FeatureVector
	for i, name := range model.FeatureNames {
		val, ok := m[name]
		if !ok {
			return v, fmt.Errorf("%w: missing feature %q", ErrInvalidInput, name)
		}
		v[i] = val
	}
	if err := validateFeatures(v); err != nil {
		return v, err
	}
	return v, nil
}

func validateFeatures(v model.FeatureVector) error {
	for i, val := range v {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%w: feature %q is not finite", ErrInvalidInput, model.FeatureNames[i])
		}
	}
	return nil
}
