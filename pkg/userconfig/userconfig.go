// Package userconfig provides user-level settings for rulelawyer.
// They are stored in ~/.config/rulelawyer/settings.yaml.
package userconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/natefinch/atomic"

	"github.com/docker/rulelawyer/pkg/paths"
)

// CurrentVersion is the current version of the settings format
const CurrentVersion = "v1"

// Settings holds every user preference. Missing keys take their defaults.
type Settings struct {
	Version string `yaml:"version,omitempty"`

	Provider    string   `yaml:"provider"`
	APIKey      string   `yaml:"api_key,omitempty"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	Model       string   `yaml:"model,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`

	TopK                int `yaml:"top_k"`
	PoolCapacity        int `yaml:"pool_capacity"`
	MaxRounds           int `yaml:"max_rounds"`
	ShortQueryThreshold int `yaml:"short_query_threshold"`

	// Scorer is the lexical index kind: bm25, bleve or hybrid.
	Scorer string `yaml:"scorer"`

	BM25K1      float64 `yaml:"bm25_k1"`
	BM25B       float64 `yaml:"bm25_b"`
	BM25Epsilon float64 `yaml:"bm25_epsilon"`

	// Fusion is how the hybrid scorer merges BM25 and bleve: rrf, weighted
	// or max. Weighted fusion needs one weight per scorer, BM25 first.
	Fusion        string    `yaml:"fusion"`
	FusionK       int       `yaml:"fusion_k"`
	FusionWeights []float64 `yaml:"fusion_weights,omitempty"`
	// Markup is how imported pages are converted: text or markdown.
	Markup string `yaml:"markup"`
	// Extractor is the 7-Zip compatible binary used to unpack archives.
	Extractor string `yaml:"extractor,omitempty"`

	DataDir       string `yaml:"data_dir,omitempty"`
	ActiveLibrary string `yaml:"active_library,omitempty"`
}

func Defaults() Settings {
	temp := 0.1
	return Settings{
		Version:             CurrentVersion,
		Provider:            "openai",
		Temperature:         &temp,
		TopK:                10,
		PoolCapacity:        8,
		MaxRounds:           2,
		ShortQueryThreshold: 30,
		Scorer:              "bm25",
		BM25K1:              1.5,
		BM25B:               0.75,
		BM25Epsilon:         0.25,
		Fusion:              "rrf",
		FusionK:             60,
		Markup:              "text",
		Extractor:           "7z",
	}
}

// Path returns the path to the settings file
func Path() string {
	return filepath.Join(paths.GetConfigDir(), "settings.yaml")
}

// Load reads the settings file, returning defaults when it does not exist.
func Load() (*Settings, error) {
	return LoadFrom(Path())
}

func LoadFrom(path string) (*Settings, error) {
	settings := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &settings, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return &settings, nil
}

// Save writes the settings file atomically.
func (s *Settings) Save() error {
	return s.SaveTo(Path())
}

func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	s.Version = CurrentVersion
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// ResolvedDataDir returns the configured data directory or the default one.
func (s *Settings) ResolvedDataDir() string {
	if s.DataDir != "" {
		return s.DataDir
	}
	return paths.GetDataDir()
}

type field struct {
	get func(*Settings) string
	set func(*Settings, string) error
}

func intField(ptr func(*Settings) *int) field {
	return field{
		get: func(s *Settings) string { return strconv.Itoa(*ptr(s)) },
		set: func(s *Settings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("expected a positive integer, got %q", v)
			}
			*ptr(s) = n
			return nil
		},
	}
}

func floatField(ptr func(*Settings) *float64, lo, hi float64, loOpen bool) field {
	return field{
		get: func(s *Settings) string { return strconv.FormatFloat(*ptr(s), 'g', -1, 64) },
		set: func(s *Settings, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < lo || f > hi || (loOpen && f == lo) {
				open := "["
				if loOpen {
					open = "("
				}
				return fmt.Errorf("expected a number in %s%g, %g], got %q", open, lo, hi, v)
			}
			*ptr(s) = f
			return nil
		},
	}
}

func stringField(ptr func(*Settings) *string, allowed ...string) field {
	return field{
		get: func(s *Settings) string { return *ptr(s) },
		set: func(s *Settings, v string) error {
			if len(allowed) > 0 && !slices.Contains(allowed, v) {
				return fmt.Errorf("expected one of %s, got %q", strings.Join(allowed, ", "), v)
			}
			*ptr(s) = v
			return nil
		},
	}
}

var fields = map[string]field{
	"provider": stringField(func(s *Settings) *string { return &s.Provider }, "openai", "anthropic", "google"),
	"api_key":  stringField(func(s *Settings) *string { return &s.APIKey }),
	"base_url": stringField(func(s *Settings) *string { return &s.BaseURL }),
	"model":    stringField(func(s *Settings) *string { return &s.Model }),
	"temperature": {
		get: func(s *Settings) string {
			if s.Temperature == nil {
				return ""
			}
			return strconv.FormatFloat(*s.Temperature, 'g', -1, 64)
		},
		set: func(s *Settings, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 || f > 2 {
				return fmt.Errorf("expected a number between 0 and 2, got %q", v)
			}
			s.Temperature = &f
			return nil
		},
	},
	"top_k":                 intField(func(s *Settings) *int { return &s.TopK }),
	"pool_capacity":         intField(func(s *Settings) *int { return &s.PoolCapacity }),
	"max_rounds":            intField(func(s *Settings) *int { return &s.MaxRounds }),
	"short_query_threshold": intField(func(s *Settings) *int { return &s.ShortQueryThreshold }),
	"scorer":                stringField(func(s *Settings) *string { return &s.Scorer }, "bm25", "bleve", "hybrid"),
	"bm25_k1":               floatField(func(s *Settings) *float64 { return &s.BM25K1 }, 0, 10, true),
	"bm25_b":                floatField(func(s *Settings) *float64 { return &s.BM25B }, 0, 1, false),
	"bm25_epsilon":          floatField(func(s *Settings) *float64 { return &s.BM25Epsilon }, 0, 1, false),
	"fusion":                stringField(func(s *Settings) *string { return &s.Fusion }, "rrf", "weighted", "max"),
	"fusion_k":              intField(func(s *Settings) *int { return &s.FusionK }),
	"fusion_weights": {
		get: func(s *Settings) string {
			parts := make([]string, len(s.FusionWeights))
			for i, w := range s.FusionWeights {
				parts[i] = strconv.FormatFloat(w, 'g', -1, 64)
			}
			return strings.Join(parts, ",")
		},
		set: func(s *Settings, v string) error {
			var weights []float64
			for part := range strings.SplitSeq(v, ",") {
				w, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
				if err != nil || w < 0 {
					return fmt.Errorf("expected comma separated non-negative numbers, got %q", v)
				}
				weights = append(weights, w)
			}
			s.FusionWeights = weights
			return nil
		},
	},
	"markup":                stringField(func(s *Settings) *string { return &s.Markup }, "text", "markdown"),
	"extractor":             stringField(func(s *Settings) *string { return &s.Extractor }),
	"data_dir":              stringField(func(s *Settings) *string { return &s.DataDir }),
	"active_library":        stringField(func(s *Settings) *string { return &s.ActiveLibrary }),
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get returns the string form of a key.
func (s *Settings) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown setting %q", key)
	}
	return f.get(s), nil
}

// Set parses and assigns a key.
func (s *Settings) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	if err := f.set(s, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

// MaskedAPIKey returns the key with all but its last four characters hidden.
func (s *Settings) MaskedAPIKey() string {
	if s.APIKey == "" {
		return ""
	}
	if len(s.APIKey) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + s.APIKey[len(s.APIKey)-4:]
}
