package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Benchmark is the typed benchmark document: which labeled pairs to load,
// where the images live, and which matchers to evaluate.
type Benchmark struct {
	// Path is the absolute path of the document itself.
	Path string

	Data DataConfig

	// Matchers lists the matchers to evaluate, in document order.
	Matchers []MatcherEntry

	// ExpLog is the results log the evaluator appends to.
	ExpLog string
}

// DataConfig describes one benchmark sequence.
type DataConfig struct {
	Name        string `koanf:"name"`
	PairsInfo   string `koanf:"pairs_info"`
	ImageDir    string `koanf:"image_dir"`
	ImageHeight int    `koanf:"image_height"`
	ImageWidth  int    `koanf:"image_width"`
}

// MatcherEntry is a matcher reference, written either as a bare name or as
// {name, params}.
type MatcherEntry struct {
	Name   string
	Params map[string]any
}

// SequenceName returns data.name, falling back to the document's file stem.
func (b *Benchmark) SequenceName() string {
	if b.Data.Name != "" {
		return b.Data.Name
	}
	base := filepath.Base(b.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadBenchmark reads a benchmark YAML document and resolves every path
// field to absolute form.
func LoadBenchmark(_ context.Context, path string) (*Benchmark, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: benchmark config path is empty", ErrLoadConfig)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(absPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}

	b := &Benchmark{Path: absPath}
	if !k.Exists("data") {
		return nil, fmt.Errorf("%w: %s: missing data section", ErrInvalidConfig, path)
	}
	if err := k.UnmarshalWithConf("data", &b.Data, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: data: %w", ErrInvalidConfig, path, err)
	}
	if b.Data.PairsInfo == "" {
		return nil, fmt.Errorf("%w: %s: data.pairs_info is required", ErrInvalidConfig, path)
	}

	if b.Matchers, err = parseMatchers(k.Get("matcher")); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}

	configDir := filepath.Dir(absPath)
	b.Data.PairsInfo = resolveRelative(configDir, b.Data.PairsInfo)
	if b.Data.ImageDir != "" {
		b.Data.ImageDir = resolveRelative(configDir, b.Data.ImageDir)
	}

	expLog := k.String("exp_log")
	if expLog == "" {
		expLog = b.SequenceName() + "_results.log"
	}
	if b.ExpLog, err = filepath.Abs(expLog); err != nil {
		return nil, fmt.Errorf("%w: exp_log: %w", ErrInvalidConfig, err)
	}

	return b, nil
}

// resolveRelative resolves ref against the config directory, then the
// working directory, keeping the first candidate that exists. When none
// exists the config-directory candidate is returned.
func resolveRelative(configDir, ref string) string {
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	candidates := []string{filepath.Join(configDir, ref)}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ref))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return candidates[0]
}

func parseMatchers(raw any) ([]MatcherEntry, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("matcher must be a list, got %T", raw)
	}

	entries := make([]MatcherEntry, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			entries = append(entries, MatcherEntry{Name: v, Params: map[string]any{}})
		case map[string]any:
			name, _ := v["name"].(string)
			if name == "" {
				return nil, fmt.Errorf("matcher[%d]: entry must include a 'name' field", i)
			}
			params := map[string]any{}
			if p, exists := v["params"]; exists && p != nil {
				pm, ok := p.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("matcher[%d]: 'params' must be a mapping, got %T", i, p)
				}
				for key, val := range pm {
					params[key] = val
				}
			}
			entries = append(entries, MatcherEntry{Name: name, Params: params})
		default:
			return nil, fmt.Errorf("matcher[%d]: unsupported entry type %T", i, item)
		}
	}
	return entries, nil
}
