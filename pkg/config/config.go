// Package config holds the process configuration: resource strings, the
// project path, wrinkle defaults, mesh resolution and logging. It is loaded
// once at startup and passed explicitly to whatever needs it.
package config

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/chazu/papercut/pkg/cutplan"
)

// Wrinkle holds the defaults for (wrinkle ...) forms that omit a key, and
// the sampler policy.
type Wrinkle struct {
	Seed             int64   `toml:"seed"`
	Iterations       int     `toml:"iterations"`
	Kerf             float64 `toml:"kerf"`
	OffsetFactor     float64 `toml:"offset_factor"`
	MaxBasisAttempts int     `toml:"max_basis_attempts"`
}

// Mesh controls tessellation.
type Mesh struct {
	Cells  int    `toml:"cells"`  // marching cubes cells along the longest axis
	Kernel string `toml:"kernel"` // sdfx or manifold
}

// Log selects the slog handler.
type Log struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json
}

// Config is the full configuration.
type Config struct {
	ProjectPath string            `toml:"project_path"`
	Strings     map[string]string `toml:"strings"`
	Wrinkle     Wrinkle           `toml:"wrinkle"`
	Mesh        Mesh              `toml:"mesh"`
	Log         Log               `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ProjectPath: ".",
		Strings: map[string]string{
			"cut_summary":  "applied # of # cuts to #",
			"cut_failed":   "cut # on # failed: #",
			"plan_summary": "sampled # plans of # cuts",
			"wrote_mesh":   "wrote # triangles to #",
		},
		Wrinkle: Wrinkle{
			Seed:             0,
			Iterations:       5,
			Kerf:             0,
			OffsetFactor:     cutplan.DefaultOffsetFactor,
			MaxBasisAttempts: cutplan.DefaultMaxBasisAttempts,
		},
		Mesh: Mesh{Cells: 200, Kernel: "sdfx"},
		Log:  Log{Level: "info", Format: "text"},
	}
}

// Load reads and parses a TOML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "config: read")
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: %s", path)
	}
	if !filepath.IsAbs(cfg.ProjectPath) {
		cfg.ProjectPath = filepath.Join(filepath.Dir(path), cfg.ProjectPath)
	}
	return cfg, nil
}

// Parse decodes TOML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	def := Default()
	cfg := Default()
	cfg.Strings = nil

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode")
	}

	if cfg.Strings == nil {
		cfg.Strings = make(map[string]string, len(def.Strings))
	}
	for k, v := range def.Strings {
		if _, ok := cfg.Strings[k]; !ok {
			cfg.Strings[k] = v
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch {
	case c.Wrinkle.Iterations < 0:
		return errors.Errorf("wrinkle.iterations must be >= 0, got %d", c.Wrinkle.Iterations)
	case c.Wrinkle.Kerf < 0:
		return errors.Errorf("wrinkle.kerf must be >= 0, got %g", c.Wrinkle.Kerf)
	case c.Wrinkle.OffsetFactor <= 0:
		return errors.Errorf("wrinkle.offset_factor must be > 0, got %g", c.Wrinkle.OffsetFactor)
	case c.Wrinkle.MaxBasisAttempts < 1:
		return errors.Errorf("wrinkle.max_basis_attempts must be >= 1, got %d", c.Wrinkle.MaxBasisAttempts)
	case c.Mesh.Cells < 8:
		return errors.Errorf("mesh.cells must be >= 8, got %d", c.Mesh.Cells)
	}
	if c.Mesh.Kernel != "sdfx" && c.Mesh.Kernel != "manifold" {
		return errors.Errorf("mesh.kernel must be sdfx or manifold, got %q", c.Mesh.Kernel)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// String returns the resource string called name with each '#' replaced,
// left to right, by the next item of subst. Unknown names return name.
func (c Config) String(name string, subst ...string) string {
	result, ok := c.Strings[name]
	if !ok {
		return name
	}
	for _, item := range subst {
		result = strings.Replace(result, "#", item, 1)
	}
	return result
}

// File joins parts onto the project path.
func (c Config) File(parts ...string) string {
	return filepath.Join(append([]string{c.ProjectPath}, parts...)...)
}

// Sampler builds a cut-plan sampler from the wrinkle policy.
func (c Config) Sampler() *cutplan.Sampler {
	return &cutplan.Sampler{
		OffsetFactor:     c.Wrinkle.OffsetFactor,
		MaxBasisAttempts: c.Wrinkle.MaxBasisAttempts,
	}
}

// NewLogger returns a logger writing to w with the configured level and
// format.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.Errorf("log.level %q is not one of debug, info, warn, error", s)
	}
	return level, nil
}
