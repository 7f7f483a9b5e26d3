// Package config loads and validates the classprep configuration file.
//
// Configuration is written in CUE (.cue) or YAML (.yaml, .yml). Both are
// unified with an embedded CUE schema, so unknown fields, wrong types and
// malformed release times are rejected with file positions where the
// source format provides them.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/classprep/internal/fsutil"
	"github.com/roach88/classprep/internal/model"
	"github.com/roach88/classprep/internal/schedule"
)

//go:embed schema.cue
var schemaCUE string

const (
	// EnvPath names the environment variable that overrides DefaultPath.
	EnvPath = "CLASSPREP_CONFIG"
	// DefaultPath is read from the working directory when EnvPath is unset.
	DefaultPath = "classprep.cue"
)

// Files kept under the data directory.
const (
	RecordFile          = "yesterday.json"
	HistoryFile         = "history.db"
	ClassroomTokenFile  = "classroom_token.json"
	ClassroomSecretFile = "classroom_credentials.json"
	DriveTokenFile      = "drive_token.json"
	DriveSecretFile     = "drive_credentials.json"
)

// Config is the validated configuration, built once at startup.
type Config struct {
	CourseID    string                     `json:"course_id"`
	DataDir     string                     `json:"data_dir"`
	ErrorFile   string                     `json:"error_file"`
	Timezone    string                     `json:"timezone"`
	ReleaseTime string                     `json:"release_time"`
	Templates   []model.AssignmentTemplate `json:"templates"`
	OAuth       OAuth                      `json:"oauth"`

	source  string
	loc     *time.Location
	release schedule.Clock
	consent time.Duration
}

// OAuth configures the interactive consent flow.
type OAuth struct {
	RedirectPort   int    `json:"redirect_port"`
	ConsentTimeout string `json:"consent_timeout"`
}

// Error is a configuration problem, positioned when the source allows it.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ResolvePath returns the configuration file to read.
func ResolvePath() string {
	if p := strings.TrimSpace(os.Getenv(EnvPath)); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads, validates and decodes the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates and decodes configuration source. The file name selects
// the format and labels error positions.
func Parse(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	src, err := compileSource(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(src)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := &Config{source: filename}
	if err := v.Decode(cfg); err != nil {
		return nil, formatCUEError(err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func compileSource(ctx *cue.Context, filename string, data []byte) (cue.Value, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return cue.Value{}, &Error{Field: "yaml", Message: fmt.Sprintf("%s: %v", filename, err)}
		}
		if doc == nil {
			doc = map[string]any{}
		}
		v := ctx.Encode(doc)
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return v, nil
	case ".cue":
		v := ctx.CompileBytes(data, cue.Filename(filename))
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return v, nil
	default:
		return cue.Value{}, &Error{
			Field:   "config",
			Message: fmt.Sprintf("unsupported config format %q: want .cue, .yaml or .yml", filepath.Ext(filename)),
		}
	}
}

// resolve parses derived values and enforces rules the schema cannot.
func (c *Config) resolve() error {
	seen := make(map[string]bool, len(c.Templates))
	for i, t := range c.Templates {
		if seen[t.Name] {
			return &Error{
				Field:   fmt.Sprintf("templates[%d].name", i),
				Message: fmt.Sprintf("duplicate template name %q", t.Name),
			}
		}
		seen[t.Name] = true
	}

	if c.Timezone == "Local" {
		c.loc = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return &Error{Field: "timezone", Message: err.Error()}
		}
		c.loc = loc
	}

	release, err := schedule.ParseClock(c.ReleaseTime)
	if err != nil {
		return &Error{Field: "release_time", Message: err.Error()}
	}
	c.release = release

	consent, err := time.ParseDuration(c.OAuth.ConsentTimeout)
	if err != nil {
		return &Error{Field: "oauth.consent_timeout", Message: err.Error()}
	}
	if consent <= 0 {
		return &Error{Field: "oauth.consent_timeout", Message: "must be positive"}
	}
	c.consent = consent

	return nil
}

// RequireProvisioning checks the fields a provisioning run needs.
// Course listing needs neither.
func (c *Config) RequireProvisioning() error {
	if strings.TrimSpace(c.CourseID) == "" {
		return &Error{Field: "course_id", Message: "course_id is required"}
	}
	if len(c.Templates) == 0 {
		return &Error{Field: "templates", Message: "at least one template is required"}
	}
	return nil
}

// Source is the file the configuration was read from.
func (c *Config) Source() string { return c.source }

// Location is the timezone release times are computed in.
func (c *Config) Location() *time.Location { return c.loc }

// Release is the time of day assignments are published.
func (c *Config) Release() schedule.Clock { return c.release }

// ConsentTimeout bounds the interactive consent flow.
func (c *Config) ConsentTimeout() time.Duration { return c.consent }

// EnsureDataDir creates the data directory if missing.
func (c *Config) EnsureDataDir() error {
	if err := fsutil.EnsureDir(c.DataDir); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

func (c *Config) RecordPath() string          { return filepath.Join(c.DataDir, RecordFile) }
func (c *Config) HistoryPath() string         { return filepath.Join(c.DataDir, HistoryFile) }
func (c *Config) ClassroomTokenPath() string  { return filepath.Join(c.DataDir, ClassroomTokenFile) }
func (c *Config) ClassroomSecretPath() string { return filepath.Join(c.DataDir, ClassroomSecretFile) }
func (c *Config) DriveTokenPath() string      { return filepath.Join(c.DataDir, DriveTokenFile) }
func (c *Config) DriveSecretPath() string     { return filepath.Join(c.DataDir, DriveSecretFile) }

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Prefer a position in the user's file over one in the schema.
	first := errs[0]
	positions := errors.Positions(first)
	for _, pos := range positions {
		if pos.Filename() != "schema.cue" {
			return &Error{Field: "cue", Message: first.Error(), Pos: pos}
		}
	}
	if len(positions) > 0 {
		return &Error{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}

	return &Error{Field: "cue", Message: first.Error()}
}
