// Package config loads stepper configuration from CUE.
//
// An embedded schema supplies constraints and defaults; an optional user
// file is unified with it. Values that violate the schema are rejected with
// the position of the offending field.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSrc string

// Config is the decoded configuration.
type Config struct {
	Database       string `json:"database"`
	MaxInvokeDepth int    `json:"max_invoke_depth"`
	LogLevel       string `json:"log_level"`
	AirdropLimit   uint64 `json:"airdrop_limit"`
}

// Error is a configuration failure, positioned when CUE knows where.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Default returns the schema defaults.
func Default() (*Config, error) {
	return Load("")
}

// Load reads path (a .cue file) and unifies it with the schema.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var src []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		src = data
	}
	return parse(path, src)
}

// Parse is Load for in-memory source. name labels error positions.
func Parse(name string, src []byte) (*Config, error) {
	return parse(name, src)
}

// schema returns the #Config definition compiled in ctx.
func schema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("config schema: %w", err)
	}
	return v.LookupPath(cue.ParsePath("#Config")), nil
}

func parse(name string, src []byte) (*Config, error) {
	ctx := cuecontext.New()

	def, err := schema(ctx)
	if err != nil {
		return nil, err
	}

	value := def
	if len(src) > 0 {
		user := ctx.CompileBytes(src, cue.Filename(name))
		if err := user.Err(); err != nil {
			return nil, convertCUEError(err)
		}
		value = def.Unify(user)
	}

	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEError(err)
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, convertCUEError(err)
	}
	return &cfg, nil
}

// Overrides are command-line values that replace loaded ones when set.
type Overrides struct {
	Database       string
	MaxInvokeDepth int
}

// Apply returns a copy of c with the non-zero overrides set. The result
// is checked against the same schema as a configuration file.
func (c *Config) Apply(o Overrides) (*Config, error) {
	out := *c
	if o.Database != "" {
		out.Database = o.Database
	}
	if o.MaxInvokeDepth != 0 {
		out.MaxInvokeDepth = o.MaxInvokeDepth
	}

	ctx := cuecontext.New()
	def, err := schema(ctx)
	if err != nil {
		return nil, err
	}
	v := def.Unify(ctx.Encode(out))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEError(err)
	}
	return &out, nil
}

// convertCUEError keeps the first error and its position.
func convertCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	out := &Error{Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}

// Level maps LogLevel onto slog.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
