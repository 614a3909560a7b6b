// Package config loads socialledger configuration from CUE files.
//
// A config file is unified with an embedded schema, so unknown fields,
// wrong types and out-of-range values are rejected with a file position.
// Command-line flags override what the file sets.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/socialledger/internal/address"
)

//go:embed schema.cue
var schemaSource string

// Config is the resolved configuration.
type Config struct {
	ProgramID address.Pubkey
	Database  string
	Log       LogConfig
	Batch     BatchConfig
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level slog.Level
	JSON  bool
}

// BatchConfig bounds parallel batch execution.
type BatchConfig struct {
	Workers int
}

// raw mirrors the schema for cue.Value.Decode.
type raw struct {
	ProgramID string `json:"program_id"`
	Database  string `json:"database"`
	Log       struct {
		Level string `json:"level"`
		JSON  bool   `json:"json"`
	} `json:"log"`
	Batch struct {
		Workers int `json:"workers"`
	} `json:"batch"`
}

// Error is a configuration error, positioned when CUE knows where it came
// from.
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

// Default returns the configuration an empty file produces.
func Default() Config {
	cfg, err := Parse("", nil)
	if err != nil {
		// The embedded schema is broken; nothing sensible can run.
		panic(err)
	}
	return cfg
}

// Load reads and validates the CUE file at path. An empty path yields
// Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates CUE source against the schema. filename is only used in
// error positions.
func Parse(filename string, src []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def
	if len(src) > 0 {
		user := ctx.CompileBytes(src, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return Config{}, formatCUEError(err)
		}
		v = def.Unify(user)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	var r raw
	if err := v.Decode(&r); err != nil {
		return Config{}, formatCUEError(err)
	}
	return r.resolve()
}

func (r raw) resolve() (Config, error) {
	programID, err := address.ParsePubkey(r.ProgramID)
	if err != nil {
		return Config{}, &Error{Message: fmt.Sprintf("program_id: %v", err)}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(r.Log.Level)); err != nil {
		return Config{}, &Error{Message: fmt.Sprintf("log.level: %v", err)}
	}

	return Config{
		ProgramID: programID,
		Database:  r.Database,
		Log:       LogConfig{Level: level, JSON: r.Log.JSON},
		Batch:     BatchConfig{Workers: r.Batch.Workers},
	}, nil
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	out := &Error{Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}
