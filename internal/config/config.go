// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CustomFields Contributors

// Package config loads the customfields configuration file.
//
// Values come from a YAML file, then from command line flags that were set
// explicitly. DATABASE_URL from the environment fills database_url when
// neither provides one.
package config

import (
	"os"
	"strings"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/customfields/customfields/internal/cast"
	"github.com/customfields/customfields/internal/field"
	"github.com/customfields/customfields/internal/logging"
)

// EnvDatabaseURL is read when no database URL is configured.
const EnvDatabaseURL = "DATABASE_URL"

// Config is the root of the configuration file.
type Config struct {
	DatabaseURL       string                `koanf:"database_url" json:"database_url,omitempty" jsonschema:"description=PostgreSQL connection URL. Defaults to $DATABASE_URL"`
	LogFormat         string                `koanf:"log_format" json:"log_format,omitempty" jsonschema:"enum=json,enum=text,default=json"`
	LogLevel          string                `koanf:"log_level" json:"log_level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	DateTimePrecision int                   `koanf:"datetime_precision" json:"datetime_precision,omitempty" jsonschema:"minimum=0,maximum=6,default=6,description=Sub-second digits kept for datetime fields without a precision option"`
	BackfillBatchSize int                   `koanf:"backfill_batch_size" json:"backfill_batch_size,omitempty" jsonschema:"minimum=1,default=500,description=Entities per backfill transaction"`
	EntityTypes       map[string]EntityType `koanf:"entity_types" json:"entity_types,omitempty" jsonschema:"description=Entity types that accept custom fields keyed by name"`
	CustomTypes       []CustomType          `koanf:"custom_types" json:"custom_types,omitempty" jsonschema:"description=Field types with Lua validators built on a registered type"`
}

// EntityType binds an entity type to its host table and permitted field types.
type EntityType struct {
	Table       string   `koanf:"table" json:"table" jsonschema:"required,minLength=1,description=Host table. May be schema qualified"`
	IDColumn    string   `koanf:"id_column" json:"id_column,omitempty" jsonschema:"default=id"`
	IDType      string   `koanf:"id_type" json:"id_type,omitempty" jsonschema:"default=text,description=SQL type of id_column"`
	ScopeColumn string   `koanf:"scope_column" json:"scope_column,omitempty" jsonschema:"description=Column holding the entity's field scope"`
	FieldTypes  []string `koanf:"field_types" json:"field_types" jsonschema:"required,minItems=1,description=Glob patterns over registered field type IDs"`
}

// CustomType declares a Lua-validated extension type.
type CustomType struct {
	ID      string   `koanf:"id" json:"id" jsonschema:"required,pattern=^[a-z0-9_]+$"`
	Base    string   `koanf:"base" json:"base" jsonschema:"required,description=Registered type whose caster and finder are reused"`
	Script  string   `koanf:"script" json:"script,omitempty" jsonschema:"description=Lua source defining a global validate function"`
	File    string   `koanf:"file" json:"file,omitempty" jsonschema:"description=Path of a Lua file used when script is empty"`
	Options []string `koanf:"options" json:"options,omitempty" jsonschema:"description=Extra option keys the script reads"`
	Timeout string   `koanf:"timeout" json:"timeout,omitempty" jsonschema:"pattern=^[0-9]+(ms|s)$,description=Per-call script time limit such as 250ms"`
}

// Default returns the configuration used for keys the file omits.
func Default() Config {
	return Config{
		LogFormat:         logging.FormatJSON,
		LogLevel:          "info",
		DateTimePrecision: cast.MaxDateTimePrecision,
		BackfillBatchSize: field.DefaultBackfillBatchSize,
	}
}

// Load reads path (optional) and overlays the flags in fs that were set.
// Flag names map to keys by replacing dashes with underscores.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}
	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || !isConfigFlag(f.Name) {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("source", "flags").Wrap(err)
		}
	}

	if err := ValidateSchema(k.Raw()); err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").With("path", path).Wrap(err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv(EnvDatabaseURL)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flagKeys are the settings that may be given on the command line.
var flagKeys = map[string]struct{}{
	"database-url":        {},
	"log-format":          {},
	"log-level":           {},
	"datetime-precision":  {},
	"backfill-batch-size": {},
}

func isConfigFlag(name string) bool {
	_, ok := flagKeys[name]
	return ok
}

// Validate checks settings the schema cannot express.
func (c *Config) Validate() error {
	for i, ct := range c.CustomTypes {
		if ct.Script == "" && ct.File == "" {
			return oops.Code("CONFIG_INVALID").
				With("custom_type", ct.ID).
				Errorf("custom_types[%d]: script or file is required", i)
		}
		if _, err := ct.timeout(); err != nil {
			return oops.Code("CONFIG_INVALID").With("custom_type", ct.ID).Wrap(err)
		}
	}
	for name, et := range c.EntityTypes {
		if err := et.Source().Validate(); err != nil {
			return oops.Code("CONFIG_INVALID").With("entity_type", name).Wrap(err)
		}
	}
	return nil
}

func (ct CustomType) timeout() (time.Duration, error) {
	if ct.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(ct.Timeout)
	if err != nil {
		return 0, oops.With("timeout", ct.Timeout).Wrap(err)
	}
	return d, nil
}

func (ct CustomType) source() (string, error) {
	if ct.Script != "" {
		return ct.Script, nil
	}
	b, err := os.ReadFile(ct.File)
	if err != nil {
		return "", oops.Code("CONFIG_READ_FAILED").With("custom_type", ct.ID).With("file", ct.File).Wrap(err)
	}
	return string(b), nil
}
