package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	oerrors "github.com/opmodel/wbundle/internal/errors"
)

// Environment variable prefix for wbundle configuration.
const envPrefix = "WBUNDLE"

// envBindings maps config keys to the environment variables that override them.
var envBindings = []struct {
	key string
	env string
}{
	{"entryPoints", "WBUNDLE_ENTRY_POINTS"},
	{"outdir", "WBUNDLE_OUTDIR"},
	{"outfile", "WBUNDLE_OUTFILE"},
	{"assetNames", "WBUNDLE_ASSET_NAMES"},
	{"format", "WBUNDLE_FORMAT"},
	{"platform", "WBUNDLE_PLATFORM"},
	{"sourcemap", "WBUNDLE_SOURCEMAP"},
	{"minifySyntax", "WBUNDLE_MINIFY_SYNTAX"},
	{"clean", "WBUNDLE_CLEAN"},
}

// Loader loads wbundle.cue files, fills schema defaults and overlays
// environment variables.
type Loader struct {
	v      *viper.Viper
	ctx    *cue.Context
	schema cue.Value
}

// Loaded is the outcome of Loader.Load.
type Loaded struct {
	Config *Config

	// Path is the config file that was read, empty when none was.
	Path string

	// Dir is the directory relative paths in Config are resolved against.
	Dir string

	// Values records where each overridden value came from.
	Values []ResolvedValue
}

// NewLoader creates a new configuration loader.
func NewLoader() (*Loader, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, b := range envBindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", b.env, err)
		}
	}

	ctx := cuecontext.New()
	file := ctx.CompileBytes(configSchemaCUE, cue.Filename("schema/config.cue"))
	if file.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", file.Err())
	}
	schema := file.LookupPath(cue.ParsePath("#Config"))
	if !schema.Exists() {
		return nil, fmt.Errorf("schema has no #Config definition")
	}

	return &Loader{v: v, ctx: ctx, schema: schema}, nil
}

// Load reads the config file at path. When required is false a missing file
// yields the schema defaults. Environment variables take precedence over
// file values.
func (l *Loader) Load(path string, required bool) (*Loaded, error) {
	loaded := &Loaded{}

	value := l.ctx.CompileString("{}")
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, fmt.Errorf("expanding config path: %w", err)
		}

		data, err := os.ReadFile(expanded)
		switch {
		case err == nil:
			value, err = l.compile(expanded, data)
			if err != nil {
				return nil, err
			}
			loaded.Path = expanded
		case errors.Is(err, os.ErrNotExist) && !required:
		case errors.Is(err, os.ErrNotExist):
			return nil, oerrors.NewNotFoundError("configuration file not found", expanded,
				"Run 'wbundle config init' to create one, or pass entry points as arguments.")
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg, err := l.decode(value, loaded.Path)
	if err != nil {
		return nil, err
	}

	values, err := l.overlayEnv(cfg)
	if err != nil {
		return nil, err
	}
	loaded.Config = cfg
	loaded.Values = values

	if loaded.Path != "" {
		loaded.Dir = filepath.Dir(loaded.Path)
	} else if wd, err := os.Getwd(); err == nil {
		loaded.Dir = wd
	}
	if abs, err := filepath.Abs(loaded.Dir); err == nil {
		loaded.Dir = abs
	}

	return loaded, nil
}

// Defaults returns the schema defaults without reading files or environment.
func (l *Loader) Defaults() (*Config, error) {
	return l.decode(l.ctx.CompileString("{}"), "")
}

// compile parses CUE, or YAML and JSON for non-.cue extensions.
func (l *Loader) compile(path string, data []byte) (cue.Value, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return cue.Value{}, oerrors.NewValidationError(err.Error(), path, "", "Check the file syntax.")
		}
		if raw == nil {
			raw = map[string]any{}
		}
		v := l.ctx.Encode(raw)
		if v.Err() != nil {
			return cue.Value{}, validationFromCUE(v.Err(), path)
		}
		return v, nil
	default:
		v := l.ctx.CompileBytes(data, cue.Filename(path))
		if v.Err() != nil {
			return cue.Value{}, validationFromCUE(v.Err(), path)
		}
		return v, nil
	}
}

func (l *Loader) decode(value cue.Value, path string) (*Config, error) {
	unified := l.schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, validationFromCUE(err, path)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, validationFromCUE(err, path)
	}
	return &cfg, nil
}

// overlayEnv applies WBUNDLE_* variables on top of cfg.
func (l *Loader) overlayEnv(cfg *Config) ([]ResolvedValue, error) {
	var values []ResolvedValue

	for _, b := range envBindings {
		if !l.v.IsSet(b.key) {
			continue
		}
		raw := l.v.GetString(b.key)
		rv := ResolvedValue{Key: b.key, Value: raw, Source: SourceEnv, Shadowed: map[ConfigSource]string{}}

		switch b.key {
		case "entryPoints":
			rv.Shadowed[SourceConfig] = strings.Join(cfg.EntryPoints, ",")
			cfg.EntryPoints = splitList(raw)
		case "outdir":
			rv.Shadowed[SourceConfig] = cfg.Outdir
			cfg.Outdir = raw
		case "outfile":
			rv.Shadowed[SourceConfig] = cfg.Outfile
			cfg.Outfile = raw
		case "assetNames":
			rv.Shadowed[SourceConfig] = cfg.AssetNames
			cfg.AssetNames = raw
		case "format":
			rv.Shadowed[SourceConfig] = cfg.Format
			cfg.Format = raw
		case "platform":
			rv.Shadowed[SourceConfig] = cfg.Platform
			cfg.Platform = raw
		case "sourcemap", "minifySyntax", "clean":
			b2, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, oerrors.NewValidationError(
					fmt.Sprintf("%s must be a boolean, got %q", b.env, raw), "", b.key, "")
			}
			target := map[string]*bool{
				"sourcemap":    &cfg.Sourcemap,
				"minifySyntax": &cfg.MinifySyntax,
				"clean":        &cfg.Clean,
			}[b.key]
			rv.Shadowed[SourceConfig] = strconv.FormatBool(*target)
			*target = b2
		}
		values = append(values, rv)
	}

	return values, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
