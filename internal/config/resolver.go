package config

import (
	"os"

	"github.com/opmodel/wbundle/internal/output"
)

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	// SourceFlag indicates value came from command-line flag.
	SourceFlag ConfigSource = "flag"
	// SourceEnv indicates value came from environment variable.
	SourceEnv ConfigSource = "env"
	// SourceConfig indicates value came from config file.
	SourceConfig ConfigSource = "config"
	// SourceDefault indicates value is the built-in default.
	SourceDefault ConfigSource = "default"
)

// ResolvedValue records the winning source of one configuration key.
type ResolvedValue struct {
	Key    string
	Value  string
	Source ConfigSource
	// Shadowed contains values that were overridden by higher precedence.
	Shadowed map[ConfigSource]string
}

// ResolveConfigPathOptions contains options for config path resolution.
type ResolveConfigPathOptions struct {
	// FlagValue is the --config flag value (empty if not set).
	FlagValue string
}

// ResolveConfigPathResult contains the resolved config path and its source.
type ResolveConfigPathResult struct {
	// ConfigPath is the resolved config file path.
	ConfigPath string
	// Source indicates where the config path came from.
	Source ConfigSource
	// Shadowed contains values that were overridden by higher precedence.
	Shadowed map[ConfigSource]string
}

// Explicit reports whether the path was asked for rather than defaulted.
// A missing explicit config file is an error; a missing default is not.
func (r ResolveConfigPathResult) Explicit() bool {
	return r.Source == SourceFlag || r.Source == SourceEnv
}

// ResolveConfigPath resolves the config file path using precedence:
// (1) --config flag, (2) WBUNDLE_CONFIG env, (3) ./wbundle.cue
func ResolveConfigPath(opts ResolveConfigPathOptions) ResolveConfigPathResult {
	result := ResolveConfigPathResult{
		Shadowed: make(map[ConfigSource]string),
	}

	envValue := os.Getenv("WBUNDLE_CONFIG")

	if opts.FlagValue != "" {
		result.ConfigPath = opts.FlagValue
		result.Source = SourceFlag
		if envValue != "" {
			result.Shadowed[SourceEnv] = envValue
		}
		result.Shadowed[SourceDefault] = DefaultConfigFile
	} else if envValue != "" {
		result.ConfigPath = envValue
		result.Source = SourceEnv
		result.Shadowed[SourceDefault] = DefaultConfigFile
	} else {
		result.ConfigPath = DefaultConfigFile
		result.Source = SourceDefault
	}

	return result
}

// ApplyString overrides *target with flagValue when it is set and returns
// the resolution record for logging. current is the value loaded from
// config and environment, tagged with its source.
func ApplyString(key string, target *string, flagValue string, current ConfigSource) ResolvedValue {
	rv := ResolvedValue{Key: key, Value: *target, Source: current, Shadowed: make(map[ConfigSource]string)}
	if flagValue == "" {
		return rv
	}
	if *target != "" {
		rv.Shadowed[current] = *target
	}
	*target = flagValue
	rv.Value = flagValue
	rv.Source = SourceFlag
	return rv
}

// SourceOf returns the source of key among already resolved values,
// falling back to the config file or default.
func SourceOf(values []ResolvedValue, key string, fromFile bool) ConfigSource {
	for _, v := range values {
		if v.Key == key {
			return v.Source
		}
	}
	if fromFile {
		return SourceConfig
	}
	return SourceDefault
}

// LogResolvedValues logs configuration resolution at DEBUG level.
func LogResolvedValues(values []ResolvedValue) {
	for _, v := range values {
		output.Debug("config value resolved",
			"key", v.Key,
			"value", v.Value,
			"source", v.Source,
		)
		for source, shadowed := range v.Shadowed {
			output.Debug("  shadowed by higher precedence",
				"key", v.Key,
				"shadowed_source", source,
				"shadowed_value", shadowed,
			)
		}
	}
}
