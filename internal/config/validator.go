package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	cueerrors "cuelang.org/go/cue/errors"

	oerrors "github.com/opmodel/wbundle/internal/errors"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// Unwrap lets errors.Is match ErrValidation.
func (e ValidationErrors) Unwrap() error {
	return oerrors.ErrValidation
}

// Validate checks the constraints the CUE schema cannot express on its own.
// It runs after flags are applied, so entry points supplied on the command
// line count.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if len(cfg.EntryPoints) == 0 {
		errs = append(errs, ValidationError{Field: "entryPoints", Message: "at least one entry point is required"})
	}
	if cfg.Outdir == "" && cfg.Outfile == "" {
		errs = append(errs, ValidationError{Field: "outdir", Message: "one of outdir or outfile is required"})
	}
	if cfg.Outdir != "" && cfg.Outfile != "" {
		errs = append(errs, ValidationError{Field: "outfile", Message: "outdir and outfile are mutually exclusive"})
	}
	if cfg.Outfile != "" && len(cfg.EntryPoints) > 1 {
		errs = append(errs, ValidationError{Field: "outfile", Message: "outfile requires a single entry point, use outdir"})
	}

	for _, f := range []struct{ field, value string }{
		{"assetNames", cfg.AssetNames},
		{"entryNames", cfg.EntryNames},
		{"partition.entryNames", cfg.Partition.EntryNames},
	} {
		if strings.Contains(f.value, "[hash]") {
			errs = append(errs, ValidationError{
				Field:   f.field,
				Message: "must not contain [hash]: worker references are emitted before the worker is built",
			})
		}
	}

	switch cfg.Format {
	case "esm", "iife", "cjs":
	default:
		errs = append(errs, ValidationError{Field: "format", Message: fmt.Sprintf("unknown format %q (want esm, iife or cjs)", cfg.Format)})
	}
	switch cfg.Platform {
	case "browser", "node", "neutral":
	default:
		errs = append(errs, ValidationError{Field: "platform", Message: fmt.Sprintf("unknown platform %q (want browser, node or neutral)", cfg.Platform)})
	}

	for i, filter := range cfg.Partition.Filters {
		if _, err := regexp.Compile(filter); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("partition.filters[%d]", i),
				Message: err.Error(),
			})
		}
	}

	if cfg.Watch.Debounce != "" {
		if _, err := time.ParseDuration(cfg.Watch.Debounce); err != nil {
			errs = append(errs, ValidationError{Field: "watch.debounce", Message: err.Error()})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validationFromCUE converts a CUE evaluation error into a DetailError that
// lists each failing path with its position.
func validationFromCUE(err error, path string) error {
	return &oerrors.DetailError{
		Type:     "validation failed",
		Message:  formatCUEDetails(err),
		Location: path,
		Hint:     "Run 'wbundle config vet' to check the file against the schema.",
		Cause:    oerrors.ErrValidation,
	}
}

func formatCUEDetails(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}

	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteByte('\n')
		}
		if p := strings.Join(e.Path(), "."); p != "" {
			b.WriteString(p)
			b.WriteString(": ")
		}
		format, args := e.Msg()
		b.WriteString(fmt.Sprintf(format, args...))

		for _, pos := range cueerrors.Positions(e) {
			if pos.Filename() == "schema/config.cue" {
				continue
			}
			p := pos.Position()
			if p.IsValid() {
				b.WriteString(fmt.Sprintf(" (%d:%d)", p.Line, p.Column))
				break
			}
		}
	}
	return b.String()
}
