package partition

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	oerrors "github.com/opmodel/wbundle/internal/errors"
)

// SubBuildError reports a failed sub-build together with the imports that
// requested it.
type SubBuildError struct {
	// Source is the canonical path of the sub-build entry point.
	Source string

	// Importers are the modules that imported Source with the marker.
	Importers []string

	// Cause is the underlying failure.
	Cause error
}

// Error implements the error interface.
func (e *SubBuildError) Error() string {
	var b strings.Builder
	b.WriteString("sub-build of ")
	b.WriteString(e.Source)
	if len(e.Importers) > 0 {
		b.WriteString(" (imported by ")
		b.WriteString(strings.Join(e.Importers, ", "))
		b.WriteString(")")
	}
	b.WriteString(" failed")
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns both the cause and ErrBuild so callers can match either.
func (e *SubBuildError) Unwrap() []error {
	if e.Cause == nil {
		return []error{oerrors.ErrBuild}
	}
	return []error{e.Cause, oerrors.ErrBuild}
}

// HostOwner names the host build as the owner of a conflicting artifact.
const HostOwner = "the host build"

// ArtifactConflictError is returned when a sub-build artifact lands on a path
// that another source of the same run also writes.
type ArtifactConflictError struct {
	// Artifact is the contested output path.
	Artifact string

	// Owner is the source that claimed Artifact first, or HostOwner.
	Owner string
}

// Error implements the error interface.
func (e *ArtifactConflictError) Error() string {
	return fmt.Sprintf("artifact %s is also emitted for %s", e.Artifact, e.Owner)
}

// CycleError is returned when a sub-build requests a path that is already
// waiting, directly or transitively, on the requester.
type CycleError struct {
	// Chain lists the paths of the cycle, starting and ending at the same path.
	Chain []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return "partition cycle: " + strings.Join(e.Chain, " -> ")
}

// BuildFailure carries the error messages of a failed esbuild run.
type BuildFailure struct {
	Messages []api.Message
}

// Error implements the error interface.
func (e *BuildFailure) Error() string {
	if len(e.Messages) == 0 {
		return "build failed"
	}
	lines := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		lines = append(lines, FormatMessage(m))
	}
	if len(lines) == 1 {
		return lines[0]
	}
	return fmt.Sprintf("%d errors: %s", len(lines), strings.Join(lines, "; "))
}

// Unwrap returns ErrBuild.
func (e *BuildFailure) Unwrap() error {
	return oerrors.ErrBuild
}

// FormatMessage renders a bundler message on one line as file:line:col: text.
func FormatMessage(m api.Message) string {
	text := m.Text
	if m.PluginName != "" {
		text = "[plugin " + m.PluginName + "] " + text
	}
	if m.Location != nil {
		return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, text)
	}
	return text
}
