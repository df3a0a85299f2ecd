// Package rewrite turns runtime module references in script source into
// static, marker-tagged imports that the bundler can follow.
//
// A Rewriter holds an ordered list of Rules. Each Rule pairs a regular
// expression with a transform callback; every match of the expression is
// replaced in place and the callback's import statement is hoisted to the top
// of the module. The rewriter never parses the source: it only sees the text
// matched by its patterns.
package rewrite

import (
	"fmt"
	"strconv"

	"github.com/coregx/coregex"
)

// PathGroup is the named capture group that carries the referenced module path.
const PathGroup = "importPath"

// Default patterns. The engine has no back-references, so "same quote at both
// ends" is expressed as an alternation whose branches reuse PathGroup.
const (
	// MetaURLPattern matches new URL("./path", import.meta.url).
	MetaURLPattern = `new\s+URL\(\s*(?:"(?P<importPath>[^"]*)"|'(?P<importPath>[^']*)')\s*,\s*import\.meta\.url\s*\)`

	// ResolvePattern matches import.meta.resolve("./path").
	ResolvePattern = `import\.meta\.resolve\(\s*(?:"(?P<importPath>[^"]*)"|'(?P<importPath>[^']*)')\s*\)`
)

// Match is a single occurrence of a rule's pattern.
type Match struct {
	// Text is the full matched text.
	Text string

	// Offset is the zero-based byte offset of Text in the source the rule scanned.
	Offset int

	// Index is the running match number within one Rewrite call.
	Index int

	// Ident is the generated placeholder identifier (prefix + Index).
	Ident string

	// Groups maps each participating named capture group to its text.
	Groups map[string]string
}

// Directive tells the rewriter what to do with a match.
type Directive struct {
	// Prepend is a statement hoisted to the top of the module. Empty means none.
	Prepend string

	// Replace substitutes the matched span.
	Replace string
}

// TransformFunc turns a match into a Directive.
type TransformFunc func(m Match) Directive

// Rule pairs a pattern with its transform.
type Rule struct {
	Pattern   *coregex.Regex
	Transform TransformFunc
}

// NewRule compiles pattern and returns a Rule. A nil transform falls back to
// ImportTransform(DefaultMarker).
func NewRule(pattern string, transform TransformFunc) (Rule, error) {
	re, err := coregex.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("compiling rule pattern %q: %w", pattern, err)
	}
	if transform == nil {
		transform = ImportTransform(DefaultMarker)
	}
	return Rule{Pattern: re, Transform: transform}, nil
}

// MustRule is like NewRule but panics on an invalid pattern.
func MustRule(pattern string, transform TransformFunc) Rule {
	rule, err := NewRule(pattern, transform)
	if err != nil {
		panic(err)
	}
	return rule
}

// MetaURLRule returns the rule for new URL("...", import.meta.url).
func MetaURLRule(marker Marker) Rule {
	return MustRule(MetaURLPattern, ImportTransform(marker))
}

// ResolveRule returns the rule for import.meta.resolve("...").
func ResolveRule(marker Marker) Rule {
	return MustRule(ResolvePattern, ImportTransform(marker))
}

// Marker is the import attribute that tags a synthetic import.
type Marker struct {
	Key   string
	Value string
}

// DefaultMarker tags imports with { type: "worker" }.
var DefaultMarker = Marker{Key: "type", Value: "worker"}

// String renders the marker as an import attribute clause.
func (m Marker) String() string {
	return fmt.Sprintf("{ %s: %s }", m.Key, strconv.Quote(m.Value))
}

// Matches reports whether an import's attributes carry the marker.
func (m Marker) Matches(with map[string]string) bool {
	v, ok := with[m.Key]
	return ok && v == m.Value
}

// ImportTransform emits `import <ident> from "<path>" with <marker>` and
// replaces the match with the identifier.
//
// The path is read from PathGroup; a pattern without that group yields an
// import of the empty string.
func ImportTransform(marker Marker) TransformFunc {
	return func(m Match) Directive {
		return Directive{
			Prepend: fmt.Sprintf("import %s from %s with %s", m.Ident, strconv.Quote(m.Groups[PathGroup]), marker),
			Replace: m.Ident,
		}
	}
}

// groups collects the participating named groups of one match. When several
// groups share a name, the leftmost participating one wins.
func groups(names []string, loc []int, src string) map[string]string {
	out := make(map[string]string, len(names))
	for i, name := range names {
		if name == "" || 2*i+1 >= len(loc) || loc[2*i] < 0 {
			continue
		}
		if _, seen := out[name]; seen {
			continue
		}
		out[name] = src[loc[2*i]:loc[2*i+1]]
	}
	return out
}
