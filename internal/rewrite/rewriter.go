package rewrite

import (
	"strconv"
	"strings"
)

// Defaults for a Rewriter built with no options.
const (
	DefaultPluginName = "wbundle-meta-url"
	DefaultPrefix     = "__WORKER_URL_"
)

// DefaultLoaders are the content types a Rewriter handles unless told otherwise.
var DefaultLoaders = []string{"ts", "tsx", "js", "jsx"}

// Result is the rewritten module.
type Result struct {
	Code   string
	Loader string
}

// Rewriter applies an ordered list of rules to module source.
// It is immutable after New and safe for concurrent use.
type Rewriter struct {
	name    string
	prefix  string
	rules   []Rule
	loaders map[string]struct{}
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithName sets the plugin name reported to the bundler.
func WithName(name string) Option {
	return func(r *Rewriter) {
		if name != "" {
			r.name = name
		}
	}
}

// WithPrefix sets the placeholder identifier prefix.
func WithPrefix(prefix string) Option {
	return func(r *Rewriter) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithRules replaces the default rule set. Rules apply in the given order.
func WithRules(rules ...Rule) Option {
	return func(r *Rewriter) {
		if len(rules) > 0 {
			r.rules = rules
		}
	}
}

// WithLoaders restricts the rewriter to the given content types.
func WithLoaders(loaders ...string) Option {
	return func(r *Rewriter) {
		if len(loaders) > 0 {
			r.loaders = loaderSet(loaders)
		}
	}
}

// New creates a Rewriter. Without WithRules it recognises
// new URL("...", import.meta.url) and tags imports with DefaultMarker.
func New(opts ...Option) *Rewriter {
	r := &Rewriter{
		name:    DefaultPluginName,
		prefix:  DefaultPrefix,
		rules:   []Rule{MetaURLRule(DefaultMarker)},
		loaders: loaderSet(DefaultLoaders),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the plugin name.
func (r *Rewriter) Name() string {
	return r.name
}

// Handles reports whether loader is one of the configured content types.
func (r *Rewriter) Handles(loader string) bool {
	_, ok := r.loaders[loader]
	return ok
}

// Rewrite transforms code. The boolean is false when the loader is not
// handled or no rule matches; code must then be used as-is.
func (r *Rewriter) Rewrite(code, loader string) (Result, bool) {
	if !r.Handles(loader) || !r.matchesAny(code) {
		return Result{}, false
	}

	var (
		prepends []string
		index    int
	)
	body := code
	for _, rule := range r.rules {
		body = r.apply(rule, body, &index, &prepends)
	}

	return Result{
		Code:   strings.Join(prepends, "\n") + "\n" + body,
		Loader: loader,
	}, true
}

func (r *Rewriter) matchesAny(code string) bool {
	for _, rule := range r.rules {
		if rule.Pattern.MatchString(code) {
			return true
		}
	}
	return false
}

// apply replaces every match of rule in src. Offsets refer to src as passed
// in, never to the partially rebuilt output.
func (r *Rewriter) apply(rule Rule, src string, index *int, prepends *[]string) string {
	locs := rule.Pattern.FindAllStringSubmatchIndex(src, -1)
	if len(locs) == 0 {
		return src
	}
	names := rule.Pattern.SubexpNames()

	var b strings.Builder
	b.Grow(len(src))
	last := 0
	for _, loc := range locs {
		m := Match{
			Text:   src[loc[0]:loc[1]],
			Offset: loc[0],
			Index:  *index,
			Ident:  r.prefix + strconv.Itoa(*index),
			Groups: groups(names, loc, src),
		}
		*index++

		d := rule.Transform(m)
		if d.Prepend != "" {
			*prepends = append(*prepends, d.Prepend)
		}
		b.WriteString(src[last:loc[0]])
		b.WriteString(d.Replace)
		last = loc[1]
	}
	b.WriteString(src[last:])
	return b.String()
}

// Chain runs rewriters in order, each seeing the previous output.
// Chained rewriters need distinct prefixes so their identifiers do not collide.
func Chain(code, loader string, rewriters ...*Rewriter) (Result, bool) {
	out := Result{Code: code, Loader: loader}
	changed := false
	for _, r := range rewriters {
		if res, ok := r.Rewrite(out.Code, loader); ok {
			out = res
			changed = true
		}
	}
	return out, changed
}

func loaderSet(loaders []string) map[string]struct{} {
	set := make(map[string]struct{}, len(loaders))
	for _, l := range loaders {
		set[l] = struct{}{}
	}
	return set
}
