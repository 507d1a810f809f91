package wire

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

// CompiledFilterSet is a FilterSet with each pattern pre-compiled to a
// regexp anchored to the whole path, so that e.g. a rule of "-build"
// doesn't accidentally match "mybuilder.txt".
//
// The doer compiles the FilterSet it receives over the wire exactly once,
// up front, rather than re-compiling a pattern on every path tested during
// the walk.
type CompiledFilterSet struct {
	rules      []FilterRule
	regexes    []*regexp.Regexp
	hasInclude bool
}

// Compile validates and compiles every pattern in the set. An empty pattern
// list compiles successfully and matches nothing, which combined with the
// default-match rule below means "include everything" -- an unfiltered
// sync behaves exactly as if no FilterSet were involved at all.
func (s FilterSet) Compile() (*CompiledFilterSet, error) {
	c := &CompiledFilterSet{rules: s.Rules}
	for _, r := range s.Rules {
		re, err := regexp.Compile("^(?:" + r.Pattern + ")$")
		if err != nil {
			return nil, errors.Wrapf(err, "invalid filter pattern %q", r.Pattern)
		}
		c.regexes = append(c.regexes, re)
		if r.Kind == FilterInclude {
			c.hasInclude = true
		}
	}
	return c, nil
}

// Matches reports whether path should be included in the sync.
//
// Rules are evaluated in order and the *last* one that matches wins, same
// as a standard include/exclude filter chain. A path that matches no rule
// at all falls back to a default that depends on whether the set contains
// any include rule: a pure exclude list (or an empty list) defaults to
// including everything, but as soon as a single include rule is present
// the set switches to whitelist mode, where anything not explicitly
// included is excluded. Without this flip, a filter set like
// ["+keep-this", "-everything-else-pattern"] would be unable to express
// "only keep-this survives" -- every path not matching either rule would
// slip through as included.
func (c *CompiledFilterSet) Matches(path string) bool {
	matched := false
	result := true
	for i, re := range c.regexes {
		if re.MatchString(path) {
			matched = true
			result = c.rules[i].Kind == FilterInclude
		}
	}
	if matched {
		return result
	}
	return !c.hasInclude
}

// String renders the filter set back into its +/- textual form, for
// logging and error messages.
func (s FilterSet) String() string {
	out := ""
	for i, r := range s.Rules {
		if i > 0 {
			out += " "
		}
		prefix := "+"
		if r.Kind == FilterExclude {
			prefix = "-"
		}
		out += fmt.Sprintf("%s%s", prefix, r.Pattern)
	}
	return out
}
