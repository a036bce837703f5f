package tracking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/goliatone/go-tracking/layering"
)

// ErrInvalidComparisonName indicates a comparison policy name made of
// whitespace only.
var ErrInvalidComparisonName = errors.New("tracking: comparison policy name must not be blank")

// ComparisonOptions configures a ComparisonPolicy. Nil fields are unset: they
// take the documented default on construction and inherit the current
// default in SetAsDefault.
type ComparisonOptions struct {
	Name                               string `json:"name,omitempty" yaml:"name,omitempty"`
	IsCaseSensitive                    *bool  `json:"is_case_sensitive,omitempty" yaml:"is_case_sensitive,omitempty"`
	UsesSQL92CompliantStringComparison *bool  `json:"uses_sql92_compliant_string_comparison,omitempty" yaml:"uses_sql92_compliant_string_comparison,omitempty"`
}

// ComparisonPolicy holds the string comparison rules local predicates use to
// match the semantics of the remote service. A policy is immutable.
type ComparisonPolicy struct {
	name          string
	caseSensitive bool
	sql92         bool
	own           ComparisonOptions
}

// CaseInsensitiveSQL compares case-insensitively and ignores trailing spaces
// in equality checks. It is the initial process default.
var CaseInsensitiveSQL = mustComparisonPolicy(ComparisonOptions{
	Name:                               "caseInsensitiveSQL",
	IsCaseSensitive:                    Bool(false),
	UsesSQL92CompliantStringComparison: Bool(true),
})

// Bool returns a pointer to v, for populating option structs.
func Bool(v bool) *bool {
	return &v
}

// NewComparisonPolicy validates opts and builds a policy. An empty name is
// replaced with a generated UUID.
func NewComparisonPolicy(opts ComparisonOptions) (*ComparisonPolicy, error) {
	if opts.Name != "" && strings.TrimSpace(opts.Name) == "" {
		return nil, ErrInvalidComparisonName
	}
	if opts.Name == "" {
		opts.Name = uuid.NewString()
	}
	own := layering.Clone(opts)
	p := &ComparisonPolicy{name: own.Name, own: own, sql92: true}
	if own.IsCaseSensitive != nil {
		p.caseSensitive = *own.IsCaseSensitive
	}
	if own.UsesSQL92CompliantStringComparison != nil {
		p.sql92 = *own.UsesSQL92CompliantStringComparison
	}
	return p, nil
}

func mustComparisonPolicy(opts ComparisonOptions) *ComparisonPolicy {
	p, err := NewComparisonPolicy(opts)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *ComparisonPolicy) orDefault() *ComparisonPolicy {
	if p == nil {
		return CaseInsensitiveSQL
	}
	return p
}

// Name returns the policy name.
func (p *ComparisonPolicy) Name() string { return p.orDefault().name }

// IsCaseSensitive reports whether string predicates respect case.
func (p *ComparisonPolicy) IsCaseSensitive() bool { return p.orDefault().caseSensitive }

// UsesSQL92CompliantStringComparison reports whether equality predicates
// ignore trailing spaces when comparing strings of unequal length.
func (p *ComparisonPolicy) UsesSQL92CompliantStringComparison() bool { return p.orDefault().sql92 }

// Options returns the explicitly configured options.
func (p *ComparisonPolicy) Options() ComparisonOptions {
	return layering.Clone(p.orDefault().own)
}

// Resolved returns the options with every field populated.
func (p *ComparisonPolicy) Resolved() ComparisonOptions {
	q := p.orDefault()
	return ComparisonOptions{
		Name:                               q.name,
		IsCaseSensitive:                    Bool(q.caseSensitive),
		UsesSQL92CompliantStringComparison: Bool(q.sql92),
	}
}

func (p *ComparisonPolicy) String() string {
	q := p.orDefault()
	return fmt.Sprintf("%s(caseSensitive=%t, sql92=%t)", q.name, q.caseSensitive, q.sql92)
}

// SetAsDefault installs, as the process default, a copy of the current process
// default overlaid with the options set on p. p itself is returned unchanged
// and never becomes the default instance.
func (p *ComparisonPolicy) SetAsDefault() *ComparisonPolicy {
	return p.SetAsDefaultIn(ProcessComparisonDefaults())
}

// SetAsDefaultIn is SetAsDefault against an explicit defaults slot.
func (p *ComparisonPolicy) SetAsDefaultIn(defaults *ComparisonDefaults) *ComparisonPolicy {
	if p == nil || defaults == nil {
		return p
	}
	defaults.slot.Update(func(current *ComparisonPolicy) *ComparisonPolicy {
		merged := layering.Merge(p.own, current.Resolved())
		next, err := NewComparisonPolicy(merged)
		if err != nil {
			return current
		}
		return next
	})
	return p
}

// Equal compares a and b under the policy.
func (p *ComparisonPolicy) Equal(a, b string) bool {
	q := p.orDefault()
	return q.normalize(a, true) == q.normalize(b, true)
}

// NotEqual is the negation of Equal.
func (p *ComparisonPolicy) NotEqual(a, b string) bool {
	return !p.Equal(a, b)
}

// HasPrefix reports whether s starts with prefix. Padding never applies.
func (p *ComparisonPolicy) HasPrefix(s, prefix string) bool {
	q := p.orDefault()
	return strings.HasPrefix(q.normalize(s, false), q.normalize(prefix, false))
}

// HasSuffix reports whether s ends with suffix. Padding never applies.
func (p *ComparisonPolicy) HasSuffix(s, suffix string) bool {
	q := p.orDefault()
	return strings.HasSuffix(q.normalize(s, false), q.normalize(suffix, false))
}

// Contains reports whether substr is within s. Padding never applies.
func (p *ComparisonPolicy) Contains(s, substr string) bool {
	q := p.orDefault()
	return strings.Contains(q.normalize(s, false), q.normalize(substr, false))
}

// Compare orders a and b, honouring case sensitivity only.
func (p *ComparisonPolicy) Compare(a, b string) int {
	q := p.orDefault()
	return strings.Compare(q.normalize(a, false), q.normalize(b, false))
}

func (p *ComparisonPolicy) normalize(s string, pad bool) string {
	if pad && p.sql92 {
		s = strings.TrimRight(s, " ")
	}
	if !p.caseSensitive {
		s = cases.Fold().String(s)
	}
	return s
}
