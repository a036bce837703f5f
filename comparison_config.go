package tracking

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-tracking/layering"
)

var (
	// ErrComparisonCatalog indicates an invalid comparison catalog document.
	ErrComparisonCatalog = errors.New("tracking: invalid comparison catalog")
	// ErrUnknownComparisonPolicy indicates a lookup of an unregistered policy name.
	ErrUnknownComparisonPolicy = errors.New("tracking: unknown comparison policy")
)

// comparisonCatalogDocument is the YAML layout:
//
//	default: ordinal
//	base:
//	  uses_sql92_compliant_string_comparison: true
//	policies:
//	  - name: ordinal
//	    is_case_sensitive: true
type comparisonCatalogDocument struct {
	Default  string              `yaml:"default"`
	Base     ComparisonOptions   `yaml:"base"`
	Policies []ComparisonOptions `yaml:"policies"`
}

// ComparisonCatalog is a named set of comparison policies loaded from
// configuration.
type ComparisonCatalog struct {
	policies    map[string]*ComparisonPolicy
	names       []string
	defaultName string
}

// ParseComparisonCatalog parses a YAML catalog.
func ParseComparisonCatalog(data []byte) (*ComparisonCatalog, error) {
	return LoadComparisonCatalog(bytes.NewReader(data))
}

// LoadComparisonCatalog decodes a YAML catalog from r. Unknown keys, unnamed
// or duplicate policies and a default naming no policy are rejected. Every
// policy inherits the fields of base it does not set itself.
func LoadComparisonCatalog(r io.Reader) (*ComparisonCatalog, error) {
	var doc comparisonCatalogDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrComparisonCatalog, err)
	}

	catalog := &ComparisonCatalog{policies: map[string]*ComparisonPolicy{}}
	for i, entry := range doc.Policies {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: policy %d has no name", ErrComparisonCatalog, i)
		}
		if _, dup := catalog.policies[name]; dup {
			return nil, fmt.Errorf("%w: duplicate policy %q", ErrComparisonCatalog, name)
		}
		entry.Name = name
		policy, err := NewComparisonPolicy(layering.Merge(entry, doc.Base))
		if err != nil {
			return nil, fmt.Errorf("%w: policy %q: %w", ErrComparisonCatalog, name, err)
		}
		catalog.policies[name] = policy
		catalog.names = append(catalog.names, name)
	}

	if doc.Default != "" {
		if _, ok := catalog.policies[doc.Default]; !ok {
			return nil, fmt.Errorf("%w: default %q is not defined", ErrComparisonCatalog, doc.Default)
		}
		catalog.defaultName = doc.Default
	}
	return catalog, nil
}

// Lookup returns the policy registered under name.
func (c *ComparisonCatalog) Lookup(name string) (*ComparisonPolicy, bool) {
	if c == nil {
		return nil, false
	}
	p, ok := c.policies[name]
	return p, ok
}

// Require is Lookup returning ErrUnknownComparisonPolicy for missing names.
func (c *ComparisonCatalog) Require(name string) (*ComparisonPolicy, error) {
	if p, ok := c.Lookup(name); ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownComparisonPolicy, name)
}

// Names returns policy names in document order.
func (c *ComparisonCatalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}

// Default returns the policy named by the catalog's default key.
func (c *ComparisonCatalog) Default() (*ComparisonPolicy, bool) {
	if c == nil || c.defaultName == "" {
		return nil, false
	}
	return c.Lookup(c.defaultName)
}

// Apply overlays the catalog default onto defaults with SetAsDefaultIn. A
// catalog without a default leaves defaults untouched.
func (c *ComparisonCatalog) Apply(defaults *ComparisonDefaults) {
	if p, ok := c.Default(); ok {
		p.SetAsDefaultIn(defaults)
	}
}
