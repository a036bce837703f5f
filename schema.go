package tracking

import (
	"fmt"
	"sort"
	"strings"
)

// SchemaFormat identifies the representation a schema document encodes.
type SchemaFormat string

const (
	// SchemaFormatDescriptors is the flattened per-type field listing.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatOpenAPI is an OpenAPI document.
	SchemaFormatOpenAPI SchemaFormat = "openapi"
)

// SchemaDocument is a generated description of the cached entity types.
type SchemaDocument struct {
	Format   SchemaFormat
	Document any
}

// SchemaGenerator describes the entity types present in a snapshot.
type SchemaGenerator interface {
	Generate(Snapshot) (SchemaDocument, error)
}

// FieldDescriptor describes a property path and its inferred Go type.
type FieldDescriptor struct {
	Path string
	Type string
}

// EntityTypeDescriptor lists the fields observed for one entity type.
type EntityTypeDescriptor struct {
	Type   string
	Count  int
	Fields []FieldDescriptor
}

// WithSchemaGenerator replaces the descriptor generator used by Schema.
func WithSchemaGenerator(generator SchemaGenerator) ManagerOption {
	return func(cfg *managerConfig) {
		cfg.schema = generator
	}
}

// Schema exports the cache and describes its entity types.
func (m *EntityManager) Schema() (SchemaDocument, error) {
	snapshot, err := m.Export()
	if err != nil {
		return SchemaDocument{}, err
	}
	generator := m.cfg.schema
	if generator == nil {
		generator = DefaultSchemaGenerator()
	}
	return generator.Generate(snapshot)
}

// DefaultSchemaGenerator returns the descriptor-based schema generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(snapshot Snapshot) (SchemaDocument, error) {
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: DescribeSnapshot(snapshot),
	}, nil
}

// DescribeSnapshot groups records by type, in first-seen order. A path keeps
// the type of the first record that carried it.
func DescribeSnapshot(snapshot Snapshot) []EntityTypeDescriptor {
	var out []EntityTypeDescriptor
	index := map[string]int{}
	seen := map[string]map[string]struct{}{}
	for _, record := range snapshot.Entities {
		i, ok := index[record.Type]
		if !ok {
			i = len(out)
			index[record.Type] = i
			out = append(out, EntityTypeDescriptor{Type: record.Type, Fields: []FieldDescriptor{}})
			seen[record.Type] = map[string]struct{}{}
		}
		out[i].Count++
		for _, field := range deriveFieldDescriptors(record.Values, "") {
			if _, dup := seen[record.Type][field.Path]; dup {
				continue
			}
			seen[record.Type][field.Path] = struct{}{}
			out[i].Fields = append(out[i].Fields, field)
		}
	}
	for i := range out {
		sort.Slice(out[i].Fields, func(a, b int) bool {
			return out[i].Fields[a].Path < out[i].Fields[b].Path
		})
	}
	return out
}

func deriveFieldDescriptors(value any, prefix string) []FieldDescriptor {
	if value == nil {
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{Path: prefix, Type: "nil"}}
	}

	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix == "" {
				return nil
			}
			return []FieldDescriptor{{
				Path: prefix,
				Type: "map[string]any",
			}}
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var fields []FieldDescriptor
		for _, key := range keys {
			fields = append(fields, deriveFieldDescriptors(typed[key], joinPath(prefix, key))...)
		}
		return fields
	case []any:
		elementType := "any"
		if len(typed) > 0 {
			elementType = fmt.Sprintf("%T", typed[0])
		}
		return []FieldDescriptor{{
			Path: prefix,
			Type: "[]" + elementType,
		}}
	default:
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{
			Path: prefix,
			Type: fmt.Sprintf("%T", typed),
		}}
	}
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return strings.Join([]string{prefix, segment}, ".")
}
