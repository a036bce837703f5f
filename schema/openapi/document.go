package openapi

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/goliatone/go-tracking"
)

const (
	recordComponent   = "EntityRecord"
	snapshotComponent = "Snapshot"
)

var importableStates = []tracking.EntityState{
	tracking.EntityStateUnchanged,
	tracking.EntityStateAdded,
	tracking.EntityStateModified,
	tracking.EntityStateDeleted,
}

type documentBuilder struct {
	config     generatorConfig
	names      *componentNames
	components map[string]any
	typeRefs   []string
}

func newDocumentBuilder(config generatorConfig) *documentBuilder {
	return &documentBuilder{
		config:     config,
		names:      newComponentNames(recordComponent, snapshotComponent),
		components: map[string]any{},
	}
}

func (b *documentBuilder) build(snapshot tracking.Snapshot) (map[string]any, error) {
	if err := b.registerEntityTypes(snapshot); err != nil {
		return nil, err
	}
	b.components[recordComponent] = b.recordSchema()
	b.components[snapshotComponent] = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entities": map[string]any{
				"type":  "array",
				"items": map[string]any{"$ref": componentRef(recordComponent)},
			},
			"exported_at": map[string]any{
				"type":   "string",
				"format": "date-time",
			},
		},
	}

	document := map[string]any{
		"openapi": b.config.openAPIVersion,
		"info":    b.buildInfo(),
		"paths":   b.buildPaths(),
		"components": map[string]any{
			"schemas": b.components,
		},
	}
	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

// registerEntityTypes publishes one component per entity type, in first-seen
// order. Properties missing from earlier records are added from later ones.
func (b *documentBuilder) registerEntityTypes(snapshot tracking.Snapshot) error {
	byType := map[string]map[string]any{}
	for _, record := range snapshot.Entities {
		schema, err := buildSchema(reflect.ValueOf(record.Values))
		if err != nil {
			return fmt.Errorf("openapi: %s: %w", record.Key(), err)
		}
		properties, _ := schema["properties"].(map[string]any)

		existing, ok := byType[record.Type]
		if !ok {
			name := b.names.unique(record.Type)
			existing = map[string]any{}
			byType[record.Type] = existing
			b.components[name] = map[string]any{
				"type":          "object",
				"x-entity-type": record.Type,
				"properties":    existing,
			}
			b.typeRefs = append(b.typeRefs, componentRef(name))
		}
		for key, value := range properties {
			if _, seen := existing[key]; !seen {
				existing[key] = value
			}
		}
	}
	return nil
}

func (b *documentBuilder) recordSchema() map[string]any {
	states := make([]any, 0, len(importableStates))
	for _, state := range importableStates {
		states = append(states, state.String())
	}

	values := map[string]any{"type": "object"}
	switch len(b.typeRefs) {
	case 0:
	case 1:
		values = map[string]any{"$ref": b.typeRefs[0]}
	default:
		refs := make([]any, 0, len(b.typeRefs))
		for _, ref := range b.typeRefs {
			refs = append(refs, map[string]any{"$ref": ref})
		}
		values = map[string]any{"oneOf": refs}
	}

	return map[string]any{
		"type":     "object",
		"required": []string{"id", "state", "type", "values"},
		"properties": map[string]any{
			"type":     map[string]any{"type": "string"},
			"id":       map[string]any{"type": "string"},
			"state":    map[string]any{"type": "string", "enum": states},
			"values":   values,
			"original": map[string]any{"type": "object"},
		},
	}
}

func (b *documentBuilder) buildInfo() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

func (b *documentBuilder) buildPaths() map[string]any {
	method := strings.ToLower(b.config.operation.Method)
	if method == "" {
		method = "post"
	}

	statuses := make([]string, 0, len(b.config.responses))
	for status := range b.config.responses {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	responses := make(map[string]any, len(statuses))
	for _, status := range statuses {
		responses[status] = map[string]any{
			"description": b.config.responses[status].Description,
		}
	}

	operation := map[string]any{
		"operationId": b.operationID(),
		"requestBody": map[string]any{
			"required": true,
			"content": map[string]any{
				b.config.contentType: map[string]any{
					"schema": map[string]any{"$ref": componentRef(snapshotComponent)},
				},
			},
		},
		"responses": responses,
	}
	if summary := strings.TrimSpace(b.config.operation.Summary); summary != "" {
		operation["summary"] = summary
	}

	return map[string]any{
		b.config.operation.Path: map[string]any{
			method: operation,
		},
	}
}

func (b *documentBuilder) operationID() string {
	if b.config.operation.OperationID != "" {
		return b.config.operation.OperationID
	}
	method := strings.ToLower(b.config.operation.Method)
	if method == "" {
		method = "post"
	}
	return fmt.Sprintf("%s:%s", method, b.config.operation.Path)
}

func validateDocument(document map[string]any) error {
	if document == nil {
		return fmt.Errorf("openapi: document cannot be nil")
	}
	if version, _ := document["openapi"].(string); version == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	info, _ := document["info"].(map[string]any)
	if info == nil {
		return fmt.Errorf("openapi: document missing info section")
	}
	if title, _ := info["title"].(string); title == "" {
		return fmt.Errorf("openapi: info.title must be set")
	}
	if version, _ := info["version"].(string); version == "" {
		return fmt.Errorf("openapi: info.version must be set")
	}
	paths, _ := document["paths"].(map[string]any)
	if len(paths) == 0 {
		return fmt.Errorf("openapi: document must define at least one path")
	}
	for pathKey, pathValue := range paths {
		pathItem, _ := pathValue.(map[string]any)
		if len(pathItem) == 0 {
			return fmt.Errorf("openapi: path %q missing operations", pathKey)
		}
		for method, operationValue := range pathItem {
			operation, _ := operationValue.(map[string]any)
			if operation == nil {
				return fmt.Errorf("openapi: operation %s %s invalid payload", method, pathKey)
			}
			if _, ok := operation["operationId"].(string); !ok {
				return fmt.Errorf("openapi: operation %s %s missing operationId", method, pathKey)
			}
			if _, ok := operation["responses"].(map[string]any); !ok {
				return fmt.Errorf("openapi: operation %s %s missing responses", method, pathKey)
			}
		}
	}
	return nil
}
