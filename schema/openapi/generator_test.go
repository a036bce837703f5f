package openapi

import (
	"sync"
	"testing"

	"github.com/goliatone/go-tracking"
)

func TestNewGeneratorOptions(t *testing.T) {
	custom := NewGenerator(
		WithOpenAPIVersion("3.1.0"),
		WithInfo("Orders", "2.0.0", WithInfoDescription("order cache")),
		WithOperation("/sync", "PUT", "syncOrders", WithOperationSummary("Sync orders")),
		WithContentType("application/vnd.snapshot+json"),
		WithResponse("201", "Created"),
	)

	internal, ok := custom.(generator)
	if !ok {
		t.Fatalf("expected generator implementation, got %T", custom)
	}
	cfg := internal.config
	if cfg.openAPIVersion != "3.1.0" || cfg.info.Title != "Orders" || cfg.info.Version != "2.0.0" || cfg.info.Description != "order cache" {
		t.Fatalf("unexpected info config %+v", cfg)
	}
	if cfg.operation.Path != "/sync" || cfg.operation.Method != "put" || cfg.operation.OperationID != "syncOrders" || cfg.operation.Summary != "Sync orders" {
		t.Fatalf("unexpected operation config %+v", cfg.operation)
	}
	if cfg.contentType != "application/vnd.snapshot+json" {
		t.Fatalf("expected custom content type, got %q", cfg.contentType)
	}
	if cfg.responses["201"].Description != "Created" {
		t.Fatalf("expected 201 response, got %+v", cfg.responses)
	}
	if _, exists := cfg.responses["204"]; !exists {
		t.Fatalf("expected default 204 response to remain configured")
	}
}

func TestGeneratorDescribesEntityTypes(t *testing.T) {
	snapshot := tracking.Snapshot{Entities: []tracking.EntityRecord{
		{Type: "Order", ID: "1", State: "Unchanged", Values: map[string]any{"id": "1", "total": 12.5}},
		{Type: "Order", ID: "2", State: "Added", Values: map[string]any{"id": "2", "tags": []string{"rush"}}},
		{Type: "order-line", ID: "1/1", State: "Modified", Values: map[string]any{"qty": 2}},
		{Type: "Snapshot", ID: "s", State: "Unchanged", Values: map[string]any{"taken": true}},
	}}

	doc, err := NewGenerator().Generate(snapshot)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if doc.Format != tracking.SchemaFormatOpenAPI {
		t.Fatalf("expected format %q, got %q", tracking.SchemaFormatOpenAPI, doc.Format)
	}
	document := doc.Document.(map[string]any)
	schemas := document["components"].(map[string]any)["schemas"].(map[string]any)

	for _, name := range []string{"Order", "order_line", "Snapshot1", "EntityRecord", "Snapshot"} {
		if _, ok := schemas[name]; !ok {
			t.Fatalf("expected component %q, got %v", name, schemas)
		}
	}

	order := schemas["Order"].(map[string]any)
	if order["x-entity-type"] != "Order" {
		t.Fatalf("expected entity type extension, got %v", order["x-entity-type"])
	}
	properties := order["properties"].(map[string]any)
	if len(properties) != 3 {
		t.Fatalf("expected properties merged across records, got %v", properties)
	}
	if total := properties["total"].(map[string]any); total["type"] != "number" {
		t.Fatalf("expected numeric total, got %v", total)
	}
	if tags := properties["tags"].(map[string]any); tags["type"] != "array" {
		t.Fatalf("expected array tags, got %v", tags)
	}

	record := schemas["EntityRecord"].(map[string]any)
	values := record["properties"].(map[string]any)["values"].(map[string]any)
	if refs, _ := values["oneOf"].([]any); len(refs) != 3 {
		t.Fatalf("expected a reference per entity type, got %v", values)
	}

	post := document["paths"].(map[string]any)["/entities"].(map[string]any)["post"].(map[string]any)
	if post["operationId"] != "post:/entities" {
		t.Fatalf("unexpected operation %v", post)
	}
}

func TestGeneratorEmptySnapshot(t *testing.T) {
	doc, err := NewGenerator().Generate(tracking.Snapshot{})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	document := doc.Document.(map[string]any)
	if err := validateDocument(document); err != nil {
		t.Fatalf("empty snapshot produced invalid document: %v", err)
	}
	schemas := document["components"].(map[string]any)["schemas"].(map[string]any)
	if len(schemas) != 2 {
		t.Fatalf("expected only the envelope components, got %v", schemas)
	}
}

func TestSanitizeComponentName(t *testing.T) {
	cases := map[string]string{
		"Order":       "Order",
		"order-line":  "order_line",
		"__Invoice__": "Invoice",
		"1099":        "_1099",
		"!!":          "",
	}
	for input, want := range cases {
		if got := sanitizeComponentName(input); got != want {
			t.Fatalf("sanitize %q: expected %q, got %q", input, want, got)
		}
	}
}

func TestGeneratorConcurrentAccess(t *testing.T) {
	t.Parallel()

	generator := NewGenerator()
	snapshot := tracking.Snapshot{Entities: []tracking.EntityRecord{
		{Type: "Order", ID: "1", State: "Unchanged", Values: map[string]any{"id": "1"}},
	}}

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			doc, err := generator.Generate(snapshot)
			if err != nil {
				t.Errorf("Generate returned error: %v", err)
				return
			}
			if doc.Document == nil {
				t.Errorf("expected document payload")
			}
		}()
	}
	wg.Wait()
}
