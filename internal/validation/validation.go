// Package validation checks request payloads against embedded JSON schemas.
package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/shineinfo/crm-backend/internal/domain"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Kind selects a payload schema.
type Kind int

const (
	EmployeeCreate Kind = iota
	EmployeeUpdate
	LeadCreate
	LeadUpdate
	Subscription
)

var (
	once    sync.Once
	schemas map[Kind]*gojsonschema.Schema
	loadErr error
)

// Validate checks doc against the schema for kind. A rejected payload
// yields a *domain.ValidationError listing each violation.
func Validate(kind Kind, doc []byte) error {
	once.Do(load)
	if loadErr != nil {
		return loadErr
	}
	schema, ok := schemas[kind]
	if !ok {
		return fmt.Errorf("no schema for kind %d", kind)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return domain.Invalid("Validation error: %v", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		msgs[i] = desc.Field() + ": " + desc.Description()
	}
	return domain.Invalid("Validation error: %s", strings.Join(msgs, ", "))
}

func load() {
	employee, err := readSchema("employee.json")
	if err != nil {
		loadErr = err
		return
	}
	lead, err := readSchema("lead.json")
	if err != nil {
		loadErr = err
		return
	}
	sub, err := readSchema("subscription.json")
	if err != nil {
		loadErr = err
		return
	}

	sources := map[Kind]map[string]any{
		EmployeeCreate: withRequired(employee, "name", "password", "contact1", "email"),
		EmployeeUpdate: employee,
		LeadCreate:     withRequired(lead, "name"),
		LeadUpdate:     lead,
		Subscription:   sub,
	}

	schemas = make(map[Kind]*gojsonschema.Schema, len(sources))
	for kind, src := range sources {
		s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(src))
		if err != nil {
			loadErr = fmt.Errorf("compile schema %d: %w", kind, err)
			return
		}
		schemas[kind] = s
	}
}

func readSchema(name string) (map[string]any, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}
	return m, nil
}

// withRequired returns a shallow copy of schema with a required list.
func withRequired(schema map[string]any, fields ...string) map[string]any {
	out := make(map[string]any, len(schema)+1)
	for k, v := range schema {
		out[k] = v
	}
	req := make([]any, len(fields))
	for i, f := range fields {
		req[i] = f
	}
	out["required"] = req
	return out
}
