// Package schema checks assembled IR nodes against the structural JSON
// Schemas that form the contract between parsers and stores.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mark3labs/eyriegen/internal/ir"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const baseURL = "memory://eyriegen/"

// Kind names the resource kind a schema validates.
type Kind string

const (
	KindModel      Kind = "model"
	KindService    Kind = "service"
	KindController Kind = "controller"
)

// Issue is one flattened validation failure.
type Issue struct {
	Location string // JSON pointer into the IR node, e.g. "/methods/0/name"
	Message  string
}

func (i Issue) String() string {
	loc := i.Location
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + i.Message
}

// Error reports an IR node that failed its structural schema.
type Error struct {
	Kind   Kind
	Name   string
	Issues []Issue
	Cause  error
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.String())
	}
	return fmt.Sprintf("%s %q failed schema validation: %s", e.Kind, e.Name, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error { return e.Cause }

// Validator holds the compiled schemas. It is safe for concurrent use.
type Validator struct {
	schemas map[Kind]*jsonschema.Schema
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}
	for _, entry := range entries {
		data, err := schemaFS.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		if err := compiler.AddResource(baseURL+entry.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("register schema %s: %w", entry.Name(), err)
		}
	}

	v := &Validator{schemas: make(map[Kind]*jsonschema.Schema, 3)}
	for _, kind := range []Kind{KindModel, KindService, KindController} {
		compiled, err := compiler.Compile(baseURL + string(kind) + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", kind, err)
		}
		v.schemas[kind] = compiled
	}
	return v, nil
}

// MustNew is New for package-level defaults; the schemas are embedded, so
// a failure here is a build defect.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateModel validates a Model.
func (v *Validator) ValidateModel(m ir.Model) error {
	return v.validate(KindModel, m.Name, m)
}

// ValidateService validates a Service.
func (v *Validator) ValidateService(s ir.Service) error {
	return v.validate(KindService, s.Name, s)
}

// ValidateController validates a Controller.
func (v *Validator) ValidateController(c ir.Controller) error {
	return v.validate(KindController, c.Name, c)
}

func (v *Validator) validate(kind Kind, name string, resource any) error {
	compiled, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("schema: no schema for kind %q", kind)
	}

	raw, err := json.Marshal(resource)
	if err != nil {
		return fmt.Errorf("encode %s %q: %w", kind, name, err)
	}
	var document any
	if err := json.Unmarshal(raw, &document); err != nil {
		return fmt.Errorf("decode %s %q: %w", kind, name, err)
	}

	if err := compiled.Validate(document); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return fmt.Errorf("validate %s %q: %w", kind, name, err)
		}
		return &Error{Kind: kind, Name: name, Issues: flatten(ve), Cause: ve}
	}
	return nil
}

// flatten collects the leaves of the cause tree; they carry the specific
// messages, the inner nodes only say "doesn't validate with ...".
func flatten(ve *jsonschema.ValidationError) []Issue {
	var out []Issue
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, Issue{Location: e.InstanceLocation, Message: e.Message})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}
