// Package ir holds the intermediate representation produced by the parsers
// and consumed by the emitters: models, services and controllers.
package ir

import "strings"

// HTTP verbs the generator routes. Anything else in a path item is ignored.
const (
	GET    = "get"
	POST   = "post"
	PUT    = "put"
	DELETE = "delete"
	PATCH  = "patch"
)

// Verbs lists the supported verbs in their canonical order.
var Verbs = []string{GET, POST, PUT, DELETE, PATCH}

// Resource is anything that can live in a store.
type Resource interface {
	ResourceName() string
}

// Import is a named dependency of a generated file.
type Import struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Model represents one schema component.
type Model struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Fields      []Field  `json:"fields"`
	Imports     []Import `json:"imports"`
}

func (m Model) ResourceName() string { return m.Name }

// Field is one property of a Model, kept in declaration order.
type Field struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Nullable    bool     `json:"nullable"`
	Description string   `json:"description,omitempty"`
	Format      string   `json:"format,omitempty"`
	Ref         string   `json:"ref,omitempty"`
	TopLevel    bool     `json:"topLevel,omitempty"`
	EnumValues  []string `json:"enumValues,omitempty"`
}

// Service groups the operations of one resource.
type Service struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Methods     []Method `json:"methods"`
	Imports     []Import `json:"imports"`
}

func (s Service) ResourceName() string { return s.Name }

// Controller mirrors Service; its imports always carry the matching service.
type Controller struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Route       string   `json:"route"`
	Methods     []Method `json:"methods"`
	Imports     []Import `json:"imports"`
}

func (c Controller) ResourceName() string { return c.Name }

// Method is one routed operation.
type Method struct {
	Type        string      `json:"type"`
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	ContentType string      `json:"contentType,omitempty"`
	Parameters  *Parameters `json:"parameters,omitempty"`
}

// Parameters carries the path/query params and at most one body entry.
type Parameters struct {
	Params []Parameter `json:"params,omitempty"`
	Body   []Body      `json:"body,omitempty"`
}

// Parameter is a path or query parameter with its schema stripped.
type Parameter struct {
	In       string `json:"in"`
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// Body is the typed request body of a method.
type Body struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// HasBody reports whether the method takes a typed request body.
func (m Method) HasBody() bool {
	return m.Parameters != nil && len(m.Parameters.Body) > 0
}

// BodyType returns the type of the first body entry, or "".
func (m Method) BodyType() string {
	if !m.HasBody() {
		return ""
	}
	return m.Parameters.Body[0].Type
}

// RouteSuffix returns the part of the method URL after its first segment,
// which is the controller's route, or "/" when nothing remains.
func (m Method) RouteSuffix() string {
	parts := strings.SplitN(m.URL, "/", 3)
	if len(parts) < 3 || parts[2] == "" {
		return "/"
	}
	return "/" + parts[2]
}

// MethodNames returns the names of methods in order.
func MethodNames(methods []Method) []string {
	names := make([]string, 0, len(methods))
	for _, m := range methods {
		names = append(names, m.Name)
	}
	return names
}

// MergeMethods appends incoming methods to existing ones. A method whose name
// is already present replaces the existing entry in place, so merging the
// same operations twice neither drops nor duplicates them.
func MergeMethods(existing, incoming []Method) []Method {
	out := make([]Method, len(existing), len(existing)+len(incoming))
	copy(out, existing)
	index := make(map[string]int, len(out))
	for i, m := range out {
		index[m.Name] = i
	}
	for _, m := range incoming {
		if i, ok := index[m.Name]; ok {
			out[i] = m
			continue
		}
		index[m.Name] = len(out)
		out = append(out, m)
	}
	return out
}

// DedupeImports drops later imports that share a name with an earlier one.
func DedupeImports(imports []Import) []Import {
	seen := make(map[string]struct{}, len(imports))
	out := make([]Import, 0, len(imports))
	for _, imp := range imports {
		if _, ok := seen[imp.Name]; ok {
			continue
		}
		seen[imp.Name] = struct{}{}
		out = append(out, imp)
	}
	return out
}
