package parser

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/eyriegen/internal/ir"
	"github.com/mark3labs/eyriegen/internal/naming"
	"github.com/mark3labs/eyriegen/internal/spec"
)

// successCodes are consulted in order; the first one present decides the
// method's content type.
var successCodes = []string{"200", "201"}

// pathGroup is the compiled form of one path item: every routed operation,
// and the resource they group under.
type pathGroup struct {
	Resource string
	Route    string
	Methods  []ir.Method
}

// compilePath compiles all routed operations of a path item before anything
// is stored, so a failure leaves no partial resource behind.
//
// Grouping uses the first path segment only: "/pets/{id}/photos" lands in
// Pet, not Photo.
func compilePath(doc *spec.Document, path string, item *openapi3.PathItem) (pathGroup, error) {
	ptr := spec.Pointer("paths", path)
	segment := naming.Segment(path)
	if segment == "" {
		return pathGroup{}, &Error{
			Code:    Structural,
			Pointer: ptr,
			Message: fmt.Sprintf("parser: path %q has no resource segment", path),
		}
	}
	group := pathGroup{
		Resource: naming.Resource(segment),
		Route:    "/" + strings.Split(path, "/")[1],
	}

	ops := make(map[string]*openapi3.Operation, len(ir.Verbs))
	for _, verb := range ir.Verbs {
		if op := item.GetOperation(strings.ToUpper(verb)); op != nil {
			ops[verb] = op
		}
	}

	group.Methods = make([]ir.Method, 0, len(ops))
	for _, verb := range spec.Keys(doc, ptr, ops) {
		op := ops[verb]
		if op.OperationID == "" {
			return pathGroup{}, &Error{
				Code:     MissingOperationID,
				Resource: group.Resource,
				Pointer:  spec.Pointer("paths", path, verb),
				Message:  fmt.Sprintf("parser: %s %s has no operationId", strings.ToUpper(verb), path),
			}
		}
		group.Methods = append(group.Methods, compileMethod(doc, path, verb, item.Parameters, op))
	}
	return group, nil
}

func compileMethod(doc *spec.Document, path, verb string, shared openapi3.Parameters, op *openapi3.Operation) ir.Method {
	m := ir.Method{
		Type:        verb,
		Name:        op.OperationID,
		URL:         path,
		ContentType: contentType(doc, spec.Pointer("paths", path, verb, "responses"), op.Responses),
	}
	params := mergeParams(shared, op.Parameters)
	body := requestBody(doc, spec.Pointer("paths", path, verb, "requestBody", "content"), op.RequestBody)
	if len(params) > 0 || len(body) > 0 {
		m.Parameters = &ir.Parameters{Params: params, Body: body}
	}
	return m
}

func contentType(doc *spec.Document, ptr string, responses openapi3.Responses) string {
	for _, code := range successCodes {
		resp, ok := responses[code]
		if !ok {
			continue
		}
		if resp == nil || resp.Value == nil || len(resp.Value.Content) == 0 {
			return ""
		}
		return spec.Keys(doc, ptr+"/"+code+"/content", resp.Value.Content)[0]
	}
	return ""
}

// mergeParams combines path-level and operation-level parameters. An
// operation parameter replaces a path-level one with the same location and
// name in place.
func mergeParams(shared, own openapi3.Parameters) []ir.Parameter {
	var out []ir.Parameter
	index := make(map[string]int)
	add := func(refs openapi3.Parameters) {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			v := ref.Value
			key := v.In + "\x00" + v.Name
			param := ir.Parameter{In: v.In, Name: naming.Member(v.Name), Required: v.Required}
			if i, ok := index[key]; ok {
				out[i] = param
				continue
			}
			index[key] = len(out)
			out = append(out, param)
		}
	}
	add(shared)
	add(own)
	return out
}

// requestBody returns the single body entry derived from the first content
// entry's schema $ref. Inline schemas produce no body.
func requestBody(doc *spec.Document, ptr string, ref *openapi3.RequestBodyRef) []ir.Body {
	if ref == nil || ref.Value == nil || len(ref.Value.Content) == 0 {
		return nil
	}
	content := ref.Value.Content
	media := content[spec.Keys(doc, ptr, content)[0]]
	if media == nil || media.Schema == nil || media.Schema.Ref == "" {
		return nil
	}
	name := naming.RefName(media.Schema.Ref)
	return []ir.Body{{Name: naming.Member(name), Type: naming.Resource(name)}}
}

// bodyImports lists the models referenced by request bodies, first use wins.
func bodyImports(methods []ir.Method) []ir.Import {
	imports := make([]ir.Import, 0, len(methods))
	for _, m := range methods {
		if !m.HasBody() {
			continue
		}
		for _, b := range m.Parameters.Body {
			imports = append(imports, ir.Import{Name: b.Type, Path: naming.ModelImportPath(b.Type)})
		}
	}
	return ir.DedupeImports(imports)
}
