package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"

	"github.com/mark3labs/eyriegen/internal/ir"
	"github.com/mark3labs/eyriegen/internal/naming"
	"github.com/mark3labs/eyriegen/internal/schema"
	"github.com/mark3labs/eyriegen/internal/spec"
	"github.com/mark3labs/eyriegen/internal/store"
)

// unknownType is emitted when a property has no usable type information.
const unknownType = "unknown"

// typeRenames is the only type coercion applied to declared primitives.
var typeRenames = map[string]string{
	"integer": "number",
}

// ModelParser compiles components.schemas into Models.
type ModelParser struct {
	models *store.Store[ir.Model]
	opts   options
}

// NewModelParser returns a parser writing into models.
func NewModelParser(models *store.Store[ir.Model], opts ...Option) *ModelParser {
	return &ModelParser{models: models, opts: newOptions(opts)}
}

// Parse compiles every schema component in declaration order.
func (p *ModelParser) Parse(ctx context.Context, doc *spec.Document) error {
	if doc == nil || doc.T == nil || doc.Components == nil || doc.Components.Schemas == nil {
		return &Error{
			Code:    Structural,
			Pointer: "/components/schemas",
			Message: "parser: document has no components.schemas",
		}
	}

	// model name -> schema key, for this pass only
	sources := make(map[string]string, len(doc.Components.Schemas))

	for _, key := range spec.Keys(doc, "/components/schemas", doc.Components.Schemas) {
		if err := ctx.Err(); err != nil {
			return err
		}
		ptr := spec.Pointer("components", "schemas", key)
		ref := doc.Components.Schemas[key]
		if ref != nil && ref.Ref != "" {
			return &Error{
				Code:     Structural,
				Resource: key,
				Pointer:  ptr,
				Message:  fmt.Sprintf("parser: schema %q is a bare $ref to %s, which is not supported", key, ref.Ref),
			}
		}
		if ref == nil || ref.Value == nil {
			return &Error{
				Code:     Structural,
				Resource: key,
				Pointer:  ptr,
				Message:  fmt.Sprintf("parser: schema %q could not be resolved", key),
			}
		}

		name := naming.Resource(key)
		if prev, seen := sources[name]; seen && prev != key {
			return &Error{
				Code:     Conflict,
				Resource: name,
				Pointer:  ptr,
				Message:  fmt.Sprintf("parser: schemas %q and %q both compile to model %q", prev, key, name),
			}
		}

		model := compileModel(doc, ptr, name, ref.Value)
		if err := p.opts.validator.ValidateModel(model); err != nil {
			return invalid(schema.KindModel, name, ptr, err)
		}
		p.models.Set(model)
		sources[name] = key

		p.opts.logger.Debug("compiled model",
			zap.String("model", name),
			zap.Int("fields", len(model.Fields)),
			zap.Int("imports", len(model.Imports)))
	}
	return nil
}

func compileModel(doc *spec.Document, ptr, name string, s *openapi3.Schema) ir.Model {
	props := spec.Keys(doc, ptr+"/properties", s.Properties)
	fields := make([]ir.Field, 0, len(props))
	for _, prop := range props {
		fields = append(fields, compileField(prop, s.Properties[prop]))
	}
	return ir.Model{
		Name:        name,
		Description: s.Description,
		Fields:      fields,
		Imports:     modelImports(name, fields),
	}
}

func compileField(name string, ref *openapi3.SchemaRef) ir.Field {
	field := ir.Field{Name: name, Type: unknownType}
	if ref == nil {
		return field
	}
	if ref.Ref != "" {
		field.Type = naming.Resource(naming.RefName(ref.Ref))
		field.TopLevel = true
		return field
	}
	s := ref.Value
	if s == nil {
		return field
	}

	field.Description = s.Description
	field.Format = s.Format
	field.Nullable = s.Nullable

	switch {
	case len(s.Enum) > 0:
		field.Type, field.EnumValues = enumUnion(s.Enum)
	case s.Items != nil || s.Type == openapi3.TypeArray:
		field.Type, field.Ref, field.EnumValues = arrayType(s.Items)
	default:
		field.Type = scalarType(s.Type)
	}
	return field
}

// arrayType classifies array items. Ref items yield "Ref[]" plus the ref for
// the import; enum items yield the bare literal union and its raw values.
func arrayType(items *openapi3.SchemaRef) (typ, ref string, enum []string) {
	if items == nil {
		return unknownType + "[]", "", nil
	}
	if items.Ref != "" {
		name := naming.Resource(naming.RefName(items.Ref))
		return name + "[]", name, nil
	}
	s := items.Value
	if s == nil {
		return unknownType + "[]", "", nil
	}
	switch {
	case len(s.Enum) > 0:
		union, values := enumUnion(s.Enum)
		return union, "", values
	case s.Items != nil:
		inner, ref, values := arrayType(s.Items)
		return inner + "[]", ref, values
	default:
		return scalarType(s.Type) + "[]", "", nil
	}
}

func scalarType(t string) string {
	if t == "" {
		return unknownType
	}
	if renamed, ok := typeRenames[t]; ok {
		return renamed
	}
	return t
}

// enumUnion renders enum values as a literal union: strings are quoted,
// other literals are written as-is.
func enumUnion(values []interface{}) (string, []string) {
	literals := make([]string, 0, len(values))
	raw := make([]string, 0, len(values))
	for _, v := range values {
		switch t := v.(type) {
		case string:
			literals = append(literals, strconv.Quote(t))
			raw = append(raw, t)
		case nil:
			literals = append(literals, "null")
			raw = append(raw, "null")
		default:
			s := fmt.Sprint(t)
			literals = append(literals, s)
			raw = append(raw, s)
		}
	}
	return strings.Join(literals, " | "), raw
}

func modelImports(self string, fields []ir.Field) []ir.Import {
	imports := make([]ir.Import, 0, len(fields))
	for _, f := range fields {
		var name string
		switch {
		case f.Ref != "":
			name = f.Ref
		case f.TopLevel:
			name = f.Type
		default:
			continue
		}
		if name == self {
			continue
		}
		imports = append(imports, ir.Import{Name: name, Path: naming.ModelImportPath(name)})
	}
	return ir.DedupeImports(imports)
}
