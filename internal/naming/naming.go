// Package naming centralizes how resource names become class identifiers,
// file names and member names, so parsers and emitters always agree.
package naming

import (
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"
)

// Role is the optional suffix attached to a resource name.
type Role string

const (
	RoleNone       Role = ""
	RoleService    Role = "Service"
	RoleController Role = "Controller"
)

// ClassName returns "{name}{role}".
func ClassName(name string, role Role) string {
	return name + string(role)
}

// FileName returns "{name}{role}.{ext}". The base token always equals
// ClassName(name, role).
func FileName(name string, role Role, ext string) string {
	base := ClassName(name, role)
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// Resource singularizes then PascalCases a raw name: "pets" -> "Pet".
func Resource(raw string) string {
	return strcase.ToCamel(inflection.Singular(clean(raw)))
}

// Member singularizes then camelCases a raw name: "pet_ids" -> "petId".
func Member(raw string) string {
	return strcase.ToLowerCamel(inflection.Singular(clean(raw)))
}

// Field camelCases without singularizing; used for injected members such as
// "petService".
func Field(raw string) string {
	return strcase.ToLowerCamel(clean(raw))
}

// RefName returns the last segment of a JSON reference:
// "#/components/schemas/Pet" -> "Pet".
func RefName(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// Segment returns the first segment of a path template, without template
// braces: "/pets/{id}/photos" -> "pets".
func Segment(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return ""
	}
	return strings.Trim(parts[1], "{}")
}

// ModelImportPath is the alias path under which a model is imported.
func ModelImportPath(model string) string {
	return "@/models/" + ClassName(model, RoleNone)
}

// ServiceImportPath is the alias path under which a service is imported.
func ServiceImportPath(resource string) string {
	return "@/services/" + ClassName(resource, RoleService)
}

func clean(raw string) string {
	return strings.TrimSpace(raw)
}
