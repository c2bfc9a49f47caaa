package tsemitter

import (
	"strconv"
	"strings"

	"github.com/mark3labs/eyriegen/internal/ir"
	"github.com/mark3labs/eyriegen/internal/naming"
)

type importView struct {
	Name     string
	Path     string
	TypeOnly bool
}

type fieldView struct {
	Key      string
	Type     string
	Optional bool
	Doc      string
}

type modelView struct {
	Name        string
	Description string
	Imports     []importView
	Fields      []fieldView
}

type methodView struct {
	Name     string
	Params   string
	Resource string
	// controller only
	Verb   string
	Path   string
	Member string
	Args   string
}

type classView struct {
	Class        string
	Description  string
	Imports      []importView
	Methods      []string
	Dependencies string
	// controller only
	Route        string
	Member       string
	ServiceClass string
	AppImports   string
}

type bootstrapEntry struct {
	Class string
	Path  string
}

type bootstrapView struct {
	Version     string
	Controllers []bootstrapEntry
	List        string
}

// RenderModel renders a model as an exported interface. Nullable fields are
// optional properties.
func RenderModel(m ir.Model) ([]byte, error) {
	view := modelView{
		Name:        naming.ClassName(m.Name, naming.RoleNone),
		Description: docText(m.Description),
		Imports:     typeImports(m.Imports),
	}
	for _, f := range m.Fields {
		doc := docText(f.Description)
		if doc == "" && f.Format != "" {
			doc = "@format " + f.Format
		}
		view.Fields = append(view.Fields, fieldView{
			Key:      propertyKey(f.Name),
			Type:     f.Type,
			Optional: f.Nullable,
			Doc:      doc,
		})
	}
	out, err := execute("model.ts.tpl", view)
	if err != nil {
		return nil, err
	}
	return finish(out), nil
}

// RenderService renders a fresh service class with one stub per method.
func RenderService(s ir.Service) ([]byte, error) {
	view := classView{
		Class:        naming.ClassName(s.Name, naming.RoleService),
		Description:  docText(s.Description),
		Imports:      typeImports(s.Imports),
		Dependencies: serviceDependencies(s.Imports),
	}
	for _, m := range s.Methods {
		block, err := serviceMethod(s.Name, m)
		if err != nil {
			return nil, err
		}
		view.Methods = append(view.Methods, block)
	}
	out, err := execute("service.ts.tpl", view)
	if err != nil {
		return nil, err
	}
	return finish(out), nil
}

func serviceMethod(resource string, m ir.Method) (string, error) {
	params := "context: unknown, params: unknown"
	if m.HasBody() {
		params += ", body: " + m.BodyType()
	}
	return execute("service_method.ts.tpl", methodView{Name: m.Name, Params: params, Resource: resource})
}

// RenderController renders a controller class whose routed methods delegate
// to the injected service.
func RenderController(c ir.Controller) ([]byte, error) {
	serviceClass := naming.ClassName(c.Name, naming.RoleService)
	member := naming.Field(serviceClass)

	imports := make([]importView, 0, len(c.Imports))
	for _, imp := range c.Imports {
		imports = append(imports, importView{
			Name:     imp.Name,
			Path:     imp.Path + "." + ext,
			TypeOnly: !strings.HasSuffix(imp.Name, string(naming.RoleService)),
		})
	}

	view := classView{
		Class:        naming.ClassName(c.Name, naming.RoleController),
		Description:  docText(c.Description),
		Imports:      imports,
		Dependencies: serviceDependencies(c.Imports),
		Route:        c.Route,
		Member:       member,
		ServiceClass: serviceClass,
		AppImports:   appImports(c.Methods),
	}
	for _, m := range c.Methods {
		params := "context: Context, params: unknown"
		args := "context, params"
		if m.HasBody() {
			params += ", body: " + m.BodyType()
			args += ", body"
		}
		block, err := execute("controller_method.ts.tpl", methodView{
			Name:   m.Name,
			Params: params,
			Verb:   m.Type,
			Path:   m.RouteSuffix(),
			Member: member,
			Args:   args,
		})
		if err != nil {
			return nil, err
		}
		view.Methods = append(view.Methods, block)
	}
	out, err := execute("controller.ts.tpl", view)
	if err != nil {
		return nil, err
	}
	return finish(out), nil
}

// RenderBootstrap renders lib/main.ts.
func RenderBootstrap(controllers []ir.Controller) ([]byte, error) {
	view := bootstrapView{Version: APIVersion}
	names := make([]string, 0, len(controllers))
	for _, c := range controllers {
		class := naming.ClassName(c.Name, naming.RoleController)
		view.Controllers = append(view.Controllers, bootstrapEntry{
			Class: class,
			Path:  "./controllers/" + naming.FileName(c.Name, naming.RoleController, ext),
		})
		names = append(names, class)
	}
	view.List = strings.Join(names, ", ")
	out, err := execute("main.ts.tpl", view)
	if err != nil {
		return nil, err
	}
	return finish(out), nil
}

func typeImports(imports []ir.Import) []importView {
	out := make([]importView, 0, len(imports))
	for _, imp := range imports {
		out = append(out, importView{Name: imp.Name, Path: imp.Path + "." + ext, TypeOnly: true})
	}
	return out
}

// serviceDependencies lists the injectable services among imports, in the
// shape register() returns them.
func serviceDependencies(imports []ir.Import) string {
	var deps []string
	for _, imp := range imports {
		if strings.HasSuffix(imp.Name, string(naming.RoleService)) {
			deps = append(deps, "{ class: "+imp.Name+" }")
		}
	}
	return strings.Join(deps, ", ")
}

// appImports names what a controller takes from @eyrie/app: the class
// decorator, one decorator per verb in first-use order, then the types.
func appImports(methods []ir.Method) string {
	names := []string{"Controller"}
	seen := map[string]bool{}
	for _, m := range methods {
		if !seen[m.Type] {
			seen[m.Type] = true
			names = append(names, m.Type)
		}
	}
	return strings.Join(append(names, "type Context", "type InjectableRegistration"), ", ")
}

// propertyKey quotes property names that are not plain identifiers.
func propertyKey(name string) string {
	if isIdentifier(name) {
		return name
	}
	return strconv.Quote(name)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		letter := c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_' || c == '$'
		digit := c >= '0' && c <= '9'
		if !letter && (i == 0 || !digit) {
			return false
		}
	}
	return true
}

// docText flattens a description into a single JSDoc-safe line.
func docText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "*/", "*\\/")
}
