package parser

import (
	"context"

	"go.uber.org/zap"

	"github.com/mark3labs/eyriegen/internal/ir"
	"github.com/mark3labs/eyriegen/internal/naming"
	"github.com/mark3labs/eyriegen/internal/schema"
	"github.com/mark3labs/eyriegen/internal/spec"
	"github.com/mark3labs/eyriegen/internal/store"
)

// ControllerParser groups operations like ServiceParser and additionally
// wires each controller to its matching service.
type ControllerParser struct {
	controllers *store.Store[ir.Controller]
	opts        options
}

// NewControllerParser returns a parser writing into controllers.
func NewControllerParser(controllers *store.Store[ir.Controller], opts ...Option) *ControllerParser {
	return &ControllerParser{controllers: controllers, opts: newOptions(opts)}
}

func (p *ControllerParser) Parse(ctx context.Context, doc *spec.Document) error {
	if doc == nil || doc.T == nil {
		return &Error{Code: Structural, Message: "parser: document is nil"}
	}
	for _, path := range spec.Keys(doc, "/paths", doc.Paths) {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := doc.Paths[path]
		if item == nil {
			continue
		}
		group, err := compilePath(doc, path, item)
		if err != nil {
			return err
		}
		if len(group.Methods) == 0 && !p.controllers.Has(group.Resource) {
			continue
		}

		ctrl := p.merge(group)
		if err := p.opts.validator.ValidateController(ctrl); err != nil {
			return invalid(schema.KindController, ctrl.Name, spec.Pointer("paths", path), err)
		}
		p.controllers.Set(ctrl)

		p.opts.logger.Debug("compiled controller",
			zap.String("controller", ctrl.Name),
			zap.String("route", ctrl.Route),
			zap.Strings("methods", ir.MethodNames(ctrl.Methods)))
	}
	return nil
}

// merge keeps the route of the first path that created the controller.
func (p *ControllerParser) merge(group pathGroup) ir.Controller {
	ctrl, ok := p.controllers.Get(group.Resource)
	if !ok {
		ctrl = ir.Controller{Name: group.Resource, Route: group.Route, Methods: []ir.Method{}}
	}
	ctrl.Methods = ir.MergeMethods(ctrl.Methods, group.Methods)
	ctrl.Imports = controllerImports(ctrl.Name, ctrl.Methods)
	return ctrl
}

// controllerImports puts the matching service first, then body models.
func controllerImports(resource string, methods []ir.Method) []ir.Import {
	service := ir.Import{
		Name: naming.ClassName(resource, naming.RoleService),
		Path: naming.ServiceImportPath(resource),
	}
	return ir.DedupeImports(append([]ir.Import{service}, bodyImports(methods)...))
}
