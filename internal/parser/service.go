package parser

import (
	"context"

	"go.uber.org/zap"

	"github.com/mark3labs/eyriegen/internal/ir"
	"github.com/mark3labs/eyriegen/internal/schema"
	"github.com/mark3labs/eyriegen/internal/spec"
	"github.com/mark3labs/eyriegen/internal/store"
)

// ServiceParser groups operations into one Service per resource.
type ServiceParser struct {
	services *store.Store[ir.Service]
	opts     options
}

// NewServiceParser returns a parser writing into services.
func NewServiceParser(services *store.Store[ir.Service], opts ...Option) *ServiceParser {
	return &ServiceParser{services: services, opts: newOptions(opts)}
}

// Parse compiles every path item in declaration order. Paths that reduce to
// an already stored resource are merged into it.
func (p *ServiceParser) Parse(ctx context.Context, doc *spec.Document) error {
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
		if len(group.Methods) == 0 && !p.services.Has(group.Resource) {
			continue
		}

		svc := p.merge(group)
		if err := p.opts.validator.ValidateService(svc); err != nil {
			return invalid(schema.KindService, svc.Name, spec.Pointer("paths", path), err)
		}
		p.services.Set(svc)

		p.opts.logger.Debug("compiled service",
			zap.String("service", svc.Name),
			zap.String("path", path),
			zap.Strings("methods", ir.MethodNames(svc.Methods)))
	}
	return nil
}

// merge folds a path group into the stored service of the same resource, or
// starts a new one. Imports are recomputed from the merged method set.
func (p *ServiceParser) merge(group pathGroup) ir.Service {
	svc, ok := p.services.Get(group.Resource)
	if !ok {
		svc = ir.Service{Name: group.Resource, Methods: []ir.Method{}}
	}
	svc.Methods = ir.MergeMethods(svc.Methods, group.Methods)
	svc.Imports = bodyImports(svc.Methods)
	return svc
}
