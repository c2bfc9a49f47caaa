// Package tsemitter renders IR nodes as TypeScript sources for the
// @eyrie/app framework: model interfaces, service and controller classes and
// the lib/main.ts bootstrap.
package tsemitter

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/mark3labs/eyriegen/internal/engine"
	"github.com/mark3labs/eyriegen/internal/ir"
	"github.com/mark3labs/eyriegen/internal/naming"
	"github.com/mark3labs/eyriegen/internal/sink"
)

//go:embed templates/*.tpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tpl"))

const (
	ModelsDir      = "lib/models"
	ServicesDir    = "lib/services"
	ControllersDir = "lib/controllers"
	BootstrapPath  = "lib/main.ts"

	ext = "ts"
	// APIVersion is the version the bootstrap registers controllers under.
	APIVersion = "v1"
)

// Options controls how the emitter writes files.
type Options struct {
	Sink   sink.Sink   // required
	Force  bool        // overwrite existing service files instead of reconciling them
	Logger *zap.Logger // optional
}

// Emitter implements engine.Emitter for TypeScript.
type Emitter struct {
	sink   sink.Sink
	force  bool
	logger *zap.Logger
}

var _ engine.Emitter = (*Emitter)(nil)

// New returns an emitter writing through opts.Sink.
func New(opts Options) (*Emitter, error) {
	if opts.Sink == nil {
		return nil, errors.New("tsemitter: Sink is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{sink: opts.Sink, force: opts.Force, logger: logger}, nil
}

// ModelPath returns where the model named name is written.
func ModelPath(name string) string {
	return path.Join(ModelsDir, naming.FileName(name, naming.RoleNone, ext))
}

// ServicePath returns where the service for resource is written.
func ServicePath(resource string) string {
	return path.Join(ServicesDir, naming.FileName(resource, naming.RoleService, ext))
}

// ControllerPath returns where the controller for resource is written.
func ControllerPath(resource string) string {
	return path.Join(ControllersDir, naming.FileName(resource, naming.RoleController, ext))
}

// EmitModel writes the model interface, replacing any previous version.
func (e *Emitter) EmitModel(ctx context.Context, m ir.Model) (engine.Result, error) {
	content, err := RenderModel(m)
	if err != nil {
		return engine.Result{}, err
	}
	return e.put(ctx, engine.KindModel, m.Name, ModelPath(m.Name), content)
}

// EmitService writes the service class. An existing file is reconciled
// (missing methods added, stale ones removed) unless Force is set.
func (e *Emitter) EmitService(ctx context.Context, s ir.Service) (engine.Result, error) {
	p := ServicePath(s.Name)
	if e.force {
		content, err := RenderService(s)
		if err != nil {
			return engine.Result{}, err
		}
		return e.put(ctx, engine.KindService, s.Name, p, content)
	}

	existing, err := e.sink.Read(ctx, p)
	if errors.Is(err, fs.ErrNotExist) {
		content, err := RenderService(s)
		if err != nil {
			return engine.Result{}, err
		}
		return e.put(ctx, engine.KindService, s.Name, p, content)
	}
	res := engine.Result{Kind: engine.KindService, Name: s.Name, Path: p}
	if err != nil {
		return res, fmt.Errorf("tsemitter: read %s: %w", p, err)
	}

	merged, err := ReconcileService(string(existing), s)
	if err != nil {
		return res, fmt.Errorf("tsemitter: reconcile %s: %w", p, err)
	}
	if merged == string(existing) {
		res.Outcome = engine.Unchanged
		return res, nil
	}
	e.logger.Debug("reconciled service", zap.String("path", p))
	res.Outcome = engine.Merged
	if err := e.sink.Write(ctx, p, []byte(merged), true); err != nil {
		return res, err
	}
	return res, nil
}

// EmitController writes the controller class, replacing any previous version.
func (e *Emitter) EmitController(ctx context.Context, c ir.Controller) (engine.Result, error) {
	content, err := RenderController(c)
	if err != nil {
		return engine.Result{}, err
	}
	return e.put(ctx, engine.KindController, c.Name, ControllerPath(c.Name), content)
}

// EmitBootstrap writes lib/main.ts registering every controller.
func (e *Emitter) EmitBootstrap(ctx context.Context, controllers []ir.Controller) (engine.Result, error) {
	content, err := RenderBootstrap(controllers)
	if err != nil {
		return engine.Result{}, err
	}
	return e.put(ctx, engine.KindBootstrap, "main", BootstrapPath, content)
}

func (e *Emitter) put(ctx context.Context, kind engine.Kind, name, p string, content []byte) (engine.Result, error) {
	res := engine.Result{Kind: kind, Name: name, Path: p}
	existing, err := e.sink.Read(ctx, p)
	switch {
	case err == nil:
		if bytes.Equal(existing, content) {
			res.Outcome = engine.Unchanged
			return res, nil
		}
		res.Outcome = engine.Overwritten
		return res, e.sink.Write(ctx, p, content, true)
	case errors.Is(err, fs.ErrNotExist):
		res.Outcome = engine.Created
		return res, e.sink.Write(ctx, p, content, false)
	default:
		return res, fmt.Errorf("tsemitter: read %s: %w", p, err)
	}
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("tsemitter: render %s: %w", name, err)
	}
	return buf.String(), nil
}

// finish trims the leading blank lines the templates leave behind and
// guarantees exactly one trailing newline.
func finish(s string) []byte {
	return []byte(strings.TrimRight(strings.TrimLeft(s, "\n"), "\n") + "\n")
}
