// Package parser compiles a loaded OpenAPI document into the IR stores.
//
// Three parsers share one capability: ModelParser walks components.schemas,
// ServiceParser and ControllerParser walk the path map and group operations
// by the resource derived from the first path segment. Parsing is
// sequential; nothing is stored for a resource until it has been fully
// assembled and has passed its structural schema.
package parser

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mark3labs/eyriegen/internal/schema"
	"github.com/mark3labs/eyriegen/internal/spec"
	"github.com/mark3labs/eyriegen/internal/store"
)

// Parser compiles one resource kind from a document into its store.
type Parser interface {
	Parse(ctx context.Context, doc *spec.Document) error
}

// Code classifies parse failures.
type Code string

const (
	// Structural: the document cannot be compiled at all (no
	// components.schemas, a bare root $ref, a path without a resource
	// segment).
	Structural Code = "Structural"
	// MissingOperationID: a routed operation has no operationId.
	MissingOperationID Code = "MissingOperationID"
	// Invalid: an assembled IR node failed its structural schema. Cause is
	// the *schema.Error.
	Invalid Code = "Invalid"
	// Conflict: two distinct schema keys normalize to one model name.
	Conflict Code = "Conflict"
)

// Error is a fatal parse failure. Pointer locates the offending node in the
// source document ("/components/schemas/Pet", "/paths/~1pets/get").
type Error struct {
	Code     Code
	Resource string
	Pointer  string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Option configures a parser.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	validator *schema.Validator
}

// WithLogger sets the logger used for per-resource debug lines.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithValidator shares one compiled validator between parsers.
func WithValidator(v *schema.Validator) Option {
	return func(o *options) {
		if v != nil {
			o.validator = v
		}
	}
}

var defaultValidator = sync.OnceValue(schema.MustNew)

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.validator == nil {
		o.validator = defaultValidator()
	}
	return o
}

// ParseAll runs the model, service and controller parsers, in that order,
// into the catalog's stores.
func ParseAll(ctx context.Context, doc *spec.Document, catalog *store.Catalog, opts ...Option) error {
	if doc == nil || doc.T == nil {
		return &Error{Code: Structural, Message: "parser: document is nil"}
	}
	parsers := []Parser{
		NewModelParser(catalog.Models, opts...),
		NewServiceParser(catalog.Services, opts...),
		NewControllerParser(catalog.Controllers, opts...),
	}
	for _, p := range parsers {
		if err := p.Parse(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func invalid(kind schema.Kind, name, pointer string, err error) *Error {
	return &Error{
		Code:     Invalid,
		Resource: name,
		Pointer:  pointer,
		Message:  fmt.Sprintf("parser: %s %q is invalid", kind, name),
		Cause:    err,
	}
}
