// Package smeli embeds smeli documents in Go programs: bind host values and
// functions, load a document, then read or call its bindings.
package smeli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"

	"github.com/smeli-lang/smeli-sub000/internal/engine"
	"github.com/smeli-lang/smeli-sub000/internal/evaluator"
	"github.com/smeli-lang/smeli-sub000/internal/plugins"
)

// Document is a fully stepped smeli document. It is not safe for concurrent
// use.
type Document struct {
	engine     *engine.Engine
	marshaller *Marshaller
	logger     *slog.Logger
	plugins    []string
	file       string

	bindings []*evaluator.Binding
	bound    map[string]bool
}

type Option func(*Document)

// WithLogger sets the logger. Documents are silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) { d.logger = logger }
}

// WithPlugins loads the named plugins before the first document.
func WithPlugins(names ...string) Option {
	return func(d *Document) { d.plugins = append(d.plugins, names...) }
}

// New creates an empty document.
func New(opts ...Option) *Document {
	d := &Document{
		marshaller: NewMarshaller(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		bound:      map[string]bool{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Bind exposes a Go value under name. Functions become callable from the
// document; their last result may be an error. Bind must be called before
// the first Load.
func (d *Document) Bind(name string, val interface{}) error {
	if d.engine != nil {
		return fmt.Errorf("cannot bind %s: document already loaded", name)
	}
	if d.bound[name] {
		return fmt.Errorf("%s is already bound", name)
	}
	obj, err := d.marshaller.ToValue(name, val)
	if err != nil {
		return err
	}
	d.bindings = append(d.bindings, evaluator.NewValueBinding(name, obj))
	d.bound[name] = true
	return nil
}

func (d *Document) start() error {
	if d.engine != nil {
		return nil
	}
	e := engine.New(
		engine.WithLogger(d.logger),
		engine.WithFile(d.file),
		engine.WithBindings(d.bindings...),
	)
	for _, name := range d.plugins {
		p, err := plugins.Lookup(name)
		if err != nil {
			e.Close()
			return err
		}
		if err := e.LoadPlugin(p); err != nil {
			e.Close()
			return err
		}
	}
	d.engine = e
	return nil
}

// Load replaces the document with code and activates every statement. The
// statements before a syntax error are still activated; the error lists
// every diagnostic.
func (d *Document) Load(code string) error {
	if err := d.start(); err != nil {
		return err
	}
	if err := d.engine.Reset(code); err != nil {
		return err
	}
	if err := d.engine.Step(d.engine.Len()); err != nil {
		return err
	}
	var errs []error
	for _, diag := range d.engine.Diagnostics() {
		errs = append(errs, diag)
	}
	return errors.Join(errs...)
}

// LoadFile loads the document at path. Diagnostics report path as the file.
func (d *Document) LoadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if d.engine == nil {
		d.file = path
	}
	return d.Load(string(src))
}

// Get returns the value of name as a Go value: float64, string, bool, nil,
// []interface{} or map[string]interface{}. Other values are returned as
// smeli objects.
func (d *Document) Get(name string) (interface{}, error) {
	return d.get(name, nil)
}

// Decode stores the value of name in the value pointed to by ptr.
func (d *Document) Decode(name string, ptr interface{}) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("Decode needs a non-nil pointer, got %T", ptr)
	}
	v, err := d.get(name, rv.Elem().Type())
	if err != nil {
		return err
	}
	if v == nil {
		rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
		return nil
	}
	rv.Elem().Set(reflect.ValueOf(v))
	return nil
}

func (d *Document) get(name string, target reflect.Type) (v interface{}, err error) {
	if d.engine == nil {
		return nil, errors.New("no document loaded")
	}
	defer evaluator.RecoverFatal(&err)

	// scopes must stay alive while their bindings are read
	w, err := d.engine.Watch(name)
	if err != nil {
		return nil, err
	}
	defer w.Close()
	obj, err := w.Value()
	if err != nil {
		return nil, err
	}
	return d.marshaller.FromValue(obj, target)
}

// Call calls the function bound to name with Go arguments.
func (d *Document) Call(name string, args ...interface{}) (interface{}, error) {
	if d.engine == nil {
		return nil, errors.New("no document loaded")
	}
	objs := make([]evaluator.Object, len(args))
	for i, arg := range args {
		obj, err := d.marshaller.ToValue(name, arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		objs[i] = obj
	}
	res, err := d.engine.Call(name, objs...)
	if err != nil {
		return nil, err
	}
	return d.marshaller.FromValue(res, nil)
}

// Close releases the document and every resource it holds.
func (d *Document) Close() error {
	if d.engine == nil {
		return nil
	}
	return d.engine.Close()
}
