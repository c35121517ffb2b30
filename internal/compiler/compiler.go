// Package compiler drives a batch of KDL files through the pipeline:
// lexing and tokenizing, parsing, semantic analysis against one shared
// session, and encoding of every declared resource into an rsrc.File.
package compiler

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/assembler"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/ast"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/parser"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/resolver"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/session"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/tokenizer"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/rsrc"
)

// Options configures a Compiler.
type Options struct {
	// Logger receives progress and @out messages. Nil discards them.
	Logger *slog.Logger
	// SearchPaths are tried, in order, after the importing file's
	// directory.
	SearchPaths []string
	// LittleEndian selects the initial byte order. @byteorder may change it
	// until the first resource of the batch is encoded.
	LittleEndian bool
	// MaxDepth bounds nested template recursion in the assembler.
	MaxDepth int
}

// Compiler compiles one batch. It is single threaded; use one Compiler
// per goroutine.
type Compiler struct {
	Session *session.Session

	log    *slog.Logger
	res    *resolver.Resolver
	asm    *assembler.Assembler
	out    *rsrc.File
	errs   *errors.ErrorList
	output []string

	// encoded counts resources written so far; it pins the byte order.
	encoded int
}

func New(opts Options) *Compiler {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	res := resolver.New(opts.SearchPaths...)
	sess := session.New(res, log)
	sess.SetLittleEndian(opts.LittleEndian)

	asm := assembler.New(sess.Templates, sess)
	if opts.MaxDepth > 0 {
		asm.MaxDepth = opts.MaxDepth
	}

	return &Compiler{
		Session: sess,
		log:     log,
		res:     res,
		asm:     asm,
		out:     rsrc.New(),
		errs:    errors.NewErrorList(),
	}
}

// AddFile registers an in-memory source under path. It shadows any file
// on disk with the same path, for imports too.
func (c *Compiler) AddFile(path, src string) {
	c.res.AddFile(path, src)
}

// Output returns the messages printed by @out directives, in order.
func (c *Compiler) Output() []string {
	return append([]string(nil), c.output...)
}

// Assembler exposes the encoder configured for this batch.
func (c *Compiler) Assembler() *assembler.Assembler {
	c.syncOrder()
	return c.asm
}

// CompileSource compiles a single in-memory file.
func (c *Compiler) CompileSource(name, src string) (*rsrc.File, *errors.ErrorList) {
	c.AddFile(name, src)
	return c.CompileFiles(name)
}

// CompileFiles compiles paths in order. A fatal diagnostic stops the file
// it occurred in; the remaining files are still compiled.
func (c *Compiler) CompileFiles(paths ...string) (*rsrc.File, *errors.ErrorList) {
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = filepath.Clean(path)
		}
		if c.res.Done(abs) {
			c.log.Debug("file already compiled through an import", "path", abs)
			continue
		}
		src, err := c.res.Read(abs)
		if err != nil {
			c.report(errors.New(errors.PhaseDiagnostic, errors.ImportFailed, errors.Position{File: path},
				"cannot read %s: %v", path, err).Near(path).AsFatal())
			continue
		}
		c.log.Info("compiling", "path", abs)
		_ = c.Session.Load(abs, src, c.loadFile)
	}

	for k, v := range c.Session.Metadata() {
		c.out.Metadata[k] = v.Text()
	}
	c.out.LittleEndian = c.Session.LittleEndian()
	return c.out, c.errs
}

func (c *Compiler) report(err error) {
	if err == nil {
		return
	}
	c.errs.Append(err)
	if ce, ok := errors.As(err); ok && ce.Warning {
		c.log.Warn(ce.Message, "at", ce.Pos.String(), "code", int(ce.Code))
		return
	}
	c.log.Debug("diagnostic", "error", err)
}

// loadFile compiles one file. It records its own diagnostics and always
// returns nil, so a failing import does not abort its importer.
func (c *Compiler) loadFile(path, src string) error {
	toks, err := tokenizer.TokenizeSource(path, src)
	if err != nil {
		c.report(err)
		return nil
	}

	file, perrs := parser.Parse(path, toks)
	for _, e := range perrs {
		c.report(e)
	}

	// A namespace selected in one file never leaks into the next.
	saved := c.Session.Namespace()
	c.Session.SetNamespace("")
	defer c.Session.SetNamespace(saved)

	c.analyze(file)
	return nil
}

// analyze runs the declarations of file in source order.
func (c *Compiler) analyze(file *ast.File) {
	for _, decl := range file.Decls {
		if d, ok := decl.(*ast.Decorator); ok {
			c.Session.AddDecorator(d)
			continue
		}
		err := c.declare(file, decl, c.Session.TakeDecorators())
		if err == nil {
			continue
		}
		c.report(err)
		if ce, ok := errors.As(err); ok && ce.Fatal {
			c.log.Warn("stopping file", "path", file.Path, "error", ce.Message)
			return
		}
	}
	for _, d := range c.Session.TakeDecorators() {
		c.report(errors.New(errors.PhaseDiagnostic, errors.MalformedDeclaration, d.Pos.Diag(),
			"decorator @%s is not followed by a declaration", d.Name).Near(d.Name))
	}
}
