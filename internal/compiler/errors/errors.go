package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Position represents a location in source code
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Phase names the pipeline stage that raised an error.
type Phase string

const (
	PhaseLexer       Phase = "lexer"
	PhaseTokenizer   Phase = "tokenizer"
	PhaseDiagnostic  Phase = "diagnostic"
	PhaseInterpreter Phase = "interpreter"
	PhaseEncoder     Phase = "encoder"
)

// Code is a numbered reason code attached to every CompileError.
type Code int

const (
	CodeNone Code = 0

	// 1xx lexer
	UnterminatedString  Code = 101
	UnterminatedComment Code = 102
	IllegalCharacter    Code = 103
	MalformedNumber     Code = 104

	// 2xx tokenizer
	UnknownDirective   Code = 201
	UnknownDecorator   Code = 202
	MalformedReference Code = 204

	// 3xx diagnostics
	MalformedDirective   Code = 301
	DuplicateType        Code = 302
	UnknownType          Code = 303
	UnknownField         Code = 304
	ImportFailed         Code = 305
	ImportCycle          Code = 306
	UnknownModule        Code = 307
	DuplicateResource    Code = 308
	ConstReassigned      Code = 309
	BuiltinAssigned      Code = 310
	MalformedTemplate    Code = 311
	UnexpectedToken      Code = 312
	DuplicateFunction    Code = 313
	DeprecatedField      Code = 314
	TemplateRecursion    Code = 315
	MalformedDeclaration Code = 316

	// 4xx interpreter
	UnknownVariable  Code = 401
	UnknownFunction  Code = 402
	ArityMismatch    Code = 403
	DivisionByZero   Code = 404
	TypeMismatch     Code = 405
	ExpressionSyntax Code = 406
	CallDepth        Code = 407

	// 5xx encoder
	RepeatOutOfBounds Code = 501
	ValueMismatch     Code = 502
	StringTooLong     Code = 503
	ValueOutOfRange   Code = 504
	TruncatedData     Code = 505
)

// CompileError represents a compilation error with source position
type CompileError struct {
	Pos     Position
	Message string
	Phase   Phase
	Code    Code
	Text    string // offending lexeme or token text, if any
	Fatal   bool   // stops the remaining processing of the current file
	Warning bool
}

func (e *CompileError) Error() string {
	msg := e.Message
	if e.Text != "" {
		msg = fmt.Sprintf("%s (near %q)", msg, e.Text)
	}
	if e.Code != CodeNone {
		return fmt.Sprintf("[%s] %s: E%03d %s", e.Phase, e.Pos, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Pos, msg)
}

// New builds a CompileError. Lexer and tokenizer errors are always fatal.
func New(phase Phase, code Code, pos Position, format string, args ...interface{}) *CompileError {
	return &CompileError{
		Pos:     pos,
		Phase:   phase,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Fatal:   phase == PhaseLexer || phase == PhaseTokenizer,
	}
}

// Near attaches the offending source text and returns the error.
func (e *CompileError) Near(text string) *CompileError {
	e.Text = text
	return e
}

// AsFatal marks the error as fatal for the current file and returns it.
func (e *CompileError) AsFatal() *CompileError {
	e.Fatal = true
	return e
}

// As unwraps err into a *CompileError.
func As(err error) (*CompileError, bool) {
	var ce *CompileError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Is reports whether err carries the given reason code.
func Is(err error, code Code) bool {
	ce, ok := As(err)
	return ok && ce.Code == code
}

// ErrorList collects multiple compilation errors
type ErrorList struct {
	Errors []*CompileError
}

func NewErrorList() *ErrorList {
	return &ErrorList{}
}

func (el *ErrorList) Add(pos Position, phase Phase, message string) {
	el.Errors = append(el.Errors, &CompileError{Pos: pos, Message: message, Phase: phase})
}

// Append records err. Errors that are not CompileErrors are wrapped as
// diagnostics without a position.
func (el *ErrorList) Append(err error) {
	if err == nil {
		return
	}
	if ce, ok := As(err); ok {
		el.Errors = append(el.Errors, ce)
		return
	}
	el.Errors = append(el.Errors, &CompileError{Phase: PhaseDiagnostic, Message: err.Error()})
}

// HasErrors reports whether any non-warning error was recorded.
func (el *ErrorList) HasErrors() bool {
	for _, e := range el.Errors {
		if !e.Warning {
			return true
		}
	}
	return false
}

// Fatal returns the first fatal error, or nil.
func (el *ErrorList) Fatal() *CompileError {
	for _, e := range el.Errors {
		if e.Fatal {
			return e
		}
	}
	return nil
}

// Codes lists the reason codes in recording order.
func (el *ErrorList) Codes() []Code {
	codes := make([]Code, 0, len(el.Errors))
	for _, e := range el.Errors {
		codes = append(codes, e.Code)
	}
	return codes
}

func (el *ErrorList) String() string {
	var b strings.Builder
	for _, e := range el.Errors {
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return b.String()
}
