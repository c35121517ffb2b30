package token

import (
	"fmt"
	"strconv"
)

// Word is one entry of the fixed vocabularies: directives, decorators,
// keywords and value types.
type Word uint8

const (
	NoWord Word = iota

	// Directives
	Import
	Module
	Requires
	Var
	Const
	Metadata
	ByteOrder
	Namespace
	Out
	Script

	// Decorators
	Override
	Duplicate
	Builtin
	Synthesize
	Condition
	Repeatable
	Deprecated

	// Keywords
	Declare
	Type
	Template
	Field
	New
	Function
	Constructor
	Export

	// Value types
	IntegerType
	StringType
	BooleanType
	ListType
	ReferenceType
	AnyType
)

var directives = map[string]Word{
	"import":    Import,
	"module":    Module,
	"requires":  Requires,
	"var":       Var,
	"const":     Const,
	"metadata":  Metadata,
	"byteorder": ByteOrder,
	"namespace": Namespace,
	"out":       Out,
	"script":    Script,
}

var decorators = map[string]Word{
	"override":   Override,
	"duplicate":  Duplicate,
	"builtin":    Builtin,
	"synthesize": Synthesize,
	"condition":  Condition,
	"repeatable": Repeatable,
	"deprecated": Deprecated,
}

var keywords = map[string]Word{
	"declare":     Declare,
	"type":        Type,
	"template":    Template,
	"field":       Field,
	"new":         New,
	"function":    Function,
	"constructor": Constructor,
	"export":      Export,
}

var valueTypes = map[string]Word{
	"Integer":   IntegerType,
	"String":    StringType,
	"Boolean":   BooleanType,
	"List":      ListType,
	"Reference": ReferenceType,
	"Any":       AnyType,
}

var wordNames map[Word]string

func init() {
	wordNames = make(map[Word]string)
	for _, table := range []map[string]Word{directives, decorators, keywords, valueTypes} {
		for name, w := range table {
			wordNames[w] = name
		}
	}
}

func (w Word) String() string {
	if name, ok := wordNames[w]; ok {
		return name
	}
	return fmt.Sprintf("Word(%d)", w)
}

func LookupDirective(name string) (Word, bool) {
	w, ok := directives[name]
	return w, ok
}

func LookupDecorator(name string) (Word, bool) {
	w, ok := decorators[name]
	return w, ok
}

// LookupIdent classifies a bare identifier as keyword, boolean, value type,
// binary template type or plain identifier.
func LookupIdent(ident string) (Kind, Word) {
	if w, ok := keywords[ident]; ok {
		return KEYWORD, w
	}
	if ident == "true" || ident == "false" {
		return BOOLEAN, NoWord
	}
	if w, ok := valueTypes[ident]; ok {
		return VALUE_TYPE, w
	}
	if _, _, ok := LookupPrimitive(ident); ok {
		return TEMPLATE_TYPE, NoWord
	}
	return IDENT, NoWord
}

// Primitive is a binary template storage kind.
type Primitive uint8

const (
	NoPrimitive Primitive = iota
	DBYT
	DWRD
	DLNG
	DQAD
	HBYT
	HWRD
	HLNG
	HQAD
	RECT
	PSTR
	CSTR
	CNNN
	LSTR
	RSRC
	HEXD
	HNNN
	BBIT
	OCNT
	ZCNT
	LCNT
	LSTC
	LSTE
	NESTED
)

var primitives = map[string]Primitive{
	"DBYT": DBYT,
	"DWRD": DWRD,
	"DLNG": DLNG,
	"DQAD": DQAD,
	"HBYT": HBYT,
	"HWRD": HWRD,
	"HLNG": HLNG,
	"HQAD": HQAD,
	"RECT": RECT,
	"PSTR": PSTR,
	"CSTR": CSTR,
	"LSTR": LSTR,
	"RSRC": RSRC,
	"HEXD": HEXD,
	"BBIT": BBIT,
	"OCNT": OCNT,
	"ZCNT": ZCNT,
	"LCNT": LCNT,
	"LSTC": LSTC,
	"LSTE": LSTE,
}

var primitiveNames map[Primitive]string

func init() {
	primitiveNames = make(map[Primitive]string, len(primitives)+3)
	for name, p := range primitives {
		primitiveNames[p] = name
	}
	primitiveNames[CNNN] = "Cnnn"
	primitiveNames[HNNN] = "Hnnn"
	primitiveNames[NESTED] = "nested"
}

func (p Primitive) String() string {
	if name, ok := primitiveNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Primitive(%d)", p)
}

// LookupPrimitive classifies a binary template type name. Cnnn and Hnnn
// carry their width as three hex digits, e.g. C020 is a 32 byte array.
func LookupPrimitive(name string) (Primitive, int, bool) {
	if p, ok := primitives[name]; ok {
		return p, 0, true
	}
	if len(name) == 4 && (name[0] == 'C' || name[0] == 'H') {
		for _, c := range name[1:] {
			if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F') {
				return NoPrimitive, 0, false
			}
		}
		n, err := strconv.ParseUint(name[1:], 16, 16)
		if err != nil || n == 0 {
			return NoPrimitive, 0, false
		}
		if name[0] == 'C' {
			return CNNN, int(n), true
		}
		return HNNN, int(n), true
	}
	return NoPrimitive, 0, false
}
