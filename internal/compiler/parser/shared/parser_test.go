package shared

import (
	"testing"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/tokenizer"
)

func newCore(t *testing.T, src string) *ParserCore {
	t.Helper()
	toks, err := tokenizer.TokenizeSource("test.kdl", src)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	return NewParserCore(toks)
}

func TestParseTypeDecl(t *testing.T) {
	input := `declare type Weapon : "weap" {
    template {
        HWRD reload;
        OCNT count;
        LSTC shots;
        HWRD damage;
        LSTE;
        C020 title;
        Combat.Point origin;
    };
    field {
        reload = 30;
        @repeatable(0, 10, count) shots = [];
        @builtin @synthesize count = len(shots);
        origin;
    };
    constructor(Integer r, String t) {
        reload = r;
        title = t;
    };
};`

	p := newCore(t, input)
	decl := p.ParseTypeDecl()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if decl == nil {
		t.Fatal("ParseTypeDecl returned nil")
	}
	if decl.Name != "Weapon" || decl.Code != "weap" {
		t.Errorf("unexpected header %s %q", decl.Name, decl.Code)
	}
	if !p.Finished() {
		t.Errorf("expected EOF after declaration, got %v", p.Cur())
	}

	if len(decl.Template) != 7 {
		t.Fatalf("expected 7 template entries, got %d", len(decl.Template))
	}
	checks := []struct {
		literal string
		label   string
	}{
		{"HWRD", "reload"},
		{"OCNT", "count"},
		{"LSTC", "shots"},
		{"HWRD", "damage"},
		{"LSTE", ""},
		{"C020", "title"},
		{"Combat.Point", "origin"},
	}
	for i, c := range checks {
		e := decl.Template[i]
		if e.Type.Literal != c.literal || e.Label != c.label {
			t.Errorf("entry %d: expected %s %q, got %s %q", i, c.literal, c.label, e.Type.Literal, e.Label)
		}
	}
	if title := decl.Template[5].Type; title.Prim != token.CNNN || title.Int != 0x20 {
		t.Errorf("expected C020 to carry width 32, got %v %d", title.Prim, title.Int)
	}

	if len(decl.Fields) != 4 {
		t.Fatalf("expected 4 fields, got %d", len(decl.Fields))
	}
	shots := decl.Fields[1]
	if shots.Name != "shots" || len(shots.Decorators) != 1 || len(shots.Decorators[0].Args) != 3 {
		t.Errorf("unexpected shots field %+v", shots)
	}
	count := decl.Fields[2]
	if len(count.Decorators) != 2 || count.Decorators[1].Word != token.Synthesize {
		t.Errorf("expected two decorators on count, got %+v", count.Decorators)
	}
	if len(decl.Fields[3].Value) != 0 {
		t.Errorf("origin has no default, got %v", decl.Fields[3].Value)
	}

	if decl.Constructor == nil || len(decl.Constructor.Params) != 2 {
		t.Fatalf("unexpected constructor %+v", decl.Constructor)
	}
	if decl.Constructor.Params[1].Type != token.StringType || decl.Constructor.Params[1].Name != "t" {
		t.Errorf("unexpected param %+v", decl.Constructor.Params[1])
	}
	if len(decl.Constructor.Body) != 8 {
		t.Errorf("expected 8 body tokens, got %d", len(decl.Constructor.Body))
	}
}

func TestParseDecorator(t *testing.T) {
	tests := []struct {
		input string
		word  token.Word
		args  int
	}{
		{"@override", token.Override, 0},
		{"@deprecated()", token.Deprecated, 0},
		{"@condition(reload > 0 && f(1, 2))", token.Condition, 1},
		{"@repeatable(0, 10, count)", token.Repeatable, 3},
		{"@repeatable(0, min(4, 8))", token.Repeatable, 2},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p := newCore(t, tt.input)
			dec := p.ParseDecorator()
			if len(p.Errors()) > 0 {
				t.Fatalf("unexpected errors: %v", p.Errors())
			}
			if dec.Word != tt.word {
				t.Errorf("expected %v, got %v", tt.word, dec.Word)
			}
			if len(dec.Args) != tt.args {
				t.Errorf("expected %d args, got %d", tt.args, len(dec.Args))
			}
			if !p.Finished() {
				t.Errorf("decorator not fully consumed, at %v", p.Cur())
			}
		})
	}
}

func TestParseFunctionDecl(t *testing.T) {
	p := newCore(t, `function clamp(Integer v, Integer lo, Integer hi) { min(max(v, lo), hi); }`)
	fn := p.ParseFunctionDecl()
	if fn == nil {
		t.Fatalf("ParseFunctionDecl returned nil: %v", p.Errors())
	}
	if fn.Name != "clamp" || len(fn.Params) != 3 {
		t.Errorf("unexpected function %s with %d params", fn.Name, len(fn.Params))
	}
	if fn.Body[len(fn.Body)-1].Kind != token.SEMICOLON {
		t.Errorf("body should keep its statement terminators")
	}
	if !p.Finished() {
		t.Errorf("expected EOF, got %v", p.Cur())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  errors.Code
	}{
		{"missing type keyword", `declare Weapon : "weap" {};`, errors.UnexpectedToken},
		{"short type code", `declare type Weapon : "we" {};`, errors.MalformedDeclaration},
		{"bad template entry", `declare type W : "weap" { template { 12 x; }; };`, errors.MalformedTemplate},
		{"missing semicolon", `declare type W : "weap" { template { HWRD x HWRD y; }; };`, errors.UnexpectedToken},
		{"unknown member", `declare type W : "weap" { reload; };`, errors.UnexpectedToken},
		{"untyped param", `declare type W : "weap" { constructor(r) {}; };`, errors.UnexpectedToken},
		{"duplicate param", `declare type W : "weap" { constructor(Integer r, Integer r) {}; };`, errors.MalformedDeclaration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newCore(t, tt.input)
			p.ParseTypeDecl()
			errs := p.Errors()
			if len(errs) == 0 {
				t.Fatal("expected an error")
			}
			if errs[0].Code != tt.code {
				t.Errorf("expected code %d, got %d (%v)", tt.code, errs[0].Code, errs[0])
			}
		})
	}
}

func TestSynchronize(t *testing.T) {
	p := newCore(t, `garbage (1, 2) { nested { x; }; } ; new Weapon (1, "a") {};`)
	p.Synchronize()
	if !p.Cur().Is(token.New) {
		t.Errorf("expected to stop before 'new', got %v", p.Cur())
	}

	p = newCore(t, `broken = 1 + ; @var x = 1;`)
	p.Synchronize()
	if !p.Cur().Is(token.Var) {
		t.Errorf("expected to stop at @var, got %v", p.Cur())
	}
}
