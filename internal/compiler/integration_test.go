package compiler

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/rsrc"
)

const shotsType = `
declare type Shots : "shot" {
    template {
        OCNT count;
        LSTC shots;
        HWRD damage;
        LSTE;
    };
    field {
        @repeatable(0, 4) shots = [];
    };
};
`

const weaponType = `
declare type Weapon : "weap" {
    template {
        HWRD reload;
        PSTR title;
        BBIT guided;
        BBIT homing;
    };
    field {
        reload = 30;
        title = "Untitled";
        guided = false;
        homing = false;
    };
    constructor(Integer r, String t) {
        reload = r;
        title = t;
    };
};
`

// compileAll registers files in a temp dir and compiles those listed in
// order.
func compileAll(t *testing.T, files map[string]string, order ...string) (*Compiler, *rsrc.File, *errors.ErrorList) {
	t.Helper()
	dir := t.TempDir()
	c := New(Options{})
	for name, src := range files {
		c.AddFile(filepath.Join(dir, name), src)
	}
	paths := make([]string, len(order))
	for i, name := range order {
		paths[i] = filepath.Join(dir, name)
	}
	out, errs := c.CompileFiles(paths...)
	return c, out, errs
}

func compileOne(t *testing.T, src string) (*Compiler, *rsrc.File, *errors.ErrorList) {
	t.Helper()
	return compileAll(t, map[string]string{"main.kdl": src}, "main.kdl")
}

func mustGet(t *testing.T, out *rsrc.File, typ, ns string, id int64) *rsrc.Resource {
	t.Helper()
	r, ok := out.Get(rsrc.Key{Type: typ, Namespace: ns, ID: id})
	if !ok {
		t.Fatalf("resource %s not found, have %d resources", rsrc.Key{Type: typ, Namespace: ns, ID: id}, out.Len())
	}
	return r
}

func hasCode(errs *errors.ErrorList, code errors.Code) *errors.CompileError {
	for _, e := range errs.Errors {
		if e.Code == code {
			return e
		}
	}
	return nil
}

func TestCountFieldEncoding(t *testing.T) {
	_, out, errs := compileOne(t, shotsType+`
new Shots (128) {
    shots = [10, 20, 30];
};
`)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", errs)
	}
	r := mustGet(t, out, "shot", "", 128)
	want := []byte{0x00, 0x03, 0x00, 0x0A, 0x00, 0x14, 0x00, 0x1E}
	if !bytes.Equal(r.Data, want) {
		t.Errorf("data = % X, want % X", r.Data, want)
	}
}

func TestRepeatUpperBoundSkipsResource(t *testing.T) {
	_, out, errs := compileOne(t, shotsType+`
new Shots (1) { shots = [1, 2, 3, 4, 5]; };
new Shots (2) { shots = [1]; };
`)
	e := hasCode(errs, errors.RepeatOutOfBounds)
	if e == nil {
		t.Fatalf("expected RepeatOutOfBounds, got:\n%s", errs)
	}
	if e.Phase != errors.PhaseEncoder {
		t.Errorf("phase = %s, want encoder", e.Phase)
	}
	if _, ok := out.Get(rsrc.Key{Type: "shot", ID: 1}); ok {
		t.Error("resource 1 should have been skipped")
	}
	r := mustGet(t, out, "shot", "", 2)
	if !bytes.Equal(r.Data, []byte{0x00, 0x01, 0x00, 0x01}) {
		t.Errorf("resource 2 data = % X", r.Data)
	}
}

func TestMissingImportContinuesBatch(t *testing.T) {
	files := map[string]string{
		"a.kdl": `
@import "missing.kdl";
@out "unreachable";
`,
		"b.kdl": shotsType + `
new Shots (7) { shots = [1, 2]; };
`,
	}
	c, out, errs := compileAll(t, files, "a.kdl", "b.kdl")

	e := hasCode(errs, errors.ImportFailed)
	if e == nil {
		t.Fatalf("expected ImportFailed, got:\n%s", errs)
	}
	if !strings.Contains(e.Message, "missing.kdl") {
		t.Errorf("message %q does not name the missing path", e.Message)
	}
	if !e.Fatal {
		t.Error("a failed import should stop its file")
	}
	if len(c.Output()) != 0 {
		t.Errorf("a.kdl kept running after the failed import: %v", c.Output())
	}
	mustGet(t, out, "shot", "", 7)
}

func TestImports(t *testing.T) {
	files := map[string]string{
		"main.kdl": `
@import "types";
@import "types.kdl";
new Shots (1) { shots = [5]; };
`,
		"types.kdl": shotsType,
	}
	_, out, errs := compileAll(t, files, "main.kdl")
	if errs.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", errs)
	}
	mustGet(t, out, "shot", "", 1)
}

func TestImportCycle(t *testing.T) {
	files := map[string]string{
		"main.kdl": `@import "a.kdl";`,
		"a.kdl":    `@import "main.kdl";`,
	}
	_, _, errs := compileAll(t, files, "main.kdl")
	e := hasCode(errs, errors.ImportCycle)
	if e == nil {
		t.Fatalf("expected ImportCycle, got:\n%s", errs)
	}
	if !strings.Contains(e.Message, "main.kdl -> a.kdl -> main.kdl") {
		t.Errorf("message = %q", e.Message)
	}
}

func TestFatalLexErrorStopsFileOnly(t *testing.T) {
	files := map[string]string{
		"bad.kdl":  `@out "never closed;`,
		"good.kdl": `@out "hello";`,
	}
	c, _, errs := compileAll(t, files, "bad.kdl", "good.kdl")
	if f := errs.Fatal(); f == nil || f.Code != errors.UnterminatedString {
		t.Fatalf("expected a fatal UnterminatedString, got:\n%s", errs)
	}
	if got := c.Output(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("output = %v", got)
	}
}

func TestConstructorAndDefaults(t *testing.T) {
	_, out, errs := compileOne(t, weaponType+`
new Weapon (128, "Blaster", 12, "Gun") {
    homing = true;
};
new Weapon (129);
`)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", errs)
	}

	tests := []struct {
		id   int64
		name string
		want []byte
	}{
		{128, "Blaster", []byte{0x00, 0x0C, 0x03, 'G', 'u', 'n', 0x40}},
		{129, "", append(append([]byte{0x00, 0x1E, 0x08}, "Untitled"...), 0x00)},
	}
	for _, tt := range tests {
		r := mustGet(t, out, "weap", "", tt.id)
		if r.Name != tt.name {
			t.Errorf("id %d: name = %q, want %q", tt.id, r.Name, tt.name)
		}
		if !bytes.Equal(r.Data, tt.want) {
			t.Errorf("id %d: data = % X, want % X", tt.id, r.Data, tt.want)
		}
	}
}

func TestConstructorErrors(t *testing.T) {
	tests := []struct {
		name string
		decl string
		code errors.Code
	}{
		{"arity", `new Weapon (1, "x", 5);`, errors.ArityMismatch},
		{"param type", `new Weapon (1, "x", "fast", "t");`, errors.TypeMismatch},
		{"id type", `new Weapon ("one");`, errors.TypeMismatch},
		{"unknown field", `new Weapon (1) { speed = 3; };`, errors.UnknownField},
		{"unknown type", `new Blaster (1);`, errors.UnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, errs := compileOne(t, weaponType+tt.decl)
			if hasCode(errs, tt.code) == nil {
				t.Fatalf("expected code %d, got:\n%s", tt.code, errs)
			}
			if out.Len() != 0 {
				t.Errorf("no resource should be produced, got %d", out.Len())
			}
		})
	}
}

func TestFieldDecorators(t *testing.T) {
	src := `
declare type Ship : "ship" {
    template {
        HWRD mass;
        HWRD doubled;
        HWRD hull;
        RSRC sound;
    };
    field {
        @synthesize doubled = mass * 2;
        @builtin hull = 100;
        @condition(mass > 0) sound = #0;
    };
};
new Ship (1) { mass = 5; sound = #9; };
new Ship (2) { mass = 0; sound = #9; };
new Ship (3) { hull = 1; };
`
	_, out, errs := compileOne(t, src)
	if hasCode(errs, errors.BuiltinAssigned) == nil {
		t.Errorf("expected BuiltinAssigned, got:\n%s", errs)
	}

	r := mustGet(t, out, "ship", "", 1)
	want := []byte{0x00, 0x05, 0x00, 0x0A, 0x00, 0x64, 0, 0, 0, 0, 0, 0, 0, 0x09}
	if !bytes.Equal(r.Data, want) {
		t.Errorf("ship 1 = % X, want % X", r.Data, want)
	}
	r = mustGet(t, out, "ship", "", 2)
	want = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x64}
	if !bytes.Equal(r.Data, want) {
		t.Errorf("ship 2 = % X, want % X", r.Data, want)
	}
}

func TestDuplicateTypeAndOverride(t *testing.T) {
	src := shotsType + shotsType + `
@override
declare type Shots : "shot" {
    template { HBYT level; };
};
new Shots (1) { level = 9; };
`
	_, out, errs := compileOne(t, src)
	codes := errs.Codes()
	if len(codes) != 1 || codes[0] != errors.DuplicateType {
		t.Fatalf("codes = %v, want [DuplicateType]\n%s", codes, errs)
	}
	if r := mustGet(t, out, "shot", "", 1); !bytes.Equal(r.Data, []byte{0x09}) {
		t.Errorf("data = % X, want 09", r.Data)
	}
}

func TestDuplicateResource(t *testing.T) {
	src := shotsType + `
new Shots (1) { shots = [1]; };
new Shots (1) { shots = [2]; };
@override
new Shots (1, "replaced") { shots = [3]; };
`
	_, out, errs := compileOne(t, src)
	if hasCode(errs, errors.DuplicateResource) == nil {
		t.Fatalf("expected DuplicateResource, got:\n%s", errs)
	}
	r := mustGet(t, out, "shot", "", 1)
	if r.Name != "replaced" || !bytes.Equal(r.Data, []byte{0x00, 0x01, 0x00, 0x03}) {
		t.Errorf("got %q % X", r.Name, r.Data)
	}
}

func TestScriptsAndOutput(t *testing.T) {
	src := `
@var base = 8;
@const LIMIT = 2 + 3 * 4;
@script {
    tmp = base * 2;
    export doubled = tmp;
};
@out "doubled " + str(doubled);
@out LIMIT;
@metadata author = "Kestrel";
function twice(Integer n) { n * 2; };
@out twice(LIMIT);
@out tmp;
`
	c, out, errs := compileOne(t, src)
	if e := hasCode(errs, errors.UnknownVariable); e == nil {
		t.Errorf("script locals should not leak, got:\n%s", errs)
	}
	want := []string{"doubled 16", "14", "28"}
	got := c.Output()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("output = %q, want %q", got, want)
	}
	if out.Metadata["author"] != "Kestrel" {
		t.Errorf("metadata = %v", out.Metadata)
	}
}

func TestConstReassigned(t *testing.T) {
	_, _, errs := compileOne(t, `
@const LIMIT = 1;
@var LIMIT = 2;
`)
	if hasCode(errs, errors.ConstReassigned) == nil {
		t.Fatalf("expected ConstReassigned, got:\n%s", errs)
	}
}

func TestNamespaces(t *testing.T) {
	src := `
@namespace Combat;
declare type Point : "pont" {
    template {
        DWRD x;
        DWRD y;
    };
};
new Point (1) { x = 1; y = -1; };
@namespace;
new Combat.Point (2) { x = 2; };
new Point (3);
`
	_, out, errs := compileOne(t, src)
	if hasCode(errs, errors.UnknownType) == nil {
		t.Errorf("unqualified Point outside Combat should not resolve, got:\n%s", errs)
	}
	if r := mustGet(t, out, "pont", "Combat", 1); !bytes.Equal(r.Data, []byte{0x00, 0x01, 0xFF, 0xFF}) {
		t.Errorf("point 1 = % X", r.Data)
	}
	if r := mustGet(t, out, "pont", "", 2); !bytes.Equal(r.Data, []byte{0x00, 0x02, 0x00, 0x00}) {
		t.Errorf("point 2 = % X", r.Data)
	}
}

func TestNestedTemplates(t *testing.T) {
	src := `
declare type Point : "pont" {
    template {
        HWRD x;
        HWRD y;
    };
};
declare type Path : "path" {
    template {
        Point start;
        ZCNT count;
        LSTC points;
        Point p;
        LSTE;
    };
};
new Path (1) {
    start = [1, 2];
    points = [[3, 4], [5, 6]];
};
`
	_, out, errs := compileOne(t, src)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", errs)
	}
	want := []byte{0, 1, 0, 2, 0, 1, 0, 3, 0, 4, 0, 5, 0, 6}
	if r := mustGet(t, out, "path", "", 1); !bytes.Equal(r.Data, want) {
		t.Errorf("data = % X, want % X", r.Data, want)
	}
}

func TestByteOrder(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		little bool
		want   []byte
	}{
		{"default", "", false, []byte{0x12, 0x34}},
		{"directive", "@byteorder little;", true, []byte{0x34, 0x12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, errs := compileOne(t, tt.prefix+`
declare type Word : "word" { template { HWRD v; }; };
new Word (1) { v = 0x1234; };
`)
			if errs.HasErrors() {
				t.Fatalf("unexpected errors:\n%s", errs)
			}
			if out.LittleEndian != tt.little {
				t.Errorf("LittleEndian = %v", out.LittleEndian)
			}
			if r := mustGet(t, out, "word", "", 1); !bytes.Equal(r.Data, tt.want) {
				t.Errorf("data = % X, want % X", r.Data, tt.want)
			}
		})
	}
}

func TestByteOrderFixedAfterFirstResource(t *testing.T) {
	c, out, errs := compileOne(t, `
declare type Word : "word" { template { HWRD v; }; };
new Word (1) { v = 0x1234; };
@byteorder big;
@byteorder little;
new Word (2) { v = 0x1234; };
`)
	n := 0
	for _, e := range errs.Errors {
		if e.Code == errors.MalformedDirective {
			n++
			if e.Fatal {
				t.Error("a rejected @byteorder should not stop the file")
			}
		}
	}
	if n != 1 {
		t.Fatalf("expected one MalformedDirective, got:\n%s", errs)
	}
	if out.LittleEndian {
		t.Error("container byte order changed after encoding")
	}
	for _, id := range []int64{1, 2} {
		if r := mustGet(t, out, "word", "", id); !bytes.Equal(r.Data, []byte{0x12, 0x34}) {
			t.Errorf("id %d: data = % X", id, r.Data)
		}
	}

	insts, derrs := c.Decode(out)
	if derrs.HasErrors() {
		t.Fatalf("decode:\n%s", derrs)
	}
	for _, inst := range insts {
		if v := inst.Values["v"]; v.Int != 0x1234 {
			t.Errorf("id %d decoded v = %s", inst.Ref.ID, v)
		}
	}
}

func TestSynthesizeReadsOmittedField(t *testing.T) {
	_, out, errs := compileOne(t, `
declare type Gun : "gunn" {
    template {
        HWRD reload;
        HWRD doubled;
        HWRD plus;
    };
    field {
        @synthesize doubled = reload * 2;
        @synthesize plus = reload + 3;
    };
};
new Gun (1);
new Gun (2) { reload = 4; };
`)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", errs)
	}
	tests := []struct {
		id   int64
		want []byte
	}{
		{1, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x03}},
		{2, []byte{0x00, 0x04, 0x00, 0x08, 0x00, 0x07}},
	}
	for _, tt := range tests {
		if r := mustGet(t, out, "gunn", "", tt.id); !bytes.Equal(r.Data, tt.want) {
			t.Errorf("id %d: data = % X, want % X", tt.id, r.Data, tt.want)
		}
	}
}

func TestOverrideCannotOpenNestedType(t *testing.T) {
	c, out, errs := compileOne(t, `
declare type In : "in  " { template { HWRD a; }; };
declare type Outer : "outr" { template { In inner; HWRD tail; }; };
@override
declare type In : "in  " { template { HWRD a; HEXD blob; }; };
new Outer (1) { inner = [1]; tail = 7; };
`)
	if hasCode(errs, errors.MalformedTemplate) == nil {
		t.Fatalf("expected MalformedTemplate, got:\n%s", errs)
	}
	r := mustGet(t, out, "outr", "", 1)
	if !bytes.Equal(r.Data, []byte{0x00, 0x01, 0x00, 0x07}) {
		t.Errorf("data = % X", r.Data)
	}
	if _, derrs := c.Decode(out); derrs.HasErrors() {
		t.Errorf("decode:\n%s", derrs)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	c, out, errs := compileOne(t, weaponType+`
new Weapon (5, "Laser", 7, "Laser") { guided = true; };
`)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors:\n%s", errs)
	}
	def, err := c.Session.ResolveType("Weapon", token.Position{})
	if err != nil {
		t.Fatal(err)
	}
	inst, err := c.Assembler().Decode(def, mustGet(t, out, "weap", "", 5).Data)
	if err != nil {
		t.Fatal(err)
	}
	if got := inst.Values["reload"].Int; got != 7 {
		t.Errorf("reload = %d", got)
	}
	if got := inst.Values["title"].Str; got != "Laser" {
		t.Errorf("title = %q", got)
	}
	if !inst.Values["guided"].Bool || inst.Values["homing"].Bool {
		t.Errorf("flags = %v %v", inst.Values["guided"], inst.Values["homing"])
	}
}

func TestModules(t *testing.T) {
	files := map[string]string{
		"main.kdl": `
@module Core {
    @import "core.kdl";
};
@module Weapons {
    @requires Core;
};
@module Broken {
    @requires Missing;
};
`,
		"core.kdl": `@out "core loaded";`,
	}
	c, _, errs := compileAll(t, files, "main.kdl")
	codes := errs.Codes()
	if len(codes) != 1 || codes[0] != errors.UnknownModule {
		t.Fatalf("codes = %v\n%s", codes, errs)
	}
	if got := c.Session.Modules(); strings.Join(got, ",") != "Broken,Core,Weapons" {
		t.Errorf("modules = %v", got)
	}
	if got := c.Output(); len(got) != 1 || got[0] != "core loaded" {
		t.Errorf("output = %v", got)
	}
}
