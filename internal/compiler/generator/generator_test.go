package generator

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/schema"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

const types = `
declare type Point : "pont" {
    template {
        DWRD x;
        DWRD y;
    };
};
declare type Weapon : "weap" {
    template {
        HWRD reload;
        HWRD doubled;
        PSTR title;
        OCNT count;
        LSTC shots;
        HWRD damage;
        LSTE;
        RSRC sound;
        Point origin;
        BBIT guided;
    };
    field {
        @synthesize doubled = reload * 2;
        title = "Untitled";
    };
};
`

func TestGenValue(t *testing.T) {
	tests := []struct {
		name string
		v    value.Value
		want string
	}{
		{"int", value.Int(-12), "-12"},
		{"string", value.Str("a \"b\"\n"), `"a \"b\"\n"`},
		{"bool", value.Bool(true), "true"},
		{"ref", value.Ref("Combat", 200), "#Combat.200"},
		{"global ref", value.Ref("", 3), "#3"},
		{"list", value.ListOf(value.Int(1), value.ListOf(value.Int(2))), "[1, [2]]"},
		{"empty list", value.ListOf(), "[]"},
		{"nil", value.Value{}, "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := genValue(tt.v); got != tt.want {
				t.Errorf("genValue = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGenerateSkipsDerivedFields(t *testing.T) {
	c := compiler.New(compiler.Options{})
	if _, errs := c.CompileSource("types.kdl", types); errs.HasErrors() {
		t.Fatalf("compile types:\n%s", errs)
	}
	def, err := c.Session.ResolveType("Weapon", token.Position{})
	if err != nil {
		t.Fatal(err)
	}
	inst := schema.NewInstance(def, 5, "Laser")
	inst.Values["reload"] = value.Int(7)
	inst.Values["doubled"] = value.Int(14)
	inst.Values["count"] = value.Int(2)
	inst.Values["shots"] = value.ListOf(value.Int(1), value.Int(2))

	g := New(c.Session.Templates)
	g.Header = "decoded"
	out, err := g.Generate([]*schema.Instance{inst})
	if err != nil {
		t.Fatalf("Generate failed: %v\n%s", err, out)
	}

	for _, want := range []string{
		"// decoded\n",
		"// ========== Weapon (weap) ==========",
		`new Weapon (5, "Laser") {`,
		"    reload = 7;",
		"    shots = [1, 2];",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"doubled", "count ="} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output should not contain %q:\n%s", unwanted, out)
		}
	}
}

func TestGenerateRoundTrip(t *testing.T) {
	src := types + `
new Weapon (1, "Blaster") {
    reload = 12;
    title = "Blaster \"Mk II\"";
    shots = [10, 20, 30];
    sound = #200;
    origin = [-3, 4];
    guided = true;
};
new Weapon (2);
@namespace Combat;
new Point (9, "Spawn") { x = 1; y = 2; };
`
	first := compiler.New(compiler.Options{})
	file, errs := first.CompileSource("main.kdl", src)
	if errs.HasErrors() {
		t.Fatalf("compile:\n%s", errs)
	}

	insts, derrs := first.Decode(file)
	if derrs.HasErrors() {
		t.Fatalf("decode:\n%s", derrs)
	}
	if len(insts) != 3 {
		t.Fatalf("decoded %d resources, want 3", len(insts))
	}

	gen, err := New(first.Session.Templates).Generate(insts)
	if err != nil {
		t.Fatalf("Generate failed: %v\n%s", err, gen)
	}
	if !strings.Contains(gen, "@namespace Combat;") {
		t.Errorf("namespace not restored:\n%s", gen)
	}

	second := compiler.New(compiler.Options{})
	second.AddFile("types.kdl", types)
	again, errs := second.CompileSource("generated.kdl", `@import "types.kdl";`+"\n"+gen)
	if errs.HasErrors() {
		t.Fatalf("recompile:\n%s\n%s", errs, gen)
	}

	if again.Len() != file.Len() {
		t.Fatalf("recompiled %d resources, want %d", again.Len(), file.Len())
	}
	for _, r := range file.Resources() {
		got, ok := again.Get(r.Key())
		if !ok {
			t.Errorf("resource %s missing after round trip", r.Key())
			continue
		}
		if got.Name != r.Name || !bytes.Equal(got.Data, r.Data) {
			t.Errorf("%s: got %q % X, want %q % X", r.Key(), got.Name, got.Data, r.Name, r.Data)
		}
	}
}
