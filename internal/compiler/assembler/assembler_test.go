package assembler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/schema"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

func fld(p token.Primitive, label string) schema.Field {
	return schema.Field{Prim: p, Label: label, Nested: schema.NoTemplate}
}

func sized(p token.Primitive, width int, label string) schema.Field {
	f := fld(p, label)
	f.Width = width
	return f
}

// declare registers a type with the given layout and field declarations.
func declare(t *testing.T, reg *schema.Registry, name string, fields []schema.Field, typeFields ...*schema.TypeField) *schema.TypeDefinition {
	t.Helper()
	def := &schema.TypeDefinition{Name: name, Code: "test", Fields: typeFields}
	if _, err := reg.Add(schema.Template{Type: name, Fields: fields}, def); err != nil {
		t.Fatalf("declare %s: %v", name, err)
	}
	return def
}

func ints(ns ...int64) value.Value {
	vs := make([]value.Value, len(ns))
	for i, n := range ns {
		vs[i] = value.Int(n)
	}
	return value.ListOf(vs...)
}

type testEval struct {
	defaults map[string]value.Value
	cond     func(values map[string]value.Value) bool
}

func (e testEval) Default(_ *schema.TypeDefinition, f *schema.TypeField) (value.Value, error) {
	return e.defaults[f.Name], nil
}

func (e testEval) Condition(_ *schema.TypeDefinition, _ *schema.TypeField, values map[string]value.Value) (bool, error) {
	return e.cond(values), nil
}

var someExpr = []token.Token{{Kind: token.INTEGER, Literal: "0"}}

func TestEncodeCountField(t *testing.T) {
	reg := schema.NewRegistry()
	def := declare(t, reg, "Weapon", []schema.Field{
		fld(token.OCNT, "count"),
		fld(token.LSTC, "shots"),
		fld(token.HWRD, "damage"),
		fld(token.LSTE, ""),
	}, &schema.TypeField{Name: "shots", Repeatable: &schema.Repeatable{Lower: 0, Upper: 10, CountField: "count"}})

	inst := schema.NewInstance(def, 128, "Blaster")
	inst.Values["shots"] = ints(10, 20, 30)

	got, err := New(reg, nil).Encode(def, inst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x00, 0x03, 0x00, 0x0A, 0x00, 0x14, 0x00, 0x1E}
	if !bytes.Equal(got, want) {
		t.Errorf("expected % X, got % X", want, got)
	}
}

func TestEncodeRepeatBounds(t *testing.T) {
	reg := schema.NewRegistry()
	def := declare(t, reg, "Weapon", []schema.Field{
		fld(token.OCNT, "count"),
		fld(token.LSTC, "shots"),
		fld(token.HWRD, "damage"),
		fld(token.LSTE, ""),
	}, &schema.TypeField{Name: "shots", Repeatable: &schema.Repeatable{Lower: 1, Upper: 3}})
	asm := New(reg, nil)

	tests := []struct {
		name  string
		shots value.Value
	}{
		{"above upper", ints(1, 2, 3, 4)},
		{"below lower", ints()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := schema.NewInstance(def, 1, "")
			inst.Values["shots"] = tt.shots
			got, err := asm.Encode(def, inst)
			if !errors.Is(err, errors.RepeatOutOfBounds) {
				t.Fatalf("expected repeat out of bounds, got %v", err)
			}
			if got != nil {
				t.Errorf("no bytes may be produced, got % X", got)
			}
		})
	}
}

func TestEncodeBitPacking(t *testing.T) {
	reg := schema.NewRegistry()
	def := declare(t, reg, "Flags", []schema.Field{
		fld(token.BBIT, "a"),
		fld(token.BBIT, "b"),
		fld(token.BBIT, "c"),
		fld(token.HWRD, "n"),
		fld(token.BBIT, "d"),
	})
	inst := schema.NewInstance(def, 1, "")
	inst.Values["a"] = value.Bool(true)
	inst.Values["b"] = value.Bool(false)
	inst.Values["c"] = value.Bool(true)
	inst.Values["n"] = value.Int(1)
	inst.Values["d"] = value.Bool(true)

	got, err := New(reg, nil).Encode(def, inst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0xA0, 0x00, 0x01, 0x80}
	if !bytes.Equal(got, want) {
		t.Errorf("expected % X, got % X", want, got)
	}
}

func TestEncodeLittleEndian(t *testing.T) {
	reg := schema.NewRegistry()
	def := declare(t, reg, "T", []schema.Field{fld(token.HWRD, "a"), fld(token.DLNG, "b")})
	inst := schema.NewInstance(def, 1, "")
	inst.Values["a"] = value.Int(0x0102)
	inst.Values["b"] = value.Int(-2)

	asm := New(reg, nil)
	asm.Order = LittleEndian
	got, err := asm.Encode(def, inst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x02, 0x01, 0xFE, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(got, want) {
		t.Errorf("expected % X, got % X", want, got)
	}

	back, err := asm.Decode(def, got)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Values["a"].Int != 0x0102 || back.Values["b"].Int != -2 {
		t.Errorf("little endian round trip: got a=%s b=%s", back.Values["a"], back.Values["b"])
	}
}

func TestEncodeErrors(t *testing.T) {
	reg := schema.NewRegistry()
	def := declare(t, reg, "T", []schema.Field{
		fld(token.HBYT, "byte"),
		fld(token.PSTR, "name"),
		sized(token.CNNN, 4, "tag"),
		fld(token.RECT, "frame"),
		sized(token.HNNN, 2, "blob"),
	})
	asm := New(reg, nil)

	base := func() *schema.Instance {
		inst := schema.NewInstance(def, 1, "")
		inst.Values["byte"] = value.Int(1)
		inst.Values["name"] = value.Str("ok")
		inst.Values["tag"] = value.Str("abcd")
		inst.Values["frame"] = ints(0, 0, 10, 10)
		inst.Values["blob"] = value.Str("BEEF")
		return inst
	}
	if _, err := asm.Encode(def, base()); err != nil {
		t.Fatalf("baseline must encode: %v", err)
	}

	tests := []struct {
		name  string
		label string
		v     value.Value
		code  errors.Code
	}{
		{"byte overflow", "byte", value.Int(256), errors.ValueOutOfRange},
		{"negative unsigned", "byte", value.Int(-1), errors.ValueOutOfRange},
		{"byte from string", "byte", value.Str("1"), errors.ValueMismatch},
		{"pstr too long", "name", value.Str(strings.Repeat("x", 256)), errors.StringTooLong},
		{"not mac roman", "name", value.Str("日本"), errors.ValueMismatch},
		{"fixed too long", "tag", value.Str("hello"), errors.StringTooLong},
		{"rect arity", "frame", ints(1, 2, 3), errors.ValueMismatch},
		{"rect side", "frame", ints(0, 0, 40000, 0), errors.ValueOutOfRange},
		{"hex too long", "blob", value.Str("AABBCC"), errors.StringTooLong},
		{"bad hex", "blob", value.Str("XYZ"), errors.ValueMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := base()
			inst.Values[tt.label] = tt.v
			_, err := asm.Encode(def, inst)
			if !errors.Is(err, tt.code) {
				t.Errorf("expected E%03d, got %v", tt.code, err)
			}
		})
	}
}

func TestRoundTripAllKinds(t *testing.T) {
	reg := schema.NewRegistry()
	point := declare(t, reg, "Point", []schema.Field{fld(token.DWRD, "x"), fld(token.DWRD, "y")})

	nested := fld(token.NESTED, "origin")
	nested.Nested, nested.NestedType = point.Template, "Point"
	spawnPoint := fld(token.NESTED, "at")
	spawnPoint.Nested, spawnPoint.NestedType = point.Template, "Point"

	def := declare(t, reg, "Everything", []schema.Field{
		fld(token.DBYT, "d8"),
		fld(token.DWRD, "d16"),
		fld(token.DLNG, "d32"),
		fld(token.DQAD, "d64"),
		fld(token.HBYT, "h8"),
		fld(token.HWRD, "h16"),
		fld(token.HLNG, "h32"),
		fld(token.HQAD, "h64"),
		fld(token.RECT, "frame"),
		fld(token.PSTR, "title"),
		fld(token.CSTR, "path"),
		sized(token.CNNN, 0x10, "tag"),
		fld(token.LSTR, "story"),
		fld(token.RSRC, "sound"),
		sized(token.HNNN, 4, "magic"),
		fld(token.BBIT, "f0"),
		fld(token.BBIT, "f1"),
		fld(token.BBIT, "f2"),
		fld(token.BBIT, "f3"),
		fld(token.BBIT, "f4"),
		fld(token.BBIT, "f5"),
		fld(token.BBIT, "f6"),
		fld(token.BBIT, "f7"),
		fld(token.BBIT, "f8"),
		nested,
		fld(token.ZCNT, "spawnCount"),
		fld(token.LSTC, "spawns"),
		fld(token.HWRD, "weight"),
		fld(token.PSTR, "kind"),
		spawnPoint,
		fld(token.BBIT, "hidden"),
		fld(token.LSTE, ""),
		fld(token.LCNT, "tagCount"),
		fld(token.LSTC, "tags"),
		fld(token.CSTR, "label"),
		fld(token.LSTE, ""),
		fld(token.HEXD, "payload"),
	})

	inst := schema.NewInstance(def, 0, "")
	v := inst.Values
	v["d8"] = value.Int(-5)
	v["d16"] = value.Int(-300)
	v["d32"] = value.Int(-70000)
	v["d64"] = value.Int(-1 << 40)
	v["h8"] = value.Int(255)
	v["h16"] = value.Int(65535)
	v["h32"] = value.Int(1 << 31)
	v["h64"] = value.Int(-1)
	v["frame"] = ints(-1, 2, 300, 400)
	v["title"] = value.Str("Café Ω")
	v["path"] = value.Str("a/b")
	v["tag"] = value.Str("fixed")
	v["story"] = value.Str(strings.Repeat("long ", 80))
	v["sound"] = value.Ref("", 200)
	v["magic"] = value.Str("DEADBEEF")
	for i, on := range []bool{true, false, true, true, false, false, true, false, true} {
		v["f"+string(rune('0'+i))] = value.Bool(on)
	}
	v["origin"] = ints(-3, 4)
	v["spawnCount"] = value.Int(2)
	v["spawns"] = value.ListOf(
		value.ListOf(value.Int(1), value.Str("drone"), ints(1, 1), value.Bool(true)),
		value.ListOf(value.Int(2), value.Str("mine"), ints(2, 2), value.Bool(false)),
	)
	v["tagCount"] = value.Int(3)
	v["tags"] = value.ListOf(value.Str("x"), value.Str("y"), value.Str(""))
	v["payload"] = value.Str("0102FF")

	asm := New(reg, nil)
	data, err := asm.Encode(def, inst)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := asm.Decode(def, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !inst.Equal(back) {
		for k, want := range inst.Values {
			if got := back.Values[k]; !got.Equal(want) {
				t.Errorf("%s: expected %s, got %s", k, want, got)
			}
		}
		t.Fatalf("round trip mismatch")
	}
}

func TestRoundTripEmptyZeroCountList(t *testing.T) {
	reg := schema.NewRegistry()
	def := declare(t, reg, "T", []schema.Field{
		fld(token.ZCNT, "n"),
		fld(token.LSTC, "items"),
		fld(token.HBYT, "item"),
		fld(token.LSTE, ""),
	})
	inst := schema.NewInstance(def, 0, "")
	inst.Values["n"] = value.Int(0)
	inst.Values["items"] = ints()

	asm := New(reg, nil)
	data, err := asm.Encode(def, inst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0xFF, 0xFF}) {
		t.Errorf("empty ZCNT list should store 0xFFFF, got % X", data)
	}
	back, err := asm.Decode(def, data)
	if err != nil {
		t.Fatal(err)
	}
	if !inst.Equal(back) {
		t.Errorf("expected %v, got %v", inst.Values, back.Values)
	}
}

func TestRoundTripUncountedTrailingList(t *testing.T) {
	reg := schema.NewRegistry()
	def := declare(t, reg, "T", []schema.Field{
		fld(token.HWRD, "head"),
		fld(token.LSTC, "rest"),
		fld(token.HWRD, "a"),
		fld(token.HBYT, "b"),
		fld(token.LSTE, ""),
	})
	inst := schema.NewInstance(def, 0, "")
	inst.Values["head"] = value.Int(9)
	inst.Values["rest"] = value.ListOf(ints(1, 2), ints(3, 4))

	asm := New(reg, nil)
	data, err := asm.Encode(def, inst)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2+2*3 {
		t.Errorf("unexpected length %d", len(data))
	}
	back, err := asm.Decode(def, data)
	if err != nil {
		t.Fatal(err)
	}
	if !inst.Equal(back) {
		t.Errorf("expected %v, got %v", inst.Values, back.Values)
	}
}

func TestDefaultsAndConditions(t *testing.T) {
	reg := schema.NewRegistry()
	def := declare(t, reg, "T", []schema.Field{
		fld(token.HBYT, "armed"),
		fld(token.HWRD, "damage"),
		fld(token.HWRD, "tail"),
	},
		&schema.TypeField{Name: "damage", Condition: someExpr},
		&schema.TypeField{Name: "tail", Default: someExpr},
	)
	eval := testEval{
		defaults: map[string]value.Value{"tail": value.Int(7)},
		cond: func(values map[string]value.Value) bool {
			return values["armed"].Truthy()
		},
	}
	asm := New(reg, eval)

	armed := schema.NewInstance(def, 0, "")
	armed.Values["armed"] = value.Int(1)
	armed.Values["damage"] = value.Int(5)
	data, err := asm.Encode(def, armed)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x01, 0x00, 0x05, 0x00, 0x07}; !bytes.Equal(data, want) {
		t.Errorf("expected % X, got % X", want, data)
	}

	unarmed := schema.NewInstance(def, 0, "")
	unarmed.Values["armed"] = value.Int(0)
	unarmed.Values["damage"] = value.Int(5)
	data, err = asm.Encode(def, unarmed)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x00, 0x00, 0x07}; !bytes.Equal(data, want) {
		t.Errorf("expected % X, got % X", want, data)
	}

	back, err := asm.Decode(def, data)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := back.Values["damage"]; ok {
		t.Error("decoder must skip a field whose condition is false")
	}
	if back.Values["tail"].Int != 7 {
		t.Errorf("expected tail 7, got %s", back.Values["tail"])
	}
}

func TestConditionsInNestedTemplates(t *testing.T) {
	reg := schema.NewRegistry()
	inner := declare(t, reg, "Mount", []schema.Field{
		fld(token.HBYT, "armed"),
		fld(token.HWRD, "damage"),
		fld(token.HBYT, "arc"),
	}, &schema.TypeField{Name: "damage", Condition: someExpr})
	left := fld(token.NESTED, "left")
	left.Nested, left.NestedType = inner.Template, "Mount"
	right := fld(token.NESTED, "right")
	right.Nested, right.NestedType = inner.Template, "Mount"
	def := declare(t, reg, "Ship", []schema.Field{left, right})

	asm := New(reg, testEval{cond: func(values map[string]value.Value) bool {
		return values["armed"].Truthy()
	}})
	inst := schema.NewInstance(def, 0, "")
	inst.Values["left"] = ints(1, 5, 9)
	inst.Values["right"] = ints(0, 5, 9)
	data, err := asm.Encode(def, inst)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x01, 0x00, 0x05, 0x09, 0x00, 0x09}; !bytes.Equal(data, want) {
		t.Fatalf("expected % X, got % X", want, data)
	}

	back, err := asm.Decode(def, data)
	if err != nil {
		t.Fatal(err)
	}
	// The skipped damage keeps its slot so arc stays third.
	if got, want := back.Values["right"], ints(0, 0, 9); !got.Equal(want) {
		t.Errorf("right = %s, want %s", got, want)
	}
	again, err := asm.Encode(def, back)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, data) {
		t.Errorf("re-encoded % X, want % X", again, data)
	}
}

func TestConditionsInListElements(t *testing.T) {
	reg := schema.NewRegistry()
	def := declare(t, reg, "Cargo", []schema.Field{
		fld(token.OCNT, "n"),
		fld(token.LSTC, "items"),
		fld(token.HBYT, "kind"),
		fld(token.HWRD, "extra"),
		fld(token.LSTE, ""),
	}, &schema.TypeField{Name: "extra", Condition: someExpr})

	asm := New(reg, testEval{cond: func(values map[string]value.Value) bool {
		return values["kind"].Int == 2
	}})
	inst := schema.NewInstance(def, 0, "")
	inst.Values["items"] = value.ListOf(ints(1, 7), ints(2, 8))
	data, err := asm.Encode(def, inst)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x00, 0x02, 0x01, 0x02, 0x00, 0x08}; !bytes.Equal(data, want) {
		t.Fatalf("expected % X, got % X", want, data)
	}

	back, err := asm.Decode(def, data)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := back.Values["items"], value.ListOf(ints(1, 0), ints(2, 8)); !got.Equal(want) {
		t.Errorf("items = %s, want %s", got, want)
	}
}

func TestDecodeErrors(t *testing.T) {
	reg := schema.NewRegistry()
	def := declare(t, reg, "T", []schema.Field{
		fld(token.OCNT, "n"),
		fld(token.LSTC, "items"),
		fld(token.HWRD, "item"),
		fld(token.LSTE, ""),
		fld(token.CSTR, "name"),
	}, &schema.TypeField{Name: "items", Repeatable: &schema.Repeatable{Upper: 2}})
	asm := New(reg, nil)

	tests := []struct {
		name string
		data []byte
		code errors.Code
	}{
		{"truncated count", []byte{0x00}, errors.TruncatedData},
		{"truncated element", []byte{0x00, 0x01, 0x00}, errors.TruncatedData},
		{"count above bound", []byte{0x00, 0x03, 0, 1, 0, 2, 0, 3, 0}, errors.RepeatOutOfBounds},
		{"unterminated string", []byte{0x00, 0x00, 'a', 'b'}, errors.TruncatedData},
		{"trailing bytes", []byte{0x00, 0x00, 'a', 0, 0xFF}, errors.ValueMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := asm.Decode(def, tt.data)
			if !errors.Is(err, tt.code) {
				t.Errorf("expected E%03d, got %v", tt.code, err)
			}
		})
	}
}

func TestNestedDepthGuard(t *testing.T) {
	reg := schema.NewRegistry()
	def := declare(t, reg, "Loop", []schema.Field{fld(token.HBYT, "n")})
	// Registration refuses self nesting, so build the loop by hand.
	self := fld(token.NESTED, "self")
	self.Nested, self.NestedType = def.Template, "Loop"
	tpl := reg.Template(def.Template)
	tpl.Fields = append(tpl.Fields, self)
	if err := tpl.Link(); err != nil {
		t.Fatal(err)
	}

	asm := New(reg, nil)
	asm.MaxDepth = 4
	_, err := asm.Encode(def, schema.NewInstance(def, 0, ""))
	if !errors.Is(err, errors.TemplateRecursion) {
		t.Errorf("expected recursion guard, got %v", err)
	}
	_, err = asm.Decode(def, bytes.Repeat([]byte{1}, 16))
	if !errors.Is(err, errors.TemplateRecursion) {
		t.Errorf("expected recursion guard on decode, got %v", err)
	}
}
