package assembler

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/schema"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

// source yields the values of one template walk.
type source interface {
	value(f *schema.Field, slot int) (value.Value, error)
	enabled(f *schema.Field) (bool, error)
}

// keyed serves top-level fields by label.
type keyed struct {
	a      *Assembler
	def    *schema.TypeDefinition
	values map[string]value.Value
}

func (k *keyed) value(f *schema.Field, _ int) (value.Value, error) {
	if v, ok := k.values[f.Label]; ok {
		return v, nil
	}
	return k.a.fallback(k.def, f)
}

func (k *keyed) enabled(f *schema.Field) (bool, error) {
	if tf := k.a.conditional(k.def, f); tf != nil {
		return k.a.Eval.Condition(k.def, tf, k.values)
	}
	return true, nil
}

// positional serves nested templates and list elements by slot. Field
// conditions see the values of tpl.Fields[from:to] bound by label.
type positional struct {
	a        *Assembler
	owner    *schema.TypeDefinition
	tpl      *schema.Template
	from, to int
	list     []value.Value
	labels   map[string]value.Value
}

func (a *Assembler) positional(owner *schema.TypeDefinition, tpl *schema.Template, from, to int, list []value.Value) *positional {
	return &positional{a: a, owner: owner, tpl: tpl, from: from, to: to, list: list}
}

func (p *positional) value(f *schema.Field, slot int) (value.Value, error) {
	if slot < len(p.list) {
		return p.list[slot], nil
	}
	return p.a.fallback(p.owner, f)
}

func (p *positional) enabled(f *schema.Field) (bool, error) {
	tf := p.a.conditional(p.owner, f)
	if tf == nil {
		return true, nil
	}
	if p.labels == nil {
		p.labels = make(map[string]value.Value)
		slot := 0
		for i := p.from; i < p.to; i++ {
			g := &p.tpl.Fields[i]
			if !g.HoldsValue() {
				continue
			}
			v, err := p.value(g, slot)
			if err != nil {
				return false, err
			}
			p.labels[g.Label] = v
			slot++
			if g.Prim == token.LSTC {
				i = g.Match
			}
		}
	}
	return p.a.Eval.Condition(p.owner, tf, p.labels)
}

type encoder struct {
	*Assembler
	buf   []byte
	bits  byte
	nbits int
	depth int
}

// Encode walks the template of def and returns the bytes of inst.
func (a *Assembler) Encode(def *schema.TypeDefinition, inst *schema.Instance) ([]byte, error) {
	tpl, err := a.template(def)
	if err != nil {
		return nil, err
	}
	e := &encoder{Assembler: a}
	src := &keyed{a: a, def: def, values: inst.Values}
	if err := e.span(tpl, def, 0, len(tpl.Fields), src); err != nil {
		return nil, err
	}
	e.flush()
	return e.buf, nil
}

// flush closes a partially filled BBIT byte.
func (e *encoder) flush() {
	if e.nbits > 0 {
		e.buf = append(e.buf, e.bits)
	}
	e.bits, e.nbits = 0, 0
}

func (e *encoder) span(tpl *schema.Template, owner *schema.TypeDefinition, from, to int, src source) error {
	slot := 0
	for i := from; i < to; i++ {
		f := &tpl.Fields[i]
		if schema.IsCount(f.Prim) {
			// Written together with the list that follows.
			continue
		}
		on, err := src.enabled(f)
		if err != nil {
			return err
		}
		if !on {
			if f.Prim == token.LSTC {
				i = f.Match
			}
			slot++
			continue
		}

		v, err := src.value(f, slot)
		if err != nil {
			return err
		}
		slot++

		if f.Prim == token.LSTC {
			if err := e.list(tpl, owner, i, v); err != nil {
				return err
			}
			i = f.Match
			continue
		}
		if err := e.field(f, v); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) list(tpl *schema.Template, owner *schema.TypeDefinition, at int, v value.Value) error {
	f := &tpl.Fields[at]
	if v.IsNil() {
		v = value.ListOf()
	}
	if v.Kind != value.List {
		return fail(errors.ValueMismatch, f, "%s expects a List, got %s", f.Label, v.Kind)
	}

	n := int64(len(v.List))
	lo, hi := bounds(owner, tpl, at)
	if n < lo || n > hi {
		return fail(errors.RepeatOutOfBounds, f, "%s has %d elements, allowed %d to %d", f.Label, n, lo, hi)
	}

	e.flush()
	if f.Count >= 0 {
		c := &tpl.Fields[f.Count]
		stored := n
		if c.Prim == token.ZCNT {
			stored = n - 1
		}
		e.buf = appendUint(e.buf, e.Order, integers[c.Prim].size, uint64(stored))
	}

	slots := tpl.Slots(at+1, f.Match)
	for idx, elem := range v.List {
		items := []value.Value{elem}
		if slots != 1 {
			if elem.Kind != value.List || len(elem.List) > slots {
				return fail(errors.ValueMismatch, f, "element %d of %s must be a List of %d values", idx, f.Label, slots)
			}
			items = elem.List
		}
		if err := e.span(tpl, owner, at+1, f.Match, e.positional(owner, tpl, at+1, f.Match, items)); err != nil {
			return err
		}
		e.flush()
	}
	return nil
}

func (e *encoder) field(f *schema.Field, v value.Value) error {
	if f.Prim != token.BBIT {
		e.flush()
	}

	switch f.Prim {
	case token.BBIT:
		on, err := boolOf(f, v)
		if err != nil {
			return err
		}
		if on {
			e.bits |= 0x80 >> uint(e.nbits)
		}
		e.nbits++
		if e.nbits == 8 {
			e.flush()
		}
		return nil

	case token.RECT:
		if v.Kind != value.List || len(v.List) != 4 {
			return fail(errors.ValueMismatch, f, "%s expects rect(top, left, bottom, right)", f.Label)
		}
		for _, side := range v.List {
			n, err := intOf(f, side)
			if err != nil {
				return err
			}
			if !rectSide.fits(n) {
				return fail(errors.ValueOutOfRange, f, "rect side %d of %s does not fit 16 bits", n, f.Label)
			}
			e.buf = appendUint(e.buf, e.Order, 2, uint64(n))
		}
		return nil

	case token.PSTR, token.CSTR, token.CNNN, token.LSTR:
		return e.text(f, v)

	case token.HEXD, token.HNNN:
		b, err := hexOf(f, v)
		if err != nil {
			return err
		}
		if f.Prim == token.HNNN {
			if len(b) > f.Width {
				return fail(errors.StringTooLong, f, "%s holds %d bytes, got %d", f.Label, f.Width, len(b))
			}
			b = append(b, make([]byte, f.Width-len(b))...)
		}
		e.buf = append(e.buf, b...)
		return nil

	case token.NESTED:
		return e.nested(f, v)
	}

	codec, ok := integers[f.Prim]
	if !ok {
		return fail(errors.MalformedTemplate, f, "cannot encode %s", f.Prim)
	}
	n, err := intOf(f, v)
	if err != nil {
		return err
	}
	if !codec.fits(n) {
		return fail(errors.ValueOutOfRange, f, "%d does not fit %s %s", n, f.Prim, f.Label)
	}
	e.buf = appendUint(e.buf, e.Order, codec.size, uint64(n))
	return nil
}

func (e *encoder) text(f *schema.Field, v value.Value) error {
	if v.Kind != value.String {
		return fail(errors.ValueMismatch, f, "%s expects a String, got %s", f.Label, v.Kind)
	}
	b, err := macRoman(v.Str)
	if err != nil {
		return fail(errors.ValueMismatch, f, "%q has characters outside Mac OS Roman", v.Str)
	}

	switch f.Prim {
	case token.PSTR:
		if len(b) > 255 {
			return fail(errors.StringTooLong, f, "%s is %d bytes, PSTR holds 255", f.Label, len(b))
		}
		e.buf = append(e.buf, byte(len(b)))
		e.buf = append(e.buf, b...)
	case token.CSTR:
		if bytes.IndexByte(b, 0) >= 0 {
			return fail(errors.ValueMismatch, f, "%s contains a NUL byte", f.Label)
		}
		e.buf = append(e.buf, b...)
		e.buf = append(e.buf, 0)
	case token.CNNN:
		if len(b) > f.Width {
			return fail(errors.StringTooLong, f, "%s is %d bytes, field holds %d", f.Label, len(b), f.Width)
		}
		e.buf = append(e.buf, b...)
		e.buf = append(e.buf, make([]byte, f.Width-len(b))...)
	case token.LSTR:
		if int64(len(b)) > 0xFFFFFFFF {
			return fail(errors.StringTooLong, f, "%s is too long for LSTR", f.Label)
		}
		e.buf = appendUint(e.buf, e.Order, 4, uint64(len(b)))
		e.buf = append(e.buf, b...)
	}
	return nil
}

func (e *encoder) nested(f *schema.Field, v value.Value) error {
	if e.depth >= e.maxDepth() {
		return fail(errors.TemplateRecursion, f, "nested templates deeper than %d", e.maxDepth())
	}
	if !e.Registry.Valid(f.Nested) {
		return fail(errors.MalformedTemplate, f, "unknown nested template %s", f.NestedType)
	}
	if v.IsNil() {
		v = value.ListOf()
	}
	tpl := e.Registry.Template(f.Nested)
	if v.Kind != value.List || len(v.List) > tpl.Slots(0, len(tpl.Fields)) {
		return fail(errors.ValueMismatch, f, "%s expects a List of %s values", f.Label, f.NestedType)
	}

	e.depth++
	defer func() { e.depth-- }()
	owner := e.Registry.Owner(f.Nested)
	if err := e.span(tpl, owner, 0, len(tpl.Fields), e.positional(owner, tpl, 0, len(tpl.Fields), v.List)); err != nil {
		return err
	}
	e.flush()
	return nil
}

func intOf(f *schema.Field, v value.Value) (int64, error) {
	switch v.Kind {
	case value.Integer:
		return v.Int, nil
	case value.Boolean:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	case value.Reference:
		return v.Ref.ID, nil
	}
	return 0, fail(errors.ValueMismatch, f, "%s expects an Integer, got %s", f.Label, v.Kind)
}

func boolOf(f *schema.Field, v value.Value) (bool, error) {
	switch v.Kind {
	case value.Boolean:
		return v.Bool, nil
	case value.Integer:
		return v.Int != 0, nil
	}
	return false, fail(errors.ValueMismatch, f, "%s expects a Boolean, got %s", f.Label, v.Kind)
}

func hexOf(f *schema.Field, v value.Value) ([]byte, error) {
	if v.Kind != value.String {
		return nil, fail(errors.ValueMismatch, f, "%s expects a hex String, got %s", f.Label, v.Kind)
	}
	digits := strings.Join(strings.Fields(v.Str), "")
	b, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fail(errors.ValueMismatch, f, "%s: %q is not hex data", f.Label, v.Str)
	}
	return b, nil
}
