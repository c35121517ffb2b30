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

// sink receives the values of one decoding walk.
type sink interface {
	put(f *schema.Field, v value.Value)
	count(f *schema.Field, n int64)
	enabled(f *schema.Field) (bool, error)
	// skip records a field whose condition did not hold.
	skip(f *schema.Field)
}

type keyedSink struct {
	a      *Assembler
	def    *schema.TypeDefinition
	values map[string]value.Value
}

func (k *keyedSink) put(f *schema.Field, v value.Value) { k.values[f.Label] = v }

func (k *keyedSink) count(f *schema.Field, n int64) { k.values[f.Label] = value.Int(n) }

func (k *keyedSink) skip(*schema.Field) {}

// enabled re-evaluates a field condition against what has been decoded
// so far.
func (k *keyedSink) enabled(f *schema.Field) (bool, error) {
	if tf := k.a.conditional(k.def, f); tf != nil {
		return k.a.Eval.Condition(k.def, tf, k.values)
	}
	return true, nil
}

// positionalSink collects one value per slot. A skipped field keeps its
// slot with a zero value so later fields stay in place.
type positionalSink struct {
	a      *Assembler
	owner  *schema.TypeDefinition
	vals   []value.Value
	labels map[string]value.Value
}

func (a *Assembler) positionalSink(owner *schema.TypeDefinition) *positionalSink {
	return &positionalSink{a: a, owner: owner, labels: make(map[string]value.Value)}
}

func (p *positionalSink) put(f *schema.Field, v value.Value) {
	p.vals = append(p.vals, v)
	p.labels[f.Label] = v
}

func (p *positionalSink) count(*schema.Field, int64) {}

func (p *positionalSink) skip(f *schema.Field) { p.put(f, Zero(f)) }

func (p *positionalSink) enabled(f *schema.Field) (bool, error) {
	if tf := p.a.conditional(p.owner, f); tf != nil {
		return p.a.Eval.Condition(p.owner, tf, p.labels)
	}
	return true, nil
}

type decoder struct {
	*Assembler
	data  []byte
	pos   int
	bits  byte
	nbits int
	depth int
}

// Decode reads data against the template of def. The returned instance
// carries no id or name; the caller knows those from the container.
func (a *Assembler) Decode(def *schema.TypeDefinition, data []byte) (*schema.Instance, error) {
	tpl, err := a.template(def)
	if err != nil {
		return nil, err
	}
	inst := schema.NewInstance(def, 0, "")
	d := &decoder{Assembler: a, data: data}
	dst := &keyedSink{a: a, def: def, values: inst.Values}
	if err := d.span(tpl, def, 0, len(tpl.Fields), dst); err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, errors.New(errors.PhaseEncoder, errors.ValueMismatch, def.Pos.Diag(),
			"%d trailing bytes after %s", len(d.data)-d.pos, def.Name)
	}
	return inst, nil
}

func (d *decoder) take(f *schema.Field, n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, fail(errors.TruncatedData, f, "%s needs %d bytes at offset %d, %d left",
			f.Label, n, d.pos, len(d.data)-d.pos)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) word(f *schema.Field, size int) (uint64, error) {
	b, err := d.take(f, size)
	if err != nil {
		return 0, err
	}
	return readUint(b, d.Order, size), nil
}

func (d *decoder) span(tpl *schema.Template, owner *schema.TypeDefinition, from, to int, dst sink) error {
	for i := from; i < to; i++ {
		f := &tpl.Fields[i]
		if schema.IsCount(f.Prim) {
			continue
		}
		on, err := dst.enabled(f)
		if err != nil {
			return err
		}
		if !on {
			dst.skip(f)
			if f.Prim == token.LSTC {
				i = f.Match
			}
			continue
		}

		if f.Prim == token.LSTC {
			v, n, err := d.list(tpl, owner, i)
			if err != nil {
				return err
			}
			dst.put(f, v)
			if f.Count >= 0 {
				dst.count(&tpl.Fields[f.Count], n)
			}
			i = f.Match
			continue
		}

		v, err := d.field(f)
		if err != nil {
			return err
		}
		dst.put(f, v)
	}
	return nil
}

func (d *decoder) list(tpl *schema.Template, owner *schema.TypeDefinition, at int) (value.Value, int64, error) {
	f := &tpl.Fields[at]
	d.nbits = 0

	n := int64(-1)
	if f.Count >= 0 {
		c := &tpl.Fields[f.Count]
		raw, err := d.word(c, integers[c.Prim].size)
		if err != nil {
			return value.Value{}, 0, err
		}
		n = int64(raw)
		if c.Prim == token.ZCNT {
			n = (n + 1) & 0xFFFF
		}
	}
	lo, hi := bounds(owner, tpl, at)
	if n > hi || (n >= 0 && n < lo) {
		return value.Value{}, 0, fail(errors.RepeatOutOfBounds, f, "%s stores %d elements, allowed %d to %d", f.Label, n, lo, hi)
	}

	single := tpl.Slots(at+1, f.Match) == 1
	elems := []value.Value{}
	for k := int64(0); ; k++ {
		if n >= 0 && k >= n {
			break
		}
		if n < 0 && d.pos >= len(d.data) {
			break
		}
		start := d.pos
		ps := d.positionalSink(owner)
		if err := d.span(tpl, owner, at+1, f.Match, ps); err != nil {
			return value.Value{}, 0, err
		}
		d.nbits = 0
		if n < 0 && d.pos == start {
			return value.Value{}, 0, fail(errors.MalformedTemplate, f, "elements of %s occupy no bytes", f.Label)
		}
		if single {
			elems = append(elems, ps.vals[0])
		} else {
			elems = append(elems, value.ListOf(ps.vals...))
		}
	}

	count := int64(len(elems))
	if count < lo || count > hi {
		return value.Value{}, 0, fail(errors.RepeatOutOfBounds, f, "%s stores %d elements, allowed %d to %d", f.Label, count, lo, hi)
	}
	return value.ListOf(elems...), count, nil
}

func (d *decoder) field(f *schema.Field) (value.Value, error) {
	if f.Prim != token.BBIT {
		d.nbits = 0
	}

	switch f.Prim {
	case token.BBIT:
		if d.nbits == 0 {
			b, err := d.take(f, 1)
			if err != nil {
				return value.Value{}, err
			}
			d.bits = b[0]
		}
		on := d.bits&(0x80>>uint(d.nbits)) != 0
		d.nbits = (d.nbits + 1) % 8
		return value.Bool(on), nil

	case token.RECT:
		sides := make([]value.Value, 4)
		for i := range sides {
			raw, err := d.word(f, 2)
			if err != nil {
				return value.Value{}, err
			}
			sides[i] = value.Int(rectSide.extend(raw))
		}
		return value.ListOf(sides...), nil

	case token.PSTR:
		n, err := d.word(f, 1)
		if err != nil {
			return value.Value{}, err
		}
		b, err := d.take(f, int(n))
		if err != nil {
			return value.Value{}, err
		}
		return value.Str(fromMacRoman(b)), nil

	case token.CSTR:
		end := bytes.IndexByte(d.data[d.pos:], 0)
		if end < 0 {
			return value.Value{}, fail(errors.TruncatedData, f, "%s is not NUL terminated", f.Label)
		}
		b, _ := d.take(f, end+1)
		return value.Str(fromMacRoman(b[:end])), nil

	case token.CNNN:
		b, err := d.take(f, f.Width)
		if err != nil {
			return value.Value{}, err
		}
		if end := bytes.IndexByte(b, 0); end >= 0 {
			b = b[:end]
		}
		return value.Str(fromMacRoman(b)), nil

	case token.LSTR:
		n, err := d.word(f, 4)
		if err != nil {
			return value.Value{}, err
		}
		b, err := d.take(f, int(n))
		if err != nil {
			return value.Value{}, err
		}
		return value.Str(fromMacRoman(b)), nil

	case token.HEXD:
		b, _ := d.take(f, len(d.data)-d.pos)
		return hexValue(b), nil

	case token.HNNN:
		b, err := d.take(f, f.Width)
		if err != nil {
			return value.Value{}, err
		}
		return hexValue(b), nil

	case token.NESTED:
		return d.nested(f)

	case token.RSRC:
		raw, err := d.word(f, 8)
		if err != nil {
			return value.Value{}, err
		}
		return value.Ref("", integers[token.RSRC].extend(raw)), nil
	}

	codec, ok := integers[f.Prim]
	if !ok {
		return value.Value{}, fail(errors.MalformedTemplate, f, "cannot decode %s", f.Prim)
	}
	raw, err := d.word(f, codec.size)
	if err != nil {
		return value.Value{}, err
	}
	return value.Int(codec.extend(raw)), nil
}

func (d *decoder) nested(f *schema.Field) (value.Value, error) {
	if d.depth >= d.maxDepth() {
		return value.Value{}, fail(errors.TemplateRecursion, f, "nested templates deeper than %d", d.maxDepth())
	}
	if !d.Registry.Valid(f.Nested) {
		return value.Value{}, fail(errors.MalformedTemplate, f, "unknown nested template %s", f.NestedType)
	}
	d.depth++
	defer func() { d.depth-- }()

	tpl := d.Registry.Template(f.Nested)
	owner := d.Registry.Owner(f.Nested)
	ps := d.positionalSink(owner)
	if err := d.span(tpl, owner, 0, len(tpl.Fields), ps); err != nil {
		return value.Value{}, err
	}
	d.nbits = 0
	return value.ListOf(ps.vals...), nil
}

func hexValue(b []byte) value.Value {
	return value.Str(strings.ToUpper(hex.EncodeToString(b)))
}
