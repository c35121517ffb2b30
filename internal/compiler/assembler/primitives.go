package assembler

import (
	"encoding/binary"

	"golang.org/x/exp/constraints"
	"golang.org/x/text/encoding/charmap"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/token"
)

// intCodec describes a fixed width integer primitive.
type intCodec struct {
	size   int
	fits   func(v int64) bool
	extend func(raw uint64) int64
}

func codecOf[T constraints.Integer](size int) intCodec {
	return intCodec{
		size: size,
		// A value fits when it survives the round trip through T. For
		// uint64 every int64 does, which lets HQAD carry the full range.
		fits:   func(v int64) bool { return int64(T(v)) == v },
		extend: func(raw uint64) int64 { return int64(T(raw)) },
	}
}

var integers = map[token.Primitive]intCodec{
	token.DBYT: codecOf[int8](1),
	token.DWRD: codecOf[int16](2),
	token.DLNG: codecOf[int32](4),
	token.DQAD: codecOf[int64](8),
	token.HBYT: codecOf[uint8](1),
	token.HWRD: codecOf[uint16](2),
	token.HLNG: codecOf[uint32](4),
	token.HQAD: codecOf[uint64](8),
	token.RSRC: codecOf[int64](8),
	token.OCNT: codecOf[uint16](2),
	token.ZCNT: codecOf[uint16](2),
	token.LCNT: codecOf[uint32](4),
}

var rectSide = codecOf[int16](2)

// maxCount is the largest element count a count primitive can store.
func maxCount(p token.Primitive) int64 {
	switch p {
	case token.OCNT, token.ZCNT:
		// ZCNT stores count-1, so 0xFFFF is reserved for an empty list.
		return 0xFFFF
	case token.LCNT:
		return 0xFFFFFFFF
	}
	return 1<<31 - 1
}

func appendUint(b []byte, order binary.AppendByteOrder, size int, u uint64) []byte {
	switch size {
	case 1:
		return append(b, byte(u))
	case 2:
		return order.AppendUint16(b, uint16(u))
	case 4:
		return order.AppendUint32(b, uint32(u))
	}
	return order.AppendUint64(b, u)
}

func readUint(b []byte, order binary.ByteOrder, size int) uint64 {
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	}
	return order.Uint64(b)
}

// Order is a byte order usable for both directions.
type Order interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

var (
	BigEndian    Order = binary.BigEndian
	LittleEndian Order = binary.LittleEndian
)

func macRoman(s string) ([]byte, error) {
	return charmap.Macintosh.NewEncoder().Bytes([]byte(s))
}

func fromMacRoman(b []byte) string {
	out, err := charmap.Macintosh.NewDecoder().Bytes(b)
	if err != nil {
		// Every byte has a mapping in Mac OS Roman.
		return string(b)
	}
	return string(out)
}
