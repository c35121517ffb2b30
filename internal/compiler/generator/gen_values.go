package generator

import (
	"strconv"
	"strings"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/utils"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/value"
)

// genValue renders v as a KDL literal the lexer reads back unchanged.
func genValue(v value.Value) string {
	switch v.Kind {
	case value.Integer:
		return strconv.FormatInt(v.Int, 10)
	case value.String:
		return utils.Quote(v.Str)
	case value.Boolean:
		return strconv.FormatBool(v.Bool)
	case value.Reference:
		return v.Ref.String()
	case value.List:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = genValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	// Nil has no literal; an empty list is the closest zero value.
	return "[]"
}
