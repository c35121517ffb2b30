package generator

import (
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/schema"
)

// derived returns the labels whose values a recompile computes itself:
// count fields, repeatable count targets and synthesized fields. Builtin
// fields are included since instances may not assign them.
func derived(def *schema.TypeDefinition, tpl *schema.Template) map[string]bool {
	out := make(map[string]bool)
	for i := range tpl.Fields {
		if schema.IsCount(tpl.Fields[i].Prim) {
			out[tpl.Fields[i].Label] = true
		}
	}
	for _, tf := range def.Fields {
		if tf.Synthesize || tf.Builtin {
			out[tf.Name] = true
		}
		if tf.Repeatable != nil && tf.Repeatable.CountField != "" {
			out[tf.Repeatable.CountField] = true
		}
	}
	return out
}
