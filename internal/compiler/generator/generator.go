// Package generator renders decoded resources back into KDL source, so a
// compiled container can be edited and recompiled.
package generator

import (
	"fmt"
	"strings"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/schema"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/tokenizer"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/utils"
)

type Generator struct {
	Registry *schema.Registry
	// Header is written as a line comment at the top of the output.
	Header string
}

func New(reg *schema.Registry) *Generator {
	return &Generator{Registry: reg}
}

// Generate renders one `new` declaration per instance, in the given order.
// Each instance must carry its type, id, name and namespace. Values that
// recompiling would derive again (counts, synthesized and builtin fields)
// are left out.
func (g *Generator) Generate(insts []*schema.Instance) (string, error) {
	var b strings.Builder

	if g.Header != "" {
		for _, line := range strings.Split(g.Header, "\n") {
			b.WriteString("// " + line + "\n")
		}
		b.WriteString("\n")
	}

	namespace := ""
	var last *schema.TypeDefinition
	for _, inst := range insts {
		if inst.Type == nil {
			return "", fmt.Errorf("resource #%d has no type", inst.Ref.ID)
		}
		if ns := inst.Ref.Namespace; ns != namespace {
			if ns == "" {
				b.WriteString("@namespace;\n\n")
			} else {
				b.WriteString(fmt.Sprintf("@namespace %s;\n\n", ns))
			}
			namespace = ns
			last = nil
		}
		if inst.Type != last {
			b.WriteString(fmt.Sprintf("// ========== %s (%s) ==========\n\n", inst.Type.QualifiedName(), inst.Type.Code))
			last = inst.Type
		}

		decl, err := g.genResource(inst, namespace)
		if err != nil {
			return "", err
		}
		b.WriteString(decl)
		b.WriteString("\n")
	}

	// The output must at least tokenize, or it cannot be read back.
	out := b.String()
	if _, err := tokenizer.TokenizeSource("generated.kdl", out); err != nil {
		return out, fmt.Errorf("generated source does not tokenize: %w", err)
	}
	return out, nil
}

func (g *Generator) genResource(inst *schema.Instance, namespace string) (string, error) {
	def := inst.Type
	tpl := g.Registry.Template(def.Template)
	if tpl == nil {
		return "", fmt.Errorf("type %s has no template", def.QualifiedName())
	}

	typeName := def.Name
	if def.Namespace != namespace {
		typeName = utils.Qualify(def.Namespace, def.Name)
	}

	args := []string{fmt.Sprintf("%d", inst.Ref.ID)}
	if inst.Name != "" {
		args = append(args, utils.Quote(inst.Name))
	}

	var body strings.Builder
	skip := derived(def, tpl)
	for _, label := range tpl.Labels() {
		if skip[label] {
			continue
		}
		v, ok := inst.Values[label]
		if !ok || v.IsNil() {
			continue
		}
		body.WriteString(fmt.Sprintf("%s = %s;\n", label, genValue(v)))
	}

	head := fmt.Sprintf("new %s (%s)", typeName, strings.Join(args, ", "))
	if body.Len() == 0 {
		return head + ";\n", nil
	}
	return head + " {\n" + utils.Indent(body.String(), 1) + "};\n", nil
}
