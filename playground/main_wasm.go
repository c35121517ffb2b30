//go:build js && wasm

package main

import (
	"encoding/hex"
	"fmt"
	"syscall/js"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler"
)

func main() {
	js.Global().Set("compileKDL", js.FuncOf(compileKDLWrapper))

	// Keep the program alive
	select {}
}

// compileKDLWrapper wraps the compilation logic with panic recovery
func compileKDLWrapper(this js.Value, args []js.Value) (result interface{}) {
	defer func() {
		if r := recover(); r != nil {
			result = js.ValueOf(map[string]interface{}{
				"resources": []interface{}{},
				"output":    []interface{}{},
				"errors":    []interface{}{fmt.Sprintf("panic: %v", r)},
			})
		}
	}()

	if len(args) != 1 {
		return js.ValueOf(map[string]interface{}{
			"resources": []interface{}{},
			"output":    []interface{}{},
			"errors":    []interface{}{"expected 1 argument (source code)"},
		})
	}

	return js.ValueOf(compileKDL(args[0].String()))
}

// compileKDL compiles a single source. Imports only resolve against files
// registered in memory, so in the browser they fail with a diagnostic.
func compileKDL(source string) map[string]interface{} {
	c := compiler.New(compiler.Options{})
	out, errs := c.CompileSource("playground.kdl", source)

	resources := []interface{}{}
	for _, r := range out.Resources() {
		resources = append(resources, map[string]interface{}{
			"type":      r.Type,
			"namespace": r.Namespace,
			"id":        r.ID,
			"name":      r.Name,
			"hex":       hex.EncodeToString(r.Data),
		})
	}

	output := []interface{}{}
	for _, line := range c.Output() {
		output = append(output, line)
	}

	diags := []interface{}{}
	for _, e := range errs.Errors {
		diags = append(diags, e.Error())
	}

	return map[string]interface{}{
		"resources": resources,
		"output":    output,
		"errors":    diags,
	}
}
