package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/errors"
)

const (
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorDim    = "\x1b[2m"
	colorReset  = "\x1b[0m"
)

// colorFor reports whether f is a terminal that should get ANSI colours.
func colorFor(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// printDiagnostics writes one line per diagnostic, plus the offending text
// when known. It returns the number of errors, warnings excluded.
func printDiagnostics(w io.Writer, errs *errors.ErrorList, color bool) int {
	n := 0
	for _, e := range errs.Errors {
		label, tint := "error", colorRed
		if e.Warning {
			label, tint = "warning", colorYellow
		} else {
			n++
		}
		if e.Fatal {
			label = "fatal"
		}
		if !color {
			tint = ""
		}
		reset := ""
		if tint != "" {
			reset = colorReset
		}
		fmt.Fprintf(w, "%s: %s%s[%d]%s %s\n", e.Pos, tint, label, e.Code, reset, e.Message)
		if e.Text != "" {
			if color {
				fmt.Fprintf(w, "    %snear %q%s\n", colorDim, e.Text, colorReset)
			} else {
				fmt.Fprintf(w, "    near %q\n", e.Text)
			}
		}
	}
	return n
}
