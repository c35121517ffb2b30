package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/assets"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/rsrc"
)

// commonFlags are shared by the commands that compile sources.
type commonFlags struct {
	config  *string
	include stringList
	verbose *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{
		config:  fs.String("config", "", "project file (default: ./"+defaultConfig+" when present)"),
		verbose: fs.Bool("v", false, "log progress to stderr"),
	}
	fs.Var(&c.include, "I", "additional import search directory (repeatable)")
	return c
}

func (c *commonFlags) load() (*Config, error) {
	cfg, err := loadConfig(*c.config, *c.config != "")
	if err != nil {
		return nil, err
	}
	if *c.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// compileBatch compiles files, falling back to the configured sources,
// and prints every diagnostic. ok is false when any error was reported.
func compileBatch(cfg *Config, include, files []string) (c *compiler.Compiler, out *rsrc.File, ok bool) {
	if len(files) == 0 {
		files = cfg.Sources
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "kdlc: no input files")
		return nil, nil, false
	}

	c = compiler.New(cfg.options(newLogger(cfg.level()), include))
	out, errs := c.CompileFiles(files...)
	for _, line := range c.Output() {
		fmt.Println(line)
	}
	n := printDiagnostics(os.Stderr, errs, colorFor(os.Stderr))
	return c, out, n == 0
}

func cmdCompile(args []string) int {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	common := addCommonFlags(fs)
	output := fs.String("o", "", "output database (default: database from the project file)")
	update := fs.Bool("update", false, "add or replace the compiled resources and keep the rest of the database")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kdlc compile [-o out.db] [-update] [-config kdl.toml] [-I dir] <files...>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kdlc: %v\n", err)
		return 1
	}
	_, out, ok := compileBatch(cfg, common.include, fs.Args())
	if out == nil {
		return 1
	}

	db := cfg.Database
	if *output != "" {
		db = *output
	}
	store, err := assets.Open(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kdlc: %v\n", err)
		return 1
	}
	defer store.Close()
	if err := writeStore(store, out, *update); err != nil {
		fmt.Fprintf(os.Stderr, "kdlc: saving %s: %v\n", db, err)
		return 1
	}

	fmt.Fprintf(os.Stderr, "wrote %d resources to %s\n", out.Len(), db)
	if !ok {
		return 1
	}
	return 0
}
