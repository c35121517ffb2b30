package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/assets"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/compiler/generator"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/rsrc"
)

func cmdDecode(args []string) int {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	common := addCommonFlags(fs)
	input := fs.String("db", "", "database to decode (default: database from the project file)")
	only := fs.String("type", "", "decode only resources of this type code")
	ns := fs.String("ns", "", "namespace of the resource selected with -id")
	id := fs.Int64("id", 0, "decode only the resource with this id (needs -type)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kdlc decode [-db in.db] [-type code [-ns namespace] [-id n]] <type definition files...>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kdlc: %v\n", err)
		return 1
	}
	db := cfg.Database
	if *input != "" {
		db = *input
	}

	store, err := assets.Open(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kdlc: %v\n", err)
		return 1
	}
	defer store.Close()
	sel := selection{code: *only, namespace: *ns, id: *id}
	fs.Visit(func(f *flag.Flag) { sel.hasID = sel.hasID || f.Name == "id" })
	file, err := sel.load(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kdlc: loading %s: %v\n", db, err)
		return 1
	}

	// The definitions are compiled for their types; any resources they
	// declare themselves are ignored.
	c, _, ok := compileBatch(cfg, common.include, fs.Args())
	if c == nil {
		return 1
	}
	insts, errs := c.Decode(file)
	if printDiagnostics(os.Stderr, errs, colorFor(os.Stderr)) > 0 {
		ok = false
	}

	g := generator.New(c.Session.Templates)
	g.Header = fmt.Sprintf("decoded from %s", db)
	src, err := g.Generate(insts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kdlc: %v\n", err)
		return 1
	}
	fmt.Print(src)
	if !ok {
		return 1
	}
	return 0
}

func filterType(f *rsrc.File, code string) *rsrc.File {
	out := rsrc.New()
	out.LittleEndian = f.LittleEndian
	for k, v := range f.Metadata {
		out.Metadata[k] = v
	}
	for _, r := range f.Resources() {
		if r.Type == code {
			_ = out.Add(r)
		}
	}
	return out
}
