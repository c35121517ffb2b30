package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/rsrc"
)

func cmdDump(args []string) int {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	common := addCommonFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kdlc dump [-config kdl.toml] [-I dir] <files...>\n\nFlags:\n")
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
	dump(os.Stdout, out)
	if !ok {
		return 1
	}
	return 0
}

// dump prints each resource header followed by a hex listing of its data.
func dump(w io.Writer, f *rsrc.File) {
	fmt.Fprintf(w, "; %d resources, %s endian\n", f.Len(), endian(f.LittleEndian))
	for _, r := range f.Resources() {
		name := ""
		if r.Name != "" {
			name = " " + r.Name
		}
		fmt.Fprintf(w, "\n%s%s (%d bytes)\n", r.Key(), name, len(r.Data))
		if len(r.Data) > 0 {
			fmt.Fprint(w, strings.TrimSuffix(hex.Dump(r.Data), "\n")+"\n")
		}
	}
}
