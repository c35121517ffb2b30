package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/assets"
	"github.com/Evocation-Games/KestrelEngine-sub008/internal/rsrc"
)

// writeStore stores f. Without update the database is replaced; with it
// the compiled resources are added or replaced one by one and everything
// else in the database is kept.
func writeStore(s *assets.Store, f *rsrc.File, update bool) error {
	if !update {
		return s.Save(f)
	}
	prev, err := s.Load()
	if err != nil {
		return err
	}
	if prev.Len() == 0 {
		return s.Save(f)
	}
	if prev.LittleEndian != f.LittleEndian {
		return fmt.Errorf("database is %s endian, batch is %s endian", endian(prev.LittleEndian), endian(f.LittleEndian))
	}
	for _, r := range f.Resources() {
		if err := s.Put(r); err != nil {
			return fmt.Errorf("storing %s: %w", r.Key(), err)
		}
	}
	return nil
}

func endian(little bool) string {
	if little {
		return "little"
	}
	return "big"
}

// selection narrows what decode reads from a store.
type selection struct {
	code      string
	namespace string
	id        int64
	hasID     bool
}

func (sel selection) load(s *assets.Store) (*rsrc.File, error) {
	if sel.code == "" {
		if sel.hasID {
			return nil, fmt.Errorf("-id needs -type")
		}
		return s.Load()
	}

	codes, err := s.Types()
	if err != nil {
		return nil, err
	}
	found := false
	for _, c := range codes {
		found = found || c == sel.code
	}
	if !found {
		return nil, fmt.Errorf("no resources of type %q (stored: %s)", sel.code, strings.Join(codes, ", "))
	}

	all, err := s.Load()
	if err != nil {
		return nil, err
	}
	if !sel.hasID {
		return filterType(all, sel.code), nil
	}
	r, err := s.Find(sel.code, sel.namespace, sel.id)
	if err != nil {
		return nil, err
	}
	out := rsrc.New()
	out.LittleEndian = all.LittleEndian
	return out, out.Add(r)
}

func cmdRemove(args []string) int {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	input := fs.String("db", "", "database to edit (default: database from the project file)")
	config := fs.String("config", "", "project file (default: ./"+defaultConfig+" when present)")
	code := fs.String("type", "", "type code of the resource")
	ns := fs.String("ns", "", "namespace of the resource")
	id := fs.Int64("id", 0, "id of the resource")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kdlc rm [-db in.db] -type code [-ns namespace] -id n\n\nFlags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)
	if *code == "" {
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*config, *config != "")
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

	r, err := remove(store, *code, *ns, *id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kdlc: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "removed %s from %s\n", r.Key(), db)
	return 0
}

// remove deletes one resource and returns what was stored under its key.
func remove(s *assets.Store, code, namespace string, id int64) (*rsrc.Resource, error) {
	r, err := s.Find(code, namespace, id)
	if err != nil {
		return nil, err
	}
	return r, s.Delete(code, namespace, id)
}
