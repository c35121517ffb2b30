// Package rsrc is the in-memory resource container produced by a compile:
// encoded resource blobs keyed by type code, namespace and id, plus the
// metadata of the batch.
package rsrc

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicate is wrapped by Add when the key is already taken.
var ErrDuplicate = errors.New("duplicate resource")

// Key identifies a resource inside a File.
type Key struct {
	Type      string
	Namespace string
	ID        int64
}

func (k Key) String() string {
	if k.Namespace != "" {
		return fmt.Sprintf("%q #%s.%d", k.Type, k.Namespace, k.ID)
	}
	return fmt.Sprintf("%q #%d", k.Type, k.ID)
}

// Resource is one encoded instance.
type Resource struct {
	Type      string // four-character type code
	Namespace string
	ID        int64
	Name      string
	Data      []byte
}

func (r *Resource) Key() Key {
	return Key{Type: r.Type, Namespace: r.Namespace, ID: r.ID}
}

// File holds the resources of one compile.
type File struct {
	Metadata     map[string]string
	LittleEndian bool

	resources map[Key]*Resource
}

func New() *File {
	return &File{
		Metadata:  make(map[string]string),
		resources: make(map[Key]*Resource),
	}
}

// Add stores r. A resource with the same key is never overwritten.
func (f *File) Add(r *Resource) error {
	k := r.Key()
	if prev, ok := f.resources[k]; ok {
		if prev.Name != "" {
			return fmt.Errorf("%w: %s already holds %q", ErrDuplicate, k, prev.Name)
		}
		return fmt.Errorf("%w: %s", ErrDuplicate, k)
	}
	f.resources[k] = r
	return nil
}

// Replace stores r, dropping any resource with the same key.
func (f *File) Replace(r *Resource) {
	f.resources[r.Key()] = r
}

func (f *File) Get(k Key) (*Resource, bool) {
	r, ok := f.resources[k]
	return r, ok
}

// Find returns the first resource of type code typ named name, in
// Resources order.
func (f *File) Find(typ, name string) (*Resource, bool) {
	for _, r := range f.Resources() {
		if r.Type == typ && r.Name == name {
			return r, true
		}
	}
	return nil, false
}

func (f *File) Len() int {
	return len(f.resources)
}

// Resources lists every resource ordered by type code, namespace and id.
func (f *File) Resources() []*Resource {
	out := make([]*Resource, 0, len(f.resources))
	for _, r := range f.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		return a.ID < b.ID
	})
	return out
}

// Types lists the distinct type codes, sorted.
func (f *File) Types() []string {
	seen := make(map[string]bool)
	var out []string
	for k := range f.resources {
		if !seen[k.Type] {
			seen[k.Type] = true
			out = append(out, k.Type)
		}
	}
	sort.Strings(out)
	return out
}
