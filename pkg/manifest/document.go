package manifest

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/iancoleman/orderedmap"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/filesystem"
)

const (
	// FileName is the manifest file name inside a package directory.
	FileName = "package.json"

	indent             = "  "
	defaultPermissions = 0o644
)

// Document is an order-preserving JSON manifest. Rewriting a document keeps the key order of
// the original file, so the diff of a rewritten manifest only shows the entries that changed.
type Document struct {
	root *orderedmap.OrderedMap
}

// Parse decodes a manifest document.
func Parse(data []byte) (*Document, error) {
	root := orderedmap.New()
	if err := root.UnmarshalJSON(data); err != nil {
		return nil, errors.Join(errUtils.ErrInvalidManifest, err)
	}
	normalizeMap(root)
	return &Document{root: root}, nil
}

// Load reads the manifest at path.
func Load(fs filesystem.FileSystem, path string) (*Document, error) {
	data, err := fs.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errUtils.Build(errUtils.ErrManifestNotFound).
			WithCause(err).
			WithContext("path", path).
			Err()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return doc, nil
}

// Save writes doc to path atomically.
func Save(fs filesystem.FileSystem, path string, doc *Document) error {
	data, err := doc.Bytes()
	if err != nil {
		return err
	}
	perm := os.FileMode(defaultPermissions)
	if info, err := fs.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return fs.WriteFile(path, data, perm)
}

// Bytes renders the document with two-space indentation and a trailing newline.
func (d *Document) Bytes() ([]byte, error) {
	raw, err := d.root.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(err, "encode manifest")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", indent); err != nil {
		return nil, errors.Wrap(err, "indent manifest")
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	data, err := d.root.MarshalJSON()
	if err != nil {
		// A parsed document always re-encodes.
		panic(err)
	}
	clone, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return clone
}

// Name returns the package name, or "" if it is missing or not a string.
func (d *Document) Name() string {
	return d.stringField("name")
}

// Version returns the package version, or "" if it is missing or not a string.
func (d *Document) Version() string {
	return d.stringField("version")
}

func (d *Document) stringField(key string) string {
	v, ok := d.root.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Dependencies lists the entries of group in declaration order.
// The array form of bundledDependencies yields entries with an empty specifier.
func (d *Document) Dependencies(group Group) []Dependency {
	v, ok := d.root.Get(string(group))
	if !ok {
		return nil
	}

	if list, ok := v.([]interface{}); ok {
		deps := make([]Dependency, 0, len(list))
		for _, item := range list {
			if name, ok := item.(string); ok {
				deps = append(deps, Dependency{Name: name, Group: group})
			}
		}
		return deps
	}

	m, ok := asMap(v)
	if !ok {
		return nil
	}
	deps := make([]Dependency, 0, len(m.Keys()))
	for _, name := range m.Keys() {
		spec, _ := m.Get(name)
		s, _ := spec.(string)
		deps = append(deps, Dependency{Name: name, Spec: s, Group: group})
	}
	return deps
}

func (d *Document) groupMap(group Group, create bool) *orderedmap.OrderedMap {
	v, ok := d.root.Get(string(group))
	if ok {
		if m, ok := asMap(v); ok {
			return m
		}
	}
	if !create {
		return nil
	}

	m := orderedmap.New()
	m.SetEscapeHTML(false)
	if list, ok := v.([]interface{}); ok {
		for _, item := range list {
			if name, ok := item.(string); ok {
				m.Set(name, "")
			}
		}
	}
	d.root.Set(string(group), m)
	return m
}

func asMap(v interface{}) (*orderedmap.OrderedMap, bool) {
	switch m := v.(type) {
	case *orderedmap.OrderedMap:
		return m, true
	case orderedmap.OrderedMap:
		return &m, true
	}
	return nil, false
}

// normalizeMap turns every nested object into a pointer with HTML escaping disabled,
// so in-place edits stay visible to the parent and ">=1.0.0" is written back verbatim.
func normalizeMap(m *orderedmap.OrderedMap) *orderedmap.OrderedMap {
	m.SetEscapeHTML(false)
	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		m.Set(key, normalizeValue(v))
	}
	return m
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case *orderedmap.OrderedMap:
		return normalizeMap(t)
	case orderedmap.OrderedMap:
		return normalizeMap(&t)
	case []interface{}:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	}
	return v
}
