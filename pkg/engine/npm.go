package engine

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/iancoleman/orderedmap"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/filesystem"
	"github.com/cloudposse/link-install/pkg/manifest"
	"github.com/cloudposse/link-install/pkg/shell"
)

const nodeModules = "node_modules/"

type npmEngine struct {
	base
}

func newNPM(runner shell.Runner, fs filesystem.FileSystem) *npmEngine {
	return &npmEngine{base{
		runner:      runner,
		fs:          fs,
		name:        NPM,
		lockfile:    "package-lock.json",
		packCommand: "npm pack",
		minVersion:  "7.0.0",
	}}
}

// CleanLockfile drops every package-lock.json entry that resolves to a local directory,
// so the install resolves those packages from the archives instead.
func (e *npmEngine) CleanLockfile(path string) error {
	data, err := e.fs.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errUtils.Build(errUtils.ErrCleanLockfile).WithCause(err).WithContext("path", path).Err()
	}

	lock := orderedmap.New()
	if err := lock.UnmarshalJSON(data); err != nil {
		return errUtils.Build(errUtils.ErrCleanLockfile).WithCause(err).WithContext("path", path).Err()
	}
	lock.SetEscapeHTML(false)

	if packages, ok := lockMap(lock, "packages"); ok {
		cleanPackages(packages)
		lock.Set("packages", packages)
	}
	if deps, ok := lockMap(lock, "dependencies"); ok {
		cleanDependencies(deps)
		lock.Set("dependencies", deps)
	}

	raw, err := lock.MarshalJSON()
	if err != nil {
		return errUtils.Build(errUtils.ErrCleanLockfile).WithCause(err).Err()
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", "  "); err != nil {
		return errUtils.Build(errUtils.ErrCleanLockfile).WithCause(err).Err()
	}
	buf.WriteByte('\n')
	return e.fs.WriteFile(path, buf.Bytes(), 0o644)
}

// cleanPackages handles lockfileVersion 2 and 3: links, local package directories,
// and local specifiers of the root entry.
func cleanPackages(packages *orderedmap.OrderedMap) {
	for _, key := range keysOf(packages) {
		entry, ok := lockMap(packages, key)
		if !ok {
			continue
		}
		if key == "" {
			for _, group := range manifest.Groups {
				if deps, ok := lockMap(entry, string(group)); ok {
					dropLocal(deps)
					entry.Set(string(group), deps)
				}
			}
			packages.Set(key, entry)
			continue
		}
		if isLink(entry) || !strings.Contains(key, nodeModules) {
			packages.Delete(key)
			continue
		}
		if resolved, ok := stringField(entry, "resolved"); ok && manifest.IsLocalReference(resolved) {
			packages.Delete(key)
		}
	}
}

// cleanDependencies handles lockfileVersion 1.
func cleanDependencies(deps *orderedmap.OrderedMap) {
	for _, name := range keysOf(deps) {
		entry, ok := lockMap(deps, name)
		if !ok {
			continue
		}
		if version, ok := stringField(entry, "version"); ok && manifest.IsLocalReference(version) {
			deps.Delete(name)
			continue
		}
		if nested, ok := lockMap(entry, "dependencies"); ok {
			cleanDependencies(nested)
			entry.Set("dependencies", nested)
			deps.Set(name, entry)
		}
	}
}

func dropLocal(deps *orderedmap.OrderedMap) {
	for _, name := range keysOf(deps) {
		if spec, ok := stringField(deps, name); ok && manifest.IsLocalReference(spec) {
			deps.Delete(name)
		}
	}
}

// keysOf copies the key list; Delete shifts the map's own slice in place.
func keysOf(m *orderedmap.OrderedMap) []string {
	return append([]string(nil), m.Keys()...)
}

func isLink(entry *orderedmap.OrderedMap) bool {
	v, ok := entry.Get("link")
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func stringField(m *orderedmap.OrderedMap, key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// lockMap returns the object stored under key as a pointer with HTML escaping disabled.
// The caller stores it back with Set so edits are visible to the parent.
func lockMap(m *orderedmap.OrderedMap, key string) (*orderedmap.OrderedMap, bool) {
	v, ok := m.Get(key)
	if !ok {
		return nil, false
	}
	var out *orderedmap.OrderedMap
	switch t := v.(type) {
	case *orderedmap.OrderedMap:
		out = t
	case orderedmap.OrderedMap:
		out = &t
	default:
		return nil, false
	}
	out.SetEscapeHTML(false)
	return out, true
}
