package manifest

import (
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/filesystem"
)

// Group is a dependency group of a manifest.
type Group string

const (
	GroupDependencies         Group = "dependencies"
	GroupDevDependencies      Group = "devDependencies"
	GroupPeerDependencies     Group = "peerDependencies"
	GroupOptionalDependencies Group = "optionalDependencies"
	GroupBundledDependencies  Group = "bundledDependencies"
)

// Groups lists every recognized dependency group, runtime group first.
var Groups = []Group{
	GroupDependencies,
	GroupDevDependencies,
	GroupPeerDependencies,
	GroupOptionalDependencies,
	GroupBundledDependencies,
}

const (
	fileProtocol = "file:"
	linkProtocol = "link:"
)

var localPrefixes = []string{"/", "./", "../", "~/", fileProtocol, linkProtocol}

// Dependency is one entry of a dependency group.
type Dependency struct {
	Name  string
	Spec  string
	Group Group
}

// IsLocal reports whether the entry points at a directory on disk.
func (d Dependency) IsLocal() bool {
	return IsLocalReference(d.Spec)
}

// Manifest is the normalized view of a package manifest.
type Manifest struct {
	Path    string
	Name    string
	Version string

	groups map[Group][]Dependency
}

type packageMeta struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Normalize loads the manifest at path and returns a consistent view over all dependency groups.
func Normalize(fs filesystem.FileSystem, path string) (*Manifest, error) {
	doc, err := Load(fs, path)
	if err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var json = jsoniter.ConfigDefault
	var meta packageMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errUtils.Build(errUtils.ErrInvalidManifest).
			WithCause(err).
			WithContext("path", path).
			WithHint("`name` and `version` must be strings").
			Err()
	}

	return FromDocument(path, doc, meta.Name, meta.Version), nil
}

// FromDocument builds the normalized view of an already loaded document.
func FromDocument(path string, doc *Document, name, version string) *Manifest {
	m := &Manifest{
		Path:    path,
		Name:    name,
		Version: version,
		groups:  make(map[Group][]Dependency, len(Groups)),
	}
	for _, group := range Groups {
		m.groups[group] = doc.Dependencies(group)
	}
	return m
}

// Dir returns the package directory.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.Path)
}

// Dependencies returns the entries of group in declaration order.
func (m *Manifest) Dependencies(group Group) []Dependency {
	return m.groups[group]
}

// LocalDependencies returns the local entries of group in declaration order.
func (m *Manifest) LocalDependencies(group Group) []Dependency {
	return lo.Filter(m.groups[group], func(d Dependency, _ int) bool {
		return d.IsLocal()
	})
}

// HasLocalDependencies reports whether any group declares a local entry.
func (m *Manifest) HasLocalDependencies() bool {
	return lo.SomeBy(Groups, func(g Group) bool {
		return len(m.LocalDependencies(g)) > 0
	})
}

// ArchiveName returns the file name the package manager gives the packed archive,
// e.g. "@scope/name" at "1.2.3" packs to "scope-name-1.2.3.tgz".
func (m *Manifest) ArchiveName() (string, error) {
	return ArchiveName(m.Name, m.Version)
}

// ArchiveName derives an archive file name from a package name and version.
func ArchiveName(name, version string) (string, error) {
	if name == "" {
		return "", errUtils.Build(errUtils.ErrInvalidManifest).
			WithExplanation("package has no name").
			Err()
	}
	if _, err := semver.StrictNewVersion(version); err != nil {
		return "", errUtils.Build(errUtils.ErrInvalidVersion).
			WithCause(err).
			WithContext("package", name).
			WithContext("version", version).
			WithHintf("Set a valid semantic version in the manifest of `%s`", name).
			Err()
	}
	base := strings.ReplaceAll(strings.TrimPrefix(name, "@"), "/", "-")
	return base + "-" + version + ".tgz", nil
}

// IsLocalReference reports whether a version specifier points at a directory on disk.
func IsLocalReference(spec string) bool {
	return lo.SomeBy(localPrefixes, func(prefix string) bool {
		return strings.HasPrefix(spec, prefix)
	})
}

// ResolveLocalPath resolves a local specifier against the directory of the declaring manifest.
func ResolveLocalPath(manifestDir, spec string) string {
	p := strings.TrimPrefix(strings.TrimPrefix(spec, fileProtocol), linkProtocol)
	if strings.HasPrefix(p, "~/") {
		p = filepath.Join(xdg.Home, p[2:])
	}
	p = filepath.FromSlash(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(manifestDir, p)
	}
	return filepath.Clean(p)
}

// ManifestPath returns the manifest path for a package directory or manifest file path.
func ManifestPath(path string) string {
	if filepath.Base(path) == FileName {
		return path
	}
	return filepath.Join(path, FileName)
}

// Strip returns a copy of doc without local entries in any group.
// Remote entries and unrelated keys keep their order.
func Strip(doc *Document) *Document {
	out := doc.Clone()
	for _, group := range Groups {
		m := out.groupMap(group, false)
		if m == nil {
			continue
		}
		for _, dep := range out.Dependencies(group) {
			if dep.IsLocal() {
				m.Delete(dep.Name)
			}
		}
	}
	return out
}

// SetDependency returns a copy of doc with name set to spec in group.
// An existing entry keeps its position; a new one is appended.
func SetDependency(doc *Document, group Group, name, spec string) *Document {
	out := doc.Clone()
	out.groupMap(group, true).Set(name, spec)
	return out
}

// RelocateLocalReferences returns a copy of doc whose relative local entries, written relative
// to fromDir, resolve to the same directories when the manifest lives in toDir.
func RelocateLocalReferences(doc *Document, fromDir, toDir string) (*Document, error) {
	out := doc.Clone()
	for _, group := range Groups {
		m := out.groupMap(group, false)
		if m == nil {
			continue
		}
		for _, dep := range out.Dependencies(group) {
			if !dep.IsLocal() {
				continue
			}
			target := ResolveLocalPath(fromDir, dep.Spec)
			rel, err := filepath.Rel(toDir, target)
			if err != nil {
				return nil, errors.Wrapf(err, "relocate %s", dep.Name)
			}
			protocol := fileProtocol
			if strings.HasPrefix(dep.Spec, linkProtocol) {
				protocol = linkProtocol
			}
			m.Set(dep.Name, protocol+filepath.ToSlash(rel))
		}
	}
	return out, nil
}

// StripLocalReferences rewrites the manifest at path without its local entries.
// A missing manifest is not an error.
func StripLocalReferences(fs filesystem.FileSystem, path string) error {
	doc, err := Load(fs, path)
	if errors.Is(err, errUtils.ErrManifestNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return Save(fs, path, Strip(doc))
}

// Exists reports whether a manifest exists at path.
func Exists(fs filesystem.FileSystem, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && !info.IsDir()
}
