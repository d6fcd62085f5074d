package dependency

import (
	"errors"
	"path/filepath"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/filesystem"
	log "github.com/cloudposse/link-install/pkg/logger"
	"github.com/cloudposse/link-install/pkg/manifest"
)

type colour int

const (
	white colour = iota
	grey
	black
)

type walker struct {
	fs      filesystem.FileSystem
	builder *GraphBuilder
	colours map[string]colour
	stack   []string
}

// Build discovers the local dependencies of the root manifest transitively.
//
// Every group of the root is scanned; dependencies are followed through their runtime group
// only. A local reference whose manifest does not exist is skipped. Each discovered node
// carries the root group through which it was first reached.
func Build(fs filesystem.FileSystem, rootManifestPath string) (*Graph, error) {
	root, err := manifest.Normalize(fs, rootManifestPath)
	if err != nil {
		return nil, err
	}

	rootID := root.Name
	if rootID == "" {
		rootID = filepath.Base(root.Dir())
	}

	w := &walker{
		fs:      fs,
		builder: NewBuilder(),
		colours: map[string]colour{},
	}
	if _, err := w.builder.AddNode(&Node{ID: rootID, ManifestPath: root.Path}); err != nil {
		return nil, err
	}

	w.enter(rootID)
	for _, group := range manifest.Groups {
		for _, dep := range root.LocalDependencies(group) {
			if err := w.visit(root, rootID, dep, group); err != nil {
				return nil, err
			}
		}
	}
	w.leave(rootID)

	w.builder.graph.Root = rootID
	graph, err := w.builder.Build()
	if err != nil {
		return nil, err
	}
	log.Debug("Built dependency graph", "root", rootID, "nodes", graph.Size())
	return graph, nil
}

func (w *walker) enter(id string) {
	w.colours[id] = grey
	w.stack = append(w.stack, id)
}

func (w *walker) leave(id string) {
	w.stack = w.stack[:len(w.stack)-1]
	w.colours[id] = black
}

func (w *walker) visit(parent *manifest.Manifest, parentID string, dep manifest.Dependency, group manifest.Group) error {
	path := manifest.ManifestPath(manifest.ResolveLocalPath(parent.Dir(), dep.Spec))
	if !manifest.Exists(w.fs, path) {
		log.Debug("Skipping local dependency without manifest", "package", parentID, "dependency", dep.Name, "path", path)
		return nil
	}

	if _, err := w.builder.AddNode(&Node{ID: dep.Name, ManifestPath: path, Group: group}); err != nil {
		return err
	}
	if err := w.builder.AddDependency(parentID, dep.Name); err != nil {
		return err
	}

	switch w.colours[dep.Name] {
	case grey:
		return errUtils.Build(errUtils.ErrCircularDependency).
			WithCause(errors.New(FormatCycle(cyclePath(w.stack, dep.Name)))).
			WithContext("manifest", path).
			WithHint("Local packages cannot depend on each other in a loop; remove one of the local references").
			Err()
	case black:
		return nil
	}

	m, err := manifest.Normalize(w.fs, path)
	if err != nil {
		return err
	}

	w.enter(dep.Name)
	for _, child := range m.LocalDependencies(manifest.GroupDependencies) {
		if err := w.visit(m, dep.Name, child, group); err != nil {
			return err
		}
	}
	w.leave(dep.Name)
	return nil
}
