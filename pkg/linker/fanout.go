package linker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/dependency"
	log "github.com/cloudposse/link-install/pkg/logger"
	"github.com/cloudposse/link-install/pkg/manifest"
	"github.com/cloudposse/link-install/pkg/metrics"
	"github.com/cloudposse/link-install/pkg/undo"
)

// Rewrite is a root manifest entry replaced by a packaged archive.
type Rewrite struct {
	Name    string
	Group   manifest.Group
	Archive string
	// Spec is the new specifier, relative to the install directory.
	Spec string
}

// packageDependencies packages every local dependency reachable from the installed root
// manifest into a fresh staging directory. Each dependency gets a private scope that is rolled
// back as soon as its packaging ends, so its manifest is restored whatever the outcome.
func (l *Linker) packageDependencies(ctx context.Context, root *undo.Manager) ([]Rewrite, error) {
	stagingDir := filepath.Join(l.config.InstallDir, StagingDirPrefix+uuid.NewString())
	err := root.Apply(undo.NewRemove(l.fs, stagingDir), func() error {
		return l.fs.MkdirAll(stagingDir, os.ModePerm)
	})
	if err != nil {
		return nil, errUtils.Build(errUtils.ErrCreateStagingDir).WithCause(err).WithContext("path", stagingDir).Err()
	}

	graph, err := dependency.Build(l.fs, l.ManifestPath())
	if err != nil {
		return nil, err
	}
	nodes, err := graph.RootDependencies()
	if err != nil {
		return nil, err
	}
	l.metrics.SetDependencies(len(nodes))
	log.Info("Found local dependencies", "dependencies", lo.Map(nodes, func(n *dependency.Node, _ int) string { return n.ID }))

	// Entries that alias the same directory share one packaging.
	unique := lo.UniqBy(nodes, func(n *dependency.Node) string { return n.ManifestPath })
	archives := make([]string, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.config.Concurrency)
	for i, node := range unique {
		g.Go(func() error {
			archive, err := l.packageOne(gctx, root, node, stagingDir)
			if err != nil {
				log.Error("Failed to prepare package", "package", node.ID, "error", err)
				return err
			}
			archives[i] = archive
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	archiveOf := make(map[string]string, len(unique))
	for i, node := range unique {
		archiveOf[node.ManifestPath] = archives[i]
	}

	var rewrites []Rewrite
	for _, node := range nodes {
		archive := archiveOf[node.ManifestPath]
		if archive == "" {
			continue
		}
		rel, err := filepath.Rel(l.config.InstallDir, archive)
		if err != nil {
			return nil, errUtils.Build(errUtils.ErrRewriteManifest).WithCause(err).WithContext("archive", archive).Err()
		}
		rewrites = append(rewrites, Rewrite{
			Name:    node.ID,
			Group:   node.Group,
			Archive: archive,
			Spec:    "file:" + filepath.ToSlash(rel),
		})
	}
	return rewrites, nil
}

func (l *Linker) packageOne(ctx context.Context, root *undo.Manager, node *dependency.Node, stagingDir string) (string, error) {
	started := time.Now()
	scope := root.NewScope(node.ID)

	archive, err := l.packager.Package(ctx, node, stagingDir, scope)
	if uerr := scope.UndoAll(); uerr != nil {
		l.metrics.IncRollbackFailures()
		log.Warn("Failed to restore package", "package", node.ID, "error", uerr)
	}

	status := metrics.StatusPackaged
	switch {
	case err != nil:
		status = metrics.StatusFailed
	case archive == "":
		status = metrics.StatusSkipped
	}
	l.metrics.ObservePackage(status, time.Since(started).Seconds())
	return archive, err
}

// rewriteManifest points every rewritten entry of the installed root manifest at its archive.
// The manifest is written once, after all packaging finished.
func (l *Linker) rewriteManifest(scope *undo.Manager, rewrites []Rewrite) error {
	if len(rewrites) == 0 {
		return nil
	}
	path := l.ManifestPath()
	content, err := l.fs.ReadFile(path)
	if err != nil {
		return errUtils.Build(errUtils.ErrRewriteManifest).WithCause(err).WithContext("path", path).Err()
	}
	doc, err := manifest.Parse(content)
	if err != nil {
		return err
	}
	for _, r := range rewrites {
		log.Debug("Rewriting dependency", "package", r.Name, "group", r.Group, "spec", r.Spec)
		doc = manifest.SetDependency(doc, r.Group, r.Name, r.Spec)
	}

	return scope.Apply(undo.NewSnapshotWithContent(l.fs, path, content), func() error {
		if err := manifest.Save(l.fs, path, doc); err != nil {
			return errUtils.Build(errUtils.ErrRewriteManifest).WithCause(err).WithContext("path", path).Err()
		}
		return nil
	})
}

func (l *Linker) printPlan(rewrites []Rewrite) {
	if len(rewrites) == 0 {
		fmt.Fprintln(l.out, "No local dependencies to link")
		return
	}
	for _, r := range rewrites {
		fmt.Fprintf(l.out, "%s (%s): %s\n", r.Name, r.Group, r.Spec)
	}
}
