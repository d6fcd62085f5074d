package engine

import (
	"bytes"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/filesystem"
	"github.com/cloudposse/link-install/pkg/manifest"
	"github.com/cloudposse/link-install/pkg/shell"
)

type pnpmEngine struct {
	base
}

func newPNPM(runner shell.Runner, fs filesystem.FileSystem) *pnpmEngine {
	return &pnpmEngine{base{
		runner:      runner,
		fs:          fs,
		name:        PNPM,
		lockfile:    "pnpm-lock.yaml",
		packCommand: "pnpm pack",
		minVersion:  "7.0.0",
	}}
}

// CleanLockfile drops every pnpm-lock.yaml entry that resolves to a local directory.
// The document is edited as a yaml.Node tree so comments and key order survive.
func (e *pnpmEngine) CleanLockfile(path string) error {
	data, err := e.fs.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errUtils.Build(errUtils.ErrCleanLockfile).WithCause(err).WithContext("path", path).Err()
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errUtils.Build(errUtils.ErrCleanLockfile).WithCause(err).WithContext("path", path).Err()
	}
	if len(doc.Content) == 0 {
		return nil
	}
	cleanYAMLNode(doc.Content[0])

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return errUtils.Build(errUtils.ErrCleanLockfile).WithCause(err).Err()
	}
	if err := enc.Close(); err != nil {
		return errUtils.Build(errUtils.ErrCleanLockfile).WithCause(err).Err()
	}
	return e.fs.WriteFile(path, buf.Bytes(), 0o644)
}

func cleanYAMLNode(node *yaml.Node) {
	if node.Kind != yaml.MappingNode {
		for _, child := range node.Content {
			cleanYAMLNode(child)
		}
		return
	}

	kept := node.Content[:0]
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if isLocalYAMLEntry(key, value) {
			continue
		}
		cleanYAMLNode(value)
		kept = append(kept, key, value)
	}
	node.Content = kept
}

// isLocalYAMLEntry matches `foo: link:../foo`, `foo: {specifier: ../foo, version: link:../foo}`
// and package keys such as `foo@file:../foo`.
func isLocalYAMLEntry(key, value *yaml.Node) bool {
	if strings.Contains(key.Value, "@file:") || strings.Contains(key.Value, "@link:") ||
		manifest.IsLocalReference(key.Value) {
		return true
	}
	switch value.Kind {
	case yaml.ScalarNode:
		return manifest.IsLocalReference(value.Value)
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			field := value.Content[i].Value
			if field != "specifier" && field != "version" {
				continue
			}
			if manifest.IsLocalReference(value.Content[i+1].Value) {
				return true
			}
		}
	}
	return false
}
