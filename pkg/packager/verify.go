package packager

import (
	"archive/tar"
	"bytes"
	"io"
	"path"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/samber/lo"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/filesystem"
	"github.com/cloudposse/link-install/pkg/manifest"
)

// archiveManifest is where npm and pnpm place the manifest inside a packed archive.
const archiveManifest = "package/" + manifest.FileName

// maxManifestSize bounds how much of an archived manifest is read.
const maxManifestSize = 10 << 20

// VerifyArchive fails with ErrArchiveNotSelfContained when the manifest packed into
// the archive at archivePath still declares local dependencies.
func VerifyArchive(fs filesystem.FileSystem, archivePath string) error {
	data, err := ReadArchiveManifest(fs, archivePath)
	if err != nil {
		return err
	}
	doc, err := manifest.Parse(data)
	if err != nil {
		return errors.Wrapf(err, "%s in %s", archiveManifest, archivePath)
	}

	m := manifest.FromDocument(archivePath, doc, doc.Name(), doc.Version())
	for _, group := range manifest.Groups {
		local := m.LocalDependencies(group)
		if len(local) == 0 {
			continue
		}
		names := lo.Map(local, func(d manifest.Dependency, _ int) string { return d.Name })
		return errUtils.Build(errUtils.ErrArchiveNotSelfContained).
			WithContext("archive", archivePath).
			WithContext("group", string(group)).
			WithHintf("Local references left in the archive: %v", names).
			Err()
	}
	return nil
}

// ReadArchiveManifest returns the bytes of package/package.json from a .tgz archive.
func ReadArchiveManifest(fs filesystem.FileSystem, archivePath string) ([]byte, error) {
	raw, err := fs.ReadFile(archivePath)
	if err != nil {
		return nil, errors.Wrapf(err, "read archive %s", archivePath)
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "open archive %s", archivePath)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read archive %s", archivePath)
		}
		if path.Clean(hdr.Name) != archiveManifest {
			continue
		}
		return io.ReadAll(io.LimitReader(tr, maxManifestSize))
	}
	return nil, errors.Newf("archive %s has no %s", archivePath, archiveManifest)
}
