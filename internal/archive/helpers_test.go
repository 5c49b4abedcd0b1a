package archive

import (
	"archive/tar"
	"io"

	"github.com/klauspost/compress/gzip"
)

// packWithManifest writes an archive with an arbitrary manifest, or none
// when manifest is nil.
func packWithManifest(w io.Writer, manifest []byte, entries []Entry) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	if manifest != nil {
		if err := tw.WriteHeader(&tar.Header{Name: ManifestName, Mode: 0o644, Size: int64(len(manifest))}); err != nil {
			return err
		}
		if _, err := tw.Write(manifest); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := addFile(tw, e); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}
