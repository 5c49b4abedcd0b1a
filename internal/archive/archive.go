// Package archive packs a run directory into a gzip-compressed tar and
// unpacks it again. The first member is a manifest of BLAKE3 digests that
// Unpack checks every extracted file against.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"
)

// ManifestName is the archive member holding the digests.
const ManifestName = "MANIFEST.b3"

// maxMember bounds a single extracted file.
const maxMember = 1 << 32

var (
	// ErrManifest reports a missing or malformed manifest.
	ErrManifest = errors.New("archive: bad manifest")
	// ErrDigest reports a member whose content does not match the manifest.
	ErrDigest = errors.New("archive: digest mismatch")
)

// Entry is a file to pack: Path on disk, stored as Name.
type Entry struct {
	Path string
	Name string
}

// Pack writes entries to w as a .tgz.
func Pack(w io.Writer, entries []Entry) error {
	digests := make(map[string]string, len(entries))
	for _, e := range entries {
		if err := checkName(e.Name); err != nil {
			return err
		}
		if _, dup := digests[e.Name]; dup {
			return fmt.Errorf("archive: duplicate member %q", e.Name)
		}
		d, err := digestFile(e.Path)
		if err != nil {
			return err
		}
		digests[e.Name] = d
	}

	gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(gz)

	manifest := encodeManifest(digests)
	if err := tw.WriteHeader(&tar.Header{
		Name:    ManifestName,
		Mode:    0o644,
		Size:    int64(len(manifest)),
		ModTime: time.Now(),
		Format:  tar.FormatPAX,
	}); err != nil {
		return fmt.Errorf("archive: write manifest: %w", err)
	}
	if _, err := tw.Write(manifest); err != nil {
		return fmt.Errorf("archive: write manifest: %w", err)
	}

	for _, e := range entries {
		if err := addFile(tw, e); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("archive: close tar: %w", err)
	}
	return gz.Close()
}

// PackFile writes entries to a new archive at path.
func PackFile(path string, entries []Entry) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("archive: create %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Pack(f, entries)
}

func addFile(tw *tar.Writer, e Entry) error {
	f, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("archive: open %q: %w", e.Path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(st, "")
	if err != nil {
		return err
	}
	hdr.Name = e.Name
	hdr.Format = tar.FormatPAX
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("archive: header %q: %w", e.Name, err)
	}
	if _, err := io.CopyN(tw, f, st.Size()); err != nil {
		return fmt.Errorf("archive: copy %q: %w", e.Name, err)
	}
	return nil
}

// Unpack extracts the archive from r into dir, which must exist, and
// returns the extracted member names in order. Every member must be listed
// in the manifest with a matching digest, and every manifest line must have
// a member.
func Unpack(r io.Reader, dir string) ([]string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)

	hdr, err := tr.Next()
	if err != nil || hdr.Name != ManifestName {
		return nil, fmt.Errorf("%w: first member must be %s", ErrManifest, ManifestName)
	}
	raw, err := io.ReadAll(io.LimitReader(tr, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("archive: read manifest: %w", err)
	}
	want, err := decodeManifest(raw)
	if err != nil {
		return nil, err
	}

	var names []string
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return names, fmt.Errorf("archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := checkName(hdr.Name); err != nil {
			return names, err
		}
		digest, ok := want[hdr.Name]
		if !ok {
			return names, fmt.Errorf("%w: %q is not listed", ErrManifest, hdr.Name)
		}
		if err := extract(tr, filepath.Join(dir, hdr.Name), digest); err != nil {
			return names, fmt.Errorf("%s: %w", hdr.Name, err)
		}
		delete(want, hdr.Name)
		names = append(names, hdr.Name)
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for name := range want {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return names, fmt.Errorf("%w: missing members %v", ErrManifest, missing)
	}
	return names, nil
}

// UnpackFile extracts the archive at path into dir.
func UnpackFile(path, dir string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %q: %w", path, err)
	}
	defer f.Close()
	return Unpack(f, dir)
}

func extract(r io.Reader, path, digest string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	h := blake3.New()
	_, err = io.Copy(io.MultiWriter(f, h), io.LimitReader(r, maxMember))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != digest {
		_ = os.Remove(path)
		return ErrDigest
	}
	return nil
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("archive: open %q: %w", path, err)
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("archive: read %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Manifest lines are "<hex digest>  <name>", sorted by name.
func encodeManifest(digests map[string]string) []byte {
	names := make([]string, 0, len(digests))
	for n := range digests {
		names = append(names, n)
	}
	sort.Strings(names)
	var buf bytes.Buffer
	for _, n := range names {
		fmt.Fprintf(&buf, "%s  %s\n", digests[n], n)
	}
	return buf.Bytes()
}

func decodeManifest(raw []byte) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		digest, name, ok := strings.Cut(line, "  ")
		if !ok || len(digest) != 64 {
			return nil, fmt.Errorf("%w: line %q", ErrManifest, line)
		}
		if err := checkName(name); err != nil {
			return nil, err
		}
		out[name] = digest
	}
	return out, sc.Err()
}

// Members are flat file names; nothing may escape the target directory.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || name == ManifestName {
		return fmt.Errorf("archive: invalid member name %q", name)
	}
	return nil
}
