package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ifcli/internal/capture"
	"firestige.xyz/ifcli/internal/session"
	"firestige.xyz/ifcli/internal/transport"
)

// recordRun creates a closed run with one memory interface holding frames.
func recordRun(t *testing.T, root string, frames ...string) string {
	t.Helper()
	saved := transport.Stdout
	transport.Stdout = &bytes.Buffer{}
	t.Cleanup(func() { transport.Stdout = saved })

	s, err := session.New(session.Options{
		Root:    root,
		Latest:  true,
		Capture: capture.Options{PollTimeout: 10 * time.Millisecond, JoinTimeout: time.Second},
	})
	require.NoError(t, err)
	require.NoError(t, s.Configure(0, "type", "memory"))
	require.NoError(t, s.SetFlag(0, "as", true))
	for _, f := range frames {
		_, err := s.Transmit(0, []byte(f))
		require.NoError(t, err)
	}
	dir := s.Dir()
	require.NoError(t, s.Close())
	return dir
}

func TestRunSessions_Empty(t *testing.T) {
	var buf bytes.Buffer
	err := runSessions(filepath.Join(t.TempDir(), "missing"), &buf)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "No sessions")
}

func TestRunSessions_ListsRuns(t *testing.T) {
	root := t.TempDir()
	dir := recordRun(t, root, "x")

	var buf bytes.Buffer
	require.NoError(t, runSessions(root, &buf))
	assert.Contains(t, buf.String(), "* "+filepath.Base(dir)+"    1 interface(s)")
}

func TestRunExportImport(t *testing.T) {
	root := t.TempDir()
	dir := recordRun(t, root, "one", "two")
	out := filepath.Join(t.TempDir(), "run.tgz")

	var buf bytes.Buffer
	require.NoError(t, runExport(root, session.LatestLink, out, &buf))
	assert.Contains(t, buf.String(), "✓ Exported 3 file(s)")

	buf.Reset()
	require.NoError(t, runImport(root, out, &buf))
	assert.Contains(t, buf.String(), "✓ Imported into")

	runs, err := session.Runs(root)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		if r.Dir == dir {
			continue
		}
		orig, err := os.ReadFile(filepath.Join(dir, "if00-buffer"))
		require.NoError(t, err)
		copied, err := os.ReadFile(filepath.Join(r.Dir, "if00-buffer"))
		require.NoError(t, err)
		assert.Equal(t, orig, copied)
	}
}

func TestRunImport_BadArchive(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.tgz")
	require.NoError(t, os.WriteFile(bad, []byte("not an archive"), 0o644))

	var buf bytes.Buffer
	err := runImport(t.TempDir(), bad, &buf)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to import")
}

func TestRunDump(t *testing.T) {
	root := t.TempDir()
	dir := recordRun(t, root, "alpha", "beta", "gamma")
	out := filepath.Join(t.TempDir(), "if00.pcap")

	var buf bytes.Buffer
	require.NoError(t, runDump(root, filepath.Base(dir), 0, out, &buf))
	assert.Contains(t, buf.String(), "✓ Wrote 3 frame(s)")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)
	data, _, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))
}

func TestRunDump_MissingSlot(t *testing.T) {
	root := t.TempDir()
	dir := recordRun(t, root)

	var buf bytes.Buffer
	err := runDump(root, dir, 7, filepath.Join(t.TempDir(), "x.pcap"), &buf)
	assert.Error(t, err)
}
