package pcapdump

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ifcli/internal/rxlog"
)

func TestWrite(t *testing.T) {
	log, err := rxlog.Create(t.TempDir(), 3)
	require.NoError(t, err)
	defer log.Close()
	frames := [][]byte{[]byte("abc"), {}, bytes.Repeat([]byte{0xee}, 300)}
	for _, f := range frames {
		_, err := log.Append(f)
		require.NoError(t, err)
	}

	var out bytes.Buffer
	start := time.Unix(1700000000, 0)
	n, err := Write(&out, log, start)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	r, err := pcapgo.NewReader(&out)
	require.NoError(t, err)
	assert.Equal(t, LinkTypeUser0, r.LinkType())
	for i, want := range frames {
		data, ci, err := r.ReadPacketData()
		require.NoError(t, err)
		assert.Equal(t, len(want), len(data))
		assert.True(t, bytes.Equal(want, data))
		assert.True(t, ci.Timestamp.Equal(start.Add(time.Duration(i)*Step)))
	}
	_, _, err = r.ReadPacketData()
	assert.True(t, errors.Is(err, io.EOF))
}
