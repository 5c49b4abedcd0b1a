package rxlog

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"firestige.xyz/ifcli/internal/api"
)

const (
	headerMagic   = "IFRX"
	headerVersion = 1
	headerPrefix  = 10 // magic(4) + version(2) + body length(4)

	// MaxHeaderBody is the largest encoded metadata record that fits the
	// header block.
	MaxHeaderBody = HeaderSize - headerPrefix
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

// WriteHeader encodes v as CBOR and stores it in the header block,
// overwriting the previous record.
func (l *Log) WriteHeader(v interface{}) error {
	body, err := encMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("rxlog: encode header: %w", err)
	}
	return l.writeHeaderBlock(body)
}

// DecodeHeader decodes the stored header record into v. An empty header
// (a log created but never described) is reported as api.ErrNotFound.
func (l *Log) DecodeHeader(v interface{}) error {
	if len(l.header) == 0 {
		return fmt.Errorf("%w: empty header", api.ErrNotFound)
	}
	if err := decMode.Unmarshal(l.header, v); err != nil {
		return fmt.Errorf("%w: decode header: %v", api.ErrLogCorruption, err)
	}
	return nil
}

func (l *Log) writeHeaderBlock(body []byte) error {
	if len(body) > MaxHeaderBody {
		return fmt.Errorf("rxlog: header of %d bytes exceeds %d", len(body), MaxHeaderBody)
	}
	block := make([]byte, HeaderSize)
	copy(block, headerMagic)
	binary.LittleEndian.PutUint16(block[4:], headerVersion)
	binary.LittleEndian.PutUint32(block[6:], uint32(len(body)))
	copy(block[headerPrefix:], body)
	if _, err := l.index.WriteAt(block, 0); err != nil {
		return fmt.Errorf("rxlog: write header: %w", err)
	}
	l.header = append(l.header[:0], body...)
	return nil
}

func (l *Log) readHeaderBlock() error {
	block := make([]byte, HeaderSize)
	n, err := l.index.ReadAt(block, 0)
	if n < HeaderSize {
		return fmt.Errorf("%w: short header block (%d bytes): %v", api.ErrLogCorruption, n, err)
	}
	if string(block[:4]) != headerMagic {
		return fmt.Errorf("%w: bad header magic %q", api.ErrLogCorruption, block[:4])
	}
	if v := binary.LittleEndian.Uint16(block[4:]); v != headerVersion {
		return fmt.Errorf("%w: unsupported header version %d", api.ErrLogCorruption, v)
	}
	size := binary.LittleEndian.Uint32(block[6:])
	if size > MaxHeaderBody {
		return fmt.Errorf("%w: header length %d out of range", api.ErrLogCorruption, size)
	}
	l.header = append([]byte(nil), block[headerPrefix:headerPrefix+int(size)]...)
	return nil
}
