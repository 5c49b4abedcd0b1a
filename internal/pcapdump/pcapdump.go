// Package pcapdump writes a receive log as a pcap capture so that frames
// can be inspected in packet tools. Frames carry no protocol, so they are
// stored under the first user link type.
package pcapdump

import (
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/ifcli/internal/rxlog"
)

// LinkTypeUser0 is DLT_USER0.
const LinkTypeUser0 = layers.LinkType(147)

// Log frames are not timestamped; frame i is stamped start + i*Step.
const Step = time.Millisecond

// Write dumps every frame of log to w and returns the number written.
func Write(w io.Writer, log *rxlog.Log, start time.Time) (int, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(rxlog.MaxFrame, LinkTypeUser0); err != nil {
		return 0, fmt.Errorf("pcapdump: write header: %w", err)
	}
	n := log.Count()
	for i := 0; i < n; i++ {
		data, err := log.Read(i)
		if err != nil {
			return i, err
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * Step),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := pw.WritePacket(ci, data); err != nil {
			return i, fmt.Errorf("pcapdump: frame %d: %w", i, err)
		}
	}
	return n, nil
}
