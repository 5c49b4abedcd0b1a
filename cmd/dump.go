package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/ifcli/internal/pcapdump"
	"firestige.xyz/ifcli/internal/rxlog"
	"firestige.xyz/ifcli/internal/session"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <run> <slot>",
	Short: "Write an interface's receive log as a pcap file",
	Long: `Write every frame recorded by one interface of a run as a pcap file
(link type USER0), for inspection in packet tools.

Examples:
  ifcli dump latest 0 -o if00.pcap
  ifcli dump 4f2a11c0 0x1a`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		slot, err := strconv.ParseInt(args[1], 0, 0)
		if err != nil {
			return fmt.Errorf("invalid slot %q", args[1])
		}
		return runDump(cfg.Session.Root, args[0], int(slot), dumpOutput, cmd.OutOrStdout())
	},
}

var dumpOutput string

func init() {
	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "",
		"pcap path (default: ifNN.pcap)")
}

func runDump(root, run string, slot int, output string, out io.Writer) (err error) {
	dir, err := session.ResolveRun(root, run)
	if err != nil {
		return err
	}
	l, warn := rxlog.Open(dir, slot)
	if l == nil {
		return warn
	}
	defer l.Close()
	if warn != nil {
		fmt.Fprintf(out, "Warning: %v\n", warn)
	}

	if output == "" {
		output = fmt.Sprintf("if%02x.pcap", slot)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	n, err := pcapdump.Write(f, l, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Wrote %d frame(s) to %s\n", n, output)
	return nil
}
