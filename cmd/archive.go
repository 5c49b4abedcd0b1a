package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"firestige.xyz/ifcli/internal/archive"
	"firestige.xyz/ifcli/internal/session"
)

var importCmd = &cobra.Command{
	Use:   "import <archive>",
	Short: "Unpack a saved session into a new run directory",
	Long: `Unpack a session archive created by 'save' or 'export' into a new run
directory under the session root. Every file is checked against the archive's
BLAKE3 manifest. Resume it with 'ifcli console --reload <run>'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cfg.Session.Root, args[0], cmd.OutOrStdout())
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <run>",
	Short: "Pack a run directory into a .tgz archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cfg.Session.Root, args[0], exportOutput, cmd.OutOrStdout())
	},
}

var exportOutput string

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"archive path (default: <run-id>.tgz)")
}

func runImport(root, path string, out io.Writer) error {
	dir, err := session.Unpack(root, path)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}
	fmt.Fprintf(out, "✓ Imported into %s\n", dir)
	return nil
}

func runExport(root, run, output string, out io.Writer) error {
	dir, err := session.ResolveRun(root, run)
	if err != nil {
		return err
	}
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		dir = real
	}
	entries, err := session.DirEntries(dir)
	if err != nil {
		return err
	}
	if output == "" {
		output = filepath.Base(dir) + ".tgz"
	}
	if err := archive.PackFile(output, entries); err != nil {
		return fmt.Errorf("failed to export %s: %w", dir, err)
	}
	fmt.Fprintf(out, "✓ Exported %d file(s) to %s\n", len(entries), output)
	return nil
}
