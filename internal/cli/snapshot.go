package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/bm25"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write and check index snapshots",
}

var snapshotWriteCmd = &cobra.Command{
	Use:   "write [path]",
	Short: "Write the index of the stored corpus to a snapshot file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSnapshotWrite,
}

var snapshotVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Check a snapshot file's header and checksum",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotVerify,
}

func init() {
	snapshotCmd.AddCommand(snapshotWriteCmd, snapshotVerifyCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshotWrite(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		path := filepath.Join(s.cfg.Indexer.DataDir, s.cfg.Indexer.SnapshotFile)
		if len(args) == 1 {
			path = args[0]
		}
		info, err := s.store.WriteSnapshot(path)
		if err != nil {
			return fmt.Errorf("snapshot failed: %w", err)
		}
		return printSnapshotInfo(cmd, path, info)
	})
}

func runSnapshotVerify(cmd *cobra.Command, args []string) error {
	info, err := bm25.VerifySnapshot(args[0])
	if err != nil {
		return err
	}
	return printSnapshotInfo(cmd, args[0], info)
}

func printSnapshotInfo(cmd *cobra.Command, path string, info bm25.SnapshotInfo) error {
	if outputJSON {
		return printJSON(cmd, map[string]any{
			"path":        path,
			"documents":   info.DocCount,
			"terms":       info.TermCount,
			"compression": info.Compression.String(),
			"stored_size": info.StoredSize,
			"raw_size":    info.RawSize,
			"checksum":    fmt.Sprintf("%x", info.Checksum),
		})
	}
	cmd.Printf("%s: %d documents, %d terms, %s, %d/%d bytes, blake3 %x\n",
		path, info.DocCount, info.TermCount, info.Compression, info.StoredSize, info.RawSize, info.Checksum[:8])
	return nil
}
