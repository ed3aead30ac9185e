package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var addFile string

var addCmd = &cobra.Command{
	Use:   "add [text...]",
	Short: "Add documents to the corpus",
	Long: `Adds each argument as one document. With --file, every non-blank line
of the file is a document; "-" reads standard input.`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "read one document per line from file")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	texts := append([]string(nil), args...)
	if addFile != "" {
		lines, err := readLines(cmd, addFile)
		if err != nil {
			return err
		}
		texts = append(texts, lines...)
	}
	if len(texts) == 0 {
		return fmt.Errorf("nothing to add: pass text arguments or --file")
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		ids, err := s.store.AddTexts(ctx, texts...)
		if err != nil {
			return fmt.Errorf("add failed: %w", err)
		}
		if outputJSON {
			return printJSON(cmd, map[string]any{"ids": ids, "documents": s.store.Size()})
		}
		cmd.Printf("Added %d documents (ids %d-%d), corpus now holds %d.\n",
			len(ids), ids[0], ids[len(ids)-1], s.store.Size())
		return nil
	})
}

func readLines(cmd *cobra.Command, path string) ([]string, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
