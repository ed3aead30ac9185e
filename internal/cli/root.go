// Package cli implements bm25ctl, a command-line client that opens the
// configured document store directly.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/bm25"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/logger"
)

var (
	configPath string
	outputJSON bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "bm25ctl",
	Short: "Manage and query a BM25 corpus",
	Long: `bm25ctl adds documents to, searches and inspects the corpus held by the
document store named in the configuration file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logger.New(os.Stderr, logLevel, "text"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/development.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// session is an opened store plus the config it came from.
type session struct {
	cfg   *config.Config
	store *bm25.Store
	close func()
}

// openSession loads the configuration, opens its document store and loads
// the corpus. Tests replace it.
var openSession = func(ctx context.Context) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closeBackend := func() {
		if backend.Close != nil {
			backend.Close()
		}
	}
	if backend.Store == nil {
		closeBackend()
		return nil, errors.New("bm25ctl needs a document store, set indexer.documentStore")
	}
	tok, err := tokenizer.FromName(cfg.Indexer.Tokenizer, cfg.Indexer.Language, cfg.Indexer.StopWords)
	if err != nil {
		closeBackend()
		return nil, err
	}
	store, err := bm25.New(bm25.Options{
		Tokenizer:           tok,
		Documents:           backend.Store,
		Params:              bm25.Params{K1: cfg.Search.K1, B: cfg.Search.B},
		WritePolicy:         cfg.Indexer.WritePolicy,
		Incremental:         cfg.Indexer.Incremental,
		SnapshotCompression: cfg.Indexer.SnapshotCompression,
		PersistTimeout:      cfg.Indexer.PersistTimeout,
	})
	if err != nil {
		closeBackend()
		return nil, err
	}
	if err := store.Load(ctx); err != nil && !errors.Is(err, bm25.ErrNotFound) {
		closeBackend()
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	return &session{cfg: cfg, store: store, close: closeBackend}, nil
}

func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(ctx, s)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
