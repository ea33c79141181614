package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yourorg/sessionmock/internal/config"
	"github.com/yourorg/sessionmock/internal/fixture"
	"github.com/yourorg/sessionmock/internal/gamestate"
	"github.com/yourorg/sessionmock/internal/server"
	"github.com/yourorg/sessionmock/pkg/types"
)

// corpusFlags selects where fixtures come from: a JSON file or a library
// collection.
type corpusFlags struct {
	fixtures   string
	collection string
	keyPolicy  string
}

func (f *corpusFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fixtures, "fixtures", "", "fixture corpus file (overrides fixtures.file)")
	cmd.Flags().StringVar(&f.collection, "collection", "", "serve a library collection instead of a file")
	cmd.Flags().StringVar(&f.keyPolicy, "key-policy", "", "fixture key policy: path or path_query")
}

func (f *corpusFlags) apply(cfg *config.Config) {
	if f.fixtures != "" {
		cfg.Fixtures.File = f.fixtures
	}
	if f.keyPolicy != "" {
		cfg.Fixtures.KeyPolicy = f.keyPolicy
	}
}

// loadIndex reads the corpus and builds the fixture index.
func (f *corpusFlags) loadIndex(cfg *config.Config, logger *slog.Logger) (*fixture.Index, error) {
	policy, err := fixture.ParseKeyPolicy(cfg.Fixtures.KeyPolicy)
	if err != nil {
		return nil, err
	}

	var corpus []types.Exchange
	source := cfg.Fixtures.File
	if strings.TrimSpace(f.collection) != "" {
		source = "collection " + f.collection
		st, err := openLibrary(cfg)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		if _, err := st.GetCollection(f.collection); err != nil {
			return nil, fmt.Errorf("collection %s: %w", f.collection, err)
		}
		if corpus, err = st.GetExchanges(f.collection); err != nil {
			return nil, fmt.Errorf("load collection %s: %w", f.collection, err)
		}
	} else if corpus, err = fixture.LoadFile(cfg.Fixtures.File); err != nil {
		return nil, err
	}

	idx, err := fixture.Build(corpus, policy, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("fixtures loaded", "source", source, "exchanges", len(corpus), "keys", idx.Len(), "key_policy", policy)
	return idx, nil
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var cf corpusFlags
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mock backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			cf.apply(cfg)
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			idx, err := cf.loadIndex(cfg, logger)
			if err != nil {
				return err
			}
			srv, err := server.New(cfg, idx, gamestate.NewMemoryStore(), logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cf.register(cmd)
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}

func newResolveCmd(g *globalFlags) *cobra.Command {
	var cf corpusFlags
	cmd := &cobra.Command{
		Use:   "resolve METHOD PATH",
		Short: "Show what the server would answer for a request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			cf.apply(cfg)
			idx, err := cf.loadIndex(cfg, logger)
			if err != nil {
				return err
			}
			return resolve(cmd, idx, args[0], args[1])
		},
	}
	cf.register(cmd)
	return cmd
}

func resolve(cmd *cobra.Command, idx *fixture.Index, method, path string) error {
	out := cmd.OutOrStdout()
	resp, err := idx.Resolve(strings.ToUpper(method), path)
	if err != nil {
		fmt.Fprintf(out, "404 Not found (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "%d %s\n%s\n", resp.Status, resp.ContentType, resp.Body)
	return nil
}
