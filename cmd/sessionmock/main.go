package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yourorg/sessionmock/internal/config"
	applog "github.com/yourorg/sessionmock/internal/log"
	"github.com/yourorg/sessionmock/internal/store"
)

const defaultConfigContent = `# Set to true to also serve HTTPS on server.tls.port.
isEncryptedServer: false

server:
  host: "0.0.0.0"
  port: 80
  shutdown_timeout: 5s
  tls:
    port: 443
    cert_file: ""
    key_file: ""
    chain_file: ""
    autocert_domains: []
    autocert_cache: "./certs"

fixtures:
  file: "responses.json"
  key_policy: "path"

presence:
  heartbeat_interval: 1s
  max_chunks: 300
  websocket: false

sessions:
  owner_id: "00000000-0000-0000-0000-000000000001"
  idle_timeout: 0s

filter:
  ignore_extensions:
    - .js
    - .css
    - .png
    - .jpg
    - .gif
    - .svg
    - .woff
    - .woff2
    - .ico
    - .map
  ignore_content_types:
    - text/html
    - text/css
    - image/*
    - font/*
    - application/javascript
  ignore_paths:
    - /static/**
    - /assets/**
    - /favicon*

sanitize:
  body_fields:
    - password
    - secret
    - token
    - api_key
    - access_token
    - refresh_token
    - credential
    - challengeKey
  replacement: "***REDACTED***"

log:
  level: "info"
  format: "text"
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	cfgPath string
	debug   bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "sessionmock",
		Short:         "Fixture-driven mock of a multiplayer game backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.cfgPath, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")

	root.AddCommand(newInitCmd())
	root.AddCommand(newServeCmd(g))
	root.AddCommand(newResolveCmd(g))
	root.AddCommand(newImportCmd(g))
	root.AddCommand(newListCmd(g))
	root.AddCommand(newShowCmd(g))
	root.AddCommand(newDeleteCmd(g))
	root.AddCommand(newExportCmd(g))

	return root
}

func (g *globalFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if g.debug {
		cfg.Log.Level = "debug"
	}
	return cfg, applog.New(cfg.Log.Level, cfg.Log.Format), nil
}

func openLibrary(cfg *config.Config) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(cfg.Library.Path)
	if err != nil {
		return nil, fmt.Errorf("open library %s: %w", cfg.Library.Path, err)
	}
	return st, nil
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize ~/.sessionmock directory and default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			baseDir := filepath.Join(home, ".sessionmock")
			if err := os.MkdirAll(baseDir, 0o755); err != nil {
				return err
			}

			cfgFile := filepath.Join(baseDir, "config.yaml")
			if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(cfgFile, []byte(defaultConfigContent), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", cfgFile)
			} else if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "exists", cfgFile)
			} else {
				return err
			}

			dbPath := filepath.Join(baseDir, "library.db")
			s, err := store.NewSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "library ready", dbPath)
			return nil
		},
	}
}
