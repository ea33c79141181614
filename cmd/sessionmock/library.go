package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourorg/sessionmock/internal/export"
	"github.com/yourorg/sessionmock/internal/filter"
	"github.com/yourorg/sessionmock/internal/fixture"
	"github.com/yourorg/sessionmock/internal/har"
	"github.com/yourorg/sessionmock/internal/store"
)

func newImportCmd(g *globalFlags) *cobra.Command {
	var harPath, description string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a HAR capture into the fixture library",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			exchanges, err := har.Parse(harPath)
			if err != nil {
				return err
			}
			parsed := len(exchanges)
			exchanges = filter.Apply(exchanges, cfg.Filter)
			exchanges = filter.Sanitize(exchanges, cfg.Sanitize)
			logger.Info("har parsed", "file", harPath, "entries", parsed, "kept", len(exchanges))

			st, err := openLibrary(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			host := ""
			for _, ex := range exchanges {
				if ex.Host != "" {
					host = ex.Host
					break
				}
			}
			c, err := st.CreateCollection(harPath, description, host)
			if err != nil {
				return err
			}
			if err := st.SaveExchanges(c.ID, exchanges); err != nil {
				_ = st.UpdateCollectionStatus(c.ID, "failed")
				return err
			}
			if err := st.UpdateCollectionStatus(c.ID, "ready"); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d exchanges into %s\n", len(exchanges), c.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&harPath, "har", "", "HAR file path")
	cmd.Flags().StringVar(&description, "description", "", "collection description")
	_ = cmd.MarkFlagRequired("har")
	return cmd
}

func newListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List fixture collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			st, err := openLibrary(cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			return listCollections(cmd, st)
		},
	}
}

func listCollections(cmd *cobra.Command, st store.Store) error {
	cols, err := st.ListCollections()
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no collections")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHOST\tEXCHANGES\tSTATUS\tCREATED\tDESCRIPTION")
	for _, c := range cols {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", c.ID, c.Host, c.ExchangeCount, c.Status, c.CreatedAt.Format("2006-01-02 15:04"), c.Description)
	}
	return tw.Flush()
}

func newShowCmd(g *globalFlags) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the replayable routes of a collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			policy, err := fixture.ParseKeyPolicy(cfg.Fixtures.KeyPolicy)
			if err != nil {
				return err
			}
			st, err := openLibrary(cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			return showCollection(cmd, st, collection, policy)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection id")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func showCollection(cmd *cobra.Command, st store.Store, id string, policy fixture.KeyPolicy) error {
	c, err := st.GetCollection(id)
	if err != nil {
		return fmt.Errorf("collection %s: %w", id, err)
	}
	exchanges, err := st.GetExchanges(id)
	if err != nil {
		return err
	}
	cat, err := export.BuildCatalogue(*c, exchanges, policy)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s  (%d exchanges, %d routes)\n", c.ID, c.Host, c.ExchangeCount, len(cat.Endpoints))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tKEY\tSTATUS\tCALLS\tSHADOWED")
	for _, e := range cat.Endpoints {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", e.Method, e.Key, e.StatusCode, e.CallCount, e.Shadowed)
	}
	return tw.Flush()
}

func newDeleteCmd(g *globalFlags) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			st, err := openLibrary(cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.DeleteCollection(collection); err != nil {
				return fmt.Errorf("delete %s: %w", collection, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", collection)
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection id")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func newExportCmd(g *globalFlags) *cobra.Command {
	var collection, outDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a collection as responses.json plus markdown and yaml catalogues",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			policy, err := fixture.ParseKeyPolicy(cfg.Fixtures.KeyPolicy)
			if err != nil {
				return err
			}
			st, err := openLibrary(cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			c, err := st.GetCollection(collection)
			if err != nil {
				return fmt.Errorf("collection %s: %w", collection, err)
			}
			exchanges, err := st.GetExchanges(collection)
			if err != nil {
				return err
			}
			cat, err := export.BuildCatalogue(*c, exchanges, policy)
			if err != nil {
				return err
			}
			if err := export.Write(cat, exchanges, outDir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "exported", collection, "to", outDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection id")
	cmd.Flags().StringVar(&outDir, "out", "./fixtures", "output directory")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}
