package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joelkehle/legalbrief/internal/store"
)

var (
	showFormat string
	showOut    string
	listLimit  int
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		if err := validateFormat(showFormat); err != nil {
			return err
		}
		st, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		env, err := st.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emitEnvelope(cmd, env, showFormat, showOut)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		items, err := st.List(cmd.Context(), listLimit)
		if err != nil {
			return err
		}
		return writeSummaries(cmd, items)
	},
}

func writeSummaries(cmd *cobra.Command, items []store.Summary) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTYPE\tLANG\tCLAUSES\tRISKS\tDROPPED")
	for _, s := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d/%d\n",
			s.ID, s.CreatedAt.Format("2006-01-02 15:04"), s.DocumentType, s.Language,
			s.ClauseCount, s.RiskCount, s.ChunksDropped, s.ChunksTotal)
	}
	return tw.Flush()
}

func init() {
	showCmd.Flags().StringVar(&showFormat, "format", "markdown", "output format (json, markdown, html)")
	showCmd.Flags().StringVarP(&showOut, "out", "o", "", "write output to a file instead of stdout")
	listCmd.Flags().IntVar(&listLimit, "limit", store.DefaultListLimit, "maximum analyses to list")
	rootCmd.AddCommand(showCmd, listCmd)
}
