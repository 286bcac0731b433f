package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/garyjia/expense-approval/internal/infrastructure/draftstore"
)

var draftID string

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Inspect or clear staged draft receipts",
}

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List receipts staged for a draft",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		store := draftstore.Open(cfg.DraftStore.SQLitePath, cfg.DraftStore.Root, logger)
		defer store.Teardown(cmd.Context())

		staged, err := store.ListByDraft(cmd.Context(), draftID)
		if err != nil {
			return err
		}

		expenseIDs := make([]string, 0, len(staged))
		for id := range staged {
			expenseIDs = append(expenseIDs, id)
		}
		sort.Strings(expenseIDs)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EXPENSE\tRECEIPT\tFILE\tTYPE\tSIZE\tSAVED")
		for _, expenseID := range expenseIDs {
			for _, m := range staged[expenseID] {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					expenseID, m.ID, m.FileName, m.ContentType, m.Size, m.SavedAt.Format("2006-01-02 15:04:05"))
			}
		}
		return w.Flush()
	},
}

var draftClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every receipt staged for a draft",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		store := draftstore.Open(cfg.DraftStore.SQLitePath, cfg.DraftStore.Root, logger)
		defer store.Teardown(cmd.Context())

		if err := store.ClearDraft(cmd.Context(), draftID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared draft %s\n", draftID)
		return nil
	},
}

func init() {
	draftCmd.PersistentFlags().StringVar(&draftID, "draft", "", "draft identifier")
	_ = draftCmd.MarkPersistentFlagRequired("draft")
	draftCmd.AddCommand(draftListCmd, draftClearCmd)
}
