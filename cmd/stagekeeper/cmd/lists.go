package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/stagekeeper/internal/core/db"
	"github.com/solatis/stagekeeper/internal/rules"
)

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Manage the list metadata rules refer to",
}

var listsRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register or update a tenant list",
	Args:  cobra.NoArgs,
	RunE:  runListsRegister,
}

var listsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a tenant's registered lists",
	Args:  cobra.NoArgs,
	RunE:  runListsShow,
}

func init() {
	rootCmd.AddCommand(listsCmd)
	listsCmd.AddCommand(listsRegisterCmd, listsShowCmd)
	listsCmd.PersistentFlags().String("tenant", "", "tenant id (required)")
	listsCmd.MarkPersistentFlagRequired("tenant")

	listsRegisterCmd.Flags().String("id", "", "list id (required)")
	listsRegisterCmd.Flags().String("name", "", "display name")
	listsRegisterCmd.Flags().String("type", "", "list type (pep, sanctions, watchlist, ...)")
	listsRegisterCmd.Flags().Int("count", 0, "number of entries")
	listsRegisterCmd.MarkFlagRequired("id")
}

func openListStore() (*db.ListStore, func(), error) {
	database, queries, err := openCurrentDatabase()
	if err != nil {
		return nil, nil, err
	}
	return db.NewListStore(queries), func() { database.Close() }, nil
}

func runListsRegister(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	ref := rules.ListRef{}
	ref.ID, _ = cmd.Flags().GetString("id")
	ref.Name, _ = cmd.Flags().GetString("name")
	ref.Type, _ = cmd.Flags().GetString("type")
	ref.Count, _ = cmd.Flags().GetInt("count")
	if ref.Name == "" {
		ref.Name = ref.ID
	}

	store, closeDB, err := openListStore()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := store.Register(cmd.Context(), tenantID, ref); err != nil {
		return err
	}
	logger.Info("list registered", "tenant_id", tenantID, "list_id", ref.ID, "entries", ref.Count)
	return nil
}

func runListsShow(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")

	store, closeDB, err := openListStore()
	if err != nil {
		return err
	}
	defer closeDB()

	refs, err := store.List(cmd.Context(), tenantID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tENTRIES")
	for _, r := range refs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", r.ID, r.Name, r.Type, r.Count)
	}
	return w.Flush()
}
