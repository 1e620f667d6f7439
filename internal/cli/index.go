package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func NewIndexCmd() *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain the blog index in object storage",
	}

	indexCmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Rewrite the blog index from the posts table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := loadDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()
			if deps.Queries == nil {
				return errors.New("index rebuild needs DATABASE_URL")
			}

			total, err := deps.Indexer().RebuildIndex(cmd.Context(), deps.Queries)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt blog index with %d posts\n", total)
			return nil
		},
	})

	return indexCmd
}
