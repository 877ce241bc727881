package cmd

import (
	"github.com/spf13/cobra"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/corpus"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/output"
)

func newCompactCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Remove orphaned images from the corpus database",
		Long: `compact opens the corpus SQLite database and deletes image rows
whose owning article no longer exists, keeping ImagesForArticles and
ArticleForImage lookups accurate after bulk article deletions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())

			store, err := corpus.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Compact(cmd.Context())
			if err != nil {
				return err
			}
			out.Successf("removed %d orphaned image(s)", removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "corpus-db", "corpus.db", "path to the corpus SQLite database")

	return cmd
}
