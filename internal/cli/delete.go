package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scirag/internal/domain"
	"scirag/internal/logger"
)

var (
	deleteDOI     string
	deleteSubject string
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove passages from the store",
	Long: `Remove every passage of one article (by DOI) or of one subject.

Examples:
  scirag delete --doi 10.1101/000001
  scirag delete --subject Ecology`,
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().StringVar(&deleteDOI, "doi", "", "article DOI")
	deleteCmd.Flags().StringVar(&deleteSubject, "subject", "", "subject category")
	deleteCmd.MarkFlagsMutuallyExclusive("doi", "subject")
}

func runDelete(cmd *cobra.Command, args []string) error {
	var filter domain.Filter
	switch {
	case deleteDOI != "":
		filter = domain.ByDOI(deleteDOI)
	case deleteSubject != "":
		filter = domain.BySubject(deleteSubject)
	default:
		return errors.New("one of --doi or --subject is required")
	}

	st, err := openStore(storeDir(""), nil, false)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.DeleteByFilter(cmd.Context(), filter)
	if err != nil {
		return err
	}
	logger.Info("records deleted", "count", n, "doi", deleteDOI, "subject", deleteSubject)
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d passages\n", n)
	return nil
}
