package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the insightd command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "insightd",
		Short: "Creator content insight pipeline",
		Long: `insightd scans registered creators for new content, extracts transcripts,
analyzes them with an LLM and routes scored insights into the agent knowledge tree.

Configuration is read from the environment (and a .env file). Every key may be
given bare or with the INSIGHT_ prefix, for example KNOWLEDGE_ROOT or
INSIGHT_KNOWLEDGE_ROOT.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().Bool("json", false, "Output as JSON")
	AddHelpJSONFlag(root)

	root.AddCommand(ServeCmd())
	root.AddCommand(ScanCmd())
	root.AddCommand(CreatorsCmd())
	root.AddCommand(HistoryCmd())
	root.AddCommand(MigrateCmd())

	return root
}
