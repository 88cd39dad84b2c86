package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bizlens",
	Short: "Conversational business lookup agent",
	Long: `Bizlens answers business lookup questions in conversation: it finds
businesses, fetches details from their websites, and analyzes review
sentiment, caching everything it learns along the way.

Available commands:
  chat - interactive REPL against the agent`,
}

// Execute is called by main.main() once.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
