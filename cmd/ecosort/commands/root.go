package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "ecosort",
	Short: "EcoSort capture server",
	Long:  `Triggers browser camera clients, classifies the captured item as recycle, waste or mix and keeps a capture history.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("database-path", "data/captures.db", "SQLite capture history path")
	rootCmd.PersistentFlags().String("log-dir", "logs", "Log directory")

	viper.BindPFlag("database-path", rootCmd.PersistentFlags().Lookup("database-path"))
	viper.BindPFlag("log-dir", rootCmd.PersistentFlags().Lookup("log-dir"))
}
