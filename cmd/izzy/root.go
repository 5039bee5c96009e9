package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configPath string

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "izzy <command> [flags]",
		Short:             "izzy unit heartbeat service",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:      true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./izzy.yaml, ./configs/izzy.yaml)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("izzy %s (%s)\n", version, gitSHA)
		},
	})
	return cmd
}
