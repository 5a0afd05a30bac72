package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"plaque-dashboard/internal/domain/plate"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "plaque-dashboard",
		Short:         "Moroccan license plate detection dashboard service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newParseCmd())
	return root
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <plate text>",
		Short: `Parse "<number> | <letter> | <region code>" plate text`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := json.MarshalIndent(plate.Parse(args[0]), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
