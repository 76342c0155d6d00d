package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"autoguard/internal/agent/version"
	"autoguard/internal/config"
)

func versionCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print build and listener information",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(version.Get(cfg, nil))
		},
	}
}
