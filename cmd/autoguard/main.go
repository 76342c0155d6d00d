package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"autoguard/internal/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "autoguard:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	v := config.NewViper()
	cmd := &cobra.Command{
		Use:           "autoguard [command]",
		Short:         "autoguard monitors libvirt guests and runs remediation playbooks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("config", "", "optional config file (yaml, json or toml)")
	_ = v.BindPFlag(config.KeyConfigFile, cmd.PersistentFlags().Lookup("config"))

	cmd.AddCommand(serveCmd(v), watchCmd(v), versionCmd(v))
	return cmd
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
}
