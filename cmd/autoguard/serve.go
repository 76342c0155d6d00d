package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"autoguard/internal/agent"
	"autoguard/internal/config"
)

func serveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the monitor loop, HTTP API and event streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger := agent.BuildLogger(cfg)
			a, err := agent.New(cfg, logger)
			if err != nil {
				logger.Error("agent initialization failed", "error", err)
				return err
			}
			return a.Run(cmd.Context())
		},
	}

	fs := cmd.Flags()
	fs.String("listen", "", "HTTP API listen address")
	fs.String("grpc-listen", "", "gRPC event stream listen address")
	fs.String("libvirt-uri", "", "libvirt connection URI")
	fs.Duration("interval", 0, "monitor cycle interval")
	fs.String("store", "", "blob store backend: redis, sqlite or memory")
	fs.String("redis-url", "", "redis URL for the redis store")
	fs.String("sqlite-path", "", "database file for the sqlite store")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.Bool("log-json", false, "emit JSON logs")

	bindFlags(v, cmd.Flags(), map[string]string{
		"listen":      config.KeyListenAddr,
		"grpc-listen": config.KeyGRPCListenAddr,
		"libvirt-uri": config.KeyLibvirtURI,
		"interval":    config.KeyMonitorInterval,
		"store":       config.KeyStoreBackend,
		"redis-url":   config.KeyRedisURL,
		"sqlite-path": config.KeySQLitePath,
		"log-level":   config.KeyLogLevel,
		"log-json":    config.KeyLogJSON,
	})
	return cmd
}
