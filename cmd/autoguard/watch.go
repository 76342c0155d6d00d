package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"autoguard/internal/config"
	"autoguard/internal/model"
	"autoguard/internal/stream"
)

func watchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [event...]",
		Short: "print events from a running autoguard gRPC stream",
		Long:  "watch subscribes to the gRPC event stream and prints one JSON line per event. Without arguments every event is printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			events := args
			if len(events) == 0 {
				events = v.GetStringSlice(config.KeyWatchEvents)
			}
			names := make([]model.EventName, 0, len(events))
			for _, e := range events {
				names = append(names, model.EventName(e))
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			target := v.GetString(config.KeyGRPCTarget)
			client, err := stream.NewGRPCClient(target, nil, logger)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			out := cmd.OutOrStdout()
			return client.Subscribe(cmd.Context(), names, func(env stream.RawEnvelope) error {
				_, err := fmt.Fprintf(out, "%s %s %s\n", env.Timestamp.Format("15:04:05"), env.Event, env.Payload)
				return err
			})
		},
	}
	cmd.Flags().String("target", "", "gRPC address of the autoguard server")
	bindFlags(v, cmd.Flags(), map[string]string{"target": config.KeyGRPCTarget})
	return cmd
}
