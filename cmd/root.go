// Package cmd wires the shop assistant components behind a cobra CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	configx "github.com/tanpawarit/chative-shop-assistant/pkg/config"
	logx "github.com/tanpawarit/chative-shop-assistant/pkg/logger"
)

var envFile string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "shop-assistant",
		Short:         "Conversational e-commerce assistant with tool calling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configx.SetEnvFile(envFile)
			logCfg, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return err
			}
			logx.Init(*logCfg)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file exported before loading configuration (default ./.env when present)")

	rootCmd.AddCommand(
		serveCmd(),
		buildIndexCmd(),
		chatCmd(),
	)
	return rootCmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
