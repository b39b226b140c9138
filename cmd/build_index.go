package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	configx "github.com/tanpawarit/chative-shop-assistant/pkg/config"
	modelclientx "github.com/tanpawarit/chative-shop-assistant/pkg/modelclient"
)

func buildIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build-index",
		Short: "Rebuild the product vector index from the catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataCfg, err := configx.New[DataConfig]("DATA")
			if err != nil {
				return err
			}
			openaiCfg, err := configx.New[modelclientx.Config]("OPENAI")
			if err != nil {
				return err
			}

			b, err := newBuilder(*dataCfg, openaiCfg.WithDefaults(modelclientx.DefaultOpenAIBaseURL, modelclientx.DefaultOpenAIModel))
			if err != nil {
				return err
			}
			status, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}
