package main

import (
	"context"
	"fmt"
	"ideasystemx-go/internal/app"
	"ideasystemx-go/internal/model"
	"ideasystemx-go/internal/service"
	"ideasystemx-go/pkg/secret"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSettingsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the AI provider settings",
	}
	cmd.AddCommand(newSettingsShowCmd(c), newSettingsSetCmd(c), newSettingsProvidersCmd(c))
	return cmd
}

func printSettings(c *cli, cmd *cobra.Command, s model.Settings, st model.AIStatus) error {
	s.APIKey = secret.Mask(s.APIKey)
	view := struct {
		Settings model.Settings `json:"settings"`
		Status   model.AIStatus `json:"status"`
	}{s, st}
	return c.print(cmd, view, func() {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Provider:        %s\n", s.AIProvider)
		fmt.Fprintf(out, "API key:         %s\n", s.APIKey)
		fmt.Fprintf(out, "Model:           %s\n", s.Model)
		fmt.Fprintf(out, "Embedding model: %s\n", s.EmbeddingModel)
		if s.Endpoint != "" {
			fmt.Fprintf(out, "Endpoint:        %s\n", s.Endpoint)
		}
		fmt.Fprintf(out, "AI configured:   %t\n", st.Configured)
		fmt.Fprintf(out, "Embeddings:      %s\n", st.EmbeddingModel)
	})
}

func newSettingsShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current settings (API key masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				s, err := a.Settings.GetSettings(ctx)
				if err != nil {
					return err
				}
				return printSettings(c, cmd, *s, a.AI.Status())
			})
		},
	}
}

func newSettingsSetCmd(c *cli) *cobra.Command {
	var in model.Settings
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings; unspecified fields keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				current, err := a.Settings.GetSettings(ctx)
				if err != nil {
					return err
				}
				next := *current
				flags := cmd.Flags()
				if flags.Changed("provider") && in.AIProvider != current.AIProvider {
					// 切换 provider 时模型回到该 provider 的默认值
					next.AIProvider = in.AIProvider
					next.Model, next.EmbeddingModel, next.Endpoint = "", "", ""
					for _, p := range service.Providers() {
						if p.Name == in.AIProvider {
							next.Model, next.EmbeddingModel = p.DefaultModel, p.DefaultEmbeddingModel
						}
					}
				}
				if flags.Changed("api-key") {
					next.APIKey = in.APIKey
				}
				if flags.Changed("model") {
					next.Model = in.Model
				}
				if flags.Changed("embedding-model") {
					next.EmbeddingModel = in.EmbeddingModel
				}
				if flags.Changed("endpoint") {
					next.Endpoint = in.Endpoint
				}

				saved, err := a.Settings.SaveSettings(ctx, next)
				if err != nil {
					return err
				}
				return printSettings(c, cmd, *saved, a.AI.Status())
			})
		},
	}
	cmd.Flags().StringVar(&in.AIProvider, "provider", "", "AI provider (empty disables AI)")
	cmd.Flags().StringVar(&in.APIKey, "api-key", "", "API key")
	cmd.Flags().StringVar(&in.Model, "model", "", "Chat model")
	cmd.Flags().StringVar(&in.EmbeddingModel, "embedding-model", "", "Embedding model")
	cmd.Flags().StringVar(&in.Endpoint, "endpoint", "", "Endpoint URL (azure, compatible, ollama)")
	return cmd
}

func newSettingsProvidersCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported AI providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			providers := service.Providers()
			return c.print(cmd, providers, func() {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tMODEL\tEMBEDDING\tKEY\tENDPOINT")
				for _, p := range providers {
					embedding := p.DefaultEmbeddingModel
					if !p.SupportsEmbedding {
						embedding = "(local)"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\n", p.Name, p.DefaultModel, embedding, p.RequiresAPIKey, p.RequiresEndpoint)
				}
				tw.Flush()
			})
		},
	}
}
