package main

import (
	"context"
	"encoding/json"
	"fmt"
	"ideasystemx-go/internal/app"
	"ideasystemx-go/internal/config"
	"ideasystemx-go/pkg/log"
	"strconv"

	"github.com/spf13/cobra"
)

// cli 保存全局参数，在子命令之间共享。
type cli struct {
	configPath string
	jsonOutput bool
	verbose    bool

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "ideactl",
		Short: "Capture and explore ideas in a local knowledge base",
		Long: `ideactl stores short notes with tags, finds related notes by vector similarity
and, when an AI provider is configured, summarizes notes, suggests reminders and answers questions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg

			level := "warn"
			if c.verbose {
				level = "debug"
			}
			log.Init(level, "console", "")
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "./configs/config.yaml", "Path to the config file")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newAddCmd(c),
		newListCmd(c),
		newShowCmd(c),
		newUpdateCmd(c),
		newDeleteCmd(c),
		newSearchCmd(c),
		newTagsCmd(c),
		newRelatedCmd(c),
		newAskCmd(c),
		newRemindCmd(c),
		newSettingsCmd(c),
		newReindexCmd(c),
		newTokenCmd(c),
	)
	return root
}

// run 打开应用组件执行 fn，结束后释放。
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// print 按 --json 输出 v，否则调用 human 输出可读文本。
func (c *cli) print(cmd *cobra.Command, v interface{}, human func()) error {
	if c.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human()
	return nil
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}
