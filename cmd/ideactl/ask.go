package main

import (
	"context"
	"fmt"
	"ideasystemx-go/internal/app"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// stdoutWriter 把流式分块直接写到终端。
type stdoutWriter struct {
	w io.Writer
}

func (s stdoutWriter) WriteMessage(_ int, data []byte) error {
	_, err := s.w.Write(data)
	return err
}

func newAskCmd(c *cli) *cobra.Command {
	var noStream bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question answered from your ideas",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				if noStream || c.jsonOutput {
					res, err := a.Ideas.Answer(ctx, query)
					if err != nil {
						return err
					}
					return c.print(cmd, res, func() { fmt.Fprintln(out, res.Answer) })
				}

				sources, err := a.Ideas.StreamAnswer(ctx, query, stdoutWriter{w: out})
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				if len(sources) > 0 {
					ids := make([]string, 0, len(sources))
					for i, s := range sources {
						ids = append(ids, fmt.Sprintf("[%d] #%d", i+1, s.ID))
					}
					fmt.Fprintf(out, "\nSources: %s\n", strings.Join(ids, "  "))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the full answer instead of streaming")
	return cmd
}
