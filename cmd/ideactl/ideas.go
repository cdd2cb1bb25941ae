package main

import (
	"context"
	"fmt"
	"ideasystemx-go/internal/app"
	"ideasystemx-go/internal/model"
	"ideasystemx-go/internal/service"
	"strings"

	"github.com/spf13/cobra"
)

func newAddCmd(c *cli) *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Save a new idea",
		Long:  `Save a new idea. Tags, a summary, a reminder and related ideas are added automatically when possible.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Ideas.CreateIdea(ctx, strings.Join(args, " "), tags)
				if err != nil {
					return err
				}
				return c.print(cmd, res, func() {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Saved idea #%d\n", res.Idea.ID)
					if len(res.Idea.Tags) > 0 {
						fmt.Fprintf(out, "Tags:     %s\n", strings.Join(res.Idea.Tags, ", "))
					}
					if res.Idea.Summary != nil {
						fmt.Fprintf(out, "Summary:  %s\n", *res.Idea.Summary)
					}
					if res.Reminder != nil {
						fmt.Fprintf(out, "Reminder: %s (%s)\n", res.Reminder.Message, res.Reminder.DueAt.Local().Format(timeLayout))
					}
					if len(res.Related) > 0 {
						fmt.Fprintln(out, "\nRelated:")
						printRelated(out, res.Related)
					}
				})
			})
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tag to attach (repeatable or comma separated)")
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ideas, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				var (
					ideas []model.IdeaDTO
					err   error
				)
				if tag != "" {
					ideas, err = a.Ideas.SearchByTag(ctx, tag)
				} else {
					ideas, err = a.Ideas.ListIdeas(ctx)
				}
				if err != nil {
					return err
				}
				return c.print(cmd, ideas, func() { printIdeas(cmd.OutOrStdout(), ideas) })
			})
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "Only ideas with this tag")
	return cmd
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an idea with its reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				idea, err := a.Ideas.GetIdea(ctx, id)
				if err != nil {
					return err
				}
				reminders, err := a.Reminders.ListIdeaReminders(ctx, id)
				if err != nil {
					return err
				}
				view := struct {
					model.IdeaDTO
					Reminders []model.Reminder `json:"reminders"`
				}{*idea, reminders}
				return c.print(cmd, view, func() {
					out := cmd.OutOrStdout()
					printIdea(out, *idea)
					if len(reminders) > 0 {
						fmt.Fprintln(out, "\nReminders:")
						printReminders(out, reminders)
					}
				})
			})
		},
	}
}

func newUpdateCmd(c *cli) *cobra.Command {
	var (
		content string
		tags    []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the content or tags of an idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var in service.UpdateIdeaInput
			if cmd.Flags().Changed("content") {
				in.Content = &content
			}
			if cmd.Flags().Changed("tags") {
				in.Tags = &tags
			}
			if in.Content == nil && in.Tags == nil {
				return fmt.Errorf("nothing to update, pass --content or --tags")
			}
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				idea, err := a.Ideas.UpdateIdea(ctx, id, in)
				if err != nil {
					return err
				}
				return c.print(cmd, idea, func() { printIdea(cmd.OutOrStdout(), *idea) })
			})
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "New content")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Replace all tags (comma separated, empty clears)")
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an idea and its reminders",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Ideas.DeleteIdea(ctx, id); err != nil {
					return err
				}
				return c.print(cmd, map[string]uint{"deleted": id}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted idea #%d\n", id)
				})
			})
		},
	}
}

func newSearchCmd(c *cli) *cobra.Command {
	var (
		tags     []string
		semantic bool
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search ideas by content, tags or meaning",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if query == "" && len(tags) == 0 {
				return fmt.Errorf("pass a query or --tags")
			}
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				if semantic {
					hits, err := a.Ideas.SemanticSearch(ctx, query, limit)
					if err != nil {
						return err
					}
					return c.print(cmd, hits, func() { printRelated(cmd.OutOrStdout(), hits) })
				}

				var (
					ideas []model.IdeaDTO
					err   error
				)
				if len(tags) > 0 {
					ideas, err = a.Ideas.GetByTags(ctx, tags)
				} else {
					ideas, err = a.Ideas.SearchByContent(ctx, query)
				}
				if err != nil {
					return err
				}
				return c.print(cmd, ideas, func() { printIdeas(cmd.OutOrStdout(), ideas) })
			})
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Ideas carrying all of these tags")
	cmd.Flags().BoolVarP(&semantic, "semantic", "s", false, "Rank by meaning instead of substring match")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum semantic results")
	return cmd
}

func newTagsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List tags with usage counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				tags, err := a.Ideas.ListTags(ctx)
				if err != nil {
					return err
				}
				return c.print(cmd, tags, func() {
					for _, t := range tags {
						fmt.Fprintf(cmd.OutOrStdout(), "%-20s %d\n", t.Name, t.Count)
					}
				})
			})
		},
	}
}

func newRelatedCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "related <id>",
		Short: "Show ideas similar to an idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				related, err := a.Ideas.FindRelated(ctx, id, limit)
				if err != nil {
					return err
				}
				return c.print(cmd, related, func() { printRelated(cmd.OutOrStdout(), related) })
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (default from config)")
	return cmd
}

func newReindexCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Re-embed every idea with the current embedding model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Ideas.Reindex(ctx)
				if err != nil {
					return err
				}
				return c.print(cmd, res, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d, failed %d, removed %d orphan vectors\n", res.Embedded, res.Failed, res.Removed)
				})
			})
		},
	}
}
