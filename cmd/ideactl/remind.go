package main

import (
	"context"
	"fmt"
	"ideasystemx-go/internal/app"
	"ideasystemx-go/internal/model"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newRemindCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Manage reminders",
	}
	cmd.AddCommand(
		newRemindAddCmd(c),
		newRemindListCmd(c, false),
		newRemindListCmd(c, true),
		newRemindDoneCmd(c),
		newRemindSuggestCmd(c),
	)
	return cmd
}

func newRemindAddCmd(c *cli) *cobra.Command {
	var due string
	cmd := &cobra.Command{
		Use:   "add <idea-id> <message>",
		Short: "Add a reminder to an idea (due in one week unless --due is given)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ideaID, err := parseID(args[0])
			if err != nil {
				return err
			}
			dueAt, err := parseDue(due, time.Now())
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				r, err := a.Reminders.AddReminder(ctx, ideaID, dueAt, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				return c.print(cmd, r, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Reminder #%d due %s\n", r.ID, r.DueAt.Local().Format(timeLayout))
				})
			})
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "Due date (RFC 3339 or YYYY-MM-DD)")
	return cmd
}

func newRemindListCmd(c *cli, pendingOnly bool) *cobra.Command {
	use, short := "list", "List all reminders"
	if pendingOnly {
		use, short = "pending", "List due reminders that are not done"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				var (
					reminders []model.Reminder
					err       error
				)
				if pendingOnly {
					reminders, err = a.Reminders.PendingReminders(ctx)
				} else {
					reminders, err = a.Reminders.ListReminders(ctx)
				}
				if err != nil {
					return err
				}
				return c.print(cmd, reminders, func() { printReminders(cmd.OutOrStdout(), reminders) })
			})
		},
	}
}

func newRemindDoneCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "done <reminder-id>",
		Short: "Mark a reminder as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Reminders.CompleteReminder(ctx, id); err != nil {
					return err
				}
				return c.print(cmd, map[string]uint{"completed": id}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Reminder #%d done\n", id)
				})
			})
		},
	}
}

func newRemindSuggestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <idea-id>",
		Short: "Ask the AI provider whether an idea needs a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Ideas.SuggestReminder(ctx, id)
				if err != nil {
					return err
				}
				return c.print(cmd, res, func() {
					if res.Reminder == nil {
						fmt.Fprintln(cmd.OutOrStdout(), "No reminder needed.")
						return
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Reminder #%d: %s (%s)\n", res.Reminder.ID, res.Reminder.Message, res.Reminder.DueAt.Local().Format(timeLayout))
				})
			})
		},
	}
}
