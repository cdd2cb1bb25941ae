package main

import (
	"fmt"
	"ideasystemx-go/internal/model"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

const timeLayout = "2006-01-02 15:04"

func printIdeas(w io.Writer, ideas []model.IdeaDTO) {
	if len(ideas) == 0 {
		fmt.Fprintln(w, "No ideas found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTAGS\tPREVIEW")
	for _, i := range ideas {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i.ID, i.CreatedAt.Local().Format(timeLayout), strings.Join(i.Tags, ","), oneLine(i.Preview))
	}
	tw.Flush()
}

func printIdea(w io.Writer, i model.IdeaDTO) {
	fmt.Fprintf(w, "#%d  %s\n", i.ID, i.CreatedAt.Local().Format(timeLayout))
	if len(i.Tags) > 0 {
		fmt.Fprintf(w, "Tags:    %s\n", strings.Join(i.Tags, ", "))
	}
	if i.Summary != nil {
		fmt.Fprintf(w, "Summary: %s\n", *i.Summary)
	}
	fmt.Fprintf(w, "\n%s\n", i.Content)
}

func printRelated(w io.Writer, related []model.RelatedIdea) {
	if len(related) == 0 {
		fmt.Fprintln(w, "No related ideas.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSIMILARITY\tPREVIEW")
	for _, r := range related {
		fmt.Fprintf(tw, "%d\t%.3f\t%s\n", r.Idea.ID, r.Similarity, oneLine(r.Idea.Preview))
	}
	tw.Flush()
}

func printReminders(w io.Writer, reminders []model.Reminder) {
	if len(reminders) == 0 {
		fmt.Fprintln(w, "No reminders.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tIDEA\tDUE\tDONE\tMESSAGE")
	for _, r := range reminders {
		done := ""
		if r.Completed {
			done = "yes"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", r.ID, r.IdeaID, r.DueAt.Local().Format(timeLayout), done, oneLine(r.Message))
	}
	tw.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseDue 接受 RFC 3339 时间或 YYYY-MM-DD（本地 09:00）；为空时默认一周后。
func parseDue(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now.Add(7 * 24 * time.Hour), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if d, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return d.Add(9 * time.Hour), nil
	}
	return time.Time{}, fmt.Errorf("invalid due date %q, want RFC 3339 or YYYY-MM-DD", s)
}
