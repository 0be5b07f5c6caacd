package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abishchhetri-svg/Tasks/internal/gateway"
	"github.com/abishchhetri-svg/Tasks/internal/orchestrator"
	"github.com/abishchhetri-svg/Tasks/internal/render"
	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

var addCmd = &cobra.Command{
	Use:   "add <completed|learning|in-progress|blocker> <description>",
	Short: "Add a timestamped task to today's log",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAdd,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a day's log",
	RunE:  runShow,
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect activity, commits and pending tasks into the log",
	RunE:  runCollect,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the model analysis for a day",
	RunE:  runAnalyze,
}

var (
	dateFlag string
	htmlFlag bool
	jsonFlag bool
)

func init() {
	for _, c := range []*cobra.Command{showCmd, collectCmd, analyzeCmd} {
		c.Flags().StringVarP(&dateFlag, "date", "d", "", "Day as YYYY-MM-DD (default today)")
	}
	showCmd.Flags().BoolVar(&htmlFlag, "html", false, "Render as an HTML page")
	showCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the JSON view")
	rootCmd.AddCommand(addCmd, showCmd, collectCmd, analyzeCmd)
}

func dayFlag(comp *gateway.Components) (worklog.Date, error) {
	if dateFlag == "" {
		return comp.Orchestrator.Today(), nil
	}
	return worklog.ParseDate(dateFlag)
}

func runAdd(cmd *cobra.Command, args []string) error {
	return withComponents(cmd, func(ctx context.Context, comp *gateway.Components) error {
		res, err := comp.Orchestrator.QuickAdd(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	})
}

func runCollect(cmd *cobra.Command, args []string) error {
	return withComponents(cmd, func(ctx context.Context, comp *gateway.Components) error {
		day, err := dayFlag(comp)
		if err != nil {
			return err
		}
		res, err := comp.Collector.Run(ctx, day)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	return withComponents(cmd, func(ctx context.Context, comp *gateway.Components) error {
		day, err := dayFlag(comp)
		if err != nil {
			return err
		}
		res, err := comp.Collector.Analyze(ctx, day)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	return withComponents(cmd, func(ctx context.Context, comp *gateway.Components) error {
		day, err := dayFlag(comp)
		if err != nil {
			return err
		}
		doc, found, err := comp.Orchestrator.Document(ctx, day)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !found {
			fmt.Fprintf(out, "No log for %s\n", day)
			return nil
		}

		switch {
		case htmlFlag:
			page, err := render.Page(doc)
			if err != nil {
				return err
			}
			fmt.Fprint(out, page)
		case jsonFlag:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(worklog.NewView(doc))
		default:
			printDocument(out, doc)
		}
		return nil
	})
}

func printResult(out io.Writer, res *orchestrator.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	switch {
	case !res.HasChanges:
		fmt.Fprintf(out, "%s: nothing new\n", res.Date)
	case res.PublishErr != nil:
		fmt.Fprintf(out, "%s %s (not published: %v)\n", yellow("saved"), res.Path, res.PublishErr)
	case res.Published:
		fmt.Fprintf(out, "%s %s\n", green("published"), res.Path)
	default:
		fmt.Fprintf(out, "%s %s\n", green("saved"), res.Path)
	}
}

func printDocument(out io.Writer, doc *worklog.Document) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(out, "%s\n", cyan("Work Log "+doc.Date.String()))
	m := doc.Meta
	fmt.Fprintf(out, "%s active %.2fh, coding %.2fh, %d commits\n", gray("hours:"), m.HoursActive, m.HoursCoding, m.CommitsToday)
	if p := m.ProjectList(); len(p) > 0 {
		fmt.Fprintf(out, "%s %s\n", gray("projects:"), strings.Join(p, ", "))
	}
	if tags := m.TagList(); len(tags) > 0 {
		fmt.Fprintf(out, "%s %s\n", gray("tags:"), strings.Join(tags, ", "))
	}
	for _, v := range worklog.NewView(doc).Sections {
		fmt.Fprintf(out, "\n%s\n", bold(v.Title))
		for _, item := range v.Items {
			fmt.Fprintf(out, "  - %s\n", item)
		}
	}
}
