package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abishchhetri-svg/Tasks/internal/config"
	"github.com/abishchhetri-svg/Tasks/internal/cron"
	"github.com/abishchhetri-svg/Tasks/internal/gateway"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List scheduled jobs",
	RunE:  runJobs,
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <name|id>",
	Short: "Run a scheduled job now",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobNow,
}

func init() {
	jobsCmd.AddCommand(jobsRunCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc := cron.NewService(cfg.CronStorePath())
	if err := svc.Load(); err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}

	out := cmd.OutOrStdout()
	jobs := svc.ListJobs()
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs yet (they are created by 'worklog serve')")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	for _, j := range jobs {
		status := gray("never run")
		switch j.State.LastStatus {
		case "ok":
			status = green("ok") + " " + j.LastRun().Format(time.DateTime)
		case "error":
			status = red("error") + " " + j.State.LastError
		}
		enabled := ""
		if !j.Enabled {
			enabled = gray(" (disabled)")
		}
		fmt.Fprintf(out, "%-14s %-18s %s%s\n", j.Name, scheduleText(j.Schedule), status, enabled)
	}
	return nil
}

func scheduleText(s cron.Schedule) string {
	if s.Kind == cron.KindEvery {
		return "every " + (time.Duration(s.EveryMs) * time.Millisecond).String()
	}
	return s.Expr
}

func runJobNow(cmd *cobra.Command, args []string) error {
	return withComponents(cmd, func(ctx context.Context, comp *gateway.Components) error {
		svc := cron.NewService(comp.Config.CronStorePath())
		if err := svc.Load(); err != nil {
			return fmt.Errorf("load jobs: %w", err)
		}
		job, ok := svc.Job(args[0])
		if !ok {
			return fmt.Errorf("job %s not found", args[0])
		}
		result, err := comp.RunTask(ctx, job)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result)
		return nil
	})
}
