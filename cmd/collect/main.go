package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LJTian/TrendingRelay/internal/app"
	"github.com/LJTian/TrendingRelay/internal/config"
	"github.com/LJTian/TrendingRelay/internal/logging"
	"github.com/LJTian/TrendingRelay/internal/pipeline"
)

// 命令行入口：手动触发采集、查看批次任务、清理过期数据
func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.L().Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "collect",
		Short:         "TrendingRelay command line: run collections and inspect batch jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCmd(),
		newJobsCmd(),
		newCleanupCmd(),
		newTranslateCmd(),
	)
	return root
}

// withApp 初始化组件并在 SIGINT/SIGTERM 时取消 ctx
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	a, err := app.New(config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newRunCmd() *cobra.Command {
	var (
		platforms   string
		noTranslate bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one collection batch and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if noTranslate {
					a.Pipeline.Translator = nil
				}

				var (
					sum pipeline.Summary
					err error
				)
				if codes := splitCodes(platforms); len(codes) > 0 {
					sum, err = a.Pipeline.CollectPlatforms(ctx, pipeline.JobManual, codes)
				} else {
					sum, err = a.Scheduler.RunOnce(ctx)
				}
				if perr := printJSON(sum); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&platforms, "platforms", "", "Platforms to collect (comma-separated, default: all configured)")
	cmd.Flags().BoolVar(&noTranslate, "no-translate", false, "Store new items without translating them")
	return cmd
}

func newJobsCmd() *cobra.Command {
	var (
		jobType string
		limit   int
		id      string
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent batch jobs, or show one job with its collection logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if id != "" {
					job, err := a.Store.GetBatchJob(id)
					if err != nil {
						return fmt.Errorf("batch job %s: %w", id, err)
					}
					logs, err := a.Store.ListCollectionLogs(id, 100)
					if err != nil {
						return err
					}
					return printJSON(map[string]any{"job": job, "logs": logs})
				}
				jobs, err := a.Store.ListRecentBatchJobs(jobType, limit)
				if err != nil {
					return err
				}
				return printJSON(jobs)
			})
		},
	}
	cmd.Flags().StringVar(&jobType, "type", "", "Filter by job type (scheduled_collection, manual_collection, api_collection)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of jobs")
	cmd.Flags().StringVar(&id, "id", "", "Show a single job by id")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete trending rows and batch jobs older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				return a.Scheduler.Cleanup()
			})
		},
	}
}

func newTranslateCmd() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "translate [text...]",
		Short: "Translate the given titles with the configured model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if !a.Translator.Enabled() {
					logging.L().Warn("OPENAI_API_KEY is not set, titles will be echoed")
				}
				out := a.Translator.TranslateTexts(ctx, args, lang)
				return printJSON(out)
			})
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "en", "Target language code")
	return cmd
}

func splitCodes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
