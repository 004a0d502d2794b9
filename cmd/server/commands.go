// cmd/server/commands.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Krosebrook/lovable-prompt-artist/internal/app"
	"github.com/Krosebrook/lovable-prompt-artist/internal/di"
	"github.com/Krosebrook/lovable-prompt-artist/internal/duration"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/services"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务（默认命令）",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := app.New(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return a.Run(ctx)
	},
}

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "把项目导出为 PDF 报告",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := app.New(cfg, app.WithContainer(di.NewContainer()))
		if err != nil {
			return err
		}
		defer a.Close()

		store, err := di.Resolve[*storage.Store](a.Container(), di.ServiceStore)
		if err != nil {
			return err
		}
		exports, err := di.Resolve[*services.ExportService](a.Container(), di.ServiceExports)
		if err != nil {
			return err
		}

		project, err := store.Projects.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("读取项目 %s 失败: %w", args[0], err)
		}
		rep, err := exports.ReportFor(cmd.Context(), project)
		if err != nil {
			return err
		}

		out := exportOutput
		if out == "" {
			out = rep.Filename
		}
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(out, rep.Data, 0644); err != nil {
			return fmt.Errorf("写入 %s 失败: %w", out, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "已导出 %s（%d 页", out, rep.Pages)
		if n := len(rep.SkippedImages); n > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "，跳过 %d 张图片", n)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "）")
		return nil
	},
}

var durationShort bool

var durationCmd = &cobra.Command{
	Use:   "duration <text>...",
	Short: "解析并汇总场景时长，例如: duration 0:30 45s \"1 min\"",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scenes := make([]models.Scene, len(args))
		for i, arg := range args {
			scenes[i] = models.Scene{SceneNumber: i + 1, Duration: arg}
		}

		format := duration.FormatLong
		if durationShort {
			format = duration.FormatShort
		}
		w := cmd.OutOrStdout()
		for _, p := range duration.ScenePercentages(scenes) {
			arg := args[p.SceneNumber-1]
			fmt.Fprintf(w, "%2d. %-12s %4ds %3d%%\n", p.SceneNumber, arg, duration.Parse(arg), p.Percentage)
		}
		fmt.Fprintf(w, "total: %s\n", duration.FormatSeconds(duration.TotalSeconds(scenes), format))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "输出文件路径（默认使用报告文件名）")
	durationCmd.Flags().BoolVar(&durationShort, "short", false, "使用 M:SS 格式")
}
