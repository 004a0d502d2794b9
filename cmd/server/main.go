// cmd/server/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Krosebrook/lovable-prompt-artist/internal/config"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "studio",
	Short: "AI video script and storyboard studio",
	Long: `Video script studio backend: generates scripts and storyboards through the
AI gateway, stores projects, and serves the HTTP/WebSocket API.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "",
		"日志级别: debug, info, warn, error（默认读取 LOG_LEVEL）")
	rootCmd.AddCommand(serveCmd, exportCmd, durationCmd)
}

// loadConfig 加载环境配置并初始化全局 logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	opts := utils.LoggerOptions{
		Level:       utils.ParseLogLevel(cfg.LogLevel),
		Development: cfg.DebugMode(),
	}
	if cfg.LogDir != "" {
		opts.File = cfg.LogDir + "/server.log"
	}
	if err := utils.InitLogger(opts); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
