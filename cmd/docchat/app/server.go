// Package app provides the document chat server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kart-io/docchat/cmd/docchat/app/options"
)

const (
	// Name is the name of the application.
	Name = "docchat"

	// commandDesc is the description of the command.
	commandDesc = `Document chat service

Session-scoped retrieval-augmented question answering over uploaded documents.

This server provides:
  - Document upload with chunking and vector embeddings (.pdf, .txt)
  - Per-session semantic similarity search
  - Grounded question answering with an application-layer refusal guardrail
  - Optional Milvus-backed storage and Redis answer caching`
)

var configFile string

// NewCommand creates the root cobra command.
func NewCommand() *cobra.Command {
	opts := options.NewServerOptions()

	cmd := &cobra.Command{
		Use:          Name,
		Short:        "Session-scoped document question answering service",
		Long:         commandDesc,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the configuration file")
	opts.AddFlags(cmd.Flags())

	return cmd
}

// run contains the main logic for initializing and running the server.
func run(cmd *cobra.Command, opts *options.ServerOptions) error {
	// .env 文件存在时加载，用于本地开发注入 GEMINI_API_KEY 等变量。
	_ = godotenv.Load()

	if err := loadConfig(cmd, opts); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := opts.Complete(); err != nil {
		return fmt.Errorf("failed to complete options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	cfg, err := opts.Config()
	if err != nil {
		return fmt.Errorf("failed to build configuration: %w", err)
	}

	ctx := setupSignalContext()

	server, err := cfg.NewServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return server.Run(ctx)
}

// loadConfig merges the config file and environment variables into opts.
// Precedence: flags > environment > config file > defaults.
func loadConfig(cmd *cobra.Command, opts *options.ServerOptions) error {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/docchat")
	}

	v.SetEnvPrefix("DOCCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		// 配置文件可选，只有显式指定时缺失才报错。
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return err
		}
	}

	return v.Unmarshal(opts)
}

// setupSignalContext returns a context that is cancelled on SIGINT or
// SIGTERM. A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
