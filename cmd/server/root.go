package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/imrenagi/go-upload-progress/config"
	"github.com/imrenagi/go-upload-progress/server"
)

var flags struct {
	configPath  string
	address     string
	storageRoot string
	logLevel    string
}

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Upload server with live progress notifications",
	Long: `Accepts multipart uploads, streams every file into storage and pushes
throttled progress events to the uploader's websocket.

Examples:
  server --config config.yaml
  server --addr :9090 --storage-root /var/uploads
  STORAGE_DRIVER=blob STORAGE_BUCKET_URL=mem:// server`,
	SilenceUsage: true,
	RunE:         run,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		"Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flags.address, "addr", "",
		"Listen address, overrides server.address")
	rootCmd.PersistentFlags().StringVar(&flags.storageRoot, "storage-root", "",
		"Directory or key prefix uploads are written to, overrides upload.storageRoot")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "",
		"Log level, overrides logging.level")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.address != "" {
		cfg.Server.Address = flags.address
	}
	if flags.storageRoot != "" {
		cfg.Upload.StorageRoot = flags.storageRoot
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}

	if err := server.InitializeLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := server.New(server.Opts{Config: *cfg})
	if err := s.Run(ctx); err != nil {
		log.Error().Err(err).Msg("failed to run the server")
		return err
	}
	return nil
}
