package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/config"
	"github.com/ifuryst/agripost/internal/content"
	"github.com/ifuryst/agripost/internal/models"
	"github.com/ifuryst/agripost/internal/server"
	"github.com/ifuryst/agripost/internal/service"
	"github.com/ifuryst/agripost/pkg/logger"
)

var (
	configPath string
	version    = "0.1.0"
	gitCommit  = "unknown"
	buildTime  = "unknown"

	genTopic    string
	genPlatform string
	genLocale   string
	listLocales bool
)

var rootCmd = &cobra.Command{
	Use:   "agripost",
	Short: "AgriPost - Social posting for farms and agricultural co-ops",
	Long:  `AgriPost renders agricultural post copy, schedules it, publishes it to social platforms and reports on engagement.`,
	RunE:  runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("AgriPost %s\n", version)
		fmt.Printf("Git commit: %s\n", gitCommit)
		fmt.Printf("Build time: %s\n", buildTime)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render post copy for a topic and platform",
	RunE:  runGenerate,
}

var totpSecretCmd = &cobra.Command{
	Use:   "totp-secret [account]",
	Short: "Generate a TOTP secret for the API guard",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := "admin"
		if len(args) == 1 {
			account = args[0]
		}
		secret, url, err := service.NewAuthService(zap.NewNop(), "").GenerateSecret(account)
		if err != nil {
			return err
		}
		fmt.Printf("Secret: %s\n", secret)
		fmt.Printf("URL:    %s\n", url)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/server.yaml", "config file path")

	generateCmd.Flags().StringVarP(&genTopic, "topic", "t", "", "content topic (weather, harvest, ...)")
	generateCmd.Flags().StringVarP(&genPlatform, "platform", "p", "twitter", "target platform")
	generateCmd.Flags().StringVarP(&genLocale, "locale", "l", "en", "locale")
	generateCmd.Flags().BoolVar(&listLocales, "list-locales", false, "print the available locales and exit")

	rootCmd.AddCommand(versionCmd, generateCmd, totpSecretCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	engine, err := content.NewEngine("en")
	if err != nil {
		return err
	}

	if listLocales {
		for _, locale := range engine.Locales() {
			fmt.Fprintln(cmd.OutOrStdout(), locale)
		}
		return nil
	}

	platform, err := models.ParsePlatform(genPlatform)
	if err != nil {
		return err
	}

	out := engine.Generate(models.ParseTopic(genTopic), platform, genLocale)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runServer(*cobra.Command, []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting AgriPost server", zap.String("version", version))

	srv, err := server.NewServer(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server failed to start", zap.Error(err))
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		appLogger.Info("Shutting down server...")
	case <-ctx.Done():
		appLogger.Info("Server context cancelled")
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	appLogger.Info("Server exited")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
