// -----------------------------------------------------------------------
// refnet - Citation graph crawler and knowledge base generator
// -----------------------------------------------------------------------

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/app"
	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/server"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("RefNet version %s\n", common.GetFullVersion())
		return 0
	}

	// Auto-discover a config file next to the binary when none is given
	if len(configFiles) == 0 {
		if _, err := os.Stat("refnet.toml"); err == nil {
			configFiles = append(configFiles, "refnet.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("environment", config.Environment).
		Str("sqlite_path", config.Storage.SQLite.Path).
		Str("vault_path", config.Vault.Path).
		Str("llm_provider", config.LLM.Provider).
		Int("max_depth", config.Crawler.MaxDepth).
		Msg("Configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		if errors.Is(err, app.ErrStorage) {
			return 2
		}
		return 1
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to start pipeline")
		application.Stop()
		return 1
	}

	srv := server.New(application)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigChan:
		logger.Info().Msg("Interrupt signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("Server failed")
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
		exitCode = 1
	}

	application.Stop()
	logger.Info().Msg("Server stopped")
	return exitCode
}
