package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/toolgate-ai/toolgate/internal/approval"
	"github.com/toolgate-ai/toolgate/internal/config"
	"github.com/toolgate-ai/toolgate/internal/logging"
	"github.com/toolgate-ai/toolgate/internal/pattern"
	"github.com/toolgate-ai/toolgate/internal/provider"
	"github.com/toolgate-ai/toolgate/internal/ruleset"
	"github.com/toolgate-ai/toolgate/internal/server"
	"github.com/toolgate-ai/toolgate/internal/tool"
)

var (
	servePort    int
	serveDir     string
	serveStore   string
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Toolgate HTTP API",
	Long: `Start Toolgate as a server that exposes an HTTP API.

Runs submitted through the API block on tool approvals the same way
interactive runs do; pending approvals are listed under /approvals and
surface on the /event stream.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
	serveCmd.Flags().StringVar(&serveStore, "store", "", "Pattern store path")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Disable reloading the store on external changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Determine working directory
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	// Load configuration
	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if serveStore != "" {
		appConfig.StorePath = serveStore
	}

	// Open the pattern store
	storePath := appConfig.PatternStorePath()
	if err := os.MkdirAll(filepath.Dir(storePath), 0755); err != nil {
		return err
	}
	store, err := pattern.Open(storePath)
	if err != nil {
		return err
	}

	// Reload on external store changes
	if !serveNoWatch {
		watcher, err := pattern.NewWatcher(store)
		if err != nil {
			logging.Warn().Err(err).Msg("store watcher unavailable")
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	coordinator := approval.NewCoordinator(approval.NewCache(store))
	defer store.Flush()

	// Load policy profiles
	profiles, err := ruleset.Load(appConfig.PolicyProfilesPath())
	if err != nil {
		return err
	}

	// Initialize providers
	ctx := cmd.Context()
	creds := make(map[string]provider.Credential, len(appConfig.Provider))
	for name, pc := range appConfig.Provider {
		creds[name] = provider.Credential{APIKey: pc.APIKey, BaseURL: pc.BaseURL, Model: pc.Model}
	}
	providerReg, err := provider.InitializeProviders(ctx, creds, appConfig.Model)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to initialize some providers")
	}

	// Initialize tool registry
	toolReg := tool.DefaultRegistry(workDir)

	// Configure server
	serverConfig := server.DefaultConfig()
	serverConfig.Port = servePort
	serverConfig.Directory = workDir

	srv := server.New(serverConfig, appConfig, store, coordinator, providerReg, toolReg, profiles)

	// Start server in goroutine
	go func() {
		logging.Info().
			Int("port", servePort).
			Str("store", storePath).
			Msg("toolgate server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	return nil
}
