package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hentai-fetcher/internal/api"
	"hentai-fetcher/internal/config"
	"hentai-fetcher/internal/models"
)

var (
	cfgFile          string
	logApiFlag       bool
	downloadPathFlag string
	verboseFlag      bool

	globalConfig        models.Config
	globalHttpTransport http.RoundTripper
)

var rootCmd = &cobra.Command{
	Use:   "hentai-fetcher",
	Short: "Download galleries and convert them to PDFs",
	Long: `hentai-fetcher downloads image galleries via gallery-dl, converts
them into single PDFs and writes Eagle-compatible metadata sidecars.
It can run as a Discord bot or perform one-shot downloads from the CLI.`,
	PersistentPreRunE: loadGlobalConfig,
}

// Execute runs the root command. Called once from main.
func Execute() {
	defer func() {
		if loggingTransport, ok := globalHttpTransport.(*api.LoggingTransport); ok && loggingTransport != nil {
			if err := loggingTransport.Close(); err != nil {
				log.WithError(err).Error("Error closing API log file")
			}
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log API requests/responses to api.log (overrides config)")
	rootCmd.PersistentFlags().StringVar(&downloadPathFlag, "download-path", "", "Directory to save finished galleries (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
}

// loadGlobalConfig loads the configuration, applies flag overrides and sets
// up the shared HTTP transport.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	if verboseFlag {
		log.SetLevel(log.DebugLevel)
	}

	var err error
	globalConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		// Not fatal: commands that only touch local state still work with
		// defaults, and those that need config fail with a clearer error.
		log.WithError(err).Warnf("Failed to load configuration from %s, using defaults", cfgFile)
		config.ApplyDefaults(&globalConfig)
	}

	if cmd.Flags().Changed("log-api") {
		globalConfig.LogApiRequests = logApiFlag
	}
	if cmd.Flags().Changed("download-path") && downloadPathFlag != "" {
		globalConfig.DownloadPath = downloadPathFlag
	}

	globalHttpTransport = http.DefaultTransport
	if globalConfig.LogApiRequests {
		logFilePath := "api.log"
		if globalConfig.DownloadPath != "" {
			if _, statErr := os.Stat(globalConfig.DownloadPath); statErr == nil {
				logFilePath = filepath.Join(globalConfig.DownloadPath, logFilePath)
			}
		}
		log.Infof("API logging to file: %s", logFilePath)

		loggingTransport, err := api.NewLoggingTransport(http.DefaultTransport, logFilePath)
		if err != nil {
			log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		} else {
			globalHttpTransport = loggingTransport
		}
	}

	return nil
}
