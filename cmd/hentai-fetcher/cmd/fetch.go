package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hentai-fetcher/index"
	"hentai-fetcher/internal/api"
	"hentai-fetcher/internal/coordinator"
	"hentai-fetcher/internal/database"
	"hentai-fetcher/internal/fetcher"
	"hentai-fetcher/internal/helpers"
	"hentai-fetcher/internal/models"
	"hentai-fetcher/internal/worker"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url or id> [more ...]",
	Short: "Download galleries from the command line",
	Long: `Downloads one or more galleries without the Discord bot, rendering
progress to the terminal. Accepts gallery URLs and bare numeric ids.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Bool("force", false, "Re-download even if already on record")
	if err := viper.BindPFlag("fetch.force", fetchCmd.Flags().Lookup("force")); err != nil {
		log.WithError(err).Error("Failed to bind fetch.force flag")
	}
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	targets := helpers.ResolveTargets(strings.Join(args, " "))
	if len(targets) == 0 {
		return fmt.Errorf("no valid gallery URLs or ids in arguments")
	}
	force := viper.GetBool("fetch.force")

	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	bleveIndex, err := index.OpenOrCreateIndex(globalConfig.BleveIndexPath)
	if err != nil {
		return err
	}
	defer bleveIndex.Close()

	coord := coordinator.New()
	apiClient := api.NewClient(globalConfig, &http.Client{
		Transport: globalHttpTransport,
		Timeout:   time.Duration(globalConfig.ApiClientTimeoutSec) * time.Second,
	})
	dl := fetcher.New(globalConfig)

	writer := uilive.New()
	writer.Start()
	defer writer.Stop()
	notify := &terminalNotifier{writer: writer}

	remaining := 0
	for _, target := range targets {
		id := helpers.GalleryIDFromTarget(target)
		if !force && id != "" && db.IsDownloaded(id) {
			fmt.Printf("Already downloaded, skipping #%s (use --force to re-download)\n", id)
			continue
		}
		coord.Queue.Enqueue(models.Job{Target: target, ChannelID: "terminal", Force: force})
		remaining++
	}
	if remaining == 0 {
		return nil
	}
	submitted := remaining

	w := worker.New(coord, notify, apiClient,
		newRunnerFactory(globalConfig, dl, apiClient),
		worker.Config{
			PollTimeout:      100 * time.Millisecond,
			ProgressInterval: time.Second,
			SecondsPerPage:   globalConfig.SecondsPerPage,
			BarWidth:         globalConfig.ProgressBarWidth,
		})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	failures := 0
	hook := completionHook(db, bleveIndex)
	w.OnComplete = func(res worker.Result) {
		hook(res)
		if !res.Success {
			failures++
		}
		remaining--
		if remaining == 0 {
			cancelRun()
		}
	}

	w.Run(runCtx)

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted")
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d downloads failed", failures, submitted)
	}
	return nil
}

// terminalNotifier renders worker progress to the terminal instead of a
// Discord channel. Progress edits rewrite the live line; everything else is
// printed above it.
type terminalNotifier struct {
	writer *uilive.Writer
}

func (t *terminalNotifier) SendMessage(channelID, content string) (string, error) {
	fmt.Fprintln(t.writer.Bypass(), stripMarkdown(content))
	return "live", nil
}

func (t *terminalNotifier) EditMessage(channelID, messageID, content string) error {
	fmt.Fprintln(t.writer, stripMarkdown(content))
	return nil
}

func (t *terminalNotifier) SendFile(channelID, path string) error {
	fmt.Fprintf(t.writer.Bypass(), "Preview available: %s\n", path)
	return nil
}

func stripMarkdown(s string) string {
	return strings.NewReplacer("**", "", "`", "").Replace(s)
}
