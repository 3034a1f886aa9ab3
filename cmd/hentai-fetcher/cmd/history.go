package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"hentai-fetcher/index"
	"hentai-fetcher/internal/database"
	"hentai-fetcher/internal/helpers"
	"hentai-fetcher/internal/models"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the download history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded downloads, newest first",
	RunE:  runHistoryList,
}

var historyRemoveCmd = &cobra.Command{
	Use:   "remove <gallery id> [more ...]",
	Short: "Remove galleries from the history and the search index",
	Long: `Removes history records so the galleries can be downloaded again.
Files on disk are not touched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHistoryRemove,
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyRemoveCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	var records []models.DownloadRecord
	err = db.ForEachRecord(func(rec models.DownloadRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return fmt.Errorf("error reading history: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No downloads on record.")
		return nil
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].DownloadedAt.After(records[j].DownloadedAt)
	})

	for _, rec := range records {
		status := rec.Status
		if rec.Status == models.StatusError && rec.ErrorDetails != "" {
			status = fmt.Sprintf("%s (%s)", rec.Status, helpers.Truncate(rec.ErrorDetails, 60))
		}
		fmt.Printf("#%s  %s  %d pages  %s  [%s]\n",
			rec.GalleryID,
			rec.DownloadedAt.Format("2006-01-02 15:04"),
			rec.Pages,
			helpers.Truncate(rec.Title, 60),
			status)
	}
	fmt.Printf("\n%d records.\n", len(records))
	return nil
}

func runHistoryRemove(cmd *cobra.Command, args []string) error {
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

	for _, arg := range args {
		id := helpers.GalleryIDFromTarget(arg)
		if id == "" {
			id = arg
		}
		if err := db.DeleteRecord(id); err != nil {
			return fmt.Errorf("error removing history record for #%s: %w", id, err)
		}
		if err := index.DeleteItem(bleveIndex, id); err != nil {
			// The index entry may never have existed for failed downloads.
			fmt.Printf("Note: could not remove #%s from the search index: %v\n", id, err)
		}
		fmt.Printf("Removed #%s from the history.\n", id)
	}
	return nil
}
