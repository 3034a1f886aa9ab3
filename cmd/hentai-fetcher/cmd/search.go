package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hentai-fetcher/index"
)

var searchLimitFlag int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the downloaded library",
	Long: `Searches titles, tags and annotations of downloaded galleries using
Bleve query string syntax, e.g.:

  hentai-fetcher search 'full color'
  hentai-fetcher search '+tags:artist\:shindol'
  hentai-fetcher search '+galleryId:177013'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimitFlag, "limit", 20, "Maximum number of results to print")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	bleveIndex, err := index.OpenOrCreateIndex(globalConfig.BleveIndexPath)
	if err != nil {
		return err
	}
	defer bleveIndex.Close()

	query := strings.Join(args, " ")
	results, err := index.SearchIndex(bleveIndex, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if results.Total == 0 {
		fmt.Println("No matches.")
		return nil
	}

	fmt.Printf("%d matches (%s):\n\n", results.Total, results.Took)
	for i, hit := range results.Hits {
		if i >= searchLimitFlag {
			fmt.Printf("... and %d more (raise --limit to see them)\n", int(results.Total)-searchLimitFlag)
			break
		}

		title, _ := hit.Fields["title"].(string)
		galleryID, _ := hit.Fields["galleryId"].(string)
		path, _ := hit.Fields["path"].(string)
		pages, _ := hit.Fields["pages"].(float64)

		fmt.Printf("#%s  %s", galleryID, title)
		if pages > 0 {
			fmt.Printf("  (%d pages)", int(pages))
		}
		fmt.Println()
		if path != "" {
			fmt.Printf("    %s\n", path)
		}
	}
	return nil
}
