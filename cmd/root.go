package cmd

import (
	"fmt"
	u "net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/killerciao/CoomerDLEnhanced/internal/links"
	"github.com/killerciao/CoomerDLEnhanced/internal/session"
	"github.com/killerciao/CoomerDLEnhanced/utils"
)

var (
	output       string
	workers      int
	urlListFile  string
	images       bool
	videos       bool
	archives     bool
	downloadAll  bool
	password     string
	cookiesFile  string
	handlersFile string
	debug        bool
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "coomerdl [URL]",
	Short:   "CoomerDL is a media downloader for galleries, albums, threads, and file hosts",
	Version: Version,
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug, output)
		if len(args) == 0 && urlListFile == "" {
			utils.PrintError("No URL or URL list provided")
			os.Exit(1)
		}
		if urlListFile != "" && len(args) > 0 {
			utils.PrintError("Cannot specify url argument and --urllist together, choose one")
			os.Exit(1)
		}
		if output == "" {
			utils.PrintError(session.ErrNoDownloadFolder.Error())
			os.Exit(1)
		}
		cfg := session.Config{
			DownloadFolder: output,
			MaxWorkers:     workers,
			Filters:        buildFilters(),
			DownloadAll:    downloadAll,
		}
		utils.PrintHeader(fmt.Sprintf("CoomerDL %s", Version))
		utils.PrintInfo(fmt.Sprintf("Saving to %s", output))
		var urls []string
		if urlListFile != "" {
			list, err := ReadDownloadList(urlListFile)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Failed to read URL list file: %v", err))
				os.Exit(1)
			}
			urls = list
		} else {
			if _, err := u.Parse(args[0]); err != nil {
				utils.PrintError("Invalid URL format")
				os.Exit(1)
			}
			urls = args
		}
		if err := runSession(cfg, urls); err != nil {
			fmt.Println()
			utils.PrintError(fmt.Sprintf("Encountered failed operation(s): %v", err))
			os.Exit(1)
		}
	},
}

// buildFilters maps the media-type flags to link filters. No flags means
// everything, matching a run with no opinion on media types.
func buildFilters() links.Filters {
	if !images && !videos && !archives {
		return links.Filters{Images: true, Videos: true, Archives: true}
	}
	return links.Filters{Images: images, Videos: videos, Archives: archives}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Download folder (required)")
	rootCmd.Flags().StringVarP(&urlListFile, "urllist", "l", "", "Path to YAML file containing URLs to download")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 4, "Number of simultaneous file downloads")
	rootCmd.Flags().BoolVar(&images, "images", false, "Download images")
	rootCmd.Flags().BoolVar(&videos, "videos", false, "Download videos")
	rootCmd.Flags().BoolVar(&archives, "archives", false, "Download archives (zip/rar)")
	rootCmd.Flags().BoolVarP(&downloadAll, "all", "a", false, "Fetch every page of a profile or gallery instead of the first")
	rootCmd.Flags().StringVarP(&password, "password", "p", "", "Password for protected gofile folders")
	rootCmd.Flags().StringVar(&cookiesFile, "cookies", "", "Path to JSON cookies file for forum logins")
	rootCmd.Flags().StringVar(&handlersFile, "handlers", "", "Path to JSON file overriding forum CSS selectors")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
