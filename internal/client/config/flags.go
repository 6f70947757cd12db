package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   API base URL
//	-i int      job poll interval in seconds
//	-d string   local database file
//	-o string   download directory
//	-t int      API request timeout in seconds
//
// Unknown flags in os.Args are left to other loaders.
func parseFlags(cfg *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "API base URL")
	pollInterval := fs.Int("i", int(cfg.PollInterval.Seconds()), "job poll interval (in seconds)")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "local database file")
	fs.StringVar(&cfg.DownloadDir, "o", cfg.DownloadDir, "download directory")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "API request timeout (in seconds)")

	if err := flagx.ParseSubset(fs, os.Args[1:], "-a", "-i", "-d", "-o", "-t"); err != nil {
		panic(err)
	}

	cfg.PollInterval = time.Duration(*pollInterval) * time.Second
	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
