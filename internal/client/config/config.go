package config

import "time"

// Config holds runtime settings for the pdfconv CLI.
//
// Fields:
//   - APIBaseURL: base URL of the /api/v1 backend.
//   - PollInterval: how often a running job is polled.
//   - RequestTimeout: upper bound of a single API call.
//   - DBPath: the local SQLite file (session and job history).
//   - DownloadDir: where converted files are saved.
//   - MaxPollFailures: consecutive failed polls before a job's items fail.
//   - Parallelism: items talking to the backend at once.
//   - Guest*/Member*: queue limits by account state (sizes in bytes).
type Config struct {
	APIBaseURL      string
	PollInterval    time.Duration
	RequestTimeout  time.Duration
	DBPath          string
	DownloadDir     string
	MaxPollFailures int
	Parallelism     int

	GuestMaxFiles     int
	GuestMaxFileSize  int64
	MemberMaxFiles    int
	MemberMaxFileSize int64
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:3000/api/v1"
	c.PollInterval = 2 * time.Second
	c.RequestTimeout = 30 * time.Second
	c.DBPath = "pdfconv.db"
	c.DownloadDir = "downloads"
	c.MaxPollFailures = 5
	c.Parallelism = 4

	c.GuestMaxFiles = 2
	c.GuestMaxFileSize = 10 << 20
	c.MemberMaxFiles = 20
	c.MemberMaxFileSize = 1 << 30
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
