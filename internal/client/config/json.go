package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/pdfconv/internal/flagx"
	"github.com/dmitrijs2005/pdfconv/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration, so "2s" and integer nanoseconds both work.
type JsonConfig struct {
	APIBaseURL      string         `json:"api_base_url"`
	PollInterval    timex.Duration `json:"poll_interval"`
	RequestTimeout  timex.Duration `json:"request_timeout"`
	DBPath          string         `json:"db_path"`
	DownloadDir     string         `json:"download_dir"`
	MaxPollFailures int            `json:"max_poll_failures"`
	Parallelism     int            `json:"parallelism"`

	GuestMaxFiles     int   `json:"guest_max_files"`
	GuestMaxFileSize  int64 `json:"guest_max_file_size"`
	MemberMaxFiles    int   `json:"member_max_files"`
	MemberMaxFileSize int64 `json:"member_max_file_size"`
}

// parseJson overlays Config with the values set in the JSON file named by
// -c or -config. Keys missing from the file keep their current value.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.DBPath, jc.DBPath)
	setString(&cfg.DownloadDir, jc.DownloadDir)
	if jc.PollInterval.Duration > 0 {
		cfg.PollInterval = jc.PollInterval.Duration
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	setPositive(&cfg.MaxPollFailures, jc.MaxPollFailures)
	setPositive(&cfg.Parallelism, jc.Parallelism)
	setPositive(&cfg.GuestMaxFiles, jc.GuestMaxFiles)
	setPositive(&cfg.GuestMaxFileSize, jc.GuestMaxFileSize)
	setPositive(&cfg.MemberMaxFiles, jc.MemberMaxFiles)
	setPositive(&cfg.MemberMaxFileSize, jc.MemberMaxFileSize)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPositive[T int | int64](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}
