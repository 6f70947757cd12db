package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/pdfconv/internal/flagx"
	"github.com/dmitrijs2005/pdfconv/internal/timex"
)

// JsonConfig is the on-disk shape of the server config. Durations accept
// both "90s" strings and integer nanoseconds.
type JsonConfig struct {
	ListenAddr      string         `json:"listen_addr"`
	DatabaseDSN     string         `json:"database_dsn"`
	SecretKey       string         `json:"secret_key"`
	TokenValidity   timex.Duration `json:"token_validity"`
	CodeValidity    timex.Duration `json:"code_validity"`
	S3RootUser      string         `json:"s3_root_user"`
	S3RootPassword  string         `json:"s3_root_password"`
	S3Bucket        string         `json:"s3_bucket"`
	S3Region        string         `json:"s3_region"`
	S3BaseEndpoint  string         `json:"s3_base_endpoint"`
	PresignExpiry   timex.Duration `json:"presign_expiry"`
	MaxUploadSize   int64          `json:"max_upload_size"`
	WorkerToken     string         `json:"worker_token"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout"`
}

// parseJson loads the file named by -c or -config into config.
// Every field is copied, so the file is expected to be complete.
// Panics when the file cannot be read or decoded.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.ListenAddr = c.ListenAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.TokenValidity = c.TokenValidity.Duration
	config.CodeValidity = c.CodeValidity.Duration
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.PresignExpiry = c.PresignExpiry.Duration
	config.MaxUploadSize = c.MaxUploadSize
	config.WorkerToken = c.WorkerToken
	config.ShutdownTimeout = c.ShutdownTimeout.Duration
}
