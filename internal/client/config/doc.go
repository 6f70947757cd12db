// Package config loads runtime configuration for the pdfconv CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   API base URL
//	-i int      job poll interval (seconds)
//	-d string   local database file
//	-o string   download directory
//	-t int      API request timeout (seconds)
//
// # JSON schema
//
//	{
//	  "api_base_url": "https://convert.example.com/api/v1",
//	  "poll_interval": "2s",
//	  "request_timeout": "30s",
//	  "db_path": "pdfconv.db",
//	  "download_dir": "downloads",
//	  "max_poll_failures": 5,
//	  "parallelism": 4,
//	  "guest_max_files": 2,
//	  "guest_max_file_size": 10485760,
//	  "member_max_files": 20,
//	  "member_max_file_size": 1073741824
//	}
package config
