// Package config provides configuration management for the asset exporter.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file. Defaults come from the `default` struct tags.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP status server settings (port, API key)
//   - Database: optional database used for run history or as registry backend
//   - Storage: S3/MinIO credentials used when the source tree lives in a bucket
//   - Log: Logging level and format
//   - Registry: registry directory, active label and fallback label
//   - Export: source and output roots, batching, policies
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Export.OutputDir)
package config
