package config

import (
	"reflect"
	"strings"

	"asset-exporter/core/database"
	"asset-exporter/core/logger"
	"asset-exporter/core/server"
	"asset-exporter/core/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP status server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the object storage used as a source listing.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the optional database (run history, registry backend).
	Database database.Config `mapstructure:"database"`
	// Registry holds configuration for the fingerprint registry.
	Registry RegistryConfig `mapstructure:"registry"`
	// Export holds configuration for the export run.
	Export ExportConfig `mapstructure:"export"`
}

// RegistryConfig selects where fingerprint registries live and which label is active.
type RegistryConfig struct {
	// Backend is either "file" or "database".
	Backend string `mapstructure:"backend" default:"file"`
	// Dir is the directory holding one registry file per label.
	Dir string `mapstructure:"dir" default:"registry"`
	// Version is the game build label of the active registry.
	Version string `mapstructure:"version" default:""`
	// Branch is the branch label of the active registry.
	Branch string `mapstructure:"branch" default:""`
	// FallbackVersion is the label seeded into a fresh active registry.
	FallbackVersion string `mapstructure:"fallback_version" default:""`
	// FallbackBranch is the branch of the fallback label.
	FallbackBranch string `mapstructure:"fallback_branch" default:""`
}

// ExportConfig controls the export run.
type ExportConfig struct {
	// SourceDir is the root of the source asset tree (filesystem listing).
	SourceDir string `mapstructure:"source_dir" default:"source"`
	// SourcePrefix switches the listing to object storage when set (bucket prefix).
	SourcePrefix string `mapstructure:"source_prefix" default:""`
	// OutputDir is the root of the artifact tree.
	OutputDir string `mapstructure:"output_dir" default:"output"`
	// BatchSize bounds the number of files decoded per batch.
	BatchSize int `mapstructure:"batch_size" default:"500"`
	// Workers bounds concurrent decodes within a batch.
	Workers int `mapstructure:"workers" default:"4"`
	// Transactional records registry entries only after a successful decode.
	Transactional bool `mapstructure:"transactional" default:"false"`
	// IncludePrefixes limits the run to these logical path prefixes (comma separated).
	IncludePrefixes string `mapstructure:"include_prefixes" default:""`
	// ReevaluateExtensions are always re-exported even when unchanged (comma separated).
	ReevaluateExtensions string `mapstructure:"reevaluate_extensions" default:"ini"`
	// ExcludePaths are logical paths never dispatched to a decoder (comma separated).
	ExcludePaths string `mapstructure:"exclude_paths" default:""`
	// ContentClasses reclassifies source files by folder or name prefix, ahead of
	// the built-in rules (comma separated "<ext>:dir:<name>=<class>" or "<ext>:prefix:<name>=<class>").
	ContentClasses string `mapstructure:"content_classes" default:""`
	// AudioPrefix is the artifact subtree where audio artifacts may be swept.
	AudioPrefix string `mapstructure:"audio_prefix" default:"Content/WwiseAudio"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist
	_ = godotenv.Overload(envPath)

	v := viper.New()

	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. EXPORT_OUTPUT_DIR -> export.output_dir)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// SplitList splits a comma separated config value, dropping empty items.
func SplitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
