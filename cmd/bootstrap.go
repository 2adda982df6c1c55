package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"asset-exporter/core/config"
	"asset-exporter/core/database"
	"asset-exporter/core/export"
	"asset-exporter/core/logger"
	"asset-exporter/core/registry"
	"asset-exporter/core/storage"
	"asset-exporter/feature/decoders"
	"asset-exporter/feature/exporter"
	"asset-exporter/feature/history"
	"asset-exporter/feature/listing"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// structuredExtensions are exported as JSON manifests; the rest is copied.
var structuredExtensions = []string{"uasset", "umap", "locres", "locmeta"}

// app holds everything a command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	service *exporter.Service
}

// bootstrap loads configuration and wires the exporter service.
func bootstrap() (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(l)

	label, err := exporter.ParseLabel(cfg.Registry.Version, cfg.Registry.Branch)
	if err != nil {
		return nil, fmt.Errorf("registry label: %w", err)
	}
	fallback := registry.Label{Version: cfg.Registry.FallbackVersion, Branch: cfg.Registry.FallbackBranch}

	// Database is optional unless it backs the registry.
	var db *gorm.DB
	if cfg.Database.Enabled {
		if db, err = database.Connect(cfg.Database); err != nil {
			if cfg.Registry.Backend == "database" {
				return nil, err
			}
			l.Warn("Optional database connection failed", zap.Error(err))
			db = nil
		} else if err := database.Migrate(db, &history.Run{}, &registry.Entry{}, &registry.LabelRow{}); err != nil {
			return nil, err
		}
	}

	fs := afero.NewOsFs()

	var store registry.Store
	switch cfg.Registry.Backend {
	case "", "file":
		store = registry.NewFileStore(fs, cfg.Registry.Dir)
	case "database":
		if db == nil {
			return nil, errors.New("registry backend database requires DATABASE_ENABLED=true")
		}
		store = registry.NewDBStore(db)
	default:
		return nil, fmt.Errorf("unsupported registry backend: %s", cfg.Registry.Backend)
	}

	lister, source, err := sourceFor(cfg, fs)
	if err != nil {
		return nil, err
	}

	contentRules, err := export.ParseContentRules(config.SplitList(cfg.Export.ContentClasses))
	if err != nil {
		return nil, fmt.Errorf("export content classes: %w", err)
	}
	rules := export.DefaultRules().Override(contentRules...)

	decoderSet := export.NewDecoderSet().
		Register(decoders.Manifest{}, structuredExtensions...).
		SetDefault(source)

	svc := exporter.NewService(exporter.Options{
		Label:                label,
		Fallback:             fallback,
		Store:                store,
		LockDir:              filepath.Join(cfg.Registry.Dir, "locks"),
		Lister:               lister,
		Decoders:             decoderSet,
		Rules:                rules,
		Policy:               export.NewPolicy(export.DefaultNeverExport, config.SplitList(cfg.Export.ExcludePaths)),
		Output:               fs,
		OutputRoot:           cfg.Export.OutputDir,
		BatchSize:            cfg.Export.BatchSize,
		Workers:              cfg.Export.Workers,
		Transactional:        cfg.Export.Transactional,
		IncludePrefixes:      config.SplitList(cfg.Export.IncludePrefixes),
		ReevaluateExtensions: config.SplitList(cfg.Export.ReevaluateExtensions),
		AudioPrefix:          cfg.Export.AudioPrefix,
		History:              history.NewRecorder(db),
		Logger:               l,
	})

	return &app{cfg: cfg, logger: l, db: db, service: svc}, nil
}

// sourceFor picks the object storage listing when a source prefix is set and
// the local source directory otherwise.
func sourceFor(cfg *config.Config, fs afero.Fs) (export.Lister, export.Decoder, error) {
	if cfg.Export.SourcePrefix == "" {
		return listing.NewFSLister(fs, cfg.Export.SourceDir), decoders.NewPassthrough(fs, cfg.Export.SourceDir), nil
	}

	client, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to storage: %w", err)
	}
	l := listing.NewS3Lister(client, cfg.Storage.Bucket, cfg.Export.SourcePrefix)
	return l, decoders.NewObjectPassthrough(client, cfg.Storage.Bucket, l.ObjectKey), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
