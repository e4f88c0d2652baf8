package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/OCAP2/trajectory-animator/internal/config"
	"github.com/OCAP2/trajectory-animator/internal/database"
	"github.com/OCAP2/trajectory-animator/internal/logging"
	"github.com/OCAP2/trajectory-animator/internal/storage"
	gormstorage "github.com/OCAP2/trajectory-animator/internal/storage/gorm"
	"github.com/OCAP2/trajectory-animator/internal/storage/memory"
)

// store is an initialized backend plus whatever has to be released with it.
type store struct {
	storage.Backend
	db *database.Manager
}

func (s *store) Close() error {
	err := s.Backend.Close()
	if s.db != nil {
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (a *app) initStorage() (*store, error) {
	storageCfg := config.GetStorageConfig()

	s, err := a.createStorageBackend(storageCfg)
	if err != nil {
		a.logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := s.Init(); err != nil {
		a.logger.Error("Failed to initialize storage backend", "error", err)
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (a *app) createStorageBackend(storageCfg config.StorageConfig) (*store, error) {
	switch storageCfg.Type {
	case "postgres", "sqlite":
		m := database.NewManager(logging.NewZerolog(a.zerologWriter(), viper.GetString("logLevel"), "database"))
		if err := m.Connect(storageCfg, config.GetDBConfig()); err != nil {
			return nil, err
		}
		a.logger.Info("Database storage backend initialized", "type", storageCfg.Type)
		return &store{
			Backend: gormstorage.New(gormstorage.Dependencies{DB: m.DB, Logger: a.logger}),
			db:      m,
		}, nil

	case "memory":
		a.logger.Info("Memory storage backend initialized")
		return &store{Backend: memory.New()}, nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageCfg.Type)
	}
}
