package database

import (
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OCAP2/trajectory-animator/internal/config"
	"github.com/OCAP2/trajectory-animator/internal/model"
)

// MemoryDSN opens a private in-memory SQLite database.
const MemoryDSN = "file::memory:"

// Manager handles database connections and operations.
type Manager struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	Logger zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		Logger: log,
	}
}

// Connect opens the backend named by cfg.Type ("sqlite" or "postgres"),
// checks the connection and migrates the schema.
func (m *Manager) Connect(cfg config.StorageConfig, db config.DBConfig) error {
	var err error

	switch cfg.Type {
	case "postgres":
		m.DB, err = m.GetPostgresDB(db)
	case "sqlite":
		m.DB, err = m.GetSqliteDB(cfg.SQLite.Path)
	default:
		return fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", cfg.Type, err)
	}

	// test connection
	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = m.SqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	m.Logger.Info().Str("type", cfg.Type).Msg("Connected to database")

	if cfg.Type == "postgres" {
		m.SqlDB.SetMaxOpenConns(10)
	}

	return m.Setup()
}

// GetPostgresDB returns a connection to the Postgres database.
func (m *Manager) GetPostgresDB(c config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database,
	)

	m.Logger.Debug().Str("host", c.Host).Str("database", c.Database).Msg("Connecting to Postgres DB")

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// GetSqliteDB returns a connection to a SQLite database.
// If path is empty, uses an in-memory database.
func (m *Manager) GetSqliteDB(path string) (*gorm.DB, error) {
	db, err := OpenSqlite(path)
	if err != nil {
		return nil, err
	}
	if path == "" || path == MemoryDSN {
		m.Logger.Info().Msg("Using in-memory SQLite DB")
	} else {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	}
	return db, nil
}

// OpenSqlite opens path (or a private in-memory database when empty) and
// applies the write-friendly pragmas.
func OpenSqlite(path string) (*gorm.DB, error) {
	if path == "" {
		path = MemoryDSN
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// an in-memory database lives and dies with its only connection
	if path == MemoryDSN {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	// set PRAGMAS
	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %s", err)
		}
	}

	return db, nil
}

// Setup migrates tables.
func (m *Manager) Setup() error {
	m.Logger.Info().Msg("Migrating schema")
	if err := Migrate(m.DB); err != nil {
		return err
	}
	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// Migrate creates or updates every table in model.DatabaseModels.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}
