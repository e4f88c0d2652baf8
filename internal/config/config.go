package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "trajanim.cfg.json"

// RenderConfig holds the output defaults for a render. Scene files override
// these per animation.
type RenderConfig struct {
	FPS              int           `json:"fps" mapstructure:"fps"`
	DPI              int           `json:"dpi" mapstructure:"dpi"`
	Width            int           `json:"width" mapstructure:"width"`
	Height           int           `json:"height" mapstructure:"height"`
	TimeFormat       string        `json:"timeFormat" mapstructure:"timeFormat"`
	LightUp          bool          `json:"lightUp" mapstructure:"lightUp"`
	PlotLimits       float64       `json:"plotLimits" mapstructure:"plotLimits"`
	CentralBodyColor string        `json:"centralBodyColor" mapstructure:"centralBodyColor"`
	Watermark        string        `json:"watermark" mapstructure:"watermark"`
	StatusFile       string        `json:"statusFile" mapstructure:"statusFile"`
	ProgressInterval time.Duration `json:"progressInterval" mapstructure:"progressInterval"`
}

// SQLiteConfig holds SQLite storage settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// StorageConfig selects the trajectory store backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds render performance metrics settings
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Protocol   string `json:"protocol" mapstructure:"protocol"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// SetDefaults registers every default value. Load calls it; the CLI calls it
// directly when no config file is found.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./trajanimlogs")

	viper.SetDefault("render.fps", 60)
	viper.SetDefault("render.dpi", 96)
	viper.SetDefault("render.width", 1920)
	viper.SetDefault("render.height", 1080)
	viper.SetDefault("render.timeFormat", "%Y-%m-%d")
	viper.SetDefault("render.lightUp", true)
	viper.SetDefault("render.plotLimits", 1.496e11)
	viper.SetDefault("render.centralBodyColor", "")
	viper.SetDefault("render.watermark", "")
	viper.SetDefault("render.statusFile", "")
	viper.SetDefault("render.progressInterval", "1s")

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./trajectories.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "trajanim")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "trajanim")
	viper.SetDefault("influx.bucket", "render_performance")
	viper.SetDefault("influx.backupPath", "./trajanim_metrics.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "trajanim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetRenderConfig returns the render defaults.
func GetRenderConfig() RenderConfig {
	return RenderConfig{
		FPS:              viper.GetInt("render.fps"),
		DPI:              viper.GetInt("render.dpi"),
		Width:            viper.GetInt("render.width"),
		Height:           viper.GetInt("render.height"),
		TimeFormat:       viper.GetString("render.timeFormat"),
		LightUp:          viper.GetBool("render.lightUp"),
		PlotLimits:       viper.GetFloat64("render.plotLimits"),
		CentralBodyColor: viper.GetString("render.centralBodyColor"),
		Watermark:        viper.GetString("render.watermark"),
		StatusFile:       viper.GetString("render.statusFile"),
		ProgressInterval: viper.GetDuration("render.progressInterval"),
	}
}

// GetStorageConfig returns the storage configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
	}
}

// GetDBConfig returns the Postgres connection settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Protocol:   viper.GetString("influx.protocol"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetGraylogConfig returns the Graylog configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
