package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/tramsim/consist/internal/coupling"
	"github.com/tramsim/consist/internal/physics"
	"github.com/tramsim/consist/internal/vehicle"
	"github.com/tramsim/consist/pkg/core"
)

// FileName is the name of the JSON config file looked up by Load.
const FileName = "consist.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings of the in-memory SQLite backend.
type SQLiteConfig struct {
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the trace backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"` // memory, sqlite, postgres, influx
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// DSN returns the libpq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       string `mapstructure:"port"`
	Protocol   string `mapstructure:"protocol"`
	Token      string `mapstructure:"token"`
	Org        string `mapstructure:"org"`
	Bucket     string `mapstructure:"bucket"`
	BackupPath string `mapstructure:"backupPath"`
}

// URL returns the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig enables the GELF log output.
type GraylogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// APIConfig points at the trace archive server. Uploads are off while
// ServerURL is empty.
type APIConfig struct {
	ServerURL string `mapstructure:"serverUrl"`
	APIKey    string `mapstructure:"apiKey"`
	Tag       string `mapstructure:"tag"`
}

// OTelConfig holds OpenTelemetry log export settings.
type OTelConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ServiceName  string        `mapstructure:"serviceName"`
	BatchTimeout time.Duration `mapstructure:"batchTimeout"`
	Endpoint     string        `mapstructure:"endpoint"`
	Insecure     bool          `mapstructure:"insecure"`
}

// BagConfig bounds the random delay before the bellows are fitted.
type BagConfig struct {
	MinDelay float32 `mapstructure:"minDelay"`
	MaxDelay float32 `mapstructure:"maxDelay"`
}

// SetDefaults registers every default value. Load calls it.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./consistlogs")

	viper.SetDefault("sim.deltaTime", 1.0/60)
	viper.SetDefault("sim.seed", 1)

	viper.SetDefault("coupler.thresholds.near", coupling.HandCoupler.Near)
	viper.SetDefault("coupler.thresholds.closed", coupling.HandCoupler.Closed)
	viper.SetDefault("coupler.thresholds.reflect", coupling.HandCoupler.Reflect)
	viper.SetDefault("coupler.hand.reflect", physics.DefaultHandCoupler.Reflect)
	viper.SetDefault("coupler.hand.damping", physics.DefaultHandCoupler.Damping)
	viper.SetDefault("coupler.hand.bumpFactor", physics.DefaultHandCoupler.BumpFactor)
	viper.SetDefault("coupler.hand.lockThreshold", physics.DefaultHandCoupler.LockThreshold)
	viper.SetDefault("coupler.door.reflect", physics.DefaultHandDoor.Reflect)
	viper.SetDefault("coupler.door.damping", physics.DefaultHandDoor.Damping)
	viper.SetDefault("coupler.door.bumpFactor", physics.DefaultHandDoor.BumpFactor)
	viper.SetDefault("coupler.bag.minDelay", 0)
	viper.SetDefault("coupler.bag.maxDelay", 1)
	viper.SetDefault("coupler.railbrakeDelay", 0)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "consist")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "consist")
	viper.SetDefault("influx.bucket", "coupling")
	viper.SetDefault("influx.backupPath", "./consistlogs/influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("api.serverUrl", "")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.tag", "")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "consist")
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

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
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

// GetFloat returns a float config value.
func GetFloat(key string) float32 {
	return float32(viper.GetFloat64(key))
}

// GetStorageConfig returns the trace backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetDBConfig returns the Postgres settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
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

// GetGraylogConfig returns the GELF output settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetAPIConfig returns the trace upload settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
		Tag:       viper.GetString("api.tag"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetThresholds returns the coupling-state thresholds.
func GetThresholds() coupling.Thresholds {
	return coupling.Thresholds{
		Near:    GetFloat("coupler.thresholds.near"),
		Closed:  GetFloat("coupler.thresholds.closed"),
		Reflect: GetFloat("coupler.thresholds.reflect"),
	}
}

// GetCouplerConfig returns the hand coupler constants.
func GetCouplerConfig() physics.HandCouplerConfig {
	return physics.HandCouplerConfig{
		Reflect:       GetFloat("coupler.hand.reflect"),
		Damping:       GetFloat("coupler.hand.damping"),
		BumpFactor:    GetFloat("coupler.hand.bumpFactor"),
		LockThreshold: GetFloat("coupler.hand.lockThreshold"),
	}
}

// GetDoorConfig returns the cab door constants.
func GetDoorConfig() physics.HandDoorConfig {
	return physics.HandDoorConfig{
		Reflect:    GetFloat("coupler.door.reflect"),
		Damping:    GetFloat("coupler.door.damping"),
		BumpFactor: GetFloat("coupler.door.bumpFactor"),
	}
}

// GetBagConfig returns the bellows delay bounds.
func GetBagConfig() BagConfig {
	return BagConfig{
		MinDelay: GetFloat("coupler.bag.minDelay"),
		MaxDelay: GetFloat("coupler.bag.maxDelay"),
	}
}

// VehicleConfig builds the constants of a new car from the loaded settings.
// It has the signature of consist.Deps.Configure.
func VehicleConfig(car core.Car) vehicle.Config {
	cfg := vehicle.DefaultConfig(car)
	cfg.Thresholds = GetThresholds()
	cfg.Hand = GetCouplerConfig()
	cfg.Door = GetDoorConfig()
	bag := GetBagConfig()
	cfg.BagDelayMin = bag.MinDelay
	cfg.BagDelayMax = bag.MaxDelay
	cfg.RailbrakeDelay = GetFloat("coupler.railbrakeDelay")
	return cfg
}
