package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tramsim/consist/internal/coupling"
	"github.com/tramsim/consist/internal/physics"
	"github.com/tramsim/consist/pkg/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./consistlogs", viper.GetString("logsDir"))
	assert.InDelta(t, 1.0/60, viper.GetFloat64("sim.deltaTime"), 1e-9)
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "consist", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "coupling", viper.GetString("influx.bucket"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./recordings", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, "3m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "consist", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
	assert.Equal(t, true, viper.GetBool("otel.insecure"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	var notFound viper.ConfigFileNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)
	viper.Set("testFloat", 0.25)

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
	assert.Equal(t, float32(0.25), GetFloat("testFloat"))
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./recordings", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Empty(t, cfg.SQLite.DumpPath)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m", "dumpPath": "/tmp/trace.db" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "/tmp/trace.db", sc.SQLite.DumpPath)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetAPIConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))
	assert.Equal(t, APIConfig{}, GetAPIConfig())

	viper.Reset()
	require.NoError(t, Load(writeConfig(t, `{
		"api": { "serverUrl": "http://archive:5000", "apiKey": "k", "tag": "depot" }
	}`)))
	assert.Equal(t, APIConfig{ServerURL: "http://archive:5000", APIKey: "k", Tag: "depot"}, GetAPIConfig())
}

func TestGetDBConfig_DSN(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"db": {"host": "db", "password": "secret"}}`)))

	dsn := GetDBConfig().DSN()
	assert.Equal(t, "host=db port=5432 user=postgres password=secret dbname=consist sslmode=disable", dsn)
}

func TestGetInfluxConfig_URL(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"influx": {"enabled": true, "protocol": "https", "host": "metrics"}}`)))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "https://metrics:8086", ic.URL())
	assert.Equal(t, "consist", ic.Org)
}

func TestCouplerDefaults_MatchPresets(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, physics.DefaultHandCoupler, GetCouplerConfig())
	assert.Equal(t, physics.DefaultHandDoor, GetDoorConfig())
	assert.Equal(t, coupling.HandCoupler, GetThresholds())
	assert.Equal(t, BagConfig{MinDelay: 0, MaxDelay: 1}, GetBagConfig())
}

func TestVehicleConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"coupler": {
			"hand": { "damping": 3.5 },
			"bag": { "minDelay": 2, "maxDelay": 4 },
			"railbrakeDelay": 0.5
		}
	}`)))

	car := core.Car{ID: 7, Coupler: core.CouplerAuto}
	cfg := VehicleConfig(car)
	assert.Equal(t, car, cfg.Car)
	assert.Equal(t, float32(3.5), cfg.Hand.Damping)
	assert.Equal(t, physics.DefaultHandCoupler.Reflect, cfg.Hand.Reflect)
	assert.Equal(t, float32(2), cfg.BagDelayMin)
	assert.Equal(t, float32(4), cfg.BagDelayMax)
	assert.Equal(t, float32(0.5), cfg.RailbrakeDelay)
	require.NoError(t, cfg.Hand.Validate())
}
