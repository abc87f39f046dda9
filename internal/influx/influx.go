package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/tramsim/consist/internal/config"
)

// ErrDisabled is returned by Connect when influx is switched off.
var ErrDisabled = errors.New("influx is disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	Config       config.InfluxConfig

	mu         sync.Mutex
	backupFile *os.File
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		BucketNames: []string{cfg.Bucket},
		Logger:      log,
		Config:      cfg,
	}
}

// Connect establishes a connection to InfluxDB. If the server cannot be
// reached, points go to a gzipped line-protocol backup file instead.
func (m *Manager) Connect() error {
	if !m.Config.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.Config.URL(),
		m.Config.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Str("backupPath", m.Config.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		return m.openBackup()
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBuckets(); err != nil {
		return err
	}
	m.CreateWriters()
	m.Logger.Info().Str("url", m.Config.URL()).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.BackupWriter != nil {
		return nil
	}
	if m.Config.BackupPath == "" {
		return fmt.Errorf("influx unreachable and no backup path configured")
	}
	if err := os.MkdirAll(filepath.Dir(m.Config.BackupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup directory: %w", err)
	}
	file, err := os.OpenFile(m.Config.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBuckets() error {
	ctx := context.Background()
	orgName := m.Config.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure buckets exist with 90 day retention
	for _, bucket := range m.BucketNames {
		if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	for _, bucket := range m.BucketNames {
		m.Writers[bucket] = m.Client.WriteAPI(m.Config.Org, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)
	}

	m.Logger.Debug().Int("buckets", len(m.BucketNames)).Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Flush pushes buffered points.
func (m *Manager) Flush() error {
	for _, w := range m.Writers {
		w.Flush()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter != nil {
		return m.BackupWriter.Flush()
	}
	return nil
}

// Close flushes and releases the client and the backup file.
func (m *Manager) Close() error {
	if err := m.Flush(); err != nil {
		return err
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return nil
	}
	err := errors.Join(m.BackupWriter.Close(), m.backupFile.Close())
	m.BackupWriter = nil
	m.backupFile = nil
	return err
}

// ProcessMetricData parses a host metric call and returns a bucket name and point.
//
// data[0] is the bucket, data[1] the measurement. Further entries are
// "tag::name::value" or "field::type::name::value" with type one of string,
// int, float, bool.
func ProcessMetricData(data []string, fixEscapeQuotes func(string) string, trimQuotes func(string) string) (
	bucket string,
	point *influxdb2_write.Point,
	err error,
) {
	if len(data) < 2 {
		return "", nil, fmt.Errorf("metric needs bucket and measurement, got %d args", len(data))
	}

	// fix received data
	for i, v := range data {
		data[i] = fixEscapeQuotes(trimQuotes(v))
	}

	bucket = data[0]
	point = influxdb2_write.NewPointWithMeasurement(data[1])

	for _, entry := range data[2:] {
		parts := strings.Split(entry, "::")
		switch {
		case parts[0] == "tag" && len(parts) >= 3:
			point.AddTag(parts[1], parts[2])
		case parts[0] == "field" && len(parts) >= 4:
			fieldType, fieldName, fieldValue := parts[1], parts[2], parts[3]
			switch fieldType {
			case "string":
				point.AddField(fieldName, fieldValue)
			case "int":
				intVal, err := strconv.Atoi(fieldValue)
				if err != nil {
					return "", nil, fmt.Errorf("error converting field value '%s' to int: %w", fieldValue, err)
				}
				point.AddField(fieldName, intVal)
			case "float":
				floatVal, err := strconv.ParseFloat(fieldValue, 64)
				if err != nil {
					return "", nil, fmt.Errorf("error converting field value '%s' to float: %w", fieldValue, err)
				}
				point.AddField(fieldName, floatVal)
			case "bool":
				boolVal, err := strconv.ParseBool(fieldValue)
				if err != nil {
					return "", nil, fmt.Errorf("error converting field value '%s' to bool: %w", fieldValue, err)
				}
				point.AddField(fieldName, boolVal)
			}
		}
	}

	return bucket, point, nil
}
