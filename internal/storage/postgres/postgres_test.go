package postgres

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tramsim/consist/internal/config"
	"github.com/tramsim/consist/internal/database"
	gormstorage "github.com/tramsim/consist/internal/storage/gorm"
	"github.com/tramsim/consist/pkg/core"
)

func TestInit_InjectedDB(t *testing.T) {
	db, err := database.GetSqliteDB(filepath.Join(t.TempDir(), "pg.db"))
	require.NoError(t, err)

	b := New(Dependencies{DB: db})
	require.NoError(t, b.Init())
	defer b.Close()

	assert.True(t, db.Migrator().HasTable(&gormstorage.Message{}))

	require.NoError(t, b.StartSession(&core.Session{ID: "s"}))
	require.NoError(t, b.RegisterCar(&core.Car{ID: 4}))
	require.NoError(t, b.EndSession())

	var n int64
	require.NoError(t, db.Model(&gormstorage.Car{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestInit_Unreachable(t *testing.T) {
	b := New(Dependencies{Config: config.DBConfig{
		Host: "127.0.0.1", Port: "1", Username: "x", Password: "x", Database: "x",
	}})
	assert.Error(t, b.Init())
}

func TestTimeIndexes_CoverAppendOnlyTables(t *testing.T) {
	assert.Len(t, timeIndexes, 3)
	for table := range timeIndexes {
		assert.Contains(t, []string{"coupler_samples", "coupling_events", "messages"}, table)
	}
}
