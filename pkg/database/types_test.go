package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID       uint `gorm:"primaryKey"`
	Metadata JSONMap
}

func TestJSONMapPersistsThroughSQLite(t *testing.T) {
	db, err := New(&Config{Driver: "sqlite", FilePath: ":memory:", MaxOpenConns: 1, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db, &row{}))

	withMeta := row{Metadata: JSONMap{"width": float64(640), "name": "cat.png"}}
	require.NoError(t, db.Create(&withMeta).Error)
	without := row{}
	require.NoError(t, db.Create(&without).Error)

	var got row
	require.NoError(t, db.First(&got, withMeta.ID).Error)
	assert.Equal(t, "cat.png", got.Metadata["name"])
	assert.Equal(t, float64(640), got.Metadata["width"])

	var empty row
	require.NoError(t, db.First(&empty, without.ID).Error)
	assert.Nil(t, empty.Metadata)
}

func TestJSONMapScanRejectsUnknownTypes(t *testing.T) {
	var m JSONMap
	assert.Error(t, m.Scan(42))
	assert.NoError(t, m.Scan("null"))
	assert.Nil(t, m)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(&Config{Driver: "oracle"})
	assert.Error(t, err)
}
