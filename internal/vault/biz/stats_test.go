package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSavedPercentage(t *testing.T) {
	assert.Equal(t, float64(0), SavedPercentage(0, 0))
	assert.Equal(t, float64(0), SavedPercentage(10, 0))
	assert.Equal(t, 50.0, SavedPercentage(10, 10))
	assert.InDelta(t, 66.66, SavedPercentage(10, 20), 0.01)
}

func TestDeltaForUpload(t *testing.T) {
	assert.Equal(t, StatsDelta{Files: 1, UniqueFiles: 1, StorageUsed: 100}, deltaForUpload(100, false))
	assert.Equal(t, StatsDelta{Files: 1, StorageSaved: 100}, deltaForUpload(100, true))
}

func TestDeltaForDelete(t *testing.T) {
	assert.Equal(t, StatsDelta{Files: -1, UniqueFiles: -1, StorageUsed: -100}, deltaForDelete(100, true))
	assert.Equal(t, StatsDelta{Files: -1, StorageSaved: -100}, deltaForDelete(100, false))
}

func TestStorageStatsValidate(t *testing.T) {
	valid := &StorageStats{
		TotalFiles:             2,
		TotalUniqueFiles:       1,
		TotalStorageUsed:       10,
		TotalStorageSaved:      10,
		StorageSavedPercentage: 50,
	}
	assert.NoError(t, valid.Validate())

	assert.NoError(t, (&StorageStats{}).Validate())

	assert.Error(t, (&StorageStats{TotalFiles: -1}).Validate())
	assert.Error(t, (&StorageStats{TotalFiles: 1, TotalUniqueFiles: 2}).Validate())
	assert.Error(t, (&StorageStats{StorageSavedPercentage: 100}).Validate())
	assert.Error(t, (&StorageStats{StorageSavedPercentage: -0.1}).Validate())
}
