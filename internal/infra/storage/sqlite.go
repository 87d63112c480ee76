package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"bitodash/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage wraps the local SQLite database: obfuscated credential blobs in
// a key-value table plus the asset-record journal.
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance
func NewStorage() (*Storage, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB path: %w", err)
	}
	return NewStorageAt(dbPath)
}

// NewStorageAt opens (or creates) the database at an explicit path.
func NewStorageAt(dbPath string) (*Storage, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Pure Go SQLite driver
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.Setting{}, &domain.AssetEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "bitodash", "data", "bitodash.db"), nil
}

// ======================================================================================
// Settings (Key-Value)
// ======================================================================================

// SaveSetting stores or replaces one key-value entry
func (s *Storage) SaveSetting(key, value string) error {
	setting := domain.Setting{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&setting).Error
}

// GetSetting retrieves a value by key. Absent keys return "" with no error.
func (s *Storage) GetSetting(key string) (string, error) {
	var setting domain.Setting
	err := s.db.First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return setting.Value, err
}

// DeleteSetting removes a key-value entry
func (s *Storage) DeleteSetting(key string) error {
	return s.db.Where("key = ?", key).Delete(&domain.Setting{}).Error
}

// ======================================================================================
// Asset Journal
// ======================================================================================

// AppendAsset records one successfully synced ledger entry
func (s *Storage) AppendAsset(entry *domain.AssetEntry) error {
	return s.db.Create(entry).Error
}

// ListAssets retrieves the full local journal, newest first
func (s *Storage) ListAssets() ([]domain.AssetEntry, error) {
	var entries []domain.AssetEntry
	err := s.db.Order("created_at DESC").Find(&entries).Error
	return entries, err
}

// ListAssetsByTarget retrieves journal entries for a single symbol
func (s *Storage) ListAssetsByTarget(target string) ([]domain.AssetEntry, error) {
	var entries []domain.AssetEntry
	err := s.db.Where("target = ?", target).Order("created_at DESC").Find(&entries).Error
	return entries, err
}
