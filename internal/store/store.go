// Package store provides a GORM-backed implementation of the minimal
// key/value contract (get/set/del/sadd/smembers) that the A/B testing
// framework (C6) treats as an external collaborator (spec §6). It
// generalizes internal/db's MySQLRecorder — which wrapped a single
// asset-snapshot table — into a generic key/value row table plus a
// set-membership table, following the same gorm.Open(mysql.Open(dsn), ...)
// + AutoMigrate + wrapped-struct idiom.
package store

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// KV is the contract C6 consumes. Any implementation satisfying it (not
// just MySQLStore below) is a valid collaborator.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Del(key string) error
	SAdd(key, member string) error
	SMembers(key string) ([]string, error)
	Close() error
}

// kvRow is the GORM model backing generic key/value storage.
type kvRow struct {
	Key   string `gorm:"primaryKey;column:key;type:varchar(255)"`
	Value string `gorm:"column:value;type:longtext"`
}

func (kvRow) TableName() string { return "store_kv" }

// setMember is the GORM model backing set-membership storage.
type setMember struct {
	SetKey string `gorm:"primaryKey;column:set_key;type:varchar(255)"`
	Member string `gorm:"primaryKey;column:member;type:varchar(255)"`
}

func (setMember) TableName() string { return "store_set_member" }

// MySQLStore implements KV using GORM and MySQL.
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore opens a MySQL connection and migrates the two backing
// tables, mirroring db.NewMySQLRecorder exactly.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	if err := db.AutoMigrate(&kvRow{}, &setMember{}); err != nil {
		return nil, fmt.Errorf("failed to migrate store schema: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// NewMySQLStoreWithDB wraps an existing *gorm.DB, migrating the store
// tables into it.
func NewMySQLStoreWithDB(db *gorm.DB) (*MySQLStore, error) {
	if err := db.AutoMigrate(&kvRow{}, &setMember{}); err != nil {
		return nil, fmt.Errorf("failed to migrate store schema: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

// Get fetches a value by key. The bool return is false when the key is
// absent (not an error).
func (s *MySQLStore) Get(key string) (string, bool, error) {
	var row kvRow
	result := s.db.Where("`key` = ?", key).First(&row)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get key %q: %w", key, result.Error)
	}
	return row.Value, true, nil
}

// Set upserts a key/value pair.
func (s *MySQLStore) Set(key, value string) error {
	row := kvRow{Key: key, Value: value}
	result := s.db.Save(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to set key %q: %w", key, result.Error)
	}
	return nil
}

// Del removes a key.
func (s *MySQLStore) Del(key string) error {
	result := s.db.Where("`key` = ?", key).Delete(&kvRow{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, result.Error)
	}
	return nil
}

// SAdd adds a member to a set, a no-op if already present.
func (s *MySQLStore) SAdd(key, member string) error {
	row := setMember{SetKey: key, Member: member}
	result := s.db.Save(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to sadd %q/%q: %w", key, member, result.Error)
	}
	return nil
}

// SMembers returns every member of a set.
func (s *MySQLStore) SMembers(key string) ([]string, error) {
	var rows []setMember
	result := s.db.Where("set_key = ?", key).Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to smembers %q: %w", key, result.Error)
	}
	members := make([]string, len(rows))
	for i, r := range rows {
		members[i] = r.Member
	}
	return members, nil
}

// Close closes the underlying connection.
func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}
