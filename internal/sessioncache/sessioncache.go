// Package sessioncache is a peer-local durable cache of chunk-verification
// progress, grounded on the teacher's gorm/glebarez-sqlite store
// (tracker/db, internal/shared/store). Unlike the tracker's metadata store,
// which is explicitly in-memory only, a peer is allowed to persist its own
// download progress across process restarts so an interrupted download can
// resume instead of re-fetching every chunk from scratch.
package sessioncache

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// ChunkRecord marks one chunk of one download, keyed by (GroupID, FileName),
// as verified on disk at DestPath. GroupID holds whatever key the caller
// passes; the downloader passes the file's SHA-1 there.
type ChunkRecord struct {
	ID       uint `gorm:"primaryKey"`
	GroupID  string `gorm:"index:idx_chunk_lookup"`
	FileName string `gorm:"index:idx_chunk_lookup"`
	Index    int    `gorm:"index:idx_chunk_lookup"`
	DestPath string
}

// Cache is a peer's local download-resume database.
type Cache struct {
	db *gorm.DB
}

// Open opens (creating if absent) the sqlite file at path and migrates its
// schema.
func Open(path string) (*Cache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{PrepareStmt: true})
	if err != nil {
		return nil, fmt.Errorf("opening session cache: %w", err)
	}
	if err := db.AutoMigrate(&ChunkRecord{}); err != nil {
		return nil, fmt.Errorf("migrating session cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// MarkVerified records that chunk index of (groupID, fileName) has been
// fetched and verified and written to destPath. It is idempotent: marking
// the same chunk twice is a no-op.
func (c *Cache) MarkVerified(groupID, fileName string, index int, destPath string) error {
	var existing ChunkRecord
	err := c.db.Where("group_id = ? AND file_name = ? AND `index` = ?", groupID, fileName, index).First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("checking chunk record: %w", err)
	}
	rec := ChunkRecord{GroupID: groupID, FileName: fileName, Index: index, DestPath: destPath}
	return c.db.Create(&rec).Error
}

// VerifiedChunks returns the set of chunk indices already verified for
// (groupID, fileName), so a resumed download can skip re-fetching them.
func (c *Cache) VerifiedChunks(groupID, fileName string) (map[int]bool, error) {
	var records []ChunkRecord
	if err := c.db.Where("group_id = ? AND file_name = ?", groupID, fileName).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("loading chunk records: %w", err)
	}
	out := make(map[int]bool, len(records))
	for _, r := range records {
		out[r.Index] = true
	}
	return out, nil
}

// Forget drops every recorded chunk for (groupID, fileName).
func (c *Cache) Forget(groupID, fileName string) error {
	return c.db.Where("group_id = ? AND file_name = ?", groupID, fileName).Delete(&ChunkRecord{}).Error
}

// Close releases the underlying sqlite connection.
func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
