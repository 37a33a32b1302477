// Package history is the sqlite-backed record of what the converter has
// done: an index of watched source files for change detection, and one row
// per conversion attempt for the API's listing and stats surfaces.
package history

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the history database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite database at path and migrates
// the schema. gorm's own logging stays silent; process logging belongs to
// slog.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.AutoMigrate(&FileIndex{}, &ConversionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertIndex records the current content hash of a source file. It
// returns the row and whether work is needed: true when the file is new,
// its hash changed, or its last attempt did not succeed.
func (s *Store) UpsertIndex(path, md5 string) (*FileIndex, bool, error) {
	var row FileIndex
	err := s.db.Where("file_path = ?", path).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = FileIndex{FilePath: path, SourceMD5: md5, Status: StatusPending}
		if err := s.db.Create(&row).Error; err != nil {
			return nil, false, err
		}
		return &row, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	if row.SourceMD5 == md5 && row.Status == StatusSuccess {
		return &row, false, nil
	}
	row.SourceMD5 = md5
	row.Status = StatusPending
	row.Error = ""
	if err := s.db.Save(&row).Error; err != nil {
		return nil, false, err
	}
	return &row, true, nil
}

// GetIndex loads one index row by id.
func (s *Store) GetIndex(id uint) (*FileIndex, error) {
	var row FileIndex
	if err := s.db.First(&row, id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// SetIndexStatus updates the lifecycle fields of an index row.
func (s *Store) SetIndexStatus(id uint, status, errMsg, sourceFormat, targetFormat string) error {
	updates := map[string]interface{}{
		"status": status,
		"error":  errMsg,
	}
	if sourceFormat != "" {
		updates["source_format"] = sourceFormat
	}
	if targetFormat != "" {
		updates["target_format"] = targetFormat
	}
	return s.db.Model(&FileIndex{}).Where("id = ?", id).Updates(updates).Error
}

// ListIndex returns index rows, optionally filtered by status, newest
// first, plus the total row count for the filter.
func (s *Store) ListIndex(limit, offset int, status string) ([]FileIndex, int64, error) {
	q := s.db.Model(&FileIndex{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var rows []FileIndex
	if err := q.Order("updated_at desc").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, count, nil
}

// WipeIndex clears the file index, used before a full rescan rebuild.
func (s *Store) WipeIndex() error {
	return s.db.Where("1 = 1").Delete(&FileIndex{}).Error
}

// Record inserts one conversion attempt.
func (s *Store) Record(rec *ConversionRecord) error {
	return s.db.Create(rec).Error
}

// Recent returns the newest conversion records, optionally filtered by
// status, plus the total count for the filter.
func (s *Store) Recent(limit, offset int, status string) ([]ConversionRecord, int64, error) {
	q := s.db.Model(&ConversionRecord{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var rows []ConversionRecord
	if err := q.Order("created_at desc").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, count, nil
}

// Stats aggregates the conversion history.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	if err := s.db.Model(&ConversionRecord{}).Count(&st.TotalConversions).Error; err != nil {
		return st, err
	}
	if err := s.db.Model(&ConversionRecord{}).Where("status = ?", StatusSuccess).Count(&st.Succeeded).Error; err != nil {
		return st, err
	}
	if err := s.db.Model(&ConversionRecord{}).Where("status = ?", StatusFailed).Count(&st.Failed).Error; err != nil {
		return st, err
	}
	row := s.db.Model(&ConversionRecord{}).
		Select("COALESCE(SUM(input_bytes), 0), COALESCE(SUM(output_bytes), 0), COALESCE(AVG(duration_ms), 0)").
		Row()
	if err := row.Scan(&st.InputBytes, &st.OutputBytes, &st.AvgDurationMs); err != nil {
		return st, err
	}
	if err := s.db.Model(&FileIndex{}).Count(&st.IndexedFiles).Error; err != nil {
		return st, err
	}
	return st, nil
}
