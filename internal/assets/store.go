// Package assets persists compiled resource containers in a SQLite
// database, the form in which the engine's asset manager consumes them.
package assets

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/Evocation-Games/KestrelEngine-sub008/internal/rsrc"
)

// ErrNotFound is returned by Find when no resource matches.
var ErrNotFound = errors.New("resource not found")

// byteOrderKey stores the container byte order next to the metadata. The
// '@' keeps it apart from any @metadata key.
const byteOrderKey = "@byteorder"

// Resource is the stored form of rsrc.Resource.
type Resource struct {
	ID        uint   `gorm:"primaryKey"`
	Type      string `gorm:"size:4;not null;uniqueIndex:idx_resource_key"`
	Namespace string `gorm:"not null;default:'';uniqueIndex:idx_resource_key"`
	ResID     int64  `gorm:"column:res_id;not null;uniqueIndex:idx_resource_key"`
	Name      string
	Data      []byte
	UpdatedAt time.Time
}

// Metadata is one @metadata entry.
type Metadata struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

type Store struct {
	db *gorm.DB
}

// Open opens or creates the database at path and migrates its schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Resource{}, &Metadata{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(r *rsrc.Resource) Resource {
	return Resource{Type: r.Type, Namespace: r.Namespace, ResID: r.ID, Name: r.Name, Data: r.Data}
}

func (row *Resource) resource() *rsrc.Resource {
	return &rsrc.Resource{Type: row.Type, Namespace: row.Namespace, ID: row.ResID, Name: row.Name, Data: row.Data}
}

// Save replaces the whole content of the store with f.
func (s *Store) Save(f *rsrc.File) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Resource{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&Metadata{}).Error; err != nil {
			return err
		}

		rows := make([]Resource, 0, f.Len())
		for _, r := range f.Resources() {
			rows = append(rows, toRow(r))
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return err
			}
		}

		meta := []Metadata{{Key: byteOrderKey, Value: "big"}}
		if f.LittleEndian {
			meta[0].Value = "little"
		}
		for k, v := range f.Metadata {
			meta = append(meta, Metadata{Key: k, Value: v})
		}
		return tx.Create(&meta).Error
	})
}

// Put inserts r, or replaces the stored resource with the same key.
func (s *Store) Put(r *rsrc.Resource) error {
	row := toRow(r)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "type"}, {Name: "namespace"}, {Name: "res_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "data", "updated_at"}),
	}).Create(&row).Error
}

// Load reads the whole store back into a container.
func (s *Store) Load() (*rsrc.File, error) {
	f := rsrc.New()

	var meta []Metadata
	if err := s.db.Find(&meta).Error; err != nil {
		return nil, err
	}
	for _, m := range meta {
		if m.Key == byteOrderKey {
			f.LittleEndian = m.Value == "little"
			continue
		}
		f.Metadata[m.Key] = m.Value
	}

	var rows []Resource
	if err := s.db.Order("type, namespace, res_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		if err := f.Add(rows[i].resource()); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Find returns the resource stored under the given key.
func (s *Store) Find(typ, namespace string, id int64) (*rsrc.Resource, error) {
	var row Resource
	err := s.db.First(&row, "type = ? AND namespace = ? AND res_id = ?", typ, namespace, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rsrc.Key{Type: typ, Namespace: namespace, ID: id})
	}
	if err != nil {
		return nil, err
	}
	return row.resource(), nil
}

// Types lists the distinct type codes stored, sorted.
func (s *Store) Types() ([]string, error) {
	var codes []string
	err := s.db.Model(&Resource{}).Distinct("type").Order("type").Pluck("type", &codes).Error
	return codes, err
}

// Delete removes the resource stored under the given key. Deleting a
// missing resource is not an error.
func (s *Store) Delete(typ, namespace string, id int64) error {
	return s.db.Where("type = ? AND namespace = ? AND res_id = ?", typ, namespace, id).Delete(&Resource{}).Error
}
