// Package store persists transcripts and per-speaker aggregates with GORM
// over SQLite.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/skillsenselab/scribe/internal/logger"
)

// Open opens the database at dsn and migrates the schema.
func Open(dsn string, log *logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	if err := db.AutoMigrate(&Transcript{}, &Speaker{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	log.Info("database ready", map[string]interface{}{"dsn": dsn})
	return db, nil
}

// Repository provides transcript persistence and queries.
type Repository struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewRepository creates a repository over the given database.
func NewRepository(db *gorm.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.WithComponent("store"),
	}
}

// SaveResult durably stores a completed transcript and its speaker rows in
// one transaction. The transcript's generated id is populated on success.
func (r *Repository) SaveResult(ctx context.Context, t *Transcript, speakers []Speaker) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		for i := range speakers {
			speakers[i].TranscriptID = t.ID
			if err := tx.Create(&speakers[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: save result: %w", err)
	}

	r.log.Info("transcript saved", map[string]interface{}{
		"transcript_id": t.ID.String(),
		"speakers":      len(speakers),
	})
	return nil
}

// List returns transcripts ordered newest first, with optional status
// filtering. Page is 1-based.
func (r *Repository) List(ctx context.Context, page, limit int, status string) ([]Transcript, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	q := r.db.WithContext(ctx).Model(&Transcript{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var transcripts []Transcript
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&transcripts).Error
	if err != nil {
		return nil, fmt.Errorf("store: list transcripts: %w", err)
	}
	return transcripts, nil
}

// Get returns one transcript by id. Returns gorm.ErrRecordNotFound when the
// id is unknown.
func (r *Repository) Get(ctx context.Context, id string) (*Transcript, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}

	var t Transcript
	if err := r.db.WithContext(ctx).First(&t, "id = ?", uid).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// Speakers returns the speaker rows for one transcript.
func (r *Repository) Speakers(ctx context.Context, transcriptID string) ([]Speaker, error) {
	uid, err := uuid.Parse(transcriptID)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}

	var speakers []Speaker
	if err := r.db.WithContext(ctx).Where("transcript_id = ?", uid).Find(&speakers).Error; err != nil {
		return nil, fmt.Errorf("store: list speakers: %w", err)
	}
	return speakers, nil
}

// Delete removes a transcript and its speaker rows. Speakers go first to
// respect the foreign key. Returns gorm.ErrRecordNotFound for unknown ids.
func (r *Repository) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return gorm.ErrRecordNotFound
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t Transcript
		if err := tx.First(&t, "id = ?", uid).Error; err != nil {
			return err
		}
		if err := tx.Where("transcript_id = ?", uid).Delete(&Speaker{}).Error; err != nil {
			return err
		}
		return tx.Delete(&t).Error
	})
}
