// Package sqlstore records transitions in a SQL database through GORM.
package sqlstore

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm/clause"

	"github.com/kbukum/pipeflow/database"
	"github.com/kbukum/pipeflow/tracker"
)

// Row is the persisted form of a tracker.Transition.
type Row struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	TransitionKey string    `gorm:"size:512;uniqueIndex"`
	ExecutionID   string    `gorm:"size:64;index"`
	PipelineID    string    `gorm:"size:255"`
	StepID        string    `gorm:"size:255"`
	Status        string    `gorm:"size:32"`
	Attempt       int
	Payload       string `gorm:"type:text"`
	At            time.Time
}

// TableName implements gorm's tabler.
func (Row) TableName() string { return "pipeflow_transitions" }

// Store is a tracker.Tracker and tracker.Reader backed by a database.
type Store struct {
	db *database.DB
}

var (
	_ tracker.Tracker = (*Store)(nil)
	_ tracker.Reader  = (*Store)(nil)
)

// New creates a Store and migrates its table.
func New(db *database.DB) (*Store, error) {
	if err := db.AutoMigrate(&Row{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// RecordTransition implements tracker.Tracker. A transition whose key is
// already stored is ignored.
func (s *Store) RecordTransition(ctx context.Context, t tracker.Transition) error {
	row := Row{
		TransitionKey: t.Key(),
		ExecutionID:   t.ExecutionID,
		PipelineID:    t.PipelineID,
		StepID:        t.StepID,
		Status:        t.Status,
		Attempt:       t.Attempt,
		At:            t.At.UTC(),
	}
	if t.Payload != nil {
		b, err := json.Marshal(t.Payload)
		if err != nil {
			return err
		}
		row.Payload = string(b)
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "transition_key"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return database.FromDatabase(err, "transition")
	}
	return nil
}

// Transitions implements tracker.Reader.
func (s *Store) Transitions(ctx context.Context, executionID string) ([]tracker.Transition, error) {
	var rows []Row
	err := s.db.WithContext(ctx).
		Where("execution_id = ?", executionID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, database.FromDatabase(err, "transition")
	}
	out := make([]tracker.Transition, 0, len(rows))
	for _, r := range rows {
		t := tracker.Transition{
			ExecutionID: r.ExecutionID,
			PipelineID:  r.PipelineID,
			StepID:      r.StepID,
			Status:      r.Status,
			Attempt:     r.Attempt,
			At:          r.At,
		}
		if r.Payload != "" {
			if err := json.Unmarshal([]byte(r.Payload), &t.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, t)
	}
	return out, nil
}
