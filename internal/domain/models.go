// Package domain defines the persistence models and value objects of the
// emergency-audio backend. The GORM-mapped types here form the document-store
// layer; the plain types (profiles, contacts, recordings, sessions) travel
// between the realtime store, blob storage and the service layer.
package domain

import (
	"time"
)

// CallRecord summarizes one emergency-audio event: who recorded it, where
// they live, when the upload finished and where the audio can be fetched.
// Records are append-only; nothing in the pipeline updates or deletes them.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owner of the recording; indexed together with Horario for history.
//   - Nome: first name + " " + last name at the time of the upload.
//   - Local: street + ", " + neighborhood + ", " + city.
//   - Horario: upload completion time as epoch milliseconds.
//   - Audio: fetchable URL of the uploaded recording.
//   - ObjectKey: blob key of the recording.
type CallRecord struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"-"          gorm:"type:varchar(128);not null;index:idx_user_calls,priority:1"`
	Nome      string    `json:"nome"       gorm:"type:varchar(255);not null"`
	Local     string    `json:"local"      gorm:"type:varchar(512);not null"`
	Horario   int64     `json:"horario"    gorm:"not null;index:idx_user_calls,priority:2"`
	Audio     string    `json:"audio"      gorm:"type:text;not null"`
	ObjectKey string    `json:"object_key" gorm:"type:varchar(512);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for CallRecord.
func (CallRecord) TableName() string { return "calls" }

// LocalEntry is one row of the local persistent key-value cache. Values are
// string-serialized JSON owned by the caller.
type LocalEntry struct {
	Key       string    `gorm:"type:varchar(255);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for LocalEntry.
func (LocalEntry) TableName() string { return "local_entries" }
