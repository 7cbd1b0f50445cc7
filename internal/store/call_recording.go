package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Recording lifecycle states.
const (
	RecordingStatusCompleted  = "completed"
	RecordingStatusFailed     = "failed"
	RecordingStatusProcessing = "processing"
)

// CallRecording is the persisted record of one call's audio artifact.
// CallSid is unique for the lifetime of a call; the safety-save path uses a
// suffixed SID so it never collides with the primary row.
type CallRecording struct {
	ID              uuid.UUID      `db:"id"`
	CallSid         string         `db:"call_sid"`
	RecordingPath   string         `db:"recording_path"`
	FromNumber      sql.NullString `db:"from_number"`
	ToNumber        sql.NullString `db:"to_number"`
	DurationSeconds int            `db:"duration_seconds"`
	FileSizeBytes   int64          `db:"file_size_bytes"`
	Transcription   sql.NullString `db:"transcription"`
	Status          string         `db:"status"`
	CreatedAt       string         `db:"created_at"`
}

// NullString maps the empty string to SQL NULL. Start events without
// caller metadata leave the number columns unset rather than empty.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const sqlCreateCallRecording = `
INSERT INTO call_recordings (call_sid, recording_path, from_number, to_number, duration_seconds, file_size_bytes, transcription, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, call_sid, recording_path, from_number, to_number, duration_seconds, file_size_bytes, transcription, status, created_at`

func (s *Store) CreateCallRecording(ctx context.Context, rec CallRecording) (*CallRecording, error) {
	var created CallRecording
	err := s.db.GetContext(ctx, &created, sqlCreateCallRecording,
		rec.CallSid, rec.RecordingPath, rec.FromNumber, rec.ToNumber,
		rec.DurationSeconds, rec.FileSizeBytes, rec.Transcription, rec.Status)
	if err != nil {
		s.logger.Error(ctx, "failed to create call recording", err)
		return nil, fmt.Errorf("failed to create call recording: %w", err)
	}
	return &created, nil
}

const sqlGetCallRecordingBySid = `
SELECT * FROM call_recordings WHERE call_sid = $1`

func (s *Store) GetCallRecordingBySid(ctx context.Context, callSid string) (*CallRecording, error) {
	var rec CallRecording
	err := s.db.GetContext(ctx, &rec, sqlGetCallRecordingBySid, callSid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get call recording by SID", err)
		return nil, fmt.Errorf("failed to get call recording by SID: %w", err)
	}
	return &rec, nil
}

const sqlGetAllCallRecordings = `
SELECT * FROM call_recordings ORDER BY created_at DESC`

func (s *Store) GetAllCallRecordings(ctx context.Context) ([]CallRecording, error) {
	var recs []CallRecording
	err := s.db.SelectContext(ctx, &recs, sqlGetAllCallRecordings)
	if err != nil {
		s.logger.Error(ctx, "failed to get call recordings", err)
		return nil, fmt.Errorf("failed to get call recordings: %w", err)
	}
	return recs, nil
}

const sqlUpdateCallRecordingStatus = `
UPDATE call_recordings SET status = $1 WHERE call_sid = $2`

func (s *Store) UpdateCallRecordingStatus(ctx context.Context, callSid string, status string) error {
	result, err := s.db.ExecContext(ctx, sqlUpdateCallRecordingStatus, status, callSid)
	if err != nil {
		s.logger.Error(ctx, "failed to update call recording status", err)
		return fmt.Errorf("failed to update call recording status: %w", err)
	}
	return requireRowsAffected(result)
}

const sqlUpdateCallRecordingTranscription = `
UPDATE call_recordings SET transcription = $1 WHERE call_sid = $2`

func (s *Store) UpdateCallRecordingTranscription(ctx context.Context, callSid string, transcription string) error {
	result, err := s.db.ExecContext(ctx, sqlUpdateCallRecordingTranscription, transcription, callSid)
	if err != nil {
		s.logger.Error(ctx, "failed to update call recording transcription", err)
		return fmt.Errorf("failed to update call recording transcription: %w", err)
	}
	return requireRowsAffected(result)
}

const sqlDeleteCallRecording = `
DELETE FROM call_recordings WHERE call_sid = $1`

func (s *Store) DeleteCallRecording(ctx context.Context, callSid string) error {
	result, err := s.db.ExecContext(ctx, sqlDeleteCallRecording, callSid)
	if err != nil {
		s.logger.Error(ctx, "failed to delete call recording", err)
		return fmt.Errorf("failed to delete call recording: %w", err)
	}
	return requireRowsAffected(result)
}

func requireRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
