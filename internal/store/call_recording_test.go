package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func testRecording(callSid string) CallRecording {
	return CallRecording{
		CallSid:         callSid,
		RecordingPath:   "recordings/call_" + callSid + ".wav",
		FromNumber:      sql.NullString{String: "+15551230001", Valid: true},
		ToNumber:        sql.NullString{String: "+15551230002", Valid: true},
		DurationSeconds: 42,
		FileSizeBytes:   672044,
		Status:          RecordingStatusCompleted,
	}
}

func TestStore_CreateCallRecording(t *testing.T) {
	testDB := SetupTestDB(t)
	defer testDB.Close()

	ctx := context.Background()

	tests := []struct {
		name     string
		rec      CallRecording
		wantErr  bool
		validate func(t *testing.T, created *CallRecording)
	}{
		{
			name: "create recording successfully",
			rec:  testRecording("CA100"),
			validate: func(t *testing.T, created *CallRecording) {
				t.Helper()
				if created.ID == uuid.Nil {
					t.Error("expected non-nil recording ID")
				}
				if created.CallSid != "CA100" {
					t.Errorf("CallSid = %q, want %q", created.CallSid, "CA100")
				}
				if created.Status != RecordingStatusCompleted {
					t.Errorf("Status = %q, want %q", created.Status, RecordingStatusCompleted)
				}
			},
		},
		{
			name: "nullable numbers accepted",
			rec: CallRecording{
				CallSid:       "CA101",
				RecordingPath: "recordings/call_CA101.wav",
				Status:        RecordingStatusProcessing,
			},
			validate: func(t *testing.T, created *CallRecording) {
				t.Helper()
				if created.FromNumber.Valid {
					t.Error("expected NULL from_number")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testDB.Truncate(t)

			created, err := testDB.Store.CreateCallRecording(ctx, tt.rec)
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateCallRecording() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, created)
			}
		})
	}
}

func TestStore_GetCallRecordingBySid(t *testing.T) {
	testDB := SetupTestDB(t)
	defer testDB.Close()

	ctx := context.Background()
	testDB.Truncate(t)

	if _, err := testDB.Store.CreateCallRecording(ctx, testRecording("CA200")); err != nil {
		t.Fatalf("seed recording: %v", err)
	}

	got, err := testDB.Store.GetCallRecordingBySid(ctx, "CA200")
	if err != nil {
		t.Fatalf("GetCallRecordingBySid() error = %v", err)
	}
	if got.RecordingPath != "recordings/call_CA200.wav" {
		t.Errorf("RecordingPath = %q", got.RecordingPath)
	}

	_, err = testDB.Store.GetCallRecordingBySid(ctx, "CA-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing SID, got %v", err)
	}
}

func TestStore_UpdateCallRecording(t *testing.T) {
	testDB := SetupTestDB(t)
	defer testDB.Close()

	ctx := context.Background()
	testDB.Truncate(t)

	if _, err := testDB.Store.CreateCallRecording(ctx, testRecording("CA300")); err != nil {
		t.Fatalf("seed recording: %v", err)
	}

	if err := testDB.Store.UpdateCallRecordingTranscription(ctx, "CA300", "add milk to my list"); err != nil {
		t.Fatalf("UpdateCallRecordingTranscription() error = %v", err)
	}
	if err := testDB.Store.UpdateCallRecordingStatus(ctx, "CA300", RecordingStatusFailed); err != nil {
		t.Fatalf("UpdateCallRecordingStatus() error = %v", err)
	}

	got, err := testDB.Store.GetCallRecordingBySid(ctx, "CA300")
	if err != nil {
		t.Fatalf("GetCallRecordingBySid() error = %v", err)
	}
	if !got.Transcription.Valid || got.Transcription.String != "add milk to my list" {
		t.Errorf("Transcription = %+v", got.Transcription)
	}
	if got.Status != RecordingStatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, RecordingStatusFailed)
	}

	if err := testDB.Store.UpdateCallRecordingStatus(ctx, "CA-missing", RecordingStatusFailed); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound updating missing SID, got %v", err)
	}
}

func TestStore_DeleteCallRecording(t *testing.T) {
	testDB := SetupTestDB(t)
	defer testDB.Close()

	ctx := context.Background()
	testDB.Truncate(t)

	if _, err := testDB.Store.CreateCallRecording(ctx, testRecording("CA400")); err != nil {
		t.Fatalf("seed recording: %v", err)
	}

	if err := testDB.Store.DeleteCallRecording(ctx, "CA400"); err != nil {
		t.Fatalf("DeleteCallRecording() error = %v", err)
	}
	if _, err := testDB.Store.GetCallRecordingBySid(ctx, "CA400"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
