package repository

import (
	"testing"

	"github.com/google/uuid"

	"github.com/executa/knowledge-engine/internal/model"
	"github.com/executa/knowledge-engine/internal/testutil"
)

// ========== 会话生命周期测试 ==========

func TestSessionRepository_Lifecycle(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSessionRepository(db)

	session := &model.ProcessingSession{
		ID:          uuid.NewString(),
		AccountID:   "acc-1",
		SessionName: "batch upload",
		Status:      model.SessionStatusPending,
	}
	if err := repo.Create(session); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := repo.Start(session.ID, 3); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	got, _ := repo.GetByID(session.ID)
	if got.Status != model.SessionStatusProcessing {
		t.Errorf("Status = %q, want PROCESSING", got.Status)
	}
	if got.TotalFiles != 3 {
		t.Errorf("TotalFiles = %d, want 3", got.TotalFiles)
	}

	repo.IncrementProcessed(session.ID)
	repo.IncrementProcessed(session.ID)
	repo.IncrementError(session.ID)

	got, _ = repo.GetByID(session.ID)
	if got.ProcessedFiles != 2 || got.ErrorFiles != 1 {
		t.Errorf("counters = %d/%d, want 2/1", got.ProcessedFiles, got.ErrorFiles)
	}

	if err := repo.Complete(session.ID, 2, 1); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	got, _ = repo.GetByID(session.ID)
	if got.Status != model.SessionStatusCompleted {
		t.Errorf("Status = %q, want COMPLETED", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
}

func TestSessionRepository_CompleteAllFailed(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSessionRepository(db)

	session := &model.ProcessingSession{
		ID:        uuid.NewString(),
		AccountID: "acc-1",
		Status:    model.SessionStatusPending,
	}
	if err := repo.Create(session); err != nil {
		t.Fatal(err)
	}

	// 全部失败时会话终态为 ERROR
	if err := repo.Complete(session.ID, 0, 2); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.GetByID(session.ID)
	if got.Status != model.SessionStatusError {
		t.Errorf("Status = %q, want ERROR", got.Status)
	}
}
