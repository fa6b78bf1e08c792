// Package repository 数据访问层单元测试
package repository

import (
	"testing"

	"github.com/google/uuid"

	"github.com/executa/knowledge-engine/internal/model"
	"github.com/executa/knowledge-engine/internal/testutil"
)

func newFileRecord(accountID, checksum string) *model.KnowledgeFile {
	return &model.KnowledgeFile{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Checksum:     checksum,
		OriginalName: "report.pdf",
		FileType:     "PDF",
		MimeType:     "application/pdf",
		FileSize:     1024,
		Status:       model.FileStatusPending,
		Source:       model.SourceUpload,
	}
}

// ========== CreateIfAbsent 去重测试 ==========

func TestFileRepository_CreateIfAbsent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFileRepository(db)

	created, err := repo.CreateIfAbsent(newFileRecord("acc-1", "sum-1"))
	if err != nil {
		t.Fatalf("CreateIfAbsent() error: %v", err)
	}
	if !created {
		t.Fatal("first insert should report created")
	}

	// 同账户同内容：冲突，不写入
	created, err = repo.CreateIfAbsent(newFileRecord("acc-1", "sum-1"))
	if err != nil {
		t.Fatalf("CreateIfAbsent() conflict error: %v", err)
	}
	if created {
		t.Error("duplicate (account, checksum) should not insert")
	}

	// 其他账户的相同内容互不影响
	created, err = repo.CreateIfAbsent(newFileRecord("acc-2", "sum-1"))
	if err != nil {
		t.Fatalf("CreateIfAbsent() other account error: %v", err)
	}
	if !created {
		t.Error("same checksum under another account should insert")
	}
}

func TestFileRepository_FindByChecksum(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFileRepository(db)

	file, err := repo.FindByChecksum("acc-1", "missing")
	if err != nil {
		t.Fatalf("FindByChecksum() error: %v", err)
	}
	if file != nil {
		t.Error("miss should return nil, nil")
	}

	record := newFileRecord("acc-1", "sum-1")
	if _, err := repo.CreateIfAbsent(record); err != nil {
		t.Fatal(err)
	}

	file, err = repo.FindByChecksum("acc-1", "sum-1")
	if err != nil {
		t.Fatalf("FindByChecksum() error: %v", err)
	}
	if file == nil || file.ID != record.ID {
		t.Errorf("FindByChecksum() = %+v, want record %s", file, record.ID)
	}
}

// ========== 状态流转测试 ==========

func TestFileRepository_StatusTransitions(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFileRepository(db)

	record := newFileRecord("acc-1", "sum-1")
	if _, err := repo.CreateIfAbsent(record); err != nil {
		t.Fatal(err)
	}

	if err := repo.MarkProcessing(record.ID); err != nil {
		t.Fatalf("MarkProcessing() error: %v", err)
	}
	file, _ := repo.GetByID(record.ID)
	if file.Status != model.FileStatusProcessing {
		t.Errorf("Status = %q, want PROCESSING", file.Status)
	}
	if file.ProcessingStartedAt == nil {
		t.Error("ProcessingStartedAt should be set")
	}

	if err := repo.MarkProcessed(record.ID, "extracted text body", 3, model.ConfidenceHigh); err != nil {
		t.Fatalf("MarkProcessed() error: %v", err)
	}
	file, _ = repo.GetByID(record.ID)
	if file.Status != model.FileStatusProcessed {
		t.Errorf("Status = %q, want PROCESSED", file.Status)
	}
	if file.ExtractedText != "extracted text body" {
		t.Errorf("ExtractedText = %q", file.ExtractedText)
	}
	if file.TextLength != len("extracted text body") {
		t.Errorf("TextLength = %d", file.TextLength)
	}
	if file.PageCount != 3 {
		t.Errorf("PageCount = %d, want 3", file.PageCount)
	}
}

func TestFileRepository_MarkErrorClearsText(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFileRepository(db)

	record := newFileRecord("acc-1", "sum-1")
	if _, err := repo.CreateIfAbsent(record); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkProcessed(record.ID, "partial text", 1, model.ConfidenceHigh); err != nil {
		t.Fatal(err)
	}

	if err := repo.MarkError(record.ID, "parser crashed"); err != nil {
		t.Fatalf("MarkError() error: %v", err)
	}

	file, _ := repo.GetByID(record.ID)
	if file.Status != model.FileStatusError {
		t.Errorf("Status = %q, want ERROR", file.Status)
	}
	if file.ExtractedText != "" || file.TextLength != 0 {
		t.Error("failed file must not keep partial text")
	}
	if file.ProcessingError != "parser crashed" {
		t.Errorf("ProcessingError = %q", file.ProcessingError)
	}
}

// ========== 列表查询测试 ==========

func TestFileRepository_ListBySource(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFileRepository(db)

	a := newFileRecord("acc-1", "sum-a")
	a.Source = model.SourceDropbox
	b := newFileRecord("acc-1", "sum-b")
	b.Source = model.SourceUpload
	c := newFileRecord("acc-2", "sum-c")
	c.Source = model.SourceDropbox
	for _, f := range []*model.KnowledgeFile{a, b, c} {
		if _, err := repo.CreateIfAbsent(f); err != nil {
			t.Fatal(err)
		}
	}

	files, err := repo.ListBySource("acc-1", model.SourceDropbox)
	if err != nil {
		t.Fatalf("ListBySource() error: %v", err)
	}
	if len(files) != 1 || files[0].ID != a.ID {
		t.Errorf("ListBySource() = %d files, want only acc-1 dropbox file", len(files))
	}
}

func TestFileRepository_ListByAccountPagination(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFileRepository(db)

	for i := 0; i < 5; i++ {
		record := newFileRecord("acc-1", uuid.NewString())
		if _, err := repo.CreateIfAbsent(record); err != nil {
			t.Fatal(err)
		}
	}

	files, total, err := repo.ListByAccount("acc-1", 0, 3)
	if err != nil {
		t.Fatalf("ListByAccount() error: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(files) != 3 {
		t.Errorf("len(files) = %d, want 3", len(files))
	}
}
