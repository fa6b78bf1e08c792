package repository

import (
	"testing"

	"github.com/executa/knowledge-engine/internal/testutil"
)

// ========== CreateLink 幂等测试 ==========

func TestLinkRepository_CreateLinkIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	files := NewFileRepository(db)
	links := NewLinkRepository(db)

	record := newFileRecord("acc-1", "sum-1")
	if _, err := files.CreateIfAbsent(record); err != nil {
		t.Fatal(err)
	}

	if err := links.CreateLink("assistant-1", record.ID); err != nil {
		t.Fatalf("CreateLink() error: %v", err)
	}
	// 重复关联是空操作
	if err := links.CreateLink("assistant-1", record.ID); err != nil {
		t.Fatalf("CreateLink() repeat error: %v", err)
	}

	count, err := links.CountLinks(record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("CountLinks() = %d, want 1", count)
	}
}

// ========== RemoveLink 引用计数测试 ==========

func TestLinkRepository_RemoveLinkKeepsSharedFile(t *testing.T) {
	db := testutil.NewTestDB(t)
	files := NewFileRepository(db)
	links := NewLinkRepository(db)

	record := newFileRecord("acc-1", "sum-1")
	if _, err := files.CreateIfAbsent(record); err != nil {
		t.Fatal(err)
	}
	links.CreateLink("assistant-1", record.ID)
	links.CreateLink("assistant-2", record.ID)

	result, err := links.RemoveLink("assistant-1", record.ID)
	if err != nil {
		t.Fatalf("RemoveLink() error: %v", err)
	}
	if result.RemainingLinks != 1 {
		t.Errorf("RemainingLinks = %d, want 1", result.RemainingLinks)
	}
	if result.DeletedFile != nil {
		t.Error("file with remaining links must not be deleted")
	}

	// 文件本体仍在
	if file, err := files.GetByID(record.ID); err != nil || file == nil {
		t.Errorf("shared file should survive: %v", err)
	}
}

func TestLinkRepository_RemoveLastLinkDeletesFile(t *testing.T) {
	db := testutil.NewTestDB(t)
	files := NewFileRepository(db)
	links := NewLinkRepository(db)

	record := newFileRecord("acc-1", "sum-1")
	record.StorageBucket = "bucket"
	record.StorageKey = "acc-1/sum-1.pdf"
	if _, err := files.CreateIfAbsent(record); err != nil {
		t.Fatal(err)
	}
	links.CreateLink("assistant-1", record.ID)

	result, err := links.RemoveLink("assistant-1", record.ID)
	if err != nil {
		t.Fatalf("RemoveLink() error: %v", err)
	}
	if result.RemainingLinks != 0 {
		t.Errorf("RemainingLinks = %d, want 0", result.RemainingLinks)
	}
	if result.DeletedFile == nil {
		t.Fatal("last unlink should hard delete the file record")
	}
	if result.DeletedFile.StorageKey != "acc-1/sum-1.pdf" {
		t.Errorf("DeletedFile.StorageKey = %q, caller needs it for storage cleanup", result.DeletedFile.StorageKey)
	}

	// 记录已硬删除
	if _, err := files.GetByID(record.ID); err == nil {
		t.Error("file record should be gone after last unlink")
	}

	// 同内容可以重新摄取（唯一索引已释放）
	again := newFileRecord("acc-1", "sum-1")
	created, err := files.CreateIfAbsent(again)
	if err != nil {
		t.Fatalf("re-ingest after delete error: %v", err)
	}
	if !created {
		t.Error("checksum slot should be reusable after hard delete")
	}
}

func TestLinkRepository_RemoveMissingLink(t *testing.T) {
	db := testutil.NewTestDB(t)
	links := NewLinkRepository(db)

	if _, err := links.RemoveLink("assistant-1", "no-such-file"); err == nil {
		t.Error("removing a nonexistent link should fail")
	}
}
