// Package storage 本地存储单元测试
package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ========== 对象键 测试 ==========

func TestLocalStorage_KeyIsContentAddressed(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, "test-bucket")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	checksum := strings.Repeat("ab", 32)

	// 同一内容以不同声明类型写两次，必须落到同一对象
	first, err := store.Put(ctx, &PutRequest{
		AccountID:   "acc-1",
		ContentType: "application/pdf",
		Checksum:    checksum,
		Size:        4,
		Reader:      strings.NewReader("body"),
	})
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.Put(ctx, &PutRequest{
		AccountID:   "acc-1",
		ContentType: "text/plain",
		Checksum:    checksum,
		Size:        4,
		Reader:      strings.NewReader("body"),
	})
	if err != nil {
		t.Fatal(err)
	}

	if first.Key != second.Key {
		t.Errorf("keys differ: %q vs %q, key must depend on content only", first.Key, second.Key)
	}
	if first.Key != "acc-1/"+checksum {
		t.Errorf("Key = %q, want {accountID}/{checksum}", first.Key)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "test-bucket", "acc-1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("objects on disk = %d, want 1", len(entries))
	}
}

func TestLocalStorage_PutGetDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "test-bucket")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	loc, err := store.Put(ctx, &PutRequest{
		AccountID:   "acc-1",
		ContentType: "text/plain",
		Checksum:    strings.Repeat("cd", 32),
		Size:        11,
		Reader:      strings.NewReader("hello world"),
	})
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	reader, err := store.Get(ctx, loc)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	data, _ := io.ReadAll(reader)
	reader.Close()
	if string(data) != "hello world" {
		t.Errorf("Get() = %q", data)
	}

	if err := store.Delete(ctx, loc); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := store.Get(ctx, loc); err == nil {
		t.Error("Get() after Delete() should fail")
	}

	// 删除不存在的对象不报错
	if err := store.Delete(ctx, loc); err != nil {
		t.Errorf("repeated Delete() error: %v", err)
	}
}
