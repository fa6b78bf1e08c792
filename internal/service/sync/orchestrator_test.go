package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/executa/knowledge-engine/internal/model"
	"github.com/executa/knowledge-engine/internal/repository"
	"github.com/executa/knowledge-engine/internal/service/connector"
	"github.com/executa/knowledge-engine/internal/service/ingest"
	"github.com/executa/knowledge-engine/internal/service/storage"
	"github.com/executa/knowledge-engine/internal/testutil"
)

// fakeConnector 内存连接器，可注入列举/下载失败
type fakeConnector struct {
	provider    string
	files       []connector.RemoteFile
	contents    map[string]*connector.FileContent
	listErr     error
	downloadErr map[string]error
	refreshed   *connector.Credentials
	refreshErr  error
	gotFilter   connector.Filter // 最近一次列举收到的筛选条件
	onDownload  func(id string)  // 每次下载完成后触发
}

func (f *fakeConnector) Provider() string { return f.provider }

func (f *fakeConnector) ListFiles(_ context.Context, _ connector.Credentials, filter connector.Filter) ([]connector.RemoteFile, error) {
	f.gotFilter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.files, nil
}

func (f *fakeConnector) Download(_ context.Context, _ connector.Credentials, id string) (*connector.FileContent, error) {
	if f.onDownload != nil {
		defer f.onDownload(id)
	}
	if err, ok := f.downloadErr[id]; ok {
		return nil, err
	}
	content, ok := f.contents[id]
	if !ok {
		return nil, fmt.Errorf("remote file not found: %s", id)
	}
	return content, nil
}

func (f *fakeConnector) Refresh(_ context.Context, _ connector.Credentials) (*connector.Credentials, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshed, nil
}

func newTestOrchestrator(t *testing.T, fake *fakeConnector) (*Orchestrator, *repository.Repositories) {
	t.Helper()
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)

	store, err := storage.NewLocalStorage(t.TempDir(), "test-bucket")
	if err != nil {
		t.Fatal(err)
	}
	ingestor := ingest.NewService(repos, store, 20)

	registry := &connector.Registry{}
	registry.Register(fake)

	return NewOrchestrator(repos, registry, ingestor, nil, Options{
		MaxFilesPerSync: 10,
		MaxFileSizeSync: 50 * 1024 * 1024,
	}), repos
}

func connectAccount(t *testing.T, repos *repository.Repositories, accountID, provider string) {
	t.Helper()
	err := repos.Connection.Upsert(&model.SourceConnection{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Provider:     provider,
		AccessToken:  "token",
		RefreshToken: "refresh",
		IsActive:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func remoteText(id, name, body string) (connector.RemoteFile, *connector.FileContent) {
	return connector.RemoteFile{
			ID:           id,
			Name:         name,
			Size:         int64(len(body)),
			MimeType:     "text/plain",
			LastModified: time.Now(),
		}, &connector.FileContent{
			Data:     []byte(body),
			Name:     name,
			MimeType: "text/plain",
		}
}

// ========== SyncFromSource 测试 ==========

func TestOrchestrator_SyncFromSource(t *testing.T) {
	rf1, fc1 := remoteText("r1", "a.txt", "First document body from dropbox.")
	rf2, fc2 := remoteText("r2", "b.txt", "Second document body from dropbox.")
	fake := &fakeConnector{
		provider: model.ProviderDropbox,
		files:    []connector.RemoteFile{rf1, rf2},
		contents: map[string]*connector.FileContent{"r1": fc1, "r2": fc2},
	}
	o, repos := newTestOrchestrator(t, fake)
	connectAccount(t, repos, "acc-1", model.ProviderDropbox)

	result, err := o.SyncFromSource(context.Background(), "acc-1", "assistant-1", model.ProviderDropbox, "FREE")

	if err != nil {
		t.Fatalf("SyncFromSource() error: %v", err)
	}
	if result.TotalFiles != 2 || result.SyncedFiles != 2 || result.ErrorFiles != 0 {
		t.Errorf("result = %+v, want 2 synced", result)
	}

	files, err := repos.File.ListByAssistant("assistant-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("assistant files = %d, want 2", len(files))
	}
	for _, f := range files {
		if f.Source != model.ProviderDropbox {
			t.Errorf("Source = %q, want dropbox", f.Source)
		}
		if f.Status != model.FileStatusProcessed {
			t.Errorf("Status = %q, want PROCESSED", f.Status)
		}
	}

	// 同步完成后记录时间
	conn, _ := repos.Connection.GetActive("acc-1", model.ProviderDropbox)
	if conn.LastSyncAt == nil {
		t.Error("LastSyncAt should be set after sync")
	}
}

func TestOrchestrator_NotConnected(t *testing.T) {
	fake := &fakeConnector{provider: model.ProviderDropbox}
	o, _ := newTestOrchestrator(t, fake)

	_, err := o.SyncFromSource(context.Background(), "acc-1", "assistant-1", model.ProviderDropbox, "FREE")

	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestOrchestrator_ListingFailureIsFatal(t *testing.T) {
	fake := &fakeConnector{
		provider: model.ProviderDropbox,
		listErr:  &connector.AuthError{Provider: model.ProviderDropbox, Err: errors.New("token revoked")},
	}
	o, repos := newTestOrchestrator(t, fake)
	connectAccount(t, repos, "acc-1", model.ProviderDropbox)

	_, err := o.SyncFromSource(context.Background(), "acc-1", "assistant-1", model.ProviderDropbox, "FREE")

	var authErr *connector.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
}

func TestOrchestrator_RefreshFailureIsFatal(t *testing.T) {
	fake := &fakeConnector{
		provider:   model.ProviderDropbox,
		refreshErr: &connector.AuthError{Provider: model.ProviderDropbox, Err: errors.New("refresh token expired")},
	}
	o, repos := newTestOrchestrator(t, fake)
	connectAccount(t, repos, "acc-1", model.ProviderDropbox)

	if _, err := o.SyncFromSource(context.Background(), "acc-1", "assistant-1", model.ProviderDropbox, "FREE"); err == nil {
		t.Fatal("refresh failure should abort the sync")
	}
}

func TestOrchestrator_RefreshedTokensPersisted(t *testing.T) {
	rf, fc := remoteText("r1", "a.txt", "Document body after token refresh.")
	expiry := time.Now().Add(2 * time.Hour)
	fake := &fakeConnector{
		provider: model.ProviderDropbox,
		files:    []connector.RemoteFile{rf},
		contents: map[string]*connector.FileContent{"r1": fc},
		refreshed: &connector.Credentials{
			AccessToken:  "fresh-token",
			RefreshToken: "refresh",
			ExpiresAt:    &expiry,
		},
	}
	o, repos := newTestOrchestrator(t, fake)
	connectAccount(t, repos, "acc-1", model.ProviderDropbox)

	if _, err := o.SyncFromSource(context.Background(), "acc-1", "assistant-1", model.ProviderDropbox, "FREE"); err != nil {
		t.Fatal(err)
	}

	conn, _ := repos.Connection.GetActive("acc-1", model.ProviderDropbox)
	if conn.AccessToken != "fresh-token" {
		t.Errorf("AccessToken = %q, refreshed token must be persisted", conn.AccessToken)
	}
}

func TestOrchestrator_PerItemFailureIsolation(t *testing.T) {
	rf1, fc1 := remoteText("r1", "good.txt", "Good document body that syncs fine.")
	rf2, _ := remoteText("r2", "bad.txt", "never delivered")
	rf3, fc3 := remoteText("r3", "also-good.txt", "Another good document body here.")
	fake := &fakeConnector{
		provider:    model.ProviderDropbox,
		files:       []connector.RemoteFile{rf1, rf2, rf3},
		contents:    map[string]*connector.FileContent{"r1": fc1, "r3": fc3},
		downloadErr: map[string]error{"r2": errors.New("network timeout")},
	}
	o, repos := newTestOrchestrator(t, fake)
	connectAccount(t, repos, "acc-1", model.ProviderDropbox)

	result, err := o.SyncFromSource(context.Background(), "acc-1", "assistant-1", model.ProviderDropbox, "FREE")

	if err != nil {
		t.Fatalf("per-item failure must not abort the sync: %v", err)
	}
	if result.SyncedFiles != 2 || result.ErrorFiles != 1 {
		t.Errorf("result = %+v, want 2 synced / 1 error", result)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want one entry", result.Errors)
	}

	files, _ := repos.File.ListByAssistant("assistant-1")
	if len(files) != 2 {
		t.Errorf("assistant files = %d, want 2", len(files))
	}
}

func TestOrchestrator_AuthFailureDuringDownloadIsFatal(t *testing.T) {
	rf1, _ := remoteText("r1", "a.txt", "never delivered")
	fake := &fakeConnector{
		provider: model.ProviderDropbox,
		files:    []connector.RemoteFile{rf1},
		downloadErr: map[string]error{
			"r1": &connector.AuthError{Provider: model.ProviderDropbox, Err: errors.New("expired mid-sync")},
		},
	}
	o, repos := newTestOrchestrator(t, fake)
	connectAccount(t, repos, "acc-1", model.ProviderDropbox)

	if _, err := o.SyncFromSource(context.Background(), "acc-1", "assistant-1", model.ProviderDropbox, "FREE"); err == nil {
		t.Fatal("auth failure during download should abort the sync")
	}
}

func TestOrchestrator_ResyncIsIdempotent(t *testing.T) {
	rf, fc := remoteText("r1", "a.txt", "Stable document body for resync.")
	fake := &fakeConnector{
		provider: model.ProviderDropbox,
		files:    []connector.RemoteFile{rf},
		contents: map[string]*connector.FileContent{"r1": fc},
	}
	o, repos := newTestOrchestrator(t, fake)
	connectAccount(t, repos, "acc-1", model.ProviderDropbox)
	ctx := context.Background()

	if _, err := o.SyncFromSource(ctx, "acc-1", "assistant-1", model.ProviderDropbox, "FREE"); err != nil {
		t.Fatal(err)
	}
	second, err := o.SyncFromSource(ctx, "acc-1", "assistant-1", model.ProviderDropbox, "FREE")
	if err != nil {
		t.Fatal(err)
	}

	if second.SyncedFiles != 0 || second.SkippedFiles != 1 {
		t.Errorf("second sync = %+v, want everything skipped", second)
	}

	var count int64
	repos.DB.Model(&model.KnowledgeFile{}).Count(&count)
	if count != 1 {
		t.Errorf("file rows = %d, want 1 after resync", count)
	}

	// 关联也只有一条
	links, _ := repos.Link.CountLinks(mustFirstFileID(t, repos))
	if links != 1 {
		t.Errorf("links = %d, want 1", links)
	}
}

func TestOrchestrator_PromotionalEmailCountsAsSkipped(t *testing.T) {
	rf := connector.RemoteFile{
		ID: "m1", Name: "promo.eml", Size: 64,
		MimeType: "message/rfc822", LastModified: time.Now(),
	}
	fake := &fakeConnector{
		provider: model.ProviderGmail,
		files:    []connector.RemoteFile{rf},
		contents: map[string]*connector.FileContent{
			"m1": {
				Data:     testutil.EmailBytes("noreply@shop.example.com", "me@example.com", "Big sale", "Buy now"),
				Name:     "promo.eml",
				MimeType: "message/rfc822",
			},
		},
	}
	o, repos := newTestOrchestrator(t, fake)
	connectAccount(t, repos, "acc-1", model.ProviderGmail)

	result, err := o.SyncFromSource(context.Background(), "acc-1", "assistant-1", model.ProviderGmail, "FREE")

	if err != nil {
		t.Fatalf("SyncFromSource() error: %v", err)
	}
	if result.SkippedFiles != 1 || result.SyncedFiles != 0 || result.ErrorFiles != 0 {
		t.Errorf("result = %+v, promotional email should be skipped", result)
	}

	var count int64
	repos.DB.Model(&model.KnowledgeFile{}).Count(&count)
	if count != 0 {
		t.Errorf("file rows = %d, want 0", count)
	}
}

func TestOrchestrator_CanceledContext(t *testing.T) {
	rf, fc := remoteText("r1", "a.txt", "Body that will never be ingested.")
	fake := &fakeConnector{
		provider: model.ProviderDropbox,
		files:    []connector.RemoteFile{rf},
		contents: map[string]*connector.FileContent{"r1": fc},
	}
	o, repos := newTestOrchestrator(t, fake)
	connectAccount(t, repos, "acc-1", model.ProviderDropbox)

	result, err := o.SyncFromSource(testutil.CanceledContext(), "acc-1", "assistant-1", model.ProviderDropbox, "FREE")

	// 开始前已取消：不下载任何文件，但统计照常返回
	if err != nil {
		t.Fatalf("SyncFromSource() error: %v", err)
	}
	if result.TotalFiles != 1 || result.SyncedFiles != 0 || result.ErrorFiles != 0 {
		t.Errorf("result = %+v, want nothing synced", result)
	}

	var count int64
	repos.DB.Model(&model.KnowledgeFile{}).Count(&count)
	if count != 0 {
		t.Errorf("file rows = %d, want 0", count)
	}
}

func TestOrchestrator_CancellationReportsPartialCounts(t *testing.T) {
	rf1, fc1 := remoteText("r1", "a.txt", "First document body before the cancel.")
	rf2, fc2 := remoteText("r2", "b.txt", "Second document body that is never fetched.")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := &fakeConnector{
		provider:   model.ProviderDropbox,
		files:      []connector.RemoteFile{rf1, rf2},
		contents:   map[string]*connector.FileContent{"r1": fc1, "r2": fc2},
		onDownload: func(string) { cancel() },
	}
	o, repos := newTestOrchestrator(t, fake)
	connectAccount(t, repos, "acc-1", model.ProviderDropbox)

	result, err := o.SyncFromSource(ctx, "acc-1", "assistant-1", model.ProviderDropbox, "FREE")

	// 中途取消：已入库的部分照常汇报
	if err != nil {
		t.Fatalf("SyncFromSource() error: %v", err)
	}
	if result.TotalFiles != 2 || result.SyncedFiles != 1 || result.ErrorFiles != 0 {
		t.Errorf("result = %+v, want 1 of 2 synced", result)
	}

	var count int64
	repos.DB.Model(&model.KnowledgeFile{}).Count(&count)
	if count != 1 {
		t.Errorf("file rows = %d, reported counts must match committed work", count)
	}
	files, _ := repos.File.ListByAssistant("assistant-1")
	if len(files) != 1 {
		t.Errorf("assistant files = %d, want 1", len(files))
	}

	// 未跑完的同步不更新 LastSyncAt
	conn, _ := repos.Connection.GetActive("acc-1", model.ProviderDropbox)
	if conn.LastSyncAt != nil {
		t.Error("LastSyncAt must stay unset after a canceled run")
	}
}

func TestOrchestrator_FilterOptionsReachConnector(t *testing.T) {
	fake := &fakeConnector{provider: model.ProviderDropbox}
	db := testutil.NewTestDB(t)
	repos := repository.NewRepositories(db)
	store, err := storage.NewLocalStorage(t.TempDir(), "test-bucket")
	if err != nil {
		t.Fatal(err)
	}
	registry := &connector.Registry{}
	registry.Register(fake)
	o := NewOrchestrator(repos, registry, ingest.NewService(repos, store, 20), nil, Options{
		MaxFilesPerSync:       5,
		MaxFileSizeSync:       1024,
		IncludeExtensions:     []string{"pdf", "txt"},
		ExcludeExtensions:     []string{"exe"},
		FolderPrefixes:        []string{"/docs"},
		ExcludeFolderPrefixes: []string{"/docs/archive"},
	})
	connectAccount(t, repos, "acc-1", model.ProviderDropbox)

	if _, err := o.SyncFromSource(context.Background(), "acc-1", "assistant-1", model.ProviderDropbox, "FREE"); err != nil {
		t.Fatal(err)
	}

	got := fake.gotFilter
	if got.MaxFiles != 5 || got.MaxFileSize != 1024 {
		t.Errorf("filter limits = %+v", got)
	}
	if len(got.IncludeExtensions) != 2 || len(got.ExcludeExtensions) != 1 {
		t.Errorf("extension filters not forwarded: %+v", got)
	}
	if len(got.FolderPrefixes) != 1 || len(got.ExcludeFolderPrefixes) != 1 {
		t.Errorf("folder filters not forwarded: %+v", got)
	}
}

func mustFirstFileID(t *testing.T, repos *repository.Repositories) string {
	t.Helper()
	var file model.KnowledgeFile
	if err := repos.DB.First(&file).Error; err != nil {
		t.Fatalf("no file rows: %v", err)
	}
	return file.ID
}
