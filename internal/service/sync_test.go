package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/atinyakov/LinkKeeper/internal/models"
	"github.com/atinyakov/LinkKeeper/internal/service"
)

type mockRepo struct {
	GetDocumentFunc  func(ctx context.Context, userID string) (*models.SyncDocument, error)
	SaveDocumentFunc func(ctx context.Context, userID string, doc *models.SyncDocument) error
	AddHistoryFunc   func(ctx context.Context, userID string, entry service.HistoryEntry) error
	GetHistoryFunc   func(ctx context.Context, userID string, limit int) ([]service.HistoryEntry, error)
}

func (m *mockRepo) GetDocument(ctx context.Context, userID string) (*models.SyncDocument, error) {
	return m.GetDocumentFunc(ctx, userID)
}
func (m *mockRepo) SaveDocument(ctx context.Context, userID string, doc *models.SyncDocument) error {
	return m.SaveDocumentFunc(ctx, userID, doc)
}
func (m *mockRepo) AddHistory(ctx context.Context, userID string, entry service.HistoryEntry) error {
	return m.AddHistoryFunc(ctx, userID, entry)
}
func (m *mockRepo) GetHistory(ctx context.Context, userID string, limit int) ([]service.HistoryEntry, error) {
	return m.GetHistoryFunc(ctx, userID, limit)
}

func usablePayload() *models.SyncPayload {
	return &models.SyncPayload{
		Links:      []models.Link{{ID: "l1", Title: "Docs", URL: "https://docs.example.com"}},
		Categories: []models.Category{},
	}
}

func TestPush_FirstWriteAssignsVersionOne(t *testing.T) {
	var saved *models.SyncDocument
	var history []service.HistoryEntry
	repo := &mockRepo{
		GetDocumentFunc: func(context.Context, string) (*models.SyncDocument, error) {
			return nil, nil
		},
		SaveDocumentFunc: func(_ context.Context, _ string, doc *models.SyncDocument) error {
			saved = doc
			return nil
		},
		AddHistoryFunc: func(_ context.Context, _ string, entry service.HistoryEntry) error {
			history = append(history, entry)
			return nil
		},
	}
	svc := service.NewSyncService(repo)

	meta, err := svc.Push(context.Background(), "u1", service.PushRequest{
		Payload:     usablePayload(),
		BaseVersion: 0,
		DeviceID:    "dev-1",
		Kind:        "manual",
	})
	if err != nil {
		t.Fatalf("Push error = %v", err)
	}
	if meta.Version != 1 || meta.DeviceID != "dev-1" || meta.UpdatedAt == 0 {
		t.Fatalf("meta = %+v", meta)
	}
	if saved == nil || saved.Meta != meta {
		t.Fatalf("saved doc meta = %+v; want %+v", saved, meta)
	}
	if len(history) != 1 || history[0].Version != 1 || history[0].Kind != "manual" {
		t.Fatalf("history = %+v", history)
	}
}

func TestPush_StaleVersionConflicts(t *testing.T) {
	repo := &mockRepo{
		GetDocumentFunc: func(context.Context, string) (*models.SyncDocument, error) {
			return &models.SyncDocument{Meta: models.SyncMeta{Version: 7}}, nil
		},
		SaveDocumentFunc: func(context.Context, string, *models.SyncDocument) error {
			t.Fatalf("stale push was saved")
			return nil
		},
		AddHistoryFunc: func(context.Context, string, service.HistoryEntry) error { return nil },
	}
	svc := service.NewSyncService(repo)

	_, err := svc.Push(context.Background(), "u1", service.PushRequest{
		Payload:     usablePayload(),
		BaseVersion: 5,
	})
	if !errors.Is(err, service.ErrVersionConflict) {
		t.Fatalf("Push error = %v; want ErrVersionConflict", err)
	}
}

func TestPush_ForceBypassesVersionCheck(t *testing.T) {
	var saved *models.SyncDocument
	repo := &mockRepo{
		GetDocumentFunc: func(context.Context, string) (*models.SyncDocument, error) {
			return &models.SyncDocument{Meta: models.SyncMeta{Version: 7}}, nil
		},
		SaveDocumentFunc: func(_ context.Context, _ string, doc *models.SyncDocument) error {
			saved = doc
			return nil
		},
		AddHistoryFunc: func(context.Context, string, service.HistoryEntry) error { return nil },
	}
	svc := service.NewSyncService(repo)

	meta, err := svc.Push(context.Background(), "u1", service.PushRequest{
		Payload:     usablePayload(),
		BaseVersion: 5,
		Force:       true,
	})
	if err != nil {
		t.Fatalf("Push error = %v", err)
	}
	// Forced writes still move the monotonic version forward.
	if meta.Version != 8 {
		t.Fatalf("version = %d; want 8", meta.Version)
	}
	if saved == nil {
		t.Fatalf("forced push not saved")
	}
}

func TestPush_SkipHistory(t *testing.T) {
	repo := &mockRepo{
		GetDocumentFunc: func(context.Context, string) (*models.SyncDocument, error) {
			return nil, nil
		},
		SaveDocumentFunc: func(context.Context, string, *models.SyncDocument) error { return nil },
		AddHistoryFunc: func(context.Context, string, service.HistoryEntry) error {
			t.Fatalf("history recorded despite SkipHistory")
			return nil
		},
	}
	svc := service.NewSyncService(repo)

	if _, err := svc.Push(context.Background(), "u1", service.PushRequest{
		Payload:     usablePayload(),
		SkipHistory: true,
	}); err != nil {
		t.Fatalf("Push error = %v", err)
	}
}

func TestPush_HistoryFailureDoesNotFailWrite(t *testing.T) {
	repo := &mockRepo{
		GetDocumentFunc: func(context.Context, string) (*models.SyncDocument, error) {
			return nil, nil
		},
		SaveDocumentFunc: func(context.Context, string, *models.SyncDocument) error { return nil },
		AddHistoryFunc: func(context.Context, string, service.HistoryEntry) error {
			return errors.New("history table busted")
		},
	}
	svc := service.NewSyncService(repo)

	if _, err := svc.Push(context.Background(), "u1", service.PushRequest{Payload: usablePayload()}); err != nil {
		t.Fatalf("Push error = %v; want nil despite history failure", err)
	}
}

func TestPush_RejectsUnusablePayload(t *testing.T) {
	repo := &mockRepo{
		GetDocumentFunc: func(context.Context, string) (*models.SyncDocument, error) {
			t.Fatalf("repository touched for unusable payload")
			return nil, nil
		},
	}
	svc := service.NewSyncService(repo)

	if _, err := svc.Push(context.Background(), "u1", service.PushRequest{Payload: nil}); err == nil {
		t.Fatalf("nil payload accepted")
	}
	if _, err := svc.Push(context.Background(), "u1", service.PushRequest{Payload: &models.SyncPayload{}}); err == nil {
		t.Fatalf("payload without links/categories accepted")
	}
}

func TestPush_SaveError(t *testing.T) {
	wantErr := errors.New("db down")
	repo := &mockRepo{
		GetDocumentFunc: func(context.Context, string) (*models.SyncDocument, error) {
			return nil, nil
		},
		SaveDocumentFunc: func(context.Context, string, *models.SyncDocument) error {
			return wantErr
		},
	}
	svc := service.NewSyncService(repo)

	if _, err := svc.Push(context.Background(), "u1", service.PushRequest{Payload: usablePayload()}); !errors.Is(err, wantErr) {
		t.Fatalf("Push error = %v; want %v", err, wantErr)
	}
}

func TestPull(t *testing.T) {
	want := &models.SyncDocument{Meta: models.SyncMeta{Version: 3}}
	repo := &mockRepo{
		GetDocumentFunc: func(context.Context, string) (*models.SyncDocument, error) {
			return want, nil
		},
	}
	svc := service.NewSyncService(repo)

	got, err := svc.Pull(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Pull error = %v", err)
	}
	if got != want {
		t.Fatalf("Pull = %+v; want %+v", got, want)
	}
}

func TestHistory_LimitClamping(t *testing.T) {
	want := []service.HistoryEntry{{Version: 3, Kind: "manual"}, {Version: 2, Kind: "auto"}}
	var gotLimit int
	repo := &mockRepo{
		GetHistoryFunc: func(_ context.Context, _ string, limit int) ([]service.HistoryEntry, error) {
			gotLimit = limit
			return want, nil
		},
	}
	svc := service.NewSyncService(repo)

	entries, err := svc.History(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("History error = %v", err)
	}
	if gotLimit != service.DefaultHistoryLimit {
		t.Fatalf("limit = %d; want default %d", gotLimit, service.DefaultHistoryLimit)
	}
	if len(entries) != 2 || entries[0].Version != 3 {
		t.Fatalf("entries = %+v; want %+v", entries, want)
	}

	if _, err := svc.History(context.Background(), "u1", 10_000); err != nil {
		t.Fatalf("History error = %v", err)
	}
	if gotLimit != service.MaxHistoryLimit {
		t.Fatalf("limit = %d; want clamp to %d", gotLimit, service.MaxHistoryLimit)
	}
}

func TestHistory_RepoError(t *testing.T) {
	wantErr := errors.New("db down")
	repo := &mockRepo{
		GetHistoryFunc: func(context.Context, string, int) ([]service.HistoryEntry, error) {
			return nil, wantErr
		},
	}

	if _, err := service.NewSyncService(repo).History(context.Background(), "u1", 5); !errors.Is(err, wantErr) {
		t.Fatalf("History error = %v; want %v", err, wantErr)
	}
}

func TestProtected(t *testing.T) {
	vault := "sealed"
	cases := []struct {
		name string
		doc  *models.SyncDocument
		want bool
	}{
		{"no document", nil, false},
		{"plain document", &models.SyncDocument{}, false},
		{"encrypted field", &models.SyncDocument{SyncPayload: models.SyncPayload{EncryptedSensitiveConfig: "ct"}}, true},
		{"private vault", &models.SyncDocument{SyncPayload: models.SyncPayload{PrivateVault: &vault}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockRepo{
				GetDocumentFunc: func(context.Context, string) (*models.SyncDocument, error) {
					return tc.doc, nil
				},
			}
			got, err := service.NewSyncService(repo).Protected(context.Background(), "u1")
			if err != nil {
				t.Fatalf("Protected error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("Protected = %v; want %v", got, tc.want)
			}
		})
	}
}
