//go:build integration
// +build integration

package db

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"vizpilot/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestRequestRepository_SaveLoadChildren(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()

	parent := domain.RequestRecord{
		RequestID: "it-parent",
		Options:   domain.RequestOptions{Prompt: "plot tsla"},
		Status:    domain.StatusSuccess,
		Response:  domain.Response{RequestID: "it-parent", Status: domain.StatusSuccess},
		CreatedAt: "2024-03-01T10:00:00Z",
	}
	child := parent
	child.RequestID = "it-child"
	child.ParentRequestID = parent.RequestID
	child.CreatedAt = "2024-03-01T10:05:00Z"

	for _, rec := range []domain.RequestRecord{parent, child} {
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("save %s: %v", rec.RequestID, err)
		}
	}
	parent.Status = domain.StatusError
	if err := repo.Save(ctx, parent); err != nil {
		t.Fatalf("upsert parent: %v", err)
	}

	got, err := repo.Load(ctx, parent.RequestID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Status != domain.StatusError {
		t.Fatalf("expected upserted status, got %s", got.Status)
	}
	children, err := repo.ListChildren(ctx, parent.RequestID)
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(children) != 1 || children[0].RequestID != child.RequestID {
		t.Fatalf("unexpected children %+v", children)
	}
	if _, err := repo.Load(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if dsn == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&RequestRecordModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Exec("DELETE FROM request_records WHERE request_id LIKE 'it-%'").Error; err != nil {
		t.Fatalf("reset: %v", err)
	}
	return db
}
