//go:build integration

package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/testutil"
)

func TestIntegrationLibraryRepository_FoldersAndTranscripts(t *testing.T) {
	ctx, repo := newTestEnv(t)
	userID := createTestUser(t, ctx, repo)

	folder := &model.Folder{ID: testutil.UniqueID("folder"), UserID: userID, Name: "Interviews", CreatedAt: time.Now().UTC()}
	if err := repo.CreateFolder(ctx, folder); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}
	dup := &model.Folder{ID: testutil.UniqueID("folder"), UserID: userID, Name: "interviews", CreatedAt: time.Now().UTC()}
	if err := repo.CreateFolder(ctx, dup); !errors.Is(err, ErrFolderExists) {
		t.Errorf("Expected ErrFolderExists, got: %v", err)
	}

	older := testutil.NewTestTranscript(t, userID, "Weekly sync")
	older.LastModified = older.LastModified.Add(-time.Hour)
	older.FolderID = &folder.ID
	newer := testutil.NewTestTranscript(t, userID, "Customer call")
	for _, tr := range []*model.Transcript{older, newer} {
		if err := repo.CreateTranscript(ctx, tr); err != nil {
			t.Fatalf("CreateTranscript failed: %v", err)
		}
	}

	all, err := repo.ListTranscripts(ctx, userID, model.TranscriptFilter{})
	if err != nil {
		t.Fatalf("ListTranscripts failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != newer.ID {
		t.Fatalf("expected newest first, got %d transcripts", len(all))
	}

	inFolder, err := repo.ListTranscripts(ctx, userID, model.TranscriptFilter{FolderID: folder.ID})
	if err != nil {
		t.Fatalf("ListTranscripts failed: %v", err)
	}
	if len(inFolder) != 1 || inFolder[0].Folder != "Interviews" {
		t.Errorf("unexpected folder listing: %+v", inFolder)
	}

	searched, err := repo.ListTranscripts(ctx, userID, model.TranscriptFilter{Search: "CUSTOMER"})
	if err != nil {
		t.Fatalf("ListTranscripts failed: %v", err)
	}
	if len(searched) != 1 || searched[0].ID != newer.ID {
		t.Errorf("unexpected search result: %+v", searched)
	}

	folders, err := repo.ListFolders(ctx, userID)
	if err != nil {
		t.Fatalf("ListFolders failed: %v", err)
	}
	if len(folders) != 1 || folders[0].TranscriptCount != 1 {
		t.Errorf("unexpected folders: %+v", folders)
	}

	// Deleting the folder keeps its transcripts
	if err := repo.DeleteFolder(ctx, userID, folder.ID); err != nil {
		t.Fatalf("DeleteFolder failed: %v", err)
	}
	kept, err := repo.GetTranscript(ctx, userID, older.ID)
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if kept.FolderID != nil {
		t.Errorf("FolderID = %v, want nil", *kept.FolderID)
	}
}

func TestIntegrationLibraryRepository_Scoping(t *testing.T) {
	ctx, repo := newTestEnv(t)
	owner := createTestUser(t, ctx, repo)
	other := createTestUser(t, ctx, repo)

	tr := testutil.NewTestTranscript(t, owner, "Private")
	if err := repo.CreateTranscript(ctx, tr); err != nil {
		t.Fatalf("CreateTranscript failed: %v", err)
	}

	if _, err := repo.GetTranscript(ctx, other, tr.ID); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("Expected ErrTranscriptNotFound, got: %v", err)
	}
	title := "hijacked"
	if err := repo.UpdateTranscript(ctx, other, tr.ID, model.TranscriptUpdate{Title: &title}, time.Now()); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("Expected ErrTranscriptNotFound, got: %v", err)
	}
	if err := repo.DeleteTranscript(ctx, other, tr.ID); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("Expected ErrTranscriptNotFound, got: %v", err)
	}
	if err := repo.DeleteFolder(ctx, other, "missing"); !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("Expected ErrFolderNotFound, got: %v", err)
	}
}

func TestIntegrationLibraryRepository_UpdateAndStats(t *testing.T) {
	ctx, repo := newTestEnv(t)
	userID := createTestUser(t, ctx, repo)

	tr := testutil.NewTestTranscript(t, userID, "Draft")
	if err := repo.CreateTranscript(ctx, tr); err != nil {
		t.Fatalf("CreateTranscript failed: %v", err)
	}

	later := time.Now().UTC().Add(time.Minute).Truncate(time.Microsecond)
	title := "Final"
	if err := repo.UpdateTranscript(ctx, userID, tr.ID, model.TranscriptUpdate{Title: &title}, later); err != nil {
		t.Fatalf("UpdateTranscript failed: %v", err)
	}

	got, err := repo.GetTranscript(ctx, userID, tr.ID)
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if got.Title != "Final" || got.Content != tr.Content {
		t.Errorf("unexpected transcript after update: %+v", got)
	}
	if !got.LastModified.Equal(later) {
		t.Errorf("LastModified = %v, want %v", got.LastModified, later)
	}

	stats, err := repo.GetDashboardStats(ctx, userID, time.Now().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("GetDashboardStats failed: %v", err)
	}
	if stats.Transcripts != 1 || stats.Folders != 0 || stats.RecentTranscripts != 1 || stats.LastModified == nil {
		t.Errorf("unexpected stats: %+v", stats)
	}

	totals, err := repo.GetLibraryTotals(ctx)
	if err != nil {
		t.Fatalf("GetLibraryTotals failed: %v", err)
	}
	if totals.Transcripts != 1 {
		t.Errorf("Transcripts total = %d, want 1", totals.Transcripts)
	}
}
