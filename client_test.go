package pocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func newOfflineClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Config{
		LocalPath: filepath.Join(t.TempDir(), "receipts.db"),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{LocalPath: "/tmp/p.db", Profile: "Bad Profile"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("New = %v, want *ValidationError", err)
	}
}

func TestClient_OfflineLifecycle(t *testing.T) {
	client := newOfflineClient(t)
	ctx := context.Background()

	created, err := client.Create(ctx, CreateParams{OwnerID: "owner-1", VendorName: "Blue Bottle", TotalCents: 1250})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.IsSynced {
		t.Error("offline create marked synced")
	}

	got, err := client.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.VendorName != "Blue Bottle" {
		t.Errorf("VendorName = %q", got.VendorName)
	}

	updated, err := client.Update(ctx, created.ID, UpdateParams{Category: strPtr("meals")})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Category != "meals" {
		t.Errorf("Category = %q", updated.Category)
	}

	results, err := client.Search(ctx, SearchParams{Category: "meals"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Search = %d results, want 1", len(results))
	}

	st, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	// One queued create plus one queued update.
	if st.PendingCount != 2 {
		t.Errorf("PendingCount = %d, want 2", st.PendingCount)
	}
	if st.IsSyncing {
		t.Error("IsSyncing = true with no engine running")
	}

	if err := client.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := client.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestClient_SyncNowOfflineMode(t *testing.T) {
	client := newOfflineClient(t)

	if _, err := client.SyncNow(context.Background()); !errors.Is(err, ErrOffline) {
		t.Errorf("SyncNow = %v, want ErrOffline", err)
	}
}

func TestClient_SetTokenOfflineMode(t *testing.T) {
	client := newOfflineClient(t)

	if err := client.SetToken("whatever"); !errors.Is(err, ErrOffline) {
		t.Errorf("SetToken = %v, want ErrOffline", err)
	}
}

func TestClient_DeadLetterSurface(t *testing.T) {
	client := newOfflineClient(t)

	id, err := client.store.Enqueue(NewDeleteMutation("r-1", 1))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := client.store.DeadLetterNow(id, "manual test"); err != nil {
		t.Fatalf("DeadLetterNow failed: %v", err)
	}

	letters, err := client.DeadLetters()
	if err != nil {
		t.Fatalf("DeadLetters failed: %v", err)
	}
	if len(letters) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(letters))
	}

	if err := client.Requeue(letters[0].ID); err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}
	st, _ := client.Status()
	if st.PendingCount != 1 || st.FailedCount != 0 {
		t.Errorf("Status after requeue = %+v", st)
	}
}

func TestClient_CloseIsIdempotentOnStore(t *testing.T) {
	client, err := New(Config{LocalPath: filepath.Join(t.TempDir(), "receipts.db")})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Operations after close surface the store state.
	if _, err := client.Stats(); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Stats after close = %v, want ErrStoreClosed", err)
	}
}

func TestClient_PeriodicSyncControlsOfflineMode(t *testing.T) {
	client := newOfflineClient(t)

	if err := client.StartPeriodicSync(); !errors.Is(err, ErrOffline) {
		t.Errorf("StartPeriodicSync = %v, want ErrOffline", err)
	}
	client.StopPeriodicSync() // no-op, must not panic
}

func TestClient_PeriodicSyncControls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"receipts":[]}`))
	}))
	defer srv.Close()

	client, err := New(Config{
		LocalPath: filepath.Join(t.TempDir(), "receipts.db"),
		APIURL:    srv.URL,
		APIToken:  "test-token",
		AutoSync:  false,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer client.Close()

	if err := client.StartPeriodicSync(); err != nil {
		t.Fatalf("StartPeriodicSync failed: %v", err)
	}
	if err := client.StartPeriodicSync(); err != nil {
		t.Fatalf("second StartPeriodicSync failed: %v", err)
	}
	client.StopPeriodicSync()
	client.StopPeriodicSync()
}
