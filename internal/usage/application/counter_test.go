package application

import (
	"context"
	"sync"
	"testing"
	"time"

	masterdata "agromet-cloud/internal/masterdata/domain"
	usage "agromet-cloud/internal/usage/domain"
)

// memoryDocumentRepo mimics the store's row-lock semantics with a mutex
// per repository; Update is the only mutation path.
type memoryDocumentRepo struct {
	mu   sync.Mutex
	docs map[int64]*usage.Document
}

func newMemoryDocumentRepo() *memoryDocumentRepo {
	return &memoryDocumentRepo{docs: make(map[int64]*usage.Document)}
}

func (r *memoryDocumentRepo) Update(_ context.Context, credentialID int64, fn func(*usage.Document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[credentialID]
	if !ok {
		doc = &usage.Document{}
		r.docs[credentialID] = doc
	}
	return fn(doc)
}

func (r *memoryDocumentRepo) Get(_ context.Context, credentialID int64) (*usage.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[credentialID]
	if !ok {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func TestRecordUseConcurrentNoLostUpdates(t *testing.T) {
	repo := newMemoryDocumentRepo()
	counter, err := NewCounter(repo)
	if err != nil {
		t.Fatalf("new counter: %v", err)
	}

	const n = 200
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := counter.RecordUse(context.Background(), 1, nil, now); err != nil {
				t.Errorf("record use: %v", err)
			}
		}()
	}
	wg.Wait()

	doc, err := repo.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Usage.Total != n {
		t.Fatalf("total = %d, want %d", doc.Usage.Total, n)
	}
	if doc.Usage.ByDay[usage.DayKey(now)] != n {
		t.Fatalf("by_day = %d, want %d", doc.Usage.ByDay[usage.DayKey(now)], n)
	}
}

func TestReadCapacityDefaults(t *testing.T) {
	repo := newMemoryDocumentRepo()
	counter, err := NewCounter(repo)
	if err != nil {
		t.Fatalf("new counter: %v", err)
	}
	now := time.Now().UTC()

	ok, detail, err := counter.ReadCapacity(context.Background(), 1, nil, now)
	if err != nil || !ok || detail != DetailNoLimits {
		t.Fatalf("no limits: ok=%v detail=%q err=%v", ok, detail, err)
	}

	ok, detail, err = counter.ReadCapacity(context.Background(), 1, map[string]int{usage.WindowDay: 10}, now)
	if err != nil || !ok || detail != DetailNoStats {
		t.Fatalf("no stats: ok=%v detail=%q err=%v", ok, detail, err)
	}

	if _, err := counter.RecordUse(context.Background(), 1, nil, now); err != nil {
		t.Fatalf("record use: %v", err)
	}
	ok, detail, err = counter.ReadCapacity(context.Background(), 1, map[string]int{usage.WindowDay: 1}, now)
	if err != nil || ok || detail != DetailChecked {
		t.Fatalf("at limit: ok=%v detail=%q err=%v", ok, detail, err)
	}
}

type stubProviderRepo struct {
	credentials []masterdata.Credential
}

func (s stubProviderRepo) GetByID(_ context.Context, _ int64) (*masterdata.Provider, error) {
	return nil, nil
}

func (s stubProviderRepo) ListActiveCredentials(_ context.Context, _ int64) ([]masterdata.Credential, error) {
	return s.credentials, nil
}

func TestPickCredentialSpillsToSecond(t *testing.T) {
	repo := newMemoryDocumentRepo()
	counter, err := NewCounter(repo)
	if err != nil {
		t.Fatalf("new counter: %v", err)
	}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	limits := map[string]int{usage.WindowDay: 5}
	provider := masterdata.Provider{ID: 7, Code: "open_meteo", Config: masterdata.ProviderConfig{Limits: limits}}

	// Exhaust the first credential's daily budget; the second stays fresh.
	for i := 0; i < 5; i++ {
		if _, err := counter.RecordUse(context.Background(), 1, limits, now); err != nil {
			t.Fatalf("record use: %v", err)
		}
	}

	picker, err := NewPicker(stubProviderRepo{credentials: []masterdata.Credential{
		{ID: 1, ProviderID: 7, IsActive: true},
		{ID: 2, ProviderID: 7, IsActive: true},
	}}, counter)
	if err != nil {
		t.Fatalf("new picker: %v", err)
	}

	selection, err := picker.PickCredential(context.Background(), provider, now)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if !selection.HasCapacity || selection.Credential == nil || selection.Credential.ID != 2 {
		t.Fatalf("pick = %+v, want credential 2", selection)
	}
}

func TestPickCredentialNoCredentialsPassesThrough(t *testing.T) {
	repo := newMemoryDocumentRepo()
	counter, _ := NewCounter(repo)
	picker, err := NewPicker(stubProviderRepo{}, counter)
	if err != nil {
		t.Fatalf("new picker: %v", err)
	}

	selection, err := picker.PickCredential(context.Background(), masterdata.Provider{ID: 1}, time.Now().UTC())
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if !selection.HasCapacity || selection.Credential != nil {
		t.Fatalf("pick = %+v, want pass-through", selection)
	}
}

func TestPickCredentialAllExhausted(t *testing.T) {
	repo := newMemoryDocumentRepo()
	counter, _ := NewCounter(repo)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	limits := map[string]int{usage.WindowDay: 1}
	provider := masterdata.Provider{ID: 7, Config: masterdata.ProviderConfig{Limits: limits}}

	for _, id := range []int64{1, 2} {
		if _, err := counter.RecordUse(context.Background(), id, limits, now); err != nil {
			t.Fatalf("record use: %v", err)
		}
	}

	picker, _ := NewPicker(stubProviderRepo{credentials: []masterdata.Credential{
		{ID: 1, ProviderID: 7, IsActive: true},
		{ID: 2, ProviderID: 7, IsActive: true},
	}}, counter)

	selection, err := picker.PickCredential(context.Background(), provider, now)
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if selection.HasCapacity || selection.Credential != nil {
		t.Fatalf("pick = %+v, want exhausted", selection)
	}
}
