package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T, capacity int) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	return NewStore(path, capacity), path
}

func TestAdd_MostRecentFirst(t *testing.T) {
	s, _ := tempStore(t, 5)
	s.Add("80")
	s.Add("443")
	s.Add("8000-8090")

	got := s.Entries()
	want := []string{"8000-8090", "443", "80"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestAdd_DuplicateMovesToFrontWithoutGrowing(t *testing.T) {
	s, _ := tempStore(t, 5)
	s.Add("80")
	s.Add("443")
	s.Add("80")

	got := s.Entries()
	if len(got) != 2 {
		t.Fatalf("Expected 2 entries, got %d: %v", len(got), got)
	}
	if got[0] != "80" || got[1] != "443" {
		t.Errorf("Expected [80 443], got %v", got)
	}
}

func TestAdd_NeverExceedsCapacity(t *testing.T) {
	s, _ := tempStore(t, 3)
	for _, expr := range []string{"1", "2", "3", "4", "5"} {
		s.Add(expr)
	}

	got := s.Entries()
	if len(got) != 3 {
		t.Fatalf("Expected capacity 3, got %d entries", len(got))
	}
	if got[0] != "5" || got[2] != "3" {
		t.Errorf("Expected [5 4 3], got %v", got)
	}
}

func TestNewStore_MissingFileIsEmptyHistory(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope.json"), 5)
	if got := s.Entries(); len(got) != 0 {
		t.Errorf("Expected empty history, got %v", got)
	}
}

func TestNewStore_CorruptFileIsEmptyHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path, 5)
	if got := s.Entries(); len(got) != 0 {
		t.Errorf("Expected empty history from corrupt file, got %v", got)
	}

	// The store still accepts and persists new entries afterwards.
	s.Add("8080")
	if got := s.Entries(); len(got) != 1 || got[0] != "8080" {
		t.Errorf("Expected [8080], got %v", got)
	}
}

func TestAdd_PersistsAcrossReload(t *testing.T) {
	s, path := tempStore(t, 5)
	s.Add("3306")
	s.Add("5432")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("History file was not written: %v", err)
	}
	var onDisk []string
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("History file is not a JSON array: %v", err)
	}

	reloaded := NewStore(path, 5)
	got := reloaded.Entries()
	if len(got) != 2 || got[0] != "5432" || got[1] != "3306" {
		t.Errorf("Expected [5432 3306] after reload, got %v", got)
	}
}

func TestNewStore_TruncatesOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	data, _ := json.Marshal([]string{"1", "2", "3", "4", "5"})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path, 3)
	if got := s.Entries(); len(got) != 3 {
		t.Errorf("Expected 3 entries after capacity truncation, got %v", got)
	}
}
