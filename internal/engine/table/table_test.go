package table

import (
	"errors"
	"testing"
	"time"

	coremodel "NetGuard/internal/core/model"
)

func snap(seq uint64, entries ...coremodel.PortEntry) *coremodel.Snapshot {
	return &coremodel.Snapshot{Entries: entries, Taken: time.Now(), Seq: seq}
}

func listening(port int, pid int32, name string) coremodel.PortEntry {
	return coremodel.PortEntry{
		Port:        port,
		PID:         pid,
		ProcessName: name,
		LocalAddr:   "0.0.0.0:0",
		RemoteAddr:  "N/A",
		State:       coremodel.StateListening,
	}
}

func TestQuery_FullTableSortedByPort(t *testing.T) {
	tbl := New()
	tbl.Install(snap(1,
		listening(9000, 3, "c"),
		listening(8000, 1, "a"),
		listening(8003, 2, "b"),
	))

	entries := tbl.Query(Filter{})
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	for i, want := range []int{8000, 8003, 9000} {
		if entries[i].Port != want {
			t.Errorf("Position %d: expected port %d, got %d", i, want, entries[i].Port)
		}
	}

	// Re-running without an intervening install is deterministic.
	again := tbl.Query(Filter{})
	for i := range entries {
		if entries[i] != again[i] {
			t.Fatalf("Query is not deterministic at position %d", i)
		}
	}
}

func TestQuery_RangeFilter(t *testing.T) {
	tbl := New()
	tbl.Install(snap(1,
		listening(8000, 1, "a"),
		listening(8003, 2, "b"),
		listening(9000, 3, "c"),
	))

	ports, err := ParsePortExpression("8000-8005")
	if err != nil {
		t.Fatalf("ParsePortExpression failed: %v", err)
	}
	entries := tbl.Query(Filter{Ports: PortSet(ports)})

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Port != 8000 || entries[1].Port != 8003 {
		t.Errorf("Expected [8000 8003], got [%d %d]", entries[0].Port, entries[1].Port)
	}
}

func TestQuery_SearchIsCaseInsensitive(t *testing.T) {
	tbl := New()
	tbl.Install(snap(1,
		listening(80, 10, "Nginx"),
		listening(5432, 20, "postgres"),
	))

	entries := tbl.Query(Filter{Search: "NGIN"})
	if len(entries) != 1 || entries[0].ProcessName != "Nginx" {
		t.Fatalf("Expected the nginx entry, got %+v", entries)
	}

	// Substring match over the pid field.
	entries = tbl.Query(Filter{Search: "20"})
	if len(entries) != 1 || entries[0].PID != 20 {
		t.Fatalf("Expected the pid-20 entry, got %+v", entries)
	}
}

func TestInstall_DeltaIsKeySetDifference(t *testing.T) {
	tbl := New()
	kept := listening(80, 1, "a")
	removed := listening(443, 2, "b")
	added := listening(8080, 3, "c")

	tbl.Install(snap(1, kept, removed))
	delta := tbl.Install(snap(2, kept, added))

	if len(delta.Added) != 1 || delta.Added[0].Key() != added.Key() {
		t.Errorf("Expected added set {8080}, got %+v", delta.Added)
	}
	if len(delta.Removed) != 1 || delta.Removed[0].Key() != removed.Key() {
		t.Errorf("Expected removed set {443}, got %+v", delta.Removed)
	}
	if delta.Seq != 2 {
		t.Errorf("Expected delta seq 2, got %d", delta.Seq)
	}
}

func TestSubscribe_ReceivesInstallDeltas(t *testing.T) {
	tbl := New()
	ch := tbl.Subscribe()

	tbl.Install(snap(1, listening(80, 1, "a")))

	select {
	case delta := <-ch:
		if len(delta.Added) != 1 {
			t.Errorf("Expected 1 added entry, got %d", len(delta.Added))
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for delta")
	}
}

func TestParsePortExpression(t *testing.T) {
	ports, err := ParsePortExpression("80,443")
	if err != nil {
		t.Fatalf("ParsePortExpression failed: %v", err)
	}
	if len(ports) != 2 || ports[0] != 80 || ports[1] != 443 {
		t.Errorf("Expected [80 443], got %v", ports)
	}

	ports, err = ParsePortExpression("8000-8090")
	if err != nil {
		t.Fatalf("ParsePortExpression failed: %v", err)
	}
	if len(ports) != 91 || ports[0] != 8000 || ports[90] != 8090 {
		t.Errorf("Expected the full 8000-8090 range, got %d ports", len(ports))
	}

	// Mixed singles and ranges, with duplicates collapsing.
	ports, err = ParsePortExpression("80, 80, 79-81")
	if err != nil {
		t.Fatalf("ParsePortExpression failed: %v", err)
	}
	if len(ports) != 3 || ports[0] != 79 || ports[2] != 81 {
		t.Errorf("Expected [79 80 81], got %v", ports)
	}
}

func TestParsePortExpression_RejectsReversedRange(t *testing.T) {
	_, err := ParsePortExpression("9000-8000")
	var filterErr *coremodel.InvalidFilterError
	if !errors.As(err, &filterErr) {
		t.Fatalf("Expected InvalidFilterError, got %v", err)
	}
	if filterErr.Token != "9000-8000" {
		t.Errorf("Expected offending token '9000-8000', got %q", filterErr.Token)
	}
}

func TestParsePortExpression_RejectsMalformedTokens(t *testing.T) {
	for _, expr := range []string{"abc", "80,abc", "0", "70000", "80-", ""} {
		if _, err := ParsePortExpression(expr); err == nil {
			t.Errorf("Expected %q to be rejected", expr)
		}
	}
}

func TestQuery_EmptyTable(t *testing.T) {
	tbl := New()
	if entries := tbl.Query(Filter{}); entries != nil {
		t.Errorf("Expected nil before the first install, got %v", entries)
	}
}
