package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	return l, path
}

func testEntry(ev Event) Entry {
	return Entry{
		SessionID: "sess-test",
		UserUID:   "u1",
		Event:     ev,
		From:      "ACTIVE",
		To:        "LOCKED",
		Reason:    "risk",
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func TestSequentialWritesProduceValidChain(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 5; i++ {
		if err := l.Record(testEntry(EventLocked)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	l.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected valid chain, got error at line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Lines != 5 {
		t.Fatalf("expected 5 lines, got %d", result.Lines)
	}
}

func TestVerifyDetectsTamperedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		l.Record(testEntry(EventLocked))
	}
	l.Close()

	lines := readLines(t, path)
	lines[1] = strings.Replace(lines[1], `"risk"`, `"none"`, 1)
	writeLines(t, path, lines)

	result := Verify(path)
	if result.Valid {
		t.Fatal("expected tampered chain to be invalid")
	}
	if result.ErrorLine != 3 {
		t.Fatalf("expected error at line 3, got line %d", result.ErrorLine)
	}
}

func TestVerifyDetectsDeletedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		l.Record(testEntry(EventLocked))
	}
	l.Close()

	lines := readLines(t, path)
	writeLines(t, path, []string{lines[0], lines[2]})

	result := Verify(path)
	if result.Valid {
		t.Fatal("expected chain with deleted entry to be invalid")
	}
	if result.ErrorLine != 2 {
		t.Fatalf("expected error at line 2, got line %d", result.ErrorLine)
	}
}

func TestVerifyDetectsForgedGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forged.jsonl")
	e := testEntry(EventRecovered)
	e.PrevHash = "sha256:fake"
	line, _ := json.Marshal(e)
	writeLines(t, path, []string{string(line)})

	result := Verify(path)
	if result.Valid || result.ErrorLine != 1 {
		t.Fatalf("expected failure at line 1, got %+v", result)
	}
}

func TestVerifyReportsParseErrors(t *testing.T) {
	result := VerifyReader(strings.NewReader("not json\n"))
	if result.Valid || result.ErrorLine != 1 {
		t.Fatalf("expected parse error at line 1, got %+v", result)
	}
}

func TestVerifyMissingFile(t *testing.T) {
	result := Verify(filepath.Join(t.TempDir(), "absent.jsonl"))
	if result.Valid || result.Error == "" {
		t.Fatalf("expected open error, got %+v", result)
	}
}

func TestEmptyLogPassesVerification(t *testing.T) {
	result := VerifyReader(strings.NewReader(""))
	if !result.Valid || result.Lines != 0 {
		t.Fatalf("expected valid empty log, got %+v", result)
	}
}

func TestConcurrentWritesSerializeCorrectly(t *testing.T) {
	l, path := newTestLog(t)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(testEntry(EventVerifyRequested))
		}()
	}
	wg.Wait()
	l.Close()

	result := Verify(path)
	if !result.Valid || result.Lines != 100 {
		t.Fatalf("expected 100 valid lines, got %+v", result)
	}
}

func TestFirstEntryCarriesGenesisHash(t *testing.T) {
	l, path := newTestLog(t)
	l.Record(testEntry(EventLocked))
	l.Close()

	var e Entry
	if err := json.Unmarshal([]byte(readLines(t, path)[0]), &e); err != nil {
		t.Fatal(err)
	}
	if e.PrevHash != GenesisHash {
		t.Fatalf("expected genesis hash, got %s", e.PrevHash)
	}
	if _, err := time.Parse(TimestampFormat, e.Timestamp); err != nil {
		t.Errorf("expected timestamp to be stamped, got %q", e.Timestamp)
	}
}

func TestHashLineFormat(t *testing.T) {
	h := HashLine([]byte(`{"event":"locked"}`))
	if h != HashLine([]byte(`{"event":"locked"}`)) {
		t.Fatal("expected deterministic hash")
	}
	if !strings.HasPrefix(h, "sha256:") || len(h) != 7+64 {
		t.Fatalf("unexpected hash format %q", h)
	}
}

func TestOpenExistingLogContinuesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.jsonl")

	l1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		l1.Record(testEntry(EventLocked))
	}
	l1.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		l2.Record(testEntry(EventRecovered))
	}
	l2.Close()

	result := Verify(path)
	if !result.Valid || result.Lines != 5 {
		t.Fatalf("expected 5 valid lines after reopen, got %+v", result)
	}
}

func TestReadFiltersAndSummarizes(t *testing.T) {
	l, path := newTestLog(t)
	l.Record(testEntry(EventLocked))
	l.Record(testEntry(EventRecoveryFailed))
	l.Record(testEntry(EventRecovered))
	other := testEntry(EventLocked)
	other.SessionID = "sess-other"
	l.Record(other)
	l.Close()

	res, err := Read(path, Filter{SessionID: "sess-test"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if res.Summary.Total != 3 || res.Summary.Locks != 1 || res.Summary.Recoveries != 1 || res.Summary.FailedAttempts != 1 {
		t.Errorf("unexpected summary %+v", res.Summary)
	}
	if last := res.Last(1); len(last) != 1 || last[0].Event != EventRecovered {
		t.Errorf("unexpected Last(1): %+v", last)
	}

	all, err := Read(path, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Entries) != 4 {
		t.Errorf("expected 4 entries, got %d", len(all.Entries))
	}

	future, _ := Read(path, Filter{Since: time.Now().Add(time.Hour)})
	if len(future.Entries) != 0 {
		t.Errorf("expected no entries after future cutoff, got %d", len(future.Entries))
	}
}

func TestFormatTimeline(t *testing.T) {
	if got := FormatTimeline(nil, Summary{}); !strings.Contains(got, "No audit entries") {
		t.Errorf("unexpected empty output %q", got)
	}

	e := testEntry(EventLocked)
	e.Timestamp = "2026-01-15T10:30:00.000Z"
	out := FormatTimeline([]Entry{e}, Summary{Total: 1, Locks: 1})
	for _, want := range []string{"2026-01-15 10:30:00", "locked", "ACTIVE -> LOCKED", "1 locks"} {
		if !strings.Contains(out, want) {
			t.Errorf("timeline missing %q:\n%s", want, out)
		}
	}
}
