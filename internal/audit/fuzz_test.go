package audit

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func FuzzVerifyReader(f *testing.F) {
	path := filepath.Join(f.TempDir(), "seed.jsonl")
	l, err := Open(path)
	if err != nil {
		f.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		l.Record(Entry{SessionID: "sess-fuzz", UserUID: "u1", Event: EventLocked})
	}
	l.Close()
	seed, _ := os.ReadFile(path)

	f.Add(seed)
	f.Add([]byte{})
	f.Add([]byte(`{"not":"an entry"}` + "\n"))
	f.Add([]byte(`not json`))

	f.Fuzz(func(t *testing.T, data []byte) {
		VerifyReader(bytes.NewReader(data))
	})
}
