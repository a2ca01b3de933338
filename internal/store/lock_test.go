package store

import "testing"

func TestAcquireStateLock_BlocksConcurrentAcquire(t *testing.T) {
	stateDir := t.TempDir()

	lock, err := AcquireStateLock(stateDir)
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	if _, err := AcquireStateLock(stateDir); err == nil {
		t.Fatalf("expected second acquire to fail")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	lock2, err := AcquireStateLock(stateDir)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("release second lock: %v", err)
	}
}

func TestWriteAndReadJSONRoundTrip(t *testing.T) {
	path := t.TempDir() + "/doc.json"
	type doc struct {
		Version int      `json:"version"`
		Items   []string `json:"items"`
	}
	in := doc{Version: 1, Items: []string{"a", "b"}}
	if err := WriteJSON(path, in); err != nil {
		t.Fatal(err)
	}
	var out doc
	if err := ReadJSON(path, &out); err != nil {
		t.Fatal(err)
	}
	if out.Version != 1 || len(out.Items) != 2 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
