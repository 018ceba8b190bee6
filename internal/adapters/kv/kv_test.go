package kv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreMissingFileReadsZero(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "index.json"))
	v, err := s.Get("anything")
	if err != nil || v != 0 {
		t.Fatalf("got %d, %v; want 0, nil", v, err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.json")
	s := NewFileStore(path)

	if err := s.Set("a", 3); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set("b", 7); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set("a", 4); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	// A fresh store backed by the same file sees the persisted values.
	fresh := NewFileStore(path)
	if v, _ := fresh.Get("a"); v != 4 {
		t.Fatalf("a = %d, want 4", v)
	}
	if v, _ := fresh.Get("b"); v != 7 {
		t.Fatalf("b = %d, want 7", v)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path)
	if _, err := s.Get("a"); err == nil {
		t.Fatal("expected decode error")
	}
	if err := s.Set("a", 1); err == nil {
		t.Fatal("expected decode error on set")
	}
}

func TestFileStoreLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "index.json"))
	if err := s.Set("a", 1); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "index.json" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestSQLiteStoreGetUnsetKey(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	v, err := s.Get("missing")
	if err != nil || v != 0 {
		t.Fatalf("got %d, %v; want 0, nil", v, err)
	}
}

func TestSQLiteStoreSetAndUpsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := s.Set("k", 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set("k", 2); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if v, _ := s.Get("k"); v != 2 {
		t.Fatalf("k = %d, want 2", v)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen and confirm durability.
	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if v, _ := s2.Get("k"); v != 2 {
		t.Fatalf("after reopen k = %d, want 2", v)
	}
}
