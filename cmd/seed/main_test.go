package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	body := `[{"name":"Dune","release_date":"2021","reviews":[{"reviewer":"A","rating":8,"comments":"Great"}]}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	movies, err := loadSeed(path)
	if err != nil {
		t.Fatalf("loadSeed: %v", err)
	}
	if len(movies) != 1 || movies[0].Name != "Dune" || len(movies[0].Reviews) != 1 || *movies[0].Reviews[0].Rating != 8 {
		t.Fatalf("unexpected seed: %+v", movies)
	}

	if err := os.WriteFile(path, []byte(`[{"release_date":"2021"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSeed(path); err == nil {
		t.Fatalf("expected error for nameless entry")
	}

	if err := os.WriteFile(path, []byte(`[{"name":"Dune","reviews":[{"rating":0,"comments":"zero is fine"},{"comments":"no rating"}]}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSeed(path); err == nil || !strings.Contains(err.Error(), "review 1: rating is required") {
		t.Fatalf("missing rating error = %v", err)
	}

	if _, err := loadSeed(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
