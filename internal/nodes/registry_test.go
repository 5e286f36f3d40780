package nodes

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.json")

	registry := `{
	  "0.0.4": {"address": "35.0.0.1", "pubKey": "bbb"},
	  "0.0.3": {"address": "35.0.0.0", "pubKey": "aaa"},
	  "0.0.5": {"address": "35.0.0.2", "pubKey": "ccc"}
	}`
	if err := os.WriteFile(path, []byte(registry), 0644); err != nil {
		t.Fatal(err)
	}

	got := Load(path)
	want := []string{"0.0.3", "0.0.4", "0.0.5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load = %v, want %v", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if got := Load(filepath.Join(t.TempDir(), "absent.json")); len(got) != 0 {
		t.Errorf("missing registry should yield empty list, got %v", got)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := Load(path); len(got) != 0 {
		t.Errorf("malformed registry should yield empty list, got %v", got)
	}
}
