package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := &Config{
		DefaultProfile: "main",
		SyncDebounceMs: 500,
		Backend:        Backend{APIURL: "https://api.example.com", RealtimeURL: "wss://rt.example.com", APIKey: "k"},
		Profiles:       map[string]Profile{"main": {UserID: "viewer-1"}},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "main" || loaded.SyncDebounceMs != 500 {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Backend.APIURL != "https://api.example.com" {
		t.Errorf("api_url = %q", loaded.Backend.APIURL)
	}
	if loaded.Profiles["main"].UserID != "viewer-1" {
		t.Errorf("profiles = %+v", loaded.Profiles)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, &Config{DefaultProfile: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
