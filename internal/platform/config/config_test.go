package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv_fallbacks(t *testing.T) {
	t.Setenv("TT_STRING", "")
	t.Setenv("TT_INT", "nope")
	t.Setenv("TT_FLOAT", "")
	t.Setenv("TT_DURATION", "-3s")
	t.Setenv("TT_SEED", "x")

	if got := GetEnv("TT_STRING", "d"); got != "d" {
		t.Errorf("GetEnv: expected fallback, got %q", got)
	}
	if got := GetEnvInt("TT_INT", 7); got != 7 {
		t.Errorf("GetEnvInt: expected 7, got %d", got)
	}
	if got := GetEnvFloat("TT_FLOAT", 1.5); got != 1.5 {
		t.Errorf("GetEnvFloat: expected 1.5, got %v", got)
	}
	if got := GetEnvDuration("TT_DURATION", time.Second); got != time.Second {
		t.Errorf("GetEnvDuration: negative should fall back, got %v", got)
	}
	if got := GetEnvUint64("TT_SEED", 3); got != 3 {
		t.Errorf("GetEnvUint64: expected 3, got %d", got)
	}
}

func TestGetEnv_values(t *testing.T) {
	t.Setenv("TT_STRING", "v")
	t.Setenv("TT_INT", "42")
	t.Setenv("TT_FLOAT", "2.5")
	t.Setenv("TT_DURATION", "500ms")
	t.Setenv("TT_SEED", "18446744073709551615")

	if got := GetEnv("TT_STRING", "d"); got != "v" {
		t.Errorf("GetEnv: expected v, got %q", got)
	}
	if got := GetEnvInt("TT_INT", 7); got != 42 {
		t.Errorf("GetEnvInt: expected 42, got %d", got)
	}
	if got := GetEnvFloat("TT_FLOAT", 1.5); got != 2.5 {
		t.Errorf("GetEnvFloat: expected 2.5, got %v", got)
	}
	if got := GetEnvDuration("TT_DURATION", time.Second); got != 500*time.Millisecond {
		t.Errorf("GetEnvDuration: expected 500ms, got %v", got)
	}
	if got := GetEnvUint64("TT_SEED", 3); got != 18446744073709551615 {
		t.Errorf("GetEnvUint64: expected max uint64, got %d", got)
	}
}

func TestLoad_env_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("TT_FROM_FILE=hello\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TT_FROM_FILE", "")
	os.Unsetenv("TT_FROM_FILE")

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := os.Getenv("TT_FROM_FILE"); got != "hello" {
		t.Errorf("expected hello, got %q", got)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(good, []byte("name: x\ncount: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("name: x\nextra: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var out struct {
		Name  string `yaml:"name"`
		Count int    `yaml:"count"`
	}
	if err := LoadYAML(good, &out); err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if out.Name != "x" || out.Count != 3 {
		t.Errorf("unexpected decode: %+v", out)
	}
	if err := LoadYAML(bad, &out); err == nil {
		t.Error("expected error for unknown field")
	}
	if err := LoadYAML(filepath.Join(dir, "missing.yaml"), &out); err == nil {
		t.Error("expected error for missing file")
	}
}
