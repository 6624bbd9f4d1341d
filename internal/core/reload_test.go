package core

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReloadConfig_AppliesHotSettings(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	path := writeConfigFile(t, `
detection:
  confidence_threshold: 0.6
  auto_response: true
compliance:
  auto_scan: true
  standards: [HIPAA, SOC2]
logging:
  level: debug
`)

	changes, err := ReloadConfig(engine, path)
	if err != nil {
		t.Fatalf("ReloadConfig: %v", err)
	}
	if len(changes) != 5 {
		t.Errorf("changes = %d (%v), want 5", len(changes), changes)
	}
	if engine.Config.Detection.ConfidenceThreshold != 0.6 {
		t.Errorf("threshold = %v, want 0.6", engine.Config.Detection.ConfidenceThreshold)
	}
	if !engine.Config.Detection.AutoResponse || !engine.Config.Compliance.AutoScan {
		t.Error("boolean flags not applied")
	}
	if strings.Join(engine.Config.Compliance.Standards, ",") != "HIPAA,SOC2" {
		t.Errorf("standards = %v", engine.Config.Compliance.Standards)
	}
	if engine.Config.LogLevel() != "debug" {
		t.Errorf("log level = %q, want debug", engine.Config.LogLevel())
	}
}

func TestReloadConfig_NoChanges(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	// A file matching the current config produces no change entries.
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveConfig(DefaultConfig(), path); err != nil {
		t.Fatal(err)
	}

	changes, err := ReloadConfig(engine, path)
	if err != nil {
		t.Fatalf("ReloadConfig: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("changes = %v, want none", changes)
	}
}

func TestReloadConfig_InvalidFileLeavesConfigUntouched(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	path := writeConfigFile(t, "detection:\n  confidence_threshold: 7.5\n")

	if _, err := ReloadConfig(engine, path); err == nil {
		t.Fatal("expected validation error")
	}
	if engine.Config.Detection.ConfidenceThreshold != 0.85 {
		t.Errorf("threshold mutated to %v on failed reload", engine.Config.Detection.ConfidenceThreshold)
	}
}

func TestReloadConfig_ConcurrentReaders(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	// Two files that differ in every hot setting, so every reload writes.
	pathA := writeConfigFile(t, `
detection:
  confidence_threshold: 0.6
  auto_response: true
compliance:
  auto_scan: true
  standards: [HIPAA]
logging:
  level: debug
`)
	pathB := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveConfig(DefaultConfig(), pathB); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			_ = engine.Config.DetectionThreshold()
			_ = engine.Config.AutoResponseEnabled()
			_ = engine.Config.AutoScanEnabled()
			_ = engine.Config.ScanStandards()
			_ = engine.Config.LogLevel()
		}
	}()

	for i := 0; i < 50; i++ {
		path := pathA
		if i%2 == 1 {
			path = pathB
		}
		if _, err := ReloadConfig(engine, path); err != nil {
			t.Fatalf("reload %d: %v", i, err)
		}
	}
	close(done)
	wg.Wait()

	if got := engine.Config.DetectionThreshold(); got != 0.85 {
		t.Errorf("threshold = %v, want 0.85 after final reload", got)
	}
}

func TestReloadConfig_EmptyPath(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ReloadConfig(engine, ""); err == nil {
		t.Error("expected error for empty path")
	}
}
