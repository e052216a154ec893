package config

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSafeConfig_ThreadSafety(t *testing.T) {
	baseConfig := Default()
	baseConfig.Reader.HistorySize = 100

	safeConfig := NewSafeConfig(baseConfig)

	const numGoroutines = 100
	const numOperations = 1000

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)

	// Start multiple goroutines doing concurrent reads
	for i := 0; i < numGoroutines/2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				cfg := safeConfig.Get()
				if cfg == nil {
					errs <- fmt.Errorf("got nil config")
					return
				}
				if cfg.Reader.HistorySize != 100 && cfg.Reader.HistorySize != 200 {
					errs <- fmt.Errorf("unexpected history size: %d", cfg.Reader.HistorySize)
					return
				}
			}
		}()
	}

	// Start multiple goroutines doing concurrent updates
	for i := 0; i < numGoroutines/2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numOperations/10; j++ {
				newConfig := Default()
				newConfig.Reader.HistorySize = 200
				if err := safeConfig.Update(newConfig); err != nil {
					errs <- fmt.Errorf("update failed: %w", err)
					return
				}
			}
		}()
	}

	done := make(chan bool)
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(errs)
		for err := range errs {
			t.Fatalf("Concurrent access error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Test timed out - possible deadlock")
	}
}

func TestSafeConfig_NilHandling(t *testing.T) {
	safeConfig := NewSafeConfig(nil)

	cfg := safeConfig.Get()
	if cfg == nil {
		t.Fatal("SafeConfig.Get() should not return nil even with nil base config")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}

	if err := safeConfig.Update(nil); err == nil {
		t.Error("SafeConfig.Update(nil) should return an error")
	}
}

func TestSafeConfig_ValidationDuringUpdate(t *testing.T) {
	safeConfig := NewSafeConfig(Default())

	invalidConfig := Default()
	invalidConfig.Reader.ReadMode = "sideways"

	if err := safeConfig.Update(invalidConfig); err == nil {
		t.Error("Update with invalid config should fail validation")
	}

	// Original config should remain unchanged
	if cfg := safeConfig.Get(); cfg.Reader.ReadMode != "scaled" {
		t.Error("Original config was modified after failed update")
	}
}

func TestSafeConfig_CopiesAreIndependent(t *testing.T) {
	base := Default()
	safeConfig := NewSafeConfig(base)

	cfg1 := safeConfig.Get()
	cfg2 := safeConfig.Get()
	cfg1.Reader.HistorySize = 1

	if cfg2.Reader.HistorySize != 1024 {
		t.Error("cfg2 was affected by cfg1 modification")
	}

	base.Reader.HistorySize = 2
	if safeConfig.Get().Reader.HistorySize != 1024 {
		t.Error("stored config aliases the caller's value")
	}
}

func TestSafeConfig_UpdateStoresCopy(t *testing.T) {
	safeConfig := NewSafeConfig(nil)

	next := Default()
	next.Reader.HistorySize = 64
	if err := safeConfig.Update(next); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	next.Reader.HistorySize = 8
	if got := safeConfig.Get().Reader.HistorySize; got != 64 {
		t.Errorf("HistorySize = %d after caller edit, want 64", got)
	}
}

func TestConfigClone(t *testing.T) {
	var nilConfig *Config
	if nilConfig.Clone() == nil {
		t.Error("Clone of nil should return empty config, not nil")
	}

	cfg := Default()
	clone := cfg.Clone()
	cfg.Logging.Level = "debug"
	if clone.Logging.Level != "info" {
		t.Error("Clone was affected by original modification")
	}
}
