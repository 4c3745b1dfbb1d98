package state

import (
	"sync"
	"testing"
)

func TestMemoryManagerDefaultsToIdle(t *testing.T) {
	m := NewMemoryManager()
	if got := m.GetState(1); got != StateIdle {
		t.Fatalf("missing entry state = %q, want %q", got, StateIdle)
	}
	if m.InProgress(1) {
		t.Fatal("unknown user must not be in progress")
	}
}

func TestMemoryManagerSetClear(t *testing.T) {
	const awaiting State = "awaiting_token"

	m := NewMemoryManager()
	m.SetState(7, awaiting)
	if got := m.GetState(7); got != awaiting {
		t.Fatalf("state = %q, want %q", got, awaiting)
	}
	if !m.InProgress(7) {
		t.Fatal("expected active state")
	}

	m.ClearState(7)
	if got := m.GetState(7); got != StateIdle {
		t.Fatalf("state after clear = %q, want %q", got, StateIdle)
	}
	if m.InProgress(7) {
		t.Fatal("cleared user must not be in progress")
	}
}

func TestMemoryManagerSettingIdleClears(t *testing.T) {
	const awaiting State = "awaiting_token"

	m := NewMemoryManager()
	m.SetState(7, awaiting)
	m.SetState(7, StateIdle)
	if m.InProgress(7) {
		t.Fatal("user set to idle must not be in progress")
	}
}

func TestMemoryManagerUsersAreIsolated(t *testing.T) {
	const awaiting State = "awaiting_token"

	m := NewMemoryManager()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.SetState(100, awaiting)
		}()
		go func() {
			defer wg.Done()
			m.ClearState(200)
		}()
	}
	wg.Wait()

	if got := m.GetState(100); got != awaiting {
		t.Fatalf("user 100 state = %q, want %q", got, awaiting)
	}
	if got := m.GetState(200); got != StateIdle {
		t.Fatalf("user 200 state = %q, want %q", got, StateIdle)
	}
}
