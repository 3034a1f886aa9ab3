package coordinator

import (
	"sync"
	"testing"
)

func TestCancelRegistryLifecycle(t *testing.T) {
	r := NewCancelRegistry()

	flag := r.Register("177013")
	if flag.IsSet() {
		t.Error("freshly registered flag is already set")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	if !r.RequestCancel("177013") {
		t.Error("RequestCancel for a registered id returned false")
	}
	if !flag.IsSet() {
		t.Error("flag not set after RequestCancel")
	}
	if !r.IsCancelled("177013") {
		t.Error("IsCancelled returned false after RequestCancel")
	}

	r.Unregister("177013")
	if r.Len() != 0 {
		t.Errorf("Len() after Unregister = %d, want 0", r.Len())
	}
	if r.IsCancelled("177013") {
		t.Error("IsCancelled true after Unregister")
	}
}

func TestCancelRegistryUnknownID(t *testing.T) {
	r := NewCancelRegistry()
	if r.RequestCancel("999") {
		t.Error("RequestCancel for an unknown id returned true")
	}
	if r.IsCancelled("999") {
		t.Error("IsCancelled for an unknown id returned true")
	}
	// Unregistering an absent id must be a no-op.
	r.Unregister("999")
}

func TestCancelRequestIdempotent(t *testing.T) {
	r := NewCancelRegistry()
	flag := r.Register("410")

	for i := 0; i < 3; i++ {
		if !r.RequestCancel("410") {
			t.Errorf("RequestCancel call %d returned false", i)
		}
	}
	if !flag.IsSet() {
		t.Error("flag not set after repeated RequestCancel")
	}
}

func TestCancelFlagNilSafe(t *testing.T) {
	var flag *CancelFlag
	if flag.IsSet() {
		t.Error("nil flag reports set")
	}
}

func TestCancelRegistryConcurrent(t *testing.T) {
	r := NewCancelRegistry()
	flag := r.Register("52110")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RequestCancel("52110")
		}()
	}
	wg.Wait()

	if !flag.IsSet() {
		t.Error("flag not set after concurrent cancels")
	}
}
