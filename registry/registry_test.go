package registry

import (
	"testing"
	"time"

	"github.com/VishwajeetSinghParihar750/slabAllocator"
)

func TestCreateLookupDestroy(t *testing.T) {
	r := New()

	c, err := r.Create("widgets", 32)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok := r.Lookup("widgets")
	if !ok || got != c {
		t.Fatalf("Lookup = (%p, %v), want (%p, true)", got, ok, c)
	}

	if err := r.Destroy("widgets"); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if _, ok := r.Lookup("widgets"); ok {
		t.Fatal("Lookup succeeded after Destroy")
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	r := New()
	if _, err := r.Create("widgets", 32); err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer r.Destroy("widgets")

	if _, err := r.Create("widgets", 32); err != slab.ErrNameExists {
		t.Fatalf("second Create for the same name = %v, want ErrNameExists", err)
	}
}

func TestDestroyUnknownNameFails(t *testing.T) {
	r := New()
	if err := r.Destroy("missing"); err != slab.ErrNameNotFound {
		t.Fatalf("Destroy(missing) = %v, want ErrNameNotFound", err)
	}
}

func TestDestroyFailsWithOutstandingObjects(t *testing.T) {
	r := New()
	c, err := r.Create("widgets", 32)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	obj, err := c.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	if err := r.Destroy("widgets"); err != slab.ErrDestroyNotEmpty {
		t.Fatalf("Destroy with an outstanding object = %v, want ErrDestroyNotEmpty", err)
	}

	c.Free(obj)
	if err := r.Destroy("widgets"); err != nil {
		t.Fatalf("Destroy after freeing everything: %v", err)
	}
}

func TestNameIsReusableAfterDestroy(t *testing.T) {
	r := New()
	if _, err := r.Create("widgets", 32); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if err := r.Destroy("widgets"); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := r.Create("widgets", 48); err != nil {
		t.Fatalf("Create after Destroy: %v", err)
	}
	if err := r.Destroy("widgets"); err != nil {
		t.Fatalf("final Destroy: %v", err)
	}
}

func TestFailureGuardPersistsAcrossSlotRecycling(t *testing.T) {
	r := New()

	if _, err := r.Create("widgets", 32); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Destroy("widgets"); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	// The slot for "widgets" was just released and will be handed back
	// out (with a fresh entry) by the next reserveSlot call. The guard must not
	// live on that slot, or this failure history would already be gone.
	g := r.guards["widgets"]
	if g == nil {
		t.Fatal("expected a guard to persist for \"widgets\" after Destroy")
	}
	now := time.Now()
	for i := 0; i < defaultFailureThreshold; i++ {
		g.recordFailure(now)
	}

	if _, err := r.Create("widgets", 32); err != slab.ErrCacheUnavailable {
		t.Fatalf("Create after tripping the guard = %v, want ErrCacheUnavailable", err)
	}
}

func TestReservedSlotsAreRecycled(t *testing.T) {
	r := New()

	for i := 0; i < 5; i++ {
		if _, err := r.Create("scratch", 32); err != nil {
			t.Fatalf("round %d Create: %v", i, err)
		}
		if err := r.Destroy("scratch"); err != nil {
			t.Fatalf("round %d Destroy: %v", i, err)
		}
	}

	if got := len(r.slots); got > 1 {
		t.Fatalf("len(slots) = %d after repeated create/destroy of one name, want the single slot to be recycled", got)
	}
}
