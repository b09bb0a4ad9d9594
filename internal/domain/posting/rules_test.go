package posting

import (
	"context"
	"testing"
	"time"
)

func TestCachedRuleSourceCachesLookups(t *testing.T) {
	inner := &mockRules{forwardable: map[string]bool{"PR:1": true}}
	cached := NewCachedRuleSource(inner, time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := cached.IsForwardable(context.Background(), GroupPR, "1")
		if err != nil {
			t.Fatalf("IsForwardable: %v", err)
		}
		if !ok {
			t.Fatal("expected forwardable")
		}
	}
	if inner.lookups != 1 {
		t.Errorf("inner lookups = %d, want 1", inner.lookups)
	}
}

func TestCachedRuleSourceCachesNegatives(t *testing.T) {
	inner := &mockRules{forwardable: map[string]bool{}}
	cached := NewCachedRuleSource(inner, time.Minute)

	for i := 0; i < 2; i++ {
		ok, err := cached.IsForwardable(context.Background(), GroupCO, "45")
		if err != nil {
			t.Fatalf("IsForwardable: %v", err)
		}
		if ok {
			t.Fatal("expected not forwardable")
		}
	}
	if inner.lookups != 1 {
		t.Errorf("inner lookups = %d, want 1", inner.lookups)
	}
}

func TestCachedRuleSourceInvalidate(t *testing.T) {
	inner := &mockRules{forwardable: map[string]bool{"PR:2": true}}
	cached := NewCachedRuleSource(inner, time.Minute)

	if _, err := cached.IsForwardable(context.Background(), GroupPR, "2"); err != nil {
		t.Fatal(err)
	}
	cached.Invalidate()
	if _, err := cached.IsForwardable(context.Background(), GroupPR, "2"); err != nil {
		t.Fatal(err)
	}
	if inner.lookups != 2 {
		t.Errorf("inner lookups = %d, want 2 after invalidate", inner.lookups)
	}
}
