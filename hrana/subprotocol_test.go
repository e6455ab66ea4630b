package hrana

import "testing"

func TestNegotiatePrefersVersion2(t *testing.T) {
	t.Parallel()

	v, ok := Negotiate([]string{"hrana1", "hrana2"})
	if !ok || v != Version2 {
		t.Fatalf("want hrana2, got %q ok=%v", v, ok)
	}
}

func TestNegotiateFallsBackToVersion1(t *testing.T) {
	t.Parallel()

	v, ok := Negotiate([]string{"hrana1"})
	if !ok || v != Version1 {
		t.Fatalf("want hrana1, got %q ok=%v", v, ok)
	}
}

func TestNegotiateNoMatch(t *testing.T) {
	t.Parallel()

	_, ok := Negotiate([]string{"graphql-ws"})
	if ok {
		t.Fatal("expected no match")
	}
}

func TestVersionSurfaceDifferences(t *testing.T) {
	t.Parallel()

	if !Version1.allowsExecuteHooks() {
		t.Fatal("hrana1 must allow execute hooks")
	}
	if Version2.allowsExecuteHooks() {
		t.Fatal("hrana2 must not allow execute hooks on a bare execute request")
	}
	if !Version1.absoluteStepIndexing() {
		t.Fatal("hrana1 must use absolute step indexing")
	}
	if Version2.absoluteStepIndexing() {
		t.Fatal("hrana2 must use count-of-type indexing")
	}
}
