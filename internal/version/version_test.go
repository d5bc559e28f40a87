package version

import "testing"

func TestShortCommit(t *testing.T) {
	t.Parallel()

	if got := shortCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("shortCommit: got %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Fatalf("shortCommit short: got %q", got)
	}
}

func TestResolveNeverEmpty(t *testing.T) {
	t.Parallel()

	if Resolve().Version == "" {
		t.Fatal("Resolve returned empty version")
	}
	if String() == "" {
		t.Fatal("String returned empty version")
	}
}
