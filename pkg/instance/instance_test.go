package instance

import "testing"

func TestNodeIDFromEnv(t *testing.T) {
	t.Setenv(nodeEnv, "42")
	if got := NodeID(); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestNodeIDFromWorkerSuffix(t *testing.T) {
	t.Setenv(nodeEnv, "")
	t.Setenv(idEnv, "cron-worker-7")
	if got := NodeID(); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestNodeIDHashedInRange(t *testing.T) {
	for _, id := range []string{"api", "api-abc", "pod-99999"} {
		n := nodeFromID(id)
		if n < 0 || n > maxNode {
			t.Fatalf("%s: node %d out of range", id, n)
		}
		if n != nodeFromID(id) {
			t.Fatalf("%s: node id must be stable", id)
		}
	}
}

func TestGetIDDefault(t *testing.T) {
	t.Setenv(idEnv, "")
	if got := GetID(); got != "worker-0" {
		t.Fatalf("unexpected default %q", got)
	}
}
