package db

import (
	"encoding/json"
	"testing"
)

func TestPoolStatsJSONShape(t *testing.T) {
	stats := PoolStats{
		TotalConns:      4,
		IdleConns:       2,
		AcquiredConns:   2,
		MaxConns:        8,
		AcquireCount:    100,
		AcquireDuration: "250ms",
		Healthy:         true,
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{
		"totalConns", "idleConns", "acquiredConns", "maxConns",
		"acquireCount", "acquireDuration", "healthy",
	} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing %q in %s", key, raw)
		}
	}
	if decoded["healthy"] != true {
		t.Errorf("healthy = %v, want true", decoded["healthy"])
	}
}
