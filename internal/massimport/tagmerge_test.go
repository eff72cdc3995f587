package massimport

import (
	"reflect"
	"testing"
)

func TestMergeTags_NewKeyAdded(t *testing.T) {
	t.Parallel()

	existing := map[string]string{"material": "aluminum"}
	incoming := map[string]string{"technique": "metal fabrication"}

	delta := MergeTags(existing, incoming)
	if !reflect.DeepEqual(delta.Added, map[string]string{"technique": "metal fabrication"}) {
		t.Fatalf("unexpected added: %v", delta.Added)
	}
	if len(delta.Unchanged) != 0 || len(delta.KeptExisting) != 0 {
		t.Fatalf("expected only additions, got %+v", delta)
	}
}

func TestMergeTags_IdenticalValueUnchanged(t *testing.T) {
	t.Parallel()

	delta := MergeTags(
		map[string]string{"material": "aluminum"},
		map[string]string{"material": "Aluminum"},
	)
	if !reflect.DeepEqual(delta.Unchanged, map[string]string{"material": "aluminum"}) {
		t.Fatalf("normalized-equal values must be unchanged: %+v", delta)
	}
	if delta.HasAdditions() {
		t.Fatalf("identical merge must not produce additions")
	}
}

func TestMergeTags_ConflictKeepsExisting(t *testing.T) {
	t.Parallel()

	delta := MergeTags(
		map[string]string{"material": "aluminum"},
		map[string]string{"material": "bronze"},
	)
	if !reflect.DeepEqual(delta.KeptExisting, map[string]string{"material": "aluminum"}) {
		t.Fatalf("existing value must win conflicts: %+v", delta)
	}
	if len(delta.Added) != 0 || len(delta.Unchanged) != 0 {
		t.Fatalf("conflicting key must land only in kept_existing: %+v", delta)
	}
}

func TestMergeTags_EveryIncomingKeyInExactlyOneBucket(t *testing.T) {
	t.Parallel()

	existing := map[string]string{
		"material":    "aluminum",
		"artist_name": "jacques huet",
		"start_date":  "1986",
	}
	incoming := map[string]string{
		"material":     "bronze",            // conflict
		"artist_name":  "Jacques Huet",      // normalized-equal
		"technique":    "metal fabrication", // new
		"artwork_type": "sculpture",         // new
	}

	delta := MergeTags(existing, incoming)
	for key := range incoming {
		buckets := 0
		if _, ok := delta.Added[key]; ok {
			buckets++
		}
		if _, ok := delta.KeptExisting[key]; ok {
			buckets++
		}
		if _, ok := delta.Unchanged[key]; ok {
			buckets++
		}
		if buckets != 1 {
			t.Fatalf("key %q appears in %d buckets, want exactly 1: %+v", key, buckets, delta)
		}
	}

	// Applying the delta must never lose an existing key.
	merged := map[string]string{}
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range delta.Added {
		merged[k] = v
	}
	for k, v := range existing {
		if merged[k] != v {
			t.Fatalf("existing key %q changed from %q to %q", k, v, merged[k])
		}
	}
}

func TestMergeTags_EmptyInputs(t *testing.T) {
	t.Parallel()

	delta := MergeTags(nil, nil)
	if delta.HasAdditions() || len(delta.Unchanged) != 0 || len(delta.KeptExisting) != 0 {
		t.Fatalf("nil maps must yield an empty delta: %+v", delta)
	}

	delta = MergeTags(nil, map[string]string{"a": "1"})
	if !reflect.DeepEqual(delta.Added, map[string]string{"a": "1"}) {
		t.Fatalf("everything is an addition against an empty record: %+v", delta)
	}
}
