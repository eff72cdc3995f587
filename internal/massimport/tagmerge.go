package massimport

// TagMergeDelta partitions an incoming tag set against an existing one.
// Every incoming key lands in exactly one of the three buckets, and no key
// ever disappears from the existing record through a merge.
type TagMergeDelta struct {
	Added        map[string]string `json:"added"`
	KeptExisting map[string]string `json:"kept_existing"`
	Unchanged    map[string]string `json:"unchanged"`
}

// HasAdditions reports whether applying the delta would change the record.
func (d TagMergeDelta) HasAdditions() bool {
	return len(d.Added) > 0
}

// MergeTags computes the non-destructive merge of incoming tags into an
// existing record's tag set. New keys are added; keys whose normalized values
// already agree are no-ops; on conflict the existing value is authoritative
// and the incoming one is discarded (surfaced in KeptExisting so callers can
// log it, never silently dropped). Pure function, no I/O.
func MergeTags(existing, incoming map[string]string) TagMergeDelta {
	delta := TagMergeDelta{
		Added:        map[string]string{},
		KeptExisting: map[string]string{},
		Unchanged:    map[string]string{},
	}

	for key, incomingValue := range incoming {
		existingValue, present := existing[key]
		switch {
		case !present:
			delta.Added[key] = incomingValue
		case NormalizeText(existingValue) == NormalizeText(incomingValue):
			delta.Unchanged[key] = existingValue
		default:
			delta.KeptExisting[key] = existingValue
		}
	}
	return delta
}
