package massimport

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DataSourceMapper adapts one external open-data format into import
// candidates. Implementations are pure: they parse, they never fetch.
type DataSourceMapper interface {
	// Name is the registry key, e.g. "vancouver-public-art".
	Name() string
	// MapData parses a raw source export into candidates, stamping each with
	// the batch ID.
	MapData(raw json.RawMessage, batchID string) ([]Candidate, error)
	// GenerateImportID derives the stable sourceID for an external record
	// identifier; idempotent re-import detection keys on it.
	GenerateImportID(externalID string) string
	// ValidateBounds reports whether a coordinate pair is plausible for this
	// source's coverage area, catching lat/lon swaps and projection bugs.
	ValidateBounds(loc LatLon) bool
}

// Registry maps source names to mappers. It is plain injected state, never a
// process-wide singleton, so tests can swap implementations freely.
type Registry struct {
	mappers map[string]DataSourceMapper
}

func NewRegistry(mappers ...DataSourceMapper) *Registry {
	r := &Registry{mappers: make(map[string]DataSourceMapper, len(mappers))}
	for _, m := range mappers {
		r.mappers[m.Name()] = m
	}
	return r
}

func (r *Registry) Lookup(name string) (DataSourceMapper, error) {
	if r == nil {
		return nil, fmt.Errorf("mapper registry is not initialized")
	}
	m, ok := r.mappers[name]
	if !ok {
		return nil, fmt.Errorf("unknown data source %q (known: %v)", name, r.Names())
	}
	return m, nil
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.mappers))
	for name := range r.mappers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
