// Package reconcile diffs recent observations against the user's life list
// and ranks the new species by how rarely they appear in the current batch.
package reconcile

import (
	"sort"

	"github.com/tphakala/birdalert-go/internal/ebird"
	"github.com/tphakala/birdalert-go/internal/lists"
)

// DefaultMaxDisplay caps the ranked output length unless configured otherwise.
const DefaultMaxDisplay = 10

// Entry is one observation of a species that is not on the life list.
// Rarity is the number of observations of the same species within the
// current batch: fewer local sightings rank first. This is a per-batch
// measure, not a global rarity statistic; a species rare globally but
// well-reported in this one batch still ranks as common here.
type Entry struct {
	CommonName     string
	ScientificName string
	Location       string
	Date           string
	Count          string
	LocationID     string
	Rarity         int
}

// Engine computes the ranked set difference.
type Engine struct {
	MaxDisplay int
}

// New returns an Engine with the default display cap.
func New() *Engine {
	return &Engine{MaxDisplay: DefaultMaxDisplay}
}

// Reconcile filters observations already on the reference set, counts the
// remaining records per species, and returns them ordered by ascending
// batch frequency, then ascending common name. Records with an empty
// scientific name are dropped silently. Truncation to MaxDisplay happens
// only after the full sort.
func (e *Engine) Reconcile(observations []ebird.Observation, reference lists.ReferenceSet) []Entry {
	entries := make([]Entry, 0, len(observations))
	frequency := make(map[string]int)

	for i := range observations {
		obs := &observations[i]
		if obs.ScientificName == "" {
			continue
		}
		if reference.Contains(obs.ScientificName) {
			continue
		}
		frequency[obs.ScientificName]++
		entries = append(entries, Entry{
			CommonName:     obs.CommonName,
			ScientificName: obs.ScientificName,
			Location:       obs.LocationName,
			Date:           obs.ObservationDate,
			Count:          obs.CountLabel(),
			LocationID:     obs.LocationID,
		})
	}

	for i := range entries {
		entries[i].Rarity = frequency[entries[i].ScientificName]
	}

	// Total order independent of input order: frequency, then common name,
	// with scientific name, location and date as final keys so duplicate
	// sightings of one species also land in a deterministic order.
	sort.Slice(entries, func(i, j int) bool {
		a, b := &entries[i], &entries[j]
		if a.Rarity != b.Rarity {
			return a.Rarity < b.Rarity
		}
		if a.CommonName != b.CommonName {
			return a.CommonName < b.CommonName
		}
		if a.ScientificName != b.ScientificName {
			return a.ScientificName < b.ScientificName
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.Date < b.Date
	})

	maxDisplay := e.MaxDisplay
	if maxDisplay <= 0 {
		maxDisplay = DefaultMaxDisplay
	}
	if len(entries) > maxDisplay {
		entries = entries[:maxDisplay]
	}

	return entries
}
