// Package recordstore holds the identifier → record map owned by one batch run.
package recordstore

import "github.com/starford/tramite/internal/models"

// Store keeps records keyed by identifier in first-insertion order.
// It is not safe for concurrent mutation; a batch run owns it exclusively.
type Store struct {
	byID  map[string]*models.Record
	order []string
}

// New creates an empty Store.
func New() *Store {
	return &Store{byID: make(map[string]*models.Record)}
}

// Upsert inserts rec, or merges it into the record already stored under the
// same identifier. Merging is last-write-wins per provided field: non-empty
// fields of rec override, empty ones leave the stored value untouched.
// It reports whether a merge happened.
func (s *Store) Upsert(rec *models.Record) bool {
	existing, ok := s.byID[rec.ID]
	if !ok {
		s.byID[rec.ID] = rec
		s.order = append(s.order, rec.ID)
		return false
	}
	merge(existing, rec)
	return true
}

// Get returns the record stored under id.
func (s *Store) Get(id string) (*models.Record, bool) {
	rec, ok := s.byID[id]
	return rec, ok
}

// Has reports whether id is known.
func (s *Store) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	return len(s.order)
}

// IDs returns identifiers in first-insertion order.
func (s *Store) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// All returns records in first-insertion order.
func (s *Store) All() []*models.Record {
	out := make([]*models.Record, len(s.order))
	for i, id := range s.order {
		out[i] = s.byID[id]
	}
	return out
}

func merge(dst, src *models.Record) {
	setString(&dst.Type, src.Type)
	setString(&dst.Subject, src.Subject)
	setString(&dst.Author, src.Author)
	setString(&dst.PresentedAt, src.PresentedAt)
	setString(&dst.QualifiedAt, src.QualifiedAt)
	setString(&dst.Status, src.Status)
	setString(&dst.Result, src.Result)
	setString(&dst.Committee, src.Committee)
	setString(&dst.Legislature, src.Legislature)
	setString(&dst.Source, src.Source)
	if src.Procedure != "" {
		dst.Procedure = src.Procedure
		dst.Timeline = src.Timeline
	}
	setStrings(&dst.BulletinURLs, src.BulletinURLs)
	setStrings(&dst.Related, src.Related)
	setStrings(&dst.Origin, src.Origin)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setStrings(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}
