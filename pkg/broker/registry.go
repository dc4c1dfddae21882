package broker

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/handoff-sh/handoff/pkg/escalation"
)

// Registry is the in-memory store of escalation records, keyed by id. It is
// the single source of truth for escalation status. All read-modify-write
// sequences (resolve, delete) are atomic under the registry lock so two
// concurrent resolutions of the same escalation cannot both succeed.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*escalation.Record
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*escalation.Record)}
}

// Insert stores a freshly created record. The caller guarantees id uniqueness
// (ids are uuids allocated by the broker).
func (r *Registry) Insert(rec *escalation.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec.Clone()
}

// Get returns a copy of the record or ErrNotFound.
func (r *Registry) Get(id string) (*escalation.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return rec.Clone(), nil
}

// ListPending returns all pending records ordered by urgency rank ascending
// (critical first), ties broken by earlier creation time. This ordering is a
// display contract for operators, not a delivery contract.
func (r *Registry) ListPending() []*escalation.Record {
	r.mu.RLock()
	pending := make([]*escalation.Record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.Status == escalation.StatusPending {
			pending = append(pending, rec.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(pending, func(i, j int) bool {
		ri, rj := pending[i].Urgency.Rank(), pending[j].Urgency.Rank()
		if ri != rj {
			return ri < rj
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

// Resolve flips a pending record to resolved, setting the human response and
// resolution time. Returns ErrNotFound for unknown ids and ErrConflict when
// the record was already resolved. The check and the mutation happen under
// one lock acquisition.
func (r *Registry) Resolve(id, response string, now time.Time) (*escalation.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	if rec.Status != escalation.StatusPending {
		return nil, errors.Wrapf(ErrConflict, "escalation %s already resolved", id)
	}

	rec.Status = escalation.StatusResolved
	rec.HumanResponse = response
	rec.ResolvedAt = &now
	return rec.Clone(), nil
}

// Delete removes a record that is still pending. Resolved records are
// immutable history and deleting them returns ErrConflict.
func (r *Registry) Delete(id string) (*escalation.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	if rec.Status != escalation.StatusPending {
		return nil, errors.Wrapf(ErrConflict, "escalation %s is resolved and cannot be deleted", id)
	}

	delete(r.records, id)
	return rec.Clone(), nil
}

// Len returns the number of stored records, pending and resolved.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
