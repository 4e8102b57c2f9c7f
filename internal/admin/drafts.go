package admin

import (
	"slices"
	"sync"

	"ato_site/internal/models"
)

// drafts holds one roster edit buffer per admin session.
type drafts struct {
	mu   sync.Mutex
	byID map[string][]models.ExecMember
}

func newDrafts() *drafts {
	return &drafts{byID: map[string][]models.ExecMember{}}
}

func (d *drafts) put(session string, members []models.ExecMember) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[session] = slices.Clone(members)
}

func (d *drafts) get(session string) ([]models.ExecMember, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	members, ok := d.byID[session]
	return slices.Clone(members), ok
}

// update applies fn to the draft of session under the lock.
func (d *drafts) update(session string, fn func([]models.ExecMember) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	members, ok := d.byID[session]
	if !ok {
		return ErrNotEditing
	}
	return fn(members)
}

func (d *drafts) drop(session string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byID, session)
}
