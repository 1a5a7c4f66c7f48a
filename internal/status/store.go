package status

import (
	"context"

	"github.com/rotisserie/eris"
)

// LeadStatusStore is the slice of store.Store that StoreUpdater needs.
type LeadStatusStore interface {
	UpdateLeadStatus(ctx context.Context, leadID string, fields map[string]any) error
}

// StoreUpdater writes status into the triage database.
type StoreUpdater struct {
	store LeadStatusStore
}

// NewStoreUpdater creates a StoreUpdater.
func NewStoreUpdater(s LeadStatusStore) *StoreUpdater {
	return &StoreUpdater{store: s}
}

// Update implements Updater.
func (u *StoreUpdater) Update(ctx context.Context, leadID string, fields map[string]any) error {
	if leadID == "" {
		return eris.New("status: lead id is required")
	}
	return eris.Wrap(u.store.UpdateLeadStatus(ctx, leadID, fields), "status: store update")
}
