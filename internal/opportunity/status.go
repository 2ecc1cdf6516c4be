package opportunity

import (
	"context"
	"errors"
	"fmt"

	"github.com/abelbrown/viralengine/internal/logging"
	"github.com/abelbrown/viralengine/internal/model"
	"github.com/abelbrown/viralengine/internal/store"
)

// ErrInvalidStatus rejects a lifecycle transition the opportunity does not
// allow.
var ErrInvalidStatus = errors.New("invalid opportunity status transition")

// SetStatus moves an opportunity to status to. It fails with
// ErrInvalidStatus when the lifecycle forbids the move and with
// store.ErrConflict when another writer changed the status first.
func (b *Builder) SetStatus(ctx context.Context, id string, to model.OpportunityStatus) (model.Opportunity, error) {
	opp, err := b.store.GetOpportunity(ctx, id)
	if err != nil {
		return model.Opportunity{}, err
	}
	if !opp.Status.CanTransition(to) {
		return model.Opportunity{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, opp.Status, to)
	}

	now := b.now()
	if err := b.store.UpdateOpportunityStatus(ctx, id, opp.Status, to, now); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.Opportunity{}, fmt.Errorf("opportunity %s changed concurrently: %w", id, err)
		}
		return model.Opportunity{}, err
	}
	logging.Info("opportunity status changed", "id", id, "from", opp.Status, "to", to)

	opp.Status = to
	opp.UpdatedAt = now
	return opp, nil
}

// Get returns one opportunity.
func (b *Builder) Get(ctx context.Context, id string) (model.Opportunity, error) {
	return b.store.GetOpportunity(ctx, id)
}

// List returns opportunities matching f, best first. An empty result is not
// an error.
func (b *Builder) List(ctx context.Context, f store.OpportunityFilter) ([]model.Opportunity, error) {
	return b.store.ListOpportunities(ctx, f)
}
