package insights

import (
	"context"
	"fmt"

	"github.com/xowlabs/expopulse/pkg/logging"
	"github.com/xowlabs/expopulse/pkg/recordings"
)

// Store is the subset of the recordings repository the service reads.
type Store interface {
	List(ctx context.Context, filter recordings.ListFilter) ([]*recordings.Recording, error)
	ListBadgesByRecordings(ctx context.Context, recordingIDs []string) (map[string][]*recordings.VisitorBadge, error)
}

// Service produces dashboard aggregates from persisted state.
type Service struct {
	store  Store
	logger logging.Logger
}

// NewService creates a Service. A nil logger falls back to the nop logger.
func NewService(store Store, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		store:  store,
		logger: logger.With(logging.F("component", "insights")),
	}
}

// dashboardFetchLimit bounds how many recordings feed one aggregation pass.
const dashboardFetchLimit = 1000

// Dashboard fetches all recordings and their badges in two queries and
// aggregates them in memory.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	recs, err := s.store.List(ctx, recordings.ListFilter{Limit: dashboardFetchLimit})
	if err != nil {
		return nil, fmt.Errorf("fetch recordings for dashboard: %w", err)
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}

	badgesByRecording, err := s.store.ListBadgesByRecordings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch badges for dashboard: %w", err)
	}

	d := Aggregate(recs, badgesByRecording)
	s.logger.Debug("dashboard aggregated",
		logging.F("recordings", d.TotalRecordings),
		logging.F("visitors", d.TotalVisitors))
	return d, nil
}
