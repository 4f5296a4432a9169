package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/xowlabs/expopulse/pkg/insights"
	"github.com/xowlabs/expopulse/pkg/logging"
	"github.com/xowlabs/expopulse/pkg/recordings"
)

// InsightsProvider produces the aggregated dashboard view.
// *insights.Service satisfies it.
type InsightsProvider interface {
	Dashboard(ctx context.Context) (*insights.Dashboard, error)
}

// DashboardStore is the read surface backing the dashboard list views.
// *recordings.Repository satisfies it.
type DashboardStore interface {
	List(ctx context.Context, filter recordings.ListFilter) ([]*recordings.Recording, error)
	CountScansByRecordings(ctx context.Context, recordingIDs []string) (map[string]int, error)
	ListBadgesByRecordings(ctx context.Context, recordingIDs []string) (map[string][]*recordings.VisitorBadge, error)
}

// DashboardHandler serves the expo-floor dashboard read models.
type DashboardHandler struct {
	provider InsightsProvider
	store    DashboardStore
	logger   logging.Logger
}

// NewDashboardHandler creates the dashboard handler.
func NewDashboardHandler(provider InsightsProvider, store DashboardStore, logger logging.Logger) *DashboardHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DashboardHandler{
		provider: provider,
		store:    store,
		logger:   logger.With(logging.F("component", "dashboard_handler")),
	}
}

// Insights returns the aggregated totals, top topics and questions, and
// recent activity.
func (h *DashboardHandler) Insights(c *fiber.Ctx) error {
	dash, err := h.provider.Dashboard(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dash)
}

// recordingListItem is one row of the dashboard recording table.
type recordingListItem struct {
	*recordings.Recording
	ScanCount int `json:"scan_count"`
}

// Recordings returns recent recordings annotated with their badge scan
// counts, fetched in one batched query.
func (h *DashboardHandler) Recordings(c *fiber.Ctx) error {
	limit := clampLimit(c.QueryInt("limit", defaultListLimit))
	recs, err := h.store.List(c.Context(), recordings.ListFilter{Limit: limit})
	if err != nil {
		return respondError(c, err)
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	counts, err := h.store.CountScansByRecordings(c.Context(), ids)
	if err != nil {
		return respondError(c, err)
	}

	items := make([]recordingListItem, len(recs))
	for i, rec := range recs {
		items[i] = recordingListItem{Recording: rec, ScanCount: counts[rec.ID]}
	}
	return c.JSON(fiber.Map{
		"recordings": items,
		"count":      len(items),
	})
}

// visitorListItem is one visitor badge joined with its recording context.
type visitorListItem struct {
	*recordings.VisitorBadge
	Expo  string `json:"expo,omitempty"`
	Booth string `json:"booth,omitempty"`
}

// Visitors returns the badges from recently processed recordings, newest
// recording first.
func (h *DashboardHandler) Visitors(c *fiber.Ctx) error {
	limit := clampLimit(c.QueryInt("limit", defaultListLimit))
	recs, err := h.store.List(c.Context(), recordings.ListFilter{
		Status: recordings.StatusProcessed,
		Limit:  limit,
	})
	if err != nil {
		return respondError(c, err)
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	badgesByRecording, err := h.store.ListBadgesByRecordings(c.Context(), ids)
	if err != nil {
		return respondError(c, err)
	}

	visitors := []visitorListItem{}
	for _, rec := range recs {
		for _, badge := range badgesByRecording[rec.ID] {
			visitors = append(visitors, visitorListItem{
				VisitorBadge: badge,
				Expo:         rec.Expo,
				Booth:        rec.Booth,
			})
		}
	}
	return c.JSON(fiber.Map{
		"visitors": visitors,
		"count":    len(visitors),
	})
}
