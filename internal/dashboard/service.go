package dashboard

import (
	"context"
	"sync"
	"time"

	"tmis-business-guru/internal/common/config"
	"tmis-business-guru/internal/common/logger"
	"tmis-business-guru/internal/common/metrics"
	"tmis-business-guru/internal/common/observability"
	"tmis-business-guru/internal/gateway"
	"tmis-business-guru/internal/models"
)

// Chart ids kept in the registry.
const (
	ChartStatus     = "status"
	ChartLoanStatus = "loan_status"
	ChartWeekday    = "weekday"
	ChartStaff      = "staff"
)

// ClientSource is the part of the gateway the dashboard reads from.
type ClientSource interface {
	ListClients(ctx context.Context) ([]models.ClientRecord, error)
	ListEnquiries(ctx context.Context) ([]models.Enquiry, error)
}

// EnquirySummary counts enquiries for the dashboard header.
type EnquirySummary struct {
	Total     int            `json:"total"`
	Today     int            `json:"today"`
	PerStatus map[string]int `json:"perStatus"`
}

// Snapshot is the dashboard state produced by one refresh.
type Snapshot struct {
	Stats       models.AggregatedStats `json:"stats"`
	Weekly      models.WeeklyReport    `json:"weekly"`
	Enquiries   EnquirySummary         `json:"enquiries"`
	RefreshedAt time.Time              `json:"refreshedAt"`
	Sequence    uint64                 `json:"sequence"`
}

// ServiceView is the view refreshed in the background with the service-account session.
const ServiceView = "service"

// ViewKey scopes dashboard state to one viewer. The backend filters the client list by the
// caller's token, so two viewers never share a snapshot.
func ViewKey(role, user string) string {
	return role + ":" + user
}

type Options struct {
	Source        ClientSource
	Config        config.DashboardConfig
	Location      *time.Location
	Logger        logger.Logger
	Observability *observability.Observability
	Now           func() time.Time
}

// view is the dashboard state of one viewer: its own sequencer, charts and snapshot.
type view struct {
	seq      gateway.Sequencer
	registry *ChartRegistry

	mu       sync.RWMutex
	snapshot *Snapshot
	records  []models.ClientRecord
}

// Service recomputes the dashboard from the latest client list of each viewer. Responses that
// arrive after a newer refresh of the same view has been applied are discarded.
type Service struct {
	source ClientSource
	cfg    config.DashboardConfig
	loc    *time.Location
	logger logger.Logger
	obs    *observability.Observability
	now    func() time.Time

	mu       sync.Mutex
	views    map[string]*view
	lastUsed map[string]time.Time
}

func NewService(opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		source:   opts.Source,
		cfg:      opts.Config,
		loc:      opts.Location,
		logger:   logger.ForComponent(opts.Logger, "dashboard"),
		obs:      opts.Observability,
		now:      opts.Now,
		views:    make(map[string]*view),
		lastUsed: make(map[string]time.Time),
	}
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// view returns the state for key, creating it on first use.
func (s *Service) view(key string) *view {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[key]
	if !ok {
		v = &view{registry: NewChartRegistry()}
		s.views[key] = v
	}
	s.lastUsed[key] = s.now()
	return v
}

// existing returns the state for key without creating it.
func (s *Service) existing(key string) (*view, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[key]
	if ok {
		s.lastUsed[key] = s.now()
	}
	return v, ok
}

// Sweep drops views idle for longer than maxIdle. The service view is kept.
func (s *Service) Sweep(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for key, used := range s.lastUsed {
		if key == ServiceView || !used.Before(cutoff) {
			continue
		}
		delete(s.views, key)
		delete(s.lastUsed, key)
		removed++
	}
	if removed > 0 {
		s.logger.Debug("dropped idle dashboard views", map[string]interface{}{"removed": removed})
	}
	return removed
}

// Views is the number of live views.
func (s *Service) Views() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

// Refresh fetches clients and enquiries with the caller's credentials and replaces the
// snapshot of view key. When a newer refresh of that view has already been applied the
// current snapshot is returned unchanged.
func (s *Service) Refresh(ctx context.Context, key string) (*Snapshot, error) {
	start := time.Now()
	v := s.view(key)
	token := v.seq.Begin()

	records, err := s.source.ListClients(ctx)
	if err != nil {
		metrics.DashboardRefreshes.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.obs.RecordRefresh(ctx, time.Since(start), metrics.OutcomeFailure)
		s.logger.Error("dashboard refresh failed", map[string]interface{}{
			"view":     key,
			"sequence": token,
			"error":    err,
		})
		return nil, err
	}

	enquiries, err := s.source.ListEnquiries(ctx)
	if err != nil {
		// enquiries are secondary; the client statistics are still worth showing
		s.logger.Warn("failed to load enquiries", map[string]interface{}{"view": key, "error": err})
		enquiries = nil
	}

	now := s.clock()
	snap := &Snapshot{
		Stats:       Aggregate(records, now),
		Weekly:      WeeklyReport(records, now, 0),
		Enquiries:   summarizeEnquiries(enquiries, now),
		RefreshedAt: now,
		Sequence:    token,
	}

	v.mu.Lock()
	if !v.seq.Accept(token) {
		current := v.snapshot
		v.mu.Unlock()
		metrics.DashboardStaleResponses.Inc()
		metrics.DashboardRefreshes.WithLabelValues(metrics.OutcomeStale).Inc()
		s.obs.RecordRefresh(ctx, time.Since(start), metrics.OutcomeStale)
		s.logger.Debug("discarding stale dashboard response", map[string]interface{}{
			"view":     key,
			"sequence": token,
			"applied":  v.seq.Applied(),
		})
		return current, nil
	}
	v.snapshot = snap
	v.records = records
	s.renderCharts(v, snap, s.cfg.CompactLegend)
	v.mu.Unlock()

	if key == ServiceView {
		metrics.DashboardClients.Set(float64(snap.Stats.TotalClients))
	}
	metrics.DashboardRefreshes.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.obs.RecordRefresh(ctx, time.Since(start), metrics.OutcomeSuccess)
	s.logger.Info("dashboard refreshed", map[string]interface{}{
		"view":         key,
		"sequence":     token,
		"totalClients": snap.Stats.TotalClients,
		"todayCount":   snap.Stats.TodayCount,
		"durationMs":   time.Since(start).Milliseconds(),
	})
	return snap, nil
}

func summarizeEnquiries(enquiries []models.Enquiry, now time.Time) EnquirySummary {
	summary := EnquirySummary{Total: len(enquiries), PerStatus: make(map[string]int)}
	for _, e := range enquiries {
		status := e.Status
		if status == "" {
			status = string(models.StatusUnknown)
		}
		summary.PerStatus[status]++
		if !e.CreatedAt.IsZero() && sameDay(e.CreatedAt, now) {
			summary.Today++
		}
	}
	return summary
}

// renderCharts must be called with v.mu held.
func (s *Service) renderCharts(v *view, snap *Snapshot, compact bool) {
	v.registry.RenderOrUpdate(ChartStatus, ChartDonut, StatusChart(snap.Stats, compact))
	v.registry.RenderOrUpdate(ChartLoanStatus, ChartPie, LoanStatusChart(snap.Stats, compact))
	v.registry.RenderOrUpdate(ChartWeekday, ChartBar, WeekdayChart(snap.Weekly.Series))
	v.registry.RenderOrUpdate(ChartStaff, ChartBar, StaffChart(snap.Stats, s.cfg.TopStaff))
}

// Snapshot returns the snapshot of view key, if a refresh of that view has succeeded.
func (s *Service) Snapshot(key string) (*Snapshot, bool) {
	v, ok := s.existing(key)
	if !ok {
		return nil, false
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot, v.snapshot != nil
}

// Weekly builds the report for the week offset weeks back from the current one.
func (s *Service) Weekly(key string, offset int) (models.WeeklyReport, bool) {
	v, ok := s.existing(key)
	if !ok {
		return models.WeeklyReport{}, false
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.snapshot == nil {
		return models.WeeklyReport{}, false
	}
	return WeeklyReport(v.records, s.clock(), offset), true
}

// Charts re-renders the charts of the view's snapshot and returns every instance.
func (s *Service) Charts(key string, compact bool) ([]ChartInstance, bool) {
	v, ok := s.existing(key)
	if !ok {
		return nil, false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.snapshot == nil {
		return nil, false
	}
	s.renderCharts(v, v.snapshot, compact)
	return v.registry.All(), true
}

// Run refreshes the service view on the configured interval until ctx ends. A zero interval
// disables it. ctx carries no viewer token, so the gateway falls back to the service account.
func (s *Service) Run(ctx context.Context) {
	if s.cfg.RefreshInterval <= 0 {
		return
	}
	interval := config.GetDuration(s.cfg.RefreshInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("background refresh started", map[string]interface{}{"interval": interval.String()})
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("background refresh stopped", nil)
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx, ServiceView); err != nil && ctx.Err() == nil {
				s.logger.Warn("background refresh failed", map[string]interface{}{"error": err})
			}
		}
	}
}
