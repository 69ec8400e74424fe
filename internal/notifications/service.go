package notifications

import (
	"context"
	"time"

	"tmis-business-guru/internal/common/auth"
	"tmis-business-guru/internal/common/config"
	"tmis-business-guru/internal/common/database"
	"tmis-business-guru/internal/common/errors"
	"tmis-business-guru/internal/common/logger"
	"tmis-business-guru/internal/common/metrics"
	"tmis-business-guru/internal/common/observability"
	"tmis-business-guru/internal/models"
)

const defaultLookback = 24 * time.Hour

// RecordSource lists the client records visible to the caller.
type RecordSource interface {
	ListClients(ctx context.Context) ([]models.ClientRecord, error)
}

// Result is a computed window together with the watermarks it was computed against.
type Result struct {
	Window
	LastVisit time.Time `json:"lastVisit"`
	LastClear time.Time `json:"lastClear"`
}

type Options struct {
	Store         WatermarkStore
	Source        RecordSource
	Config        config.NotificationConfig
	Logger        logger.Logger
	Observability *observability.Observability
	Now           func() time.Time
}

type Service struct {
	store    WatermarkStore
	source   RecordSource
	guard    time.Duration
	lookback time.Duration
	logger   logger.Logger
	obs      *observability.Observability
	now      func() time.Time
}

func NewService(opts Options) *Service {
	guard := time.Duration(opts.Config.UpdateGuard) * time.Second
	if guard <= 0 {
		guard = DefaultUpdateGuard
	}
	lookback := time.Duration(opts.Config.DefaultLookback) * time.Hour
	if lookback <= 0 {
		lookback = defaultLookback
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    opts.Store,
		source:   opts.Source,
		guard:    guard,
		lookback: lookback,
		logger:   logger.ForComponent(opts.Logger, "notifications"),
		obs:      opts.Observability,
		now:      opts.Now,
	}
}

// OpenStore builds the store selected by cfg.Store.
func OpenStore(ctx context.Context, cfg config.NotificationConfig, rc *database.RedisClient, pg *database.PostgresClient) (WatermarkStore, error) {
	switch cfg.Store {
	case "", config.StoreMemory:
		return NewMemoryStore(), nil
	case config.StoreRedis:
		if rc == nil {
			return nil, errors.NewConfigurationError("redis watermark store selected without a redis client")
		}
		return NewRedisStore(rc, cfg.KeyPrefix), nil
	case config.StorePostgres:
		if pg == nil {
			return nil, errors.NewConfigurationError("postgres watermark store selected without a database")
		}
		store := NewPostgresStore(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, errors.NewConfigurationError("unknown watermark store " + cfg.Store)
	}
}

// userKey identifies the viewer in watermark keys; the e-mail stands in when no id is known.
func userKey(v auth.Viewer) string {
	if v.ID != "" {
		return v.ID
	}
	return v.Email
}

// Watermarks loads both watermarks. A missing last visit defaults to now minus the lookback.
func (s *Service) Watermarks(ctx context.Context, viewer auth.Viewer) (lastVisit, lastClear time.Time, err error) {
	user := userKey(viewer)
	lastVisit, ok, err := s.store.Get(ctx, viewer.Role, user, models.WatermarkLastVisit)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !ok {
		lastVisit = s.now().Add(-s.lookback)
	}
	lastClear, _, err = s.store.Get(ctx, viewer.Role, user, models.WatermarkLastClear)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return lastVisit, lastClear, nil
}

// Window computes the viewer's notifications from the current record list.
func (s *Service) Window(ctx context.Context, viewer auth.Viewer) (*Result, error) {
	lastVisit, lastClear, err := s.Watermarks(ctx, viewer)
	if err != nil {
		return nil, err
	}
	records, err := s.source.ListClients(ctx)
	if err != nil {
		return nil, err
	}

	w := Compute(records, viewer, lastVisit, lastClear, s.guard)
	s.obs.RecordWindowComputed(ctx, "new", len(w.New))
	s.obs.RecordWindowComputed(ctx, "updated", len(w.Updated))
	s.obs.RecordWindowComputed(ctx, "admin_actions", len(w.AdminActions))

	s.logger.Debug("notification window computed", map[string]interface{}{
		"viewerId":     viewer.ID,
		"role":         viewer.Role,
		"new":          len(w.New),
		"updated":      len(w.Updated),
		"adminActions": len(w.AdminActions),
	})
	return &Result{Window: w, LastVisit: lastVisit, LastClear: lastClear}, nil
}

// stamp is truncated to the store's precision so a record stamped at or before it never
// compares as later after a round trip.
func (s *Service) stamp() time.Time {
	return s.now().Truncate(time.Microsecond)
}

// MarkVisited moves the last visit watermark to now.
func (s *Service) MarkVisited(ctx context.Context, viewer auth.Viewer) (time.Time, error) {
	at := s.stamp()
	if err := s.store.Set(ctx, viewer.Role, userKey(viewer), models.WatermarkLastVisit, at); err != nil {
		s.logger.Error("failed to record visit", map[string]interface{}{"viewerId": viewer.ID, "error": err})
		return time.Time{}, err
	}
	return at, nil
}

// ClearAll moves both watermarks to now so every section is empty until something changes.
func (s *Service) ClearAll(ctx context.Context, viewer auth.Viewer) (time.Time, error) {
	at := s.stamp()
	user := userKey(viewer)
	for _, kind := range []models.WatermarkKind{models.WatermarkLastClear, models.WatermarkLastVisit} {
		if err := s.store.Set(ctx, viewer.Role, user, kind, at); err != nil {
			s.logger.Error("failed to clear notifications", map[string]interface{}{
				"viewerId": viewer.ID,
				"kind":     string(kind),
				"error":    err,
			})
			return time.Time{}, err
		}
	}
	metrics.NotificationClears.WithLabelValues(viewer.Role).Inc()
	s.logger.Info("notifications cleared", map[string]interface{}{"viewerId": viewer.ID, "role": viewer.Role})
	return at, nil
}
