package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"tmis-business-guru/internal/common/config"
	"tmis-business-guru/internal/common/errors"
	"tmis-business-guru/internal/common/logger"
	"tmis-business-guru/internal/common/observability"
	"tmis-business-guru/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

type MockClientSource struct {
	mock.Mock
}

func (m *MockClientSource) ListClients(ctx context.Context) ([]models.ClientRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ClientRecord), args.Error(1)
}

func (m *MockClientSource) ListEnquiries(ctx context.Context) ([]models.Enquiry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Enquiry), args.Error(1)
}

const testView = "user:u-1"

func newTestService(t *testing.T, source ClientSource) *Service {
	t.Helper()
	return NewService(Options{
		Source:        source,
		Config:        config.DashboardConfig{TopStaff: 5},
		Location:      time.UTC,
		Logger:        logger.NewTestLogger(t),
		Observability: observability.Noop(),
		Now:           func() time.Time { return date(2024, 1, 10, 12, 0) },
	})
}

// ==========================
// Refresh Tests
// ==========================

func TestRefresh_BuildsSnapshotAndCharts(t *testing.T) {
	source := new(MockClientSource)
	source.On("ListClients", mock.Anything).Return([]models.ClientRecord{
		{ID: "1", Status: models.StatusInterested, CreatedAt: date(2024, 1, 10, 9, 0), CreatedByName: "Asha"},
		{ID: "2", Status: models.StatusPending, CreatedAt: date(2024, 1, 8, 9, 0), CreatedByName: "Asha"},
	}, nil)
	source.On("ListEnquiries", mock.Anything).Return([]models.Enquiry{
		{ID: "e1", Status: "new", CreatedAt: date(2024, 1, 10, 8, 0)},
		{ID: "e2", CreatedAt: date(2024, 1, 1, 8, 0)},
	}, nil)

	svc := newTestService(t, source)
	_, ok := svc.Snapshot(testView)
	assert.False(t, ok)

	snap, err := svc.Refresh(context.Background(), testView)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Stats.TotalClients)
	assert.Equal(t, 1, snap.Stats.TodayCount)
	assert.Equal(t, [7]int{1, 0, 1, 0, 0, 0, 0}, snap.Weekly.Series)
	assert.Equal(t, EnquirySummary{Total: 2, Today: 1, PerStatus: map[string]int{"new": 1, "unknown": 1}}, snap.Enquiries)

	charts, ok := svc.Charts(testView, false)
	require.True(t, ok)
	assert.Len(t, charts, 4)

	current, ok := svc.Snapshot(testView)
	require.True(t, ok)
	assert.Same(t, snap, current)
	source.AssertExpectations(t)
}

func TestRefresh_ClientFailureKeepsPreviousSnapshot(t *testing.T) {
	source := new(MockClientSource)
	source.On("ListClients", mock.Anything).Return([]models.ClientRecord{{ID: "1"}}, nil).Once()
	source.On("ListClients", mock.Anything).Return(nil, errors.NewServerError(502, "bad gateway")).Once()
	source.On("ListEnquiries", mock.Anything).Return(nil, errors.NewAccessDeniedError("admins only"))

	svc := newTestService(t, source)
	first, err := svc.Refresh(context.Background(), testView)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Enquiries.Total)

	_, err = svc.Refresh(context.Background(), testView)
	assert.True(t, errors.IsCode(err, errors.ErrCodeServerError))

	current, ok := svc.Snapshot(testView)
	require.True(t, ok)
	assert.Same(t, first, current)
}

// blockingSource holds the first ListClients call until released.
type blockingSource struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
	stale   []models.ClientRecord
	fresh   []models.ClientRecord
}

func (b *blockingSource) ListClients(ctx context.Context) ([]models.ClientRecord, error) {
	b.mu.Lock()
	b.calls++
	call := b.calls
	b.mu.Unlock()

	if call == 1 {
		close(b.entered)
		<-b.release
		return b.stale, nil
	}
	return b.fresh, nil
}

func (b *blockingSource) ListEnquiries(ctx context.Context) ([]models.Enquiry, error) {
	return []models.Enquiry{}, nil
}

func TestRefresh_DiscardsLateResponse(t *testing.T) {
	source := &blockingSource{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		stale:   []models.ClientRecord{created(date(2024, 1, 9, 9, 0))},
		fresh:   []models.ClientRecord{created(date(2024, 1, 9, 9, 0)), created(date(2024, 1, 10, 9, 0))},
	}
	svc := newTestService(t, source)

	type result struct {
		snap *Snapshot
		err  error
	}
	lateDone := make(chan result, 1)
	go func() {
		snap, err := svc.Refresh(context.Background(), testView)
		lateDone <- result{snap, err}
	}()
	<-source.entered

	fresh, err := svc.Refresh(context.Background(), testView)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Stats.TotalClients)

	close(source.release)
	late := <-lateDone
	require.NoError(t, late.err)
	assert.Same(t, fresh, late.snap, "late response must not replace the newer snapshot")

	current, _ := svc.Snapshot(testView)
	assert.Equal(t, 2, current.Stats.TotalClients)
	report, ok := svc.Weekly(testView, 0)
	require.True(t, ok)
	assert.Equal(t, 2, report.Total, "weekly report is built from the applied records")
}

// ==========================
// View Scoping Tests
// ==========================

type viewerKey struct{}

// scopedSource answers with the client list of the viewer carried by ctx, like the backend
// filtering by bearer token.
type scopedSource struct {
	clients map[string][]models.ClientRecord
}

func (s *scopedSource) ListClients(ctx context.Context) ([]models.ClientRecord, error) {
	who, _ := ctx.Value(viewerKey{}).(string)
	return s.clients[who], nil
}

func (s *scopedSource) ListEnquiries(ctx context.Context) ([]models.Enquiry, error) {
	return []models.Enquiry{}, nil
}

func TestRefresh_ViewsAreIsolated(t *testing.T) {
	source := &scopedSource{clients: map[string][]models.ClientRecord{
		"admin": {
			{ID: "1", CreatedByName: "Asha"}, {ID: "2", CreatedByName: "Asha"}, {ID: "3", CreatedByName: "Ravi"},
		},
		"member": {{ID: "3", CreatedByName: "Ravi"}},
	}}
	svc := newTestService(t, source)
	adminView, memberView := ViewKey("admin", "u-1"), ViewKey("user", "u-2")

	adminCtx := context.WithValue(context.Background(), viewerKey{}, "admin")
	memberCtx := context.WithValue(context.Background(), viewerKey{}, "member")

	adminSnap, err := svc.Refresh(adminCtx, adminView)
	require.NoError(t, err)
	memberSnap, err := svc.Refresh(memberCtx, memberView)
	require.NoError(t, err)

	assert.Equal(t, 3, adminSnap.Stats.TotalClients)
	assert.Equal(t, 1, memberSnap.Stats.TotalClients)
	assert.Equal(t, uint64(1), memberSnap.Sequence, "each view has its own sequencer")

	current, ok := svc.Snapshot(adminView)
	require.True(t, ok)
	assert.Equal(t, 3, current.Stats.TotalClients, "a later refresh by another viewer does not leak")

	_, ok = svc.Snapshot(ViewKey("user", "u-3"))
	assert.False(t, ok)

	charts, ok := svc.Charts(memberView, false)
	require.True(t, ok)
	for _, c := range charts {
		if c.ID == ChartStaff {
			assert.Equal(t, []string{"Ravi"}, c.Data.Labels)
		}
	}
}

func TestSweep_DropsIdleViews(t *testing.T) {
	now := date(2024, 1, 10, 12, 0)
	source := new(MockClientSource)
	source.On("ListClients", mock.Anything).Return([]models.ClientRecord{}, nil)
	source.On("ListEnquiries", mock.Anything).Return([]models.Enquiry{}, nil)

	svc := NewService(Options{
		Source:        source,
		Location:      time.UTC,
		Logger:        logger.NewTestLogger(t),
		Observability: observability.Noop(),
		Now:           func() time.Time { return now },
	})

	_, err := svc.Refresh(context.Background(), ServiceView)
	require.NoError(t, err)
	_, err = svc.Refresh(context.Background(), testView)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.Views())

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, svc.Sweep(time.Hour))
	assert.Equal(t, 1, svc.Views())

	_, ok := svc.Snapshot(ServiceView)
	assert.True(t, ok, "the background view is never swept")
	_, ok = svc.Snapshot(testView)
	assert.False(t, ok)
}

// ==========================
// Weekly / Charts Tests
// ==========================

func TestWeeklyAndCharts_RequireSnapshot(t *testing.T) {
	svc := newTestService(t, new(MockClientSource))

	_, ok := svc.Weekly(testView, 1)
	assert.False(t, ok)
	_, ok = svc.Charts(testView, true)
	assert.False(t, ok)
}

func TestWeekly_Offset(t *testing.T) {
	source := new(MockClientSource)
	source.On("ListClients", mock.Anything).Return([]models.ClientRecord{
		created(date(2024, 1, 2, 9, 0)),
		created(date(2024, 1, 9, 9, 0)),
	}, nil)
	source.On("ListEnquiries", mock.Anything).Return([]models.Enquiry{}, nil)

	svc := newTestService(t, source)
	_, err := svc.Refresh(context.Background(), testView)
	require.NoError(t, err)

	report, ok := svc.Weekly(testView, 1)
	require.True(t, ok)
	assert.Equal(t, date(2024, 1, 1, 0, 0), report.Range.Start)
	assert.Equal(t, 1, report.Total)
}

func TestCharts_CompactUpdatesExistingInstances(t *testing.T) {
	source := new(MockClientSource)
	source.On("ListClients", mock.Anything).Return([]models.ClientRecord{
		{Status: models.StatusInterested},
	}, nil)
	source.On("ListEnquiries", mock.Anything).Return([]models.Enquiry{}, nil)

	svc := newTestService(t, source)
	_, err := svc.Refresh(context.Background(), testView)
	require.NoError(t, err)

	charts, ok := svc.Charts(testView, true)
	require.True(t, ok)

	var status ChartInstance
	for _, c := range charts {
		if c.ID == ChartStatus {
			status = c
		}
	}
	assert.Equal(t, []string{"Interested"}, status.Data.Labels)
	assert.Equal(t, 2, status.Revision)
}

func TestRun_DisabledWithoutInterval(t *testing.T) {
	svc := newTestService(t, new(MockClientSource))

	done := make(chan struct{})
	go func() {
		svc.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately when the interval is 0")
	}
}
