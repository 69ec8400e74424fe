package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tmis-business-guru/internal/common/logger"
)

// FieldUpdateFunc performs one field update; Client.UpdateClientField satisfies it.
type FieldUpdateFunc func(ctx context.Context, clientID, field string, value interface{}) (*UpdateResult, error)

// FieldUpdateOutcome is reported for every update that actually reached the backend.
type FieldUpdateOutcome struct {
	ClientID string
	Field    string
	Value    interface{}
	Result   *UpdateResult
	Err      error
}

type fieldKey struct {
	clientID string
	field    string
}

type pendingUpdate struct {
	ctx   context.Context
	value interface{}
	gen   uint64
	timer *time.Timer
}

// FieldUpdater debounces inline edits: repeated Queue calls for the same (client, field)
// within the delay collapse into one backend call carrying the last value.
type FieldUpdater struct {
	update    FieldUpdateFunc
	delay     time.Duration
	logger    logger.Logger
	onOutcome func(FieldUpdateOutcome)

	mu      sync.Mutex
	pending map[fieldKey]*pendingUpdate
	gen     uint64
	closed  bool
	wg      sync.WaitGroup
}

func NewFieldUpdater(update FieldUpdateFunc, delay time.Duration, log logger.Logger) *FieldUpdater {
	return &FieldUpdater{
		update:  update,
		delay:   delay,
		logger:  logger.ForComponent(log, "field-updater"),
		pending: make(map[fieldKey]*pendingUpdate),
	}
}

// OnOutcome registers a callback invoked after each dispatched update.
func (u *FieldUpdater) OnOutcome(fn func(FieldUpdateOutcome)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onOutcome = fn
}

// Queue schedules an update. The caller's context values (such as its bearer token) are kept,
// its cancellation is not, because the call happens after the request has finished.
func (u *FieldUpdater) Queue(ctx context.Context, clientID, field string, value interface{}) error {
	if clientID == "" || field == "" {
		return fmt.Errorf("client id and field are required")
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return fmt.Errorf("field updater is closed")
	}

	key := fieldKey{clientID: clientID, field: field}
	if existing, ok := u.pending[key]; ok {
		existing.timer.Stop()
	}

	u.gen++
	gen := u.gen
	p := &pendingUpdate{ctx: context.WithoutCancel(ctx), value: value, gen: gen}
	p.timer = time.AfterFunc(u.delay, func() { u.fire(key, gen) })
	u.pending[key] = p
	return nil
}

// Pending is the number of updates waiting for their debounce window to pass.
func (u *FieldUpdater) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.pending)
}

func (u *FieldUpdater) fire(key fieldKey, gen uint64) {
	u.mu.Lock()
	p, ok := u.pending[key]
	if !ok || p.gen != gen {
		u.mu.Unlock()
		return
	}
	delete(u.pending, key)
	u.wg.Add(1)
	u.mu.Unlock()

	defer u.wg.Done()
	u.dispatch(key, p)
}

func (u *FieldUpdater) dispatch(key fieldKey, p *pendingUpdate) {
	result, err := u.update(p.ctx, key.clientID, key.field, p.value)
	if err != nil {
		u.logger.Error("debounced field update failed", map[string]interface{}{
			"clientId": key.clientID,
			"field":    key.field,
			"error":    err,
		})
	} else if result != nil && result.WhatsApp.QuotaExceeded {
		u.logger.Warn("field updated but WhatsApp quota exceeded", map[string]interface{}{
			"clientId": key.clientID,
			"field":    key.field,
		})
	}

	u.mu.Lock()
	fn := u.onOutcome
	u.mu.Unlock()
	if fn != nil {
		fn(FieldUpdateOutcome{ClientID: key.clientID, Field: key.field, Value: p.value, Result: result, Err: err})
	}
}

// Flush dispatches every pending update now and waits for in-flight ones.
func (u *FieldUpdater) Flush() {
	u.mu.Lock()
	due := make(map[fieldKey]*pendingUpdate, len(u.pending))
	for key, p := range u.pending {
		p.timer.Stop()
		due[key] = p
	}
	u.pending = make(map[fieldKey]*pendingUpdate)
	u.wg.Add(len(due))
	u.mu.Unlock()

	for key, p := range due {
		func() {
			defer u.wg.Done()
			u.dispatch(key, p)
		}()
	}
	u.wg.Wait()
}

// Close flushes pending updates and rejects further ones.
func (u *FieldUpdater) Close() {
	u.mu.Lock()
	u.closed = true
	u.mu.Unlock()
	u.Flush()
}
