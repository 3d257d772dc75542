package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"billing_collections/internal/domain/client"
	"billing_collections/internal/domain/conciliation"
	"billing_collections/internal/domain/contract"
	"billing_collections/internal/domain/payment"
	"billing_collections/internal/domain/reminder"
	idb "billing_collections/internal/infra/database"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory stand-in for the Postgres repositories. Its
// WithinTx snapshots the whole store and restores it when fn fails, which
// gives nested calls the same isolation as savepoints.
type memStore struct {
	mu sync.Mutex

	nextID        int64
	clients       map[int64]client.Client
	contracts     map[int64]contract.Contract
	reminders     map[int64]reminder.Reminder
	payments      map[int64]payment.Payment
	conciliations map[int64]conciliation.Conciliation
	settings      map[string]string

	// Fault injection.
	failReminderUpdate map[int64]bool
	failCountDerived   bool

	// Source payments locked by settlement passes, in order.
	locked []int64
}

func newMemStore() *memStore {
	return &memStore{
		clients:            map[int64]client.Client{},
		contracts:          map[int64]contract.Contract{},
		reminders:          map[int64]reminder.Reminder{},
		payments:           map[int64]payment.Payment{},
		conciliations:      map[int64]conciliation.Conciliation{},
		settings:           map[string]string{},
		failReminderUpdate: map[int64]bool{},
	}
}

type memSnapshot struct {
	nextID        int64
	clients       map[int64]client.Client
	contracts     map[int64]contract.Contract
	reminders     map[int64]reminder.Reminder
	payments      map[int64]payment.Payment
	conciliations map[int64]conciliation.Conciliation
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return copyMap(m)
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snap := memSnapshot{
		nextID:        s.nextID,
		clients:       copyMap(s.clients),
		contracts:     copyMap(s.contracts),
		reminders:     copyMap(s.reminders),
		payments:      copyMap(s.payments),
		conciliations: copyMap(s.conciliations),
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.nextID = snap.nextID
		s.clients = snap.clients
		s.contracts = snap.contracts
		s.reminders = snap.reminders
		s.payments = snap.payments
		s.conciliations = snap.conciliations
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

// Clients

type memClients struct{ *memStore }

func (r memClients) Create(_ context.Context, c *client.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.id()
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	r.clients[c.ID] = *c
	return nil
}

func (r memClients) GetByID(_ context.Context, id int64) (*client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok || c.DeletedAt.Valid {
		return nil, idb.ErrClientNotFound
	}
	return &c, nil
}

func (r memClients) Update(_ context.Context, c *client.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c.ID]; !ok {
		return idb.ErrClientNotFound
	}
	r.clients[c.ID] = *c
	return nil
}

func (r memClients) SoftDelete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok || c.DeletedAt.Valid {
		return idb.ErrClientNotFound
	}
	c.DeletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	r.clients[id] = c
	return nil
}

// Contracts

type memContracts struct{ *memStore }

func (r memContracts) Create(_ context.Context, c *contract.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.id()
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	stored := *c
	stored.Metadata = cloneMeta(c.Metadata)
	r.contracts[c.ID] = stored
	return nil
}

func (r memContracts) GetByID(_ context.Context, id int64) (*contract.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[id]
	if !ok || c.DeletedAt.Valid {
		return nil, idb.ErrContractNotFound
	}
	c.Metadata = cloneMeta(c.Metadata)
	return &c, nil
}

func (r memContracts) Update(_ context.Context, c *contract.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.contracts[c.ID]
	if !ok || old.DeletedAt.Valid {
		return idb.ErrContractNotFound
	}
	stored := *c
	stored.Metadata = cloneMeta(c.Metadata)
	r.contracts[c.ID] = stored
	return nil
}

func (r memContracts) SoftDelete(ctx context.Context, id int64) error {
	return r.WithinTx(ctx, func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		c, ok := r.contracts[id]
		if !ok || c.DeletedAt.Valid {
			return idb.ErrContractNotFound
		}
		now := time.Now()
		c.DeletedAt = sql.NullTime{Time: now, Valid: true}
		r.contracts[id] = c
		for rid, rm := range r.reminders {
			if rm.ContractID == id && !rm.DeletedAt.Valid {
				rm.DeletedAt = sql.NullTime{Time: now, Valid: true}
				r.reminders[rid] = rm
			}
		}
		return nil
	})
}

func (r memContracts) ListByClient(_ context.Context, clientID int64) ([]*contract.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*contract.Contract
	for _, c := range r.contracts {
		if c.ClientID.Valid && c.ClientID.Int64 == clientID && !c.DeletedAt.Valid {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Reminders

type memReminders struct{ *memStore }

func (r memReminders) Create(_ context.Context, rm *reminder.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm.ID = r.id()
	rm.CreatedAt, rm.UpdatedAt = time.Now(), time.Now()
	stored := *rm
	stored.Payload = cloneMeta(rm.Payload)
	r.reminders[rm.ID] = stored
	return nil
}

func (r memReminders) GetByID(_ context.Context, id int64) (*reminder.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.reminders[id]
	if !ok || rm.DeletedAt.Valid {
		return nil, idb.ErrReminderNotFound
	}
	return &rm, nil
}

func (r memReminders) Update(_ context.Context, rm *reminder.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReminderUpdate[rm.ID] {
		return fmt.Errorf("update reminder %d: %w", rm.ID, errInjected)
	}
	old, ok := r.reminders[rm.ID]
	if !ok || old.DeletedAt.Valid {
		return idb.ErrReminderNotFound
	}
	stored := *rm
	stored.Payload = cloneMeta(rm.Payload)
	stored.ResponsePayload = cloneMeta(rm.ResponsePayload)
	r.reminders[rm.ID] = stored
	return nil
}

// live returns the reminders matching keep, ascending by scheduled_for then id.
func (r memReminders) live(keep func(reminder.Reminder) bool) []*reminder.Reminder {
	var out []*reminder.Reminder
	for _, rm := range r.reminders {
		if rm.DeletedAt.Valid || !keep(rm) {
			continue
		}
		rm := rm
		out = append(out, &rm)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].ScheduledFor.Before(out[j].ScheduledFor)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r memReminders) GetOutstandingForContract(_ context.Context, contractID int64) (*reminder.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := r.live(func(rm reminder.Reminder) bool {
		return rm.ContractID == contractID && rm.Status.Outstanding()
	})
	if len(found) == 0 {
		return nil, idb.ErrReminderNotFound
	}
	return found[0], nil
}

func (r memReminders) ListByContract(_ context.Context, contractID int64) ([]*reminder.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live(func(rm reminder.Reminder) bool { return rm.ContractID == contractID }), nil
}

func (r memReminders) ListSettlementCandidates(_ context.Context, clientID int64, contractID sql.NullInt64, from time.Time) ([]*reminder.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live(func(rm reminder.Reminder) bool {
		if rm.ClientID != clientID || rm.ScheduledFor.Before(from) {
			return false
		}
		if contractID.Valid && rm.ContractID != contractID.Int64 {
			return false
		}
		return rm.Status != reminder.StatusCancelled && rm.Status != reminder.StatusFailed
	}), nil
}

func (r memReminders) ListDue(_ context.Context, until time.Time, limit int) ([]*reminder.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.live(func(rm reminder.Reminder) bool {
		return (rm.Status == reminder.StatusPending || rm.Status == reminder.StatusQueued) && !rm.ScheduledFor.After(until)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Payments

type memPayments struct{ *memStore }

// reminderTaken mirrors the partial unique index on verified payments per reminder.
func (r memPayments) reminderTaken(p *payment.Payment) bool {
	if p.Status != payment.StatusVerified || !p.ReminderID.Valid {
		return false
	}
	for _, other := range r.payments {
		if other.ID == p.ID || other.DeletedAt.Valid {
			continue
		}
		if other.Status == payment.StatusVerified && other.ReminderID.Valid && other.ReminderID.Int64 == p.ReminderID.Int64 {
			return true
		}
	}
	return false
}

func (r memPayments) Create(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reminderTaken(p) {
		return fmt.Errorf("%w: reminder %d", idb.ErrReminderAlreadySettled, p.ReminderID.Int64)
	}
	p.ID = r.id()
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	stored := *p
	stored.Metadata = cloneMeta(p.Metadata)
	r.payments[p.ID] = stored
	return nil
}

func (r memPayments) GetByID(_ context.Context, id int64) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.DeletedAt.Valid {
		return nil, idb.ErrPaymentNotFound
	}
	p.Metadata = cloneMeta(p.Metadata)
	return &p, nil
}

func (r memPayments) Update(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.payments[p.ID]
	if !ok || old.DeletedAt.Valid {
		return idb.ErrPaymentNotFound
	}
	if r.reminderTaken(p) {
		return fmt.Errorf("%w: reminder %d", idb.ErrReminderAlreadySettled, p.ReminderID.Int64)
	}
	p.UpdatedAt = time.Now()
	stored := *p
	stored.Metadata = cloneMeta(p.Metadata)
	r.payments[p.ID] = stored
	return nil
}

func (r memPayments) SoftDelete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.DeletedAt.Valid {
		return idb.ErrPaymentNotFound
	}
	p.DeletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	r.payments[id] = p
	return nil
}

func (r memPayments) HasVerifiedForReminder(_ context.Context, reminderID, excludePaymentID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.DeletedAt.Valid || p.ID == excludePaymentID {
			continue
		}
		if p.Status == payment.StatusVerified && p.ReminderID.Valid && p.ReminderID.Int64 == reminderID {
			return true, nil
		}
	}
	return false, nil
}

func (r memPayments) CountDerivedFrom(_ context.Context, sourcePaymentID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCountDerived {
		return 0, errInjected
	}
	n := 0
	for _, p := range r.payments {
		if p.DeletedAt.Valid {
			continue
		}
		if fmt.Sprint(p.Metadata[payment.MetaSourcePaymentID]) == strconv.FormatInt(sourcePaymentID, 10) {
			n++
		}
	}
	return n, nil
}

func (r memPayments) LockForSettlement(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[id]; !ok || p.DeletedAt.Valid {
		return idb.ErrPaymentNotFound
	}
	r.locked = append(r.locked, id)
	return nil
}

func (r memPayments) ListVerifiedMultiMonthSince(_ context.Context, since time.Time) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reviewed := map[int64]bool{}
	for _, c := range r.conciliations {
		reviewed[c.PaymentID] = true
	}
	var out []*payment.Payment
	for _, p := range r.payments {
		if p.DeletedAt.Valid || p.Status != payment.StatusVerified || reviewed[p.ID] || p.IsDerived() {
			continue
		}
		if p.Months() < 2 || p.UpdatedAt.Before(since) {
			continue
		}
		p := p
		p.Metadata = cloneMeta(p.Metadata)
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Conciliations

type memConciliations struct{ *memStore }

func (r memConciliations) Create(_ context.Context, c *conciliation.Conciliation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.conciliations {
		if existing.PaymentID == c.PaymentID {
			return idb.ErrDuplicateConciliation
		}
	}
	c.ID = r.id()
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	r.conciliations[c.ID] = *c
	return nil
}

func (r memConciliations) GetByID(_ context.Context, id int64) (*conciliation.Conciliation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conciliations[id]
	if !ok {
		return nil, idb.ErrConciliationNotFound
	}
	return &c, nil
}

func (r memConciliations) GetByPaymentID(_ context.Context, paymentID int64) (*conciliation.Conciliation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conciliations {
		if c.PaymentID == paymentID {
			c := c
			return &c, nil
		}
	}
	return nil, idb.ErrConciliationNotFound
}

func (r memConciliations) Update(_ context.Context, c *conciliation.Conciliation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conciliations[c.ID]; !ok {
		return idb.ErrConciliationNotFound
	}
	r.conciliations[c.ID] = *c
	return nil
}

func (r memConciliations) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conciliations[id]; !ok {
		return idb.ErrConciliationNotFound
	}
	delete(r.conciliations, id)
	return nil
}

func (r memConciliations) ListApprovedSince(_ context.Context, since time.Time) ([]*conciliation.Conciliation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*conciliation.Conciliation
	for _, c := range r.conciliations {
		if c.Status == conciliation.StatusApproved && c.VerifiedAt.Valid && !c.VerifiedAt.Time.Before(since) {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Settings

type memSettings struct{ *memStore }

func (r memSettings) GetAll(context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyMap(r.settings), nil
}
