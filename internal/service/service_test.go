package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/swiftdish/order-service/internal/entities"
	"github.com/swiftdish/order-service/pkg/trm"
)

// noopTx satisfies trm.Manager without a database. The store fakes below
// are atomic on their own, so the callback just runs.
type noopTx struct{}

func (noopTx) BeginTx(ctx context.Context) (context.Context, trm.Transaction, error) {
	return ctx, noopTransaction{}, nil
}

func (noopTx) Do(ctx context.Context, callback func(ctx context.Context) error) error {
	return callback(ctx)
}

type noopTransaction struct{}

func (noopTransaction) Commit() error   { return nil }
func (noopTransaction) Rollback() error { return nil }

type noopCache struct{}

func (noopCache) Get(string) ([]byte, bool) { return nil, false }
func (noopCache) Set(string, []byte)        {}
func (noopCache) Delete(string)             {}

// memStore implements the order, assignment and notification repos with a
// single mutex, which gives the same one-winner semantics as the store's
// conditional writes.
type memStore struct {
	mu            sync.Mutex
	orders        map[string]entities.Order
	assignments   map[string]entities.Assignment
	notifications []entities.Notification
	notifKeys     map[string]struct{}

	nextNumber int64

	// casFailOnce makes the next TransitionStatus lose, as if another
	// writer moved the row between the caller's read and its write.
	casFailOnce bool
}

func newMemStore() *memStore {
	return &memStore{
		orders:      make(map[string]entities.Order),
		assignments: make(map[string]entities.Assignment),
		notifKeys:   make(map[string]struct{}),
		nextNumber:  1001,
	}
}

func (s *memStore) CreateOrder(_ context.Context, o entities.Order) (entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.OrderNumber = s.nextNumber
	s.nextNumber++
	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	s.orders[o.ID] = o
	return o, nil
}

func (s *memStore) GetOrderByID(_ context.Context, orderID string) (entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	return o, nil
}

func (s *memStore) ListByParty(_ context.Context, role entities.ActorRole, partyID string, statuses []entities.Status) ([]entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Order
	for _, o := range s.orders {
		var match bool
		switch role {
		case entities.RoleCustomer:
			match = o.CustomerID == partyID
		case entities.RoleMerchant:
			match = o.MerchantID == partyID
		case entities.RoleDriver:
			match = o.DriverID == partyID
		}
		if !match {
			continue
		}
		if len(statuses) > 0 {
			var found bool
			for _, st := range statuses {
				if o.Status == st {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *memStore) ListAvailable(_ context.Context) ([]entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Order
	for _, o := range s.orders {
		if o.Status == entities.StatusReady && o.DriverID == "" {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) ListStuckReady(_ context.Context, before time.Time) ([]entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Order
	for _, o := range s.orders {
		if o.Status == entities.StatusReady && o.DriverID == "" && o.UpdatedAt.Before(before) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) TransitionStatus(_ context.Context, orderID string, from, to entities.Status, effects entities.TransitionEffects) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.casFailOnce {
		s.casFailOnce = false
		return false, nil
	}
	o, ok := s.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	if effects.StampDelivery {
		o.ActualDeliveryTime = time.Now()
	}
	if effects.MarkPaid {
		o.PaymentStatus = entities.PaymentPaid
	}
	if effects.ClearDriver {
		o.DriverID = ""
	}
	s.orders[orderID] = o
	return true, nil
}

func (s *memStore) AcceptOrder(_ context.Context, orderID, driverID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != entities.StatusReady || o.DriverID != "" {
		return false, nil
	}
	o.Status = entities.StatusAssigned
	o.DriverID = driverID
	o.UpdatedAt = time.Now()
	s.orders[orderID] = o
	return true, nil
}

func (s *memStore) CreateAssignment(_ context.Context, a entities.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assignments {
		if existing.OrderID == a.OrderID && existing.DriverID == a.DriverID {
			return nil
		}
	}
	a.AssignedAt = time.Now()
	s.assignments[a.ID] = a
	return nil
}

func (s *memStore) GetAssignment(_ context.Context, assignmentID string) (entities.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[assignmentID]
	if !ok {
		return entities.Assignment{}, entities.ErrAssignmentNotFound
	}
	return a, nil
}

func (s *memStore) ListAssignmentsByOrder(_ context.Context, orderID string) ([]entities.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Assignment
	for _, a := range s.assignments {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) MarkAccepted(_ context.Context, assignmentID, orderID, driverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.assignments {
		if a.OrderID == orderID && a.DriverID == driverID {
			a.Status = entities.AssignmentAccepted
			a.RespondedAt = time.Now()
			s.assignments[id] = a
			return nil
		}
	}
	s.assignments[assignmentID] = entities.Assignment{
		ID:          assignmentID,
		OrderID:     orderID,
		DriverID:    driverID,
		Status:      entities.AssignmentAccepted,
		AssignedAt:  time.Now(),
		RespondedAt: time.Now(),
	}
	return nil
}

func (s *memStore) RejectPending(_ context.Context, orderID, exceptDriverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.assignments {
		if a.OrderID == orderID && a.Status == entities.AssignmentPending && a.DriverID != exceptDriverID {
			a.Status = entities.AssignmentRejected
			a.RespondedAt = time.Now()
			s.assignments[id] = a
		}
	}
	return nil
}

func (s *memStore) RejectAssignment(_ context.Context, assignmentID, driverID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[assignmentID]
	if !ok || a.DriverID != driverID || a.Status != entities.AssignmentPending {
		return false, nil
	}
	a.Status = entities.AssignmentRejected
	a.RespondedAt = time.Now()
	s.assignments[assignmentID] = a
	return true, nil
}

func (s *memStore) SaveNotification(_ context.Context, n entities.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%s", n.OrderID, n.Transition, n.UserID)
	if _, dup := s.notifKeys[key]; dup {
		return false, nil
	}
	s.notifKeys[key] = struct{}{}
	n.CreatedAt = time.Now()
	s.notifications = append(s.notifications, n)
	return true, nil
}

// recordingPublisher captures every published event in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []entities.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e entities.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) transitions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Transition())
	}
	return out
}
