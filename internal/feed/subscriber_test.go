package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftdish/order-service/internal/entities"
)

type fakeSnapshotStore struct {
	failuresLeft int
	order        entities.Order
	orderErr     error
	listed       []entities.Order
}

func (s *fakeSnapshotStore) GetOrderByID(_ context.Context, orderID string) (entities.Order, error) {
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return entities.Order{}, errors.Join(entities.ErrStoreUnavailable, errors.New("timeout"))
	}
	if s.orderErr != nil {
		return entities.Order{}, s.orderErr
	}
	return s.order, nil
}

func (s *fakeSnapshotStore) ListByParty(_ context.Context, role entities.ActorRole, partyID string, statuses []entities.Status) ([]entities.Order, error) {
	return s.listed, nil
}

func snapshotSub(store SnapshotStore, f Filter) *Subscription {
	return &Subscription{
		sub:    &Subscriber{store: store},
		filter: f,
	}
}

func TestFilterChannel(t *testing.T) {
	assert.Equal(t, "orders.order.ord-1", Filter{OrderID: "ord-1"}.channel())
	assert.Equal(t, "orders.party.cust-1",
		Filter{Role: entities.RoleCustomer, PartyID: "cust-1"}.channel())
	// an order filter wins when both are set
	assert.Equal(t, "orders.order.ord-1",
		Filter{OrderID: "ord-1", PartyID: "cust-1"}.channel())
}

func TestFilterWants(t *testing.T) {
	narrowed := Filter{
		Role:     entities.RoleDriver,
		PartyID:  "drv-1",
		Statuses: []entities.Status{entities.StatusReady, entities.StatusAssigned},
	}

	assert.True(t, narrowed.wants(entities.OrderEvent{ToStatus: entities.StatusReady}))
	assert.True(t, narrowed.wants(entities.OrderEvent{ToStatus: entities.StatusAssigned}))
	assert.False(t, narrowed.wants(entities.OrderEvent{ToStatus: entities.StatusCancelled}))

	// resync markers bypass the status filter
	assert.True(t, narrowed.wants(entities.OrderEvent{Resync: true}))

	wide := Filter{Role: entities.RoleCustomer, PartyID: "cust-1"}
	assert.True(t, wide.wants(entities.OrderEvent{ToStatus: entities.StatusCancelled}))
}

func TestSubscriptionTerminal(t *testing.T) {
	ctx := context.Background()
	recvErr := errors.New("connection reset")

	sub := &Subscription{}
	assert.False(t, sub.terminal(ctx, recvErr), "transient errors resync, not stop")
	assert.True(t, sub.terminal(ctx, redis.ErrClosed))

	closed := &Subscription{}
	closed.closed.Store(true)
	assert.True(t, closed.terminal(ctx, recvErr))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.True(t, (&Subscription{}).terminal(cancelled, recvErr))
}

func TestSubscription_Snapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("single order", func(t *testing.T) {
		store := &fakeSnapshotStore{order: entities.Order{ID: "ord-1"}}
		sub := snapshotSub(store, Filter{OrderID: "ord-1"})

		orders, err := sub.Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "ord-1", orders[0].ID)
	})

	t.Run("party set", func(t *testing.T) {
		store := &fakeSnapshotStore{listed: []entities.Order{{ID: "a"}, {ID: "b"}}}
		sub := snapshotSub(store, Filter{Role: entities.RoleMerchant, PartyID: "merch-1"})

		orders, err := sub.Snapshot(ctx)
		require.NoError(t, err)
		assert.Len(t, orders, 2)
	})

	t.Run("transient failure is retried", func(t *testing.T) {
		store := &fakeSnapshotStore{failuresLeft: 2, order: entities.Order{ID: "ord-1"}}
		sub := snapshotSub(store, Filter{OrderID: "ord-1"})

		orders, err := sub.Snapshot(ctx)
		require.NoError(t, err)
		assert.Len(t, orders, 1)
		assert.Zero(t, store.failuresLeft)
	})

	t.Run("missing order is final", func(t *testing.T) {
		store := &fakeSnapshotStore{orderErr: entities.ErrOrderNotFound}
		sub := snapshotSub(store, Filter{OrderID: "gone"})

		_, err := sub.Snapshot(ctx)
		assert.ErrorIs(t, err, entities.ErrOrderNotFound)
	})
}
