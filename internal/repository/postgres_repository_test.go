package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*PostgresRepository, func()) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewPostgresRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func newTestOrder(userID string, createdAt time.Time) *domain.Order {
	lines := []domain.CartLine{
		{ProductID: "p1", Name: "Linen shirt", UnitPrice: decimal.RequireFromString("1499.50"), Image: "/shirt.jpg", Quantity: 2, Size: "M"},
		{ProductID: "p2", Name: "Cap", UnitPrice: decimal.NewFromInt(300), Image: "/cap.jpg", Quantity: 1},
	}
	return domain.NewOrder(uuid.New(), domain.PlaceOrder{
		UserID:         userID,
		Lines:          lines,
		Recipient:      domain.Recipient{FirstName: "Ann", LastName: "Lee", Phone: "+100", Email: "ann@example.com", Address: "1 Main St"},
		DeliveryMethod: domain.DeliveryCourier,
		PaymentMethod:  domain.PaymentCash,
	}, createdAt.UTC().Truncate(time.Microsecond))
}

func countOutbox(t *testing.T, repo *PostgresRepository, orderID uuid.UUID) int {
	t.Helper()
	var n int
	err := repo.db.QueryRow(`SELECT COUNT(*) FROM outbox_events WHERE aggregate_id = $1`, orderID).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestCreateOrder_Success(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("user-123", time.Now())
	order.Comment = "leave at the door"

	err := repo.CreateOrder(ctx, order)
	require.NoError(t, err)

	fetched, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, fetched.ID)
	assert.Equal(t, order.UserID, fetched.UserID)
	assert.Equal(t, int64(3299), fetched.Subtotal)
	assert.Equal(t, order.Discount, fetched.Discount)
	assert.Equal(t, order.DeliveryFee, fetched.DeliveryFee)
	assert.Equal(t, order.Total, fetched.Total)
	assert.Equal(t, domain.OrderStatusProcessing, fetched.Status)
	assert.Equal(t, order.Recipient, fetched.Recipient)
	assert.Equal(t, "leave at the door", fetched.Comment)
	assert.WithinDuration(t, order.CreatedAt, fetched.CreatedAt, time.Millisecond)

	require.Len(t, fetched.Items, 2)
	assert.Equal(t, "p1", fetched.Items[0].ProductID)
	assert.True(t, decimal.RequireFromString("1499.5").Equal(fetched.Items[0].Price))
	assert.Equal(t, "M", fetched.Items[0].Size)
	assert.Equal(t, "", fetched.Items[1].Size)

	assert.Equal(t, 1, countOutbox(t, repo, order.ID))
}

func TestCreateOrder_DuplicateID(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("user-123", time.Now())
	require.NoError(t, repo.CreateOrder(ctx, order))

	err := repo.CreateOrder(ctx, order)
	assert.ErrorIs(t, err, ErrDuplicateOrder)
	assert.Equal(t, 1, countOutbox(t, repo, order.ID))
}

func TestCreateOrder_IsAtomic(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("user-123", time.Now())
	order.Items[1].Quantity = 0 // violates the item check constraint

	err := repo.CreateOrder(ctx, order)
	require.Error(t, err)
	assert.False(t, IsTransient(err), "constraint violations are not retried")

	_, err = repo.GetOrderByID(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 0, countOutbox(t, repo, order.ID))
}

func TestCreateOrder_PricesRoundTripExactly(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	lines := []domain.CartLine{
		{ProductID: "p1", Name: "Socks", UnitPrice: decimal.RequireFromString("19.99"), Image: "/s.jpg", Quantity: 3},
		{ProductID: "p2", Name: "Pin", UnitPrice: decimal.RequireFromString("0.05"), Image: "/p.jpg", Quantity: 9},
		{ProductID: "p3", Name: "Watch", UnitPrice: domain.MaxUnitPrice, Image: "/w.jpg", Quantity: 1},
	}
	order := domain.NewOrder(uuid.New(), domain.PlaceOrder{
		UserID:         "user-123",
		Lines:          lines,
		Recipient:      domain.Recipient{FirstName: "Ann", LastName: "Lee", Phone: "+100", Email: "ann@example.com"},
		DeliveryMethod: domain.DeliveryPickup,
		PaymentMethod:  domain.PaymentCard,
	}, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.CreateOrder(ctx, order))

	fetched, err := repo.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)

	require.Len(t, fetched.Items, len(lines))
	restored := make([]domain.CartLine, 0, len(fetched.Items))
	for i, item := range fetched.Items {
		assert.True(t, lines[i].UnitPrice.Equal(item.Price), "item %d: want %s, got %s", i, lines[i].UnitPrice, item.Price)
		restored = append(restored, domain.CartLine{ProductID: item.ProductID, UnitPrice: item.Price, Quantity: item.Quantity})
	}
	assert.Equal(t, fetched.Subtotal, domain.Subtotal(restored), "stored items add up to the frozen subtotal")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection failure", &pq.Error{Code: "08006"}, true},
		{"serialization failure", fmt.Errorf("commit tx: %w", &pq.Error{Code: "40001"}), true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"too many connections", &pq.Error{Code: "53300"}, true},
		{"bad conn", fmt.Errorf("insert order: %w", driver.ErrBadConn), true},
		{"network", &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, true},
		{"check violation", &pq.Error{Code: "23514"}, false},
		{"numeric overflow", &pq.Error{Code: "22003"}, false},
		{"query canceled", &pq.Error{Code: "57014"}, false},
		{"duplicate order", ErrDuplicateOrder, false},
		{"context canceled", fmt.Errorf("insert order: %w", context.Canceled), false},
		{"plain error", errors.New("failed to marshal recipient"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestGetOrderByID_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	order, err := repo.GetOrderByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Nil(t, order)
}

func TestListOrdersByUserID_OldestFirstWithItems(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	newer := newTestOrder("user-1", base.Add(10*time.Minute))
	older := newTestOrder("user-1", base)
	older.Items = older.Items[:1]
	other := newTestOrder("user-2", base)

	require.NoError(t, repo.CreateOrder(ctx, newer))
	require.NoError(t, repo.CreateOrder(ctx, older))
	require.NoError(t, repo.CreateOrder(ctx, other))

	orders, err := repo.ListOrdersByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, older.ID, orders[0].ID)
	assert.Equal(t, newer.ID, orders[1].ID)
	assert.Len(t, orders[0].Items, 1)
	assert.Len(t, orders[1].Items, 2)
}

func TestListOrdersByUserID_Empty(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	orders, err := repo.ListOrdersByUserID(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestUpdateOrderStatus(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("user-1", time.Now())
	require.NoError(t, repo.CreateOrder(ctx, order))

	at := time.Now().UTC().Add(time.Minute).Truncate(time.Microsecond)
	updated, err := repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusProcessing, domain.OrderStatusShipped, at)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, updated.Status)
	assert.WithinDuration(t, at, updated.UpdatedAt, time.Millisecond)
	assert.Len(t, updated.Items, 2)
	assert.Equal(t, 2, countOutbox(t, repo, order.ID))

	_, err = repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusProcessing, domain.OrderStatusCancelled, at)
	assert.ErrorIs(t, err, ErrStatusConflict)

	_, err = repo.UpdateOrderStatus(ctx, uuid.New(), domain.OrderStatusProcessing, domain.OrderStatusShipped, at)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateOrderStatus_ConcurrentTransitionsOneWins(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("user-1", time.Now())
	require.NoError(t, repo.CreateOrder(ctx, order))

	targets := []domain.OrderStatus{domain.OrderStatusShipped, domain.OrderStatusCancelled}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, to := range targets {
		wg.Add(1)
		go func(i int, to domain.OrderStatus) {
			defer wg.Done()
			_, errs[i] = repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusProcessing, to, time.Now())
		}(i, to)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrStatusConflict)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestOutboxEvents(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder("user-1", time.Now())
	require.NoError(t, repo.CreateOrder(ctx, order))
	_, err := repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusProcessing, domain.OrderStatusShipped, time.Now())
	require.NoError(t, err)

	events, err := repo.GetUnprocessedEvents(ctx, 100)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.OrderCreated, events[0].EventType)
	assert.Equal(t, domain.OrderStatusChanged, events[1].EventType)
	assert.Equal(t, order.ID.String(), events[0].AggregateID)

	var payload domain.OrderEvent
	require.NoError(t, json.Unmarshal(events[1].Payload, &payload))
	assert.Equal(t, domain.OrderStatusShipped, payload.Status)
	assert.Equal(t, domain.OrderStatusProcessing, payload.PreviousStatus)
	assert.Equal(t, order.Total, payload.Total)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 100)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.OrderStatusChanged, events[0].EventType)

	limited, err := repo.GetUnprocessedEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, limited)
}
