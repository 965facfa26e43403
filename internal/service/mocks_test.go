package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
)

// mockOrderRepository implements repository.OrderRepository in memory
type mockOrderRepository struct {
	m           sync.RWMutex
	orders      map[uuid.UUID]*domain.Order
	createErrs  []error // returned by successive CreateOrder calls
	createCalls int
	lostReplies int // commits that still report errDBDown
	createdIDs  []uuid.UUID
	getErr      error
	listErr     error
	updateErr   error
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *mockOrderRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.createCalls++
	m.createdIDs = append(m.createdIDs, order.ID)
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := m.orders[order.ID]; ok {
		return repository.ErrDuplicateOrder
	}
	stored := *order
	m.orders[order.ID] = &stored
	if m.lostReplies > 0 {
		m.lostReplies--
		return errDBDown
	}
	return nil
}

func (m *mockOrderRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (m *mockOrderRepository) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []*domain.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus, at time.Time) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if order.Status != from {
		return nil, repository.ErrStatusConflict
	}
	order.Status = to
	order.UpdatedAt = at
	cp := *order
	return &cp, nil
}

func (m *mockOrderRepository) status(id uuid.UUID) domain.OrderStatus {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.orders[id].Status
}

type favoriteKey struct{ user, product string }

// mockFavoriteRepository implements repository.FavoriteRepository in memory
type mockFavoriteRepository struct {
	m    sync.Mutex
	favs map[favoriteKey]*domain.Favorite
	err  error

	// beforeAdd runs inside AddFavorite before the uniqueness check
	beforeAdd func()
}

func newMockFavoriteRepository() *mockFavoriteRepository {
	return &mockFavoriteRepository{favs: make(map[favoriteKey]*domain.Favorite)}
}

func (m *mockFavoriteRepository) AddFavorite(_ context.Context, fav *domain.Favorite) error {
	if m.beforeAdd != nil {
		m.beforeAdd()
	}
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	k := favoriteKey{fav.UserID, fav.ProductID}
	if _, ok := m.favs[k]; ok {
		return repository.ErrAlreadyFavorited
	}
	m.favs[k] = fav
	return nil
}

func (m *mockFavoriteRepository) RemoveFavorite(_ context.Context, userID, productID string) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return false, m.err
	}
	k := favoriteKey{userID, productID}
	_, ok := m.favs[k]
	delete(m.favs, k)
	return ok, nil
}

func (m *mockFavoriteRepository) IsFavorite(_ context.Context, userID, productID string) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.favs[favoriteKey{userID, productID}]
	return ok, nil
}

func (m *mockFavoriteRepository) ListFavorites(_ context.Context, userID string) ([]*domain.Favorite, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Favorite
	for k, f := range m.favs {
		if k.user == userID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// failingCartStore implements cache.CartStore and fails every call
type failingCartStore struct {
	err   error
	calls int
	m     sync.Mutex
}

func (f *failingCartStore) Load(context.Context, string) (*domain.Cart, error) {
	f.m.Lock()
	defer f.m.Unlock()
	f.calls++
	return nil, f.err
}

func (f *failingCartStore) Update(context.Context, string, func(*domain.Cart)) (*domain.Cart, error) {
	f.m.Lock()
	defer f.m.Unlock()
	f.calls++
	return nil, f.err
}

func (f *failingCartStore) Clear(context.Context, string) error {
	f.m.Lock()
	defer f.m.Unlock()
	f.calls++
	return f.err
}
