package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var testSecret = []byte("test-secret")

type fakeOrderService struct {
	created   []domain.PlaceOrder
	createErr error
	order     *domain.Order
	orders    []*domain.Order
	err       error
	gotStatus domain.OrderStatus
	gotCaller string
}

func (f *fakeOrderService) CreateOrder(_ context.Context, req domain.PlaceOrder) (*domain.Order, error) {
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return domain.NewOrder(uuid.New(), req, time.Now()), nil
}

func (f *fakeOrderService) GetOrder(_ context.Context, _ uuid.UUID, callerID string) (*domain.Order, error) {
	f.gotCaller = callerID
	return f.order, f.err
}

func (f *fakeOrderService) ListOrders(_ context.Context, userID string) ([]*domain.Order, error) {
	f.gotCaller = userID
	return f.orders, f.err
}

func (f *fakeOrderService) UpdateOrderStatus(_ context.Context, _ uuid.UUID, callerID string, status domain.OrderStatus) (*domain.Order, error) {
	f.gotCaller = callerID
	f.gotStatus = status
	if f.err != nil {
		return nil, f.err
	}
	updated := *f.order
	updated.Status = status
	return &updated, nil
}

type fakeFavoriteService struct {
	favorites map[string]bool
	err       error
}

func newFakeFavoriteService() *fakeFavoriteService {
	return &fakeFavoriteService{favorites: map[string]bool{}}
}

func (f *fakeFavoriteService) Toggle(_ context.Context, userID, productID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := userID + "/" + productID
	f.favorites[key] = !f.favorites[key]
	return f.favorites[key], nil
}

func (f *fakeFavoriteService) Add(_ context.Context, userID, productID string) error {
	if f.err != nil {
		return f.err
	}
	key := userID + "/" + productID
	if f.favorites[key] {
		return &service.Error{Kind: service.KindAlreadyExists, Message: "product is already a favorite"}
	}
	f.favorites[key] = true
	return nil
}

func (f *fakeFavoriteService) Remove(_ context.Context, userID, productID string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.favorites, userID+"/"+productID)
	return nil
}

func (f *fakeFavoriteService) IsFavorite(_ context.Context, userID, productID string) (bool, error) {
	return f.favorites[userID+"/"+productID], f.err
}

func (f *fakeFavoriteService) List(_ context.Context, userID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var ids []string
	for key, on := range f.favorites {
		if on && len(key) > len(userID) && key[:len(userID)+1] == userID+"/" {
			ids = append(ids, key[len(userID)+1:])
		}
	}
	return ids, nil
}

type testServer struct {
	handler   http.Handler
	mr        *miniredis.Miniredis
	orders    *fakeOrderService
	favorites *fakeFavoriteService
	logs      *observer.ObservedLogs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	carts := service.NewCartService(cache.NewRedisCartStore(client, time.Hour, log), log)
	orders := &fakeOrderService{}
	favorites := newFakeFavoriteService()

	handler := NewRouter(RouterConfig{
		JWTSecret:      testSecret,
		CartTTL:        time.Hour,
		RequestTimeout: 5 * time.Second,
		MaxBodyBytes:   1 << 16,
	}, carts, orders, favorites, log)

	return &testServer{handler: handler, mr: mr, orders: orders, favorites: favorites, logs: logs}
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

type requestOption func(*http.Request)

func withUser(t *testing.T, userID string) requestOption {
	token := signToken(t, jwt.MapClaims{"userId": userID, "exp": time.Now().Add(time.Hour).Unix()})
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withSession(sessionID string) requestOption {
	return func(r *http.Request) { r.Header.Set(CartSessionHeader, sessionID) }
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
