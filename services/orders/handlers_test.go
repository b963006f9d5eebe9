package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel"
)

// MockOrderUseCase simula o use case para testar o mapeamento HTTP
type MockOrderUseCase struct {
	mock.Mock
}

func (m *MockOrderUseCase) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*Order, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockOrderUseCase) CancelOrder(ctx context.Context, orderID string, actor AuthContext) (*Order, error) {
	args := m.Called(ctx, orderID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockOrderUseCase) UpdateOrderStatus(ctx context.Context, orderID, newStatus string, actor AuthContext) (*Order, error) {
	args := m.Called(ctx, orderID, newStatus, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockOrderUseCase) GetOrder(ctx context.Context, orderID string, actor AuthContext) (*Order, error) {
	args := m.Called(ctx, orderID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockOrderUseCase) ListOrders(ctx context.Context, query ListOrdersQuery, actor AuthContext) (*OrderPage, error) {
	args := m.Called(ctx, query, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*OrderPage), args.Error(1)
}

func (m *MockOrderUseCase) GetUserStats(ctx context.Context, actor AuthContext) (*OrderStats, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*OrderStats), args.Error(1)
}

// fakeAuth injeta o AuthContext direto, sem validar token
func fakeAuth(actor AuthContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(authContextKey, actor)
		c.Next()
	}
}

func setupRouter(useCase OrderUseCaseInterface, actor AuthContext) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewOrderHandler(useCase, otel.Tracer("test"))

	r := gin.New()
	r.GET("/health", handler.HealthCheck)
	api := r.Group("/api", fakeAuth(actor))
	api.POST("/orders", handler.CreateOrder)
	api.GET("/orders", handler.ListOrders)
	api.GET("/orders/stats/user", handler.GetUserStats)
	api.GET("/orders/:id", handler.GetOrder)
	api.PATCH("/orders/:id/status", handler.UpdateOrderStatus)
	return r
}

func TestCreateOrderHandler_Created(t *testing.T) {
	// Arrange
	useCase := new(MockOrderUseCase)
	actor := AuthContext{UserID: "user-1"}
	order := &Order{ID: "order-1", UserID: "user-1", Status: OrderStatusPending, TotalAmount: decimal.RequireFromString("20.00")}

	useCase.On("CreateOrder", mock.Anything, "user-1", mock.Anything).Return(order, nil)

	r := setupRouter(useCase, actor)
	body := `{"items":[{"product_id":"product-a","quantity":2}]}`

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp APIResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Order created successfully", resp.Message)
	useCase.AssertExpectations(t)
}

func TestCreateOrderHandler_ValidationError(t *testing.T) {
	// Arrange: lista de itens vazia falha no binding
	useCase := new(MockOrderUseCase)
	r := setupRouter(useCase, AuthContext{UserID: "user-1"})

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"items":[]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp APIResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	useCase.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrderHandler_InsufficientStockConflict(t *testing.T) {
	// Arrange
	useCase := new(MockOrderUseCase)
	useCase.On("CreateOrder", mock.Anything, "user-1", mock.Anything).
		Return(nil, fmt.Errorf("%w for product Keyboard", ErrInsufficientStock))

	r := setupRouter(useCase, AuthContext{UserID: "user-1"})
	body := `{"items":[{"product_id":"product-a","quantity":3}]}`

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	// Assert: 409 e a mensagem identifica o produto
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp APIResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Keyboard")
}

func TestCreateOrderHandler_ProductNotFoundBadRequest(t *testing.T) {
	// Arrange
	useCase := new(MockOrderUseCase)
	useCase.On("CreateOrder", mock.Anything, "user-1", mock.Anything).
		Return(nil, fmt.Errorf("%w: product-x", ErrProductNotFound))

	r := setupRouter(useCase, AuthContext{UserID: "user-1"})
	body := `{"items":[{"product_id":"product-x","quantity":1}]}`

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrderHandler_NotFound(t *testing.T) {
	// Arrange
	useCase := new(MockOrderUseCase)
	useCase.On("GetOrder", mock.Anything, "missing", mock.Anything).Return(nil, ErrOrderNotFound)

	r := setupRouter(useCase, AuthContext{UserID: "user-1"})

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/missing", nil)
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateOrderStatusHandler_Forbidden(t *testing.T) {
	// Arrange
	useCase := new(MockOrderUseCase)
	useCase.On("UpdateOrderStatus", mock.Anything, "order-1", OrderStatusConfirmed, mock.Anything).
		Return(nil, ErrForbidden)

	r := setupRouter(useCase, AuthContext{UserID: "user-1"})

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/orders/order-1/status", strings.NewReader(`{"status":"confirmed"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateOrderStatusHandler_InvalidStatusRejected(t *testing.T) {
	// Arrange: status fora do enum nem chega ao use case
	useCase := new(MockOrderUseCase)
	r := setupRouter(useCase, AuthContext{UserID: "user-1"})

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/orders/order-1/status", strings.NewReader(`{"status":"teleported"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusBadRequest, w.Code)
	useCase.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateOrderStatusHandler_ConflictOnInvalidTransition(t *testing.T) {
	// Arrange
	useCase := new(MockOrderUseCase)
	useCase.On("UpdateOrderStatus", mock.Anything, "order-1", OrderStatusDelivered, mock.Anything).
		Return(nil, fmt.Errorf("%w: pending -> delivered", ErrInvalidTransition))

	r := setupRouter(useCase, AuthContext{UserID: "staff-1", IsStaff: true})

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/orders/order-1/status", strings.NewReader(`{"status":"delivered"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListOrdersHandler_OK(t *testing.T) {
	// Arrange
	useCase := new(MockOrderUseCase)
	page := &OrderPage{
		Orders: []Order{{ID: "order-1", UserID: "user-1", Status: OrderStatusPending}},
		Pagination: Pagination{
			Page: 1, Limit: 10, Total: 1, TotalPages: 1,
		},
	}
	useCase.On("ListOrders", mock.Anything, mock.Anything, mock.Anything).Return(page, nil)

	r := setupRouter(useCase, AuthContext{UserID: "user-1"})

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders?page=1&limit=10", nil)
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)

	var resp APIResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestHealthCheck(t *testing.T) {
	// Arrange
	r := setupRouter(new(MockOrderUseCase), AuthContext{})

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
