package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OrderUseCaseInterface define a interface para o use case
type OrderUseCaseInterface interface {
	CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, orderID string, actor AuthContext) (*Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, newStatus string, actor AuthContext) (*Order, error)
	GetOrder(ctx context.Context, orderID string, actor AuthContext) (*Order, error)
	ListOrders(ctx context.Context, query ListOrdersQuery, actor AuthContext) (*OrderPage, error)
	GetUserStats(ctx context.Context, actor AuthContext) (*OrderStats, error)
}

// OrderHandler contém os handlers HTTP
type OrderHandler struct {
	useCase OrderUseCaseInterface
	tracer  trace.Tracer
}

// NewOrderHandler cria uma nova instância de OrderHandler
func NewOrderHandler(useCase OrderUseCaseInterface, tracer trace.Tracer) *OrderHandler {
	return &OrderHandler{
		useCase: useCase,
		tracer:  tracer,
	}
}

// CreateOrder cria um pedido com reserva de estoque
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "create_order")
	defer span.End()

	actor := mustAuth(c)

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		respondError(c, http.StatusBadRequest, err)
		return
	}

	span.SetAttributes(
		attribute.String("user_id", actor.UserID),
		attribute.Int("items", len(req.Items)),
	)

	order, err := h.useCase.CreateOrder(ctx, actor.UserID, req)
	if err != nil {
		span.RecordError(err)
		respondDomainError(c, err)
		return
	}

	span.SetAttributes(attribute.String("order_id", order.ID))

	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    gin.H{"order": order},
		Message: "Order created successfully",
	})
}

// GetOrder busca um pedido pelo ID
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_order")
	defer span.End()

	actor := mustAuth(c)
	orderID := c.Param("id")
	span.SetAttributes(attribute.String("order_id", orderID))

	order, err := h.useCase.GetOrder(ctx, orderID, actor)
	if err != nil {
		span.RecordError(err)
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    gin.H{"order": order},
		Message: "Order retrieved successfully",
	})
}

// ListOrders lista pedidos paginados
func (h *OrderHandler) ListOrders(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "list_orders")
	defer span.End()

	actor := mustAuth(c)

	var query ListOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		span.RecordError(err)
		respondError(c, http.StatusBadRequest, err)
		return
	}

	page, err := h.useCase.ListOrders(ctx, query, actor)
	if err != nil {
		span.RecordError(err)
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    page,
		Message: "Orders retrieved successfully",
	})
}

// UpdateOrderStatus atualiza o status de um pedido; cancelamento devolve o
// estoque na mesma transação
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "update_order_status")
	defer span.End()

	actor := mustAuth(c)
	orderID := c.Param("id")

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		respondError(c, http.StatusBadRequest, err)
		return
	}

	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("new_status", req.Status),
	)

	order, err := h.useCase.UpdateOrderStatus(ctx, orderID, req.Status, actor)
	if err != nil {
		span.RecordError(err)
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    gin.H{"order": order},
		Message: "Order status updated successfully",
	})
}

// GetUserStats retorna as estatísticas de pedidos do usuário autenticado
func (h *OrderHandler) GetUserStats(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_user_order_stats")
	defer span.End()

	actor := mustAuth(c)

	stats, err := h.useCase.GetUserStats(ctx, actor)
	if err != nil {
		span.RecordError(err)
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    gin.H{"stats": stats},
		Message: "Order statistics retrieved successfully",
	})
}

// HealthCheck verifica a saúde do serviço
func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "orders-service",
	})
}

// respondDomainError mapeia a taxonomia de erros de domínio para status HTTP
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEmptyOrder),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrProductInactive):
		respondError(c, http.StatusBadRequest, err)
	case errors.Is(err, ErrForbidden):
		respondError(c, http.StatusForbidden, err)
	case errors.Is(err, ErrOrderNotFound):
		respondError(c, http.StatusNotFound, err)
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrConcurrencyConflict):
		respondError(c, http.StatusConflict, err)
	default:
		respondError(c, http.StatusInternalServerError, err)
	}
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}
