package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// OrderUseCase contém a lógica de negócio dos pedidos: criação com reserva
// de estoque e cancelamento com devolução, sempre em uma única transação
type OrderUseCase struct {
	repository Repository
	publisher  EventPublisher
}

// NewOrderUseCase cria uma nova instância de OrderUseCase
func NewOrderUseCase(
	repository Repository,
	publisher EventPublisher,
) *OrderUseCase {
	return &OrderUseCase{
		repository: repository,
		publisher:  publisher,
	}
}

// CreateOrder cria um pedido como unidade atômica: valida produtos, faz o
// snapshot de preços, decrementa o estoque e insere pedido + itens. Qualquer
// falha aborta tudo — nenhum decremento parcial fica visível.
func (uc *OrderUseCase) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductID)
		}
	}

	productIDs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Locka todas as linhas de produto antes de qualquer decremento
	// (a query ordena por id, então a ordem de lock é estável)
	products, err := uc.repository.GetProductsForUpdate(ctx, tx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}

	productsByID := make(map[string]Product, len(products))
	for _, p := range products {
		productsByID[p.ID] = p
	}

	items := make([]OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		product, ok := productsByID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
		}
		if !product.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrProductInactive, product.Name)
		}
		if product.Stock < item.Quantity {
			return nil, fmt.Errorf("%w for product %s", ErrInsufficientStock, product.Name)
		}

		items = append(items, OrderItem{
			ID:        uuid.New().String(),
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     product.Price,
		})
	}

	order := NewOrder(userID, req.ShippingAddress, req.Notes, items)

	for _, item := range order.Items {
		// Decremento condicional: é a verificação final, sob lock. Pega o
		// caso de itens duplicados do mesmo produto no mesmo pedido.
		if err := uc.repository.DecreaseStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			log.Printf("❌ [CREATE ORDER] Stock reserve failed | OrderID=%s ProductID=%s: %v", order.ID, item.ProductID, err)
			if errors.Is(err, ErrInsufficientStock) {
				return nil, fmt.Errorf("%w for product %s", ErrInsufficientStock, productsByID[item.ProductID].Name)
			}
			return nil, fmt.Errorf("failed to reserve stock: %w", err)
		}
		if err := uc.repository.RecordMovement(ctx, tx, order.ID, item.ProductID, item.Quantity, MovementTypeReserved); err != nil {
			return nil, fmt.Errorf("failed to record stock movement: %w", err)
		}
	}

	if err := uc.repository.InsertOrder(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	log.Printf("✅ [CREATE ORDER] OrderID=%s UserID=%s Total=%s", order.ID, userID, order.TotalAmount.StringFixed(2))
	uc.publish(ctx, EventOrderCreated, order)

	return order, nil
}

// CancelOrder cancela um pedido e devolve o estoque de todos os itens na
// mesma transação. Chamadas repetidas são no-op: o estoque volta uma única
// vez.
func (uc *OrderUseCase) CancelOrder(ctx context.Context, orderID string, actor AuthContext) (*Order, error) {
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock no pedido: o check de idempotência e a devolução de estoque
	// precisam enxergar o mesmo status
	order, err := uc.repository.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	// Dono ou operador, antes de qualquer resposta: o no-op idempotente não
	// pode expor pedidos de outros usuários
	if !actor.IsStaff && order.UserID != actor.UserID {
		return nil, ErrForbidden
	}

	if order.Status == OrderStatusCancelled {
		log.Printf("ℹ️  [CANCEL ORDER] Already cancelled, no-op | OrderID=%s", orderID)
		return order, nil
	}

	if !actor.IsStaff && !SelfServiceCancellable(order.Status) {
		return nil, fmt.Errorf("%w: order already %s", ErrForbidden, order.Status)
	}
	if !CanTransition(order.Status, OrderStatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, OrderStatusCancelled)
	}

	items, err := uc.repository.GetOrderItems(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	for _, item := range items {
		if err := uc.repository.IncreaseStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			log.Printf("❌ [CANCEL ORDER] Restock failed | OrderID=%s ProductID=%s: %v", orderID, item.ProductID, err)
			return nil, fmt.Errorf("failed to restore stock: %w", err)
		}
		if err := uc.repository.RecordMovement(ctx, tx, orderID, item.ProductID, item.Quantity, MovementTypeReleased); err != nil {
			return nil, fmt.Errorf("failed to record stock movement: %w", err)
		}
	}

	if err := uc.repository.UpdateOrderStatus(ctx, tx, orderID, OrderStatusCancelled); err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	order.Status = OrderStatusCancelled
	order.UpdatedAt = time.Now()
	order.Items = items

	log.Printf("↩️  [CANCEL ORDER] Stock restored | OrderID=%s Items=%d", orderID, len(items))
	uc.publish(ctx, EventOrderCancelled, order)

	return order, nil
}

// UpdateOrderStatus aplica uma transição de status. Cancelamento delega para
// CancelOrder (que devolve estoque); as demais transições exigem operador e
// nunca tocam o estoque.
func (uc *OrderUseCase) UpdateOrderStatus(ctx context.Context, orderID, newStatus string, actor AuthContext) (*Order, error) {
	if newStatus == OrderStatusCancelled {
		return uc.CancelOrder(ctx, orderID, actor)
	}

	if !actor.IsStaff {
		return nil, ErrForbidden
	}

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := uc.repository.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(order.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, newStatus)
	}

	if err := uc.repository.UpdateOrderStatus(ctx, tx, orderID, newStatus); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}

	order.Status = newStatus
	order.UpdatedAt = time.Now()
	log.Printf("✅ [UPDATE STATUS] OrderID=%s -> %s", orderID, newStatus)

	return order, nil
}

// GetOrder busca um pedido; usuários comuns só enxergam os próprios pedidos
func (uc *OrderUseCase) GetOrder(ctx context.Context, orderID string, actor AuthContext) (*Order, error) {
	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !actor.IsStaff && order.UserID != actor.UserID {
		return nil, ErrForbidden
	}

	return order, nil
}

// ListOrders lista pedidos paginados; usuários comuns são restritos aos
// próprios pedidos independente do filtro enviado
func (uc *OrderUseCase) ListOrders(ctx context.Context, query ListOrdersQuery, actor AuthContext) (*OrderPage, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 {
		query.Limit = 10
	}
	if query.Limit > 100 {
		query.Limit = 100
	}

	filter := OrderFilter{
		UserID: query.UserID,
		Status: query.Status,
		Page:   query.Page,
		Limit:  query.Limit,
	}
	if !actor.IsStaff {
		filter.UserID = actor.UserID
	}

	orders, total, err := uc.repository.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	totalPages := (total + filter.Limit - 1) / filter.Limit
	return &OrderPage{
		Orders: orders,
		Pagination: Pagination{
			Page:       filter.Page,
			Limit:      filter.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    filter.Page < totalPages,
			HasPrev:    filter.Page > 1,
		},
	}, nil
}

// GetUserStats retorna as estatísticas de pedidos do próprio usuário
func (uc *OrderUseCase) GetUserStats(ctx context.Context, actor AuthContext) (*OrderStats, error) {
	stats, err := uc.repository.GetUserOrderStats(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order stats: %w", err)
	}
	return stats, nil
}

// publish emite o evento depois do commit; falha de publicação não desfaz a
// transação, apenas loga
func (uc *OrderUseCase) publish(ctx context.Context, eventType string, order *Order) {
	if uc.publisher == nil {
		return
	}

	event := OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}
	if err := uc.publisher.Publish(ctx, event); err != nil {
		log.Printf("⚠️  Failed to publish %s event | OrderID=%s: %v", eventType, order.ID, err)
	}
}
