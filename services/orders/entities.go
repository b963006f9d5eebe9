package main

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus representa os possíveis status de um pedido
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// MovementType representa os tipos de movimentação de estoque
const (
	MovementTypeReserved = "reserved"
	MovementTypeReleased = "released"
)

// Erros de domínio. Os handlers mapeiam cada um para o status HTTP adequado
// via errors.Is, então sempre propague com %w.
var (
	ErrEmptyOrder          = errors.New("order must contain at least one item")
	ErrInvalidQuantity     = errors.New("item quantity must be positive")
	ErrProductNotFound     = errors.New("product not found")
	ErrProductInactive     = errors.New("product is inactive")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOrderNotFound       = errors.New("order not found")
	ErrForbidden           = errors.New("access denied")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrConcurrencyConflict = errors.New("concurrent update conflict, retry the operation")
)

// Product representa um produto do catálogo (somente os campos que o
// serviço de pedidos precisa)
type Product struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Stock     int             `json:"stock" db:"stock"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Order representa um pedido no sistema
type Order struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"user_id" db:"user_id"`
	Status          string          `json:"status" db:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	ShippingAddress string          `json:"shipping_address,omitempty" db:"shipping_address"`
	Notes           string          `json:"notes,omitempty" db:"notes"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderItem representa um item de um pedido. Price é o snapshot do preço do
// produto no momento da criação do pedido; alterações posteriores de preço
// nunca afetam pedidos já criados.
type OrderItem struct {
	ID        string          `json:"id" db:"id"`
	OrderID   string          `json:"order_id" db:"order_id"`
	ProductID string          `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
}

// NewOrder cria um novo pedido pendente com o total calculado a partir dos
// itens (preço snapshot * quantidade)
func NewOrder(userID, shippingAddress, notes string, items []OrderItem) *Order {
	orderID := uuid.New().String()

	total := decimal.Zero
	for i := range items {
		items[i].OrderID = orderID
		total = total.Add(items[i].Price.Mul(decimal.NewFromInt(int64(items[i].Quantity))))
	}

	now := time.Now()
	return &Order{
		ID:              orderID,
		UserID:          userID,
		Status:          OrderStatusPending,
		TotalAmount:     total,
		ShippingAddress: shippingAddress,
		Notes:           notes,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CanTransition valida a máquina de estados do pedido:
// pending -> confirmed -> shipped -> delivered (sem pular etapas, sem voltar)
// pending|confirmed|shipped -> cancelled (terminal)
func CanTransition(from, to string) bool {
	if from == to {
		return false
	}

	switch to {
	case OrderStatusConfirmed:
		return from == OrderStatusPending
	case OrderStatusShipped:
		return from == OrderStatusConfirmed
	case OrderStatusDelivered:
		return from == OrderStatusShipped
	case OrderStatusCancelled:
		return from == OrderStatusPending || from == OrderStatusConfirmed || from == OrderStatusShipped
	default:
		return false
	}
}

// SelfServiceCancellable indica se o dono do pedido ainda pode cancelar sem
// precisar de um operador (antes do envio)
func SelfServiceCancellable(status string) bool {
	return status == OrderStatusPending || status == OrderStatusConfirmed
}

// InventoryMovement representa uma movimentação de estoque ligada a um pedido
type InventoryMovement struct {
	ID             string    `json:"id" db:"id"`
	OrderID        string    `json:"order_id" db:"order_id"`
	ProductID      string    `json:"product_id" db:"product_id"`
	ChangeQuantity int       `json:"change_quantity" db:"change_quantity"`
	MovementType   string    `json:"movement_type" db:"movement_type"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
