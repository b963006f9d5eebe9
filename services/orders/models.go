package main

import "github.com/shopspring/decimal"

// CreateOrderRequest representa a requisição para criar um pedido
type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress string             `json:"shipping_address"`
	Notes           string             `json:"notes"`
}

// OrderItemRequest representa um item dentro da requisição de criação
type OrderItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

// UpdateOrderStatusRequest representa a requisição de mudança de status
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending confirmed shipped delivered cancelled"`
}

// ListOrdersQuery representa os parâmetros de listagem. Campos tipados e
// conhecidos, sem filtros dinâmicos.
type ListOrdersQuery struct {
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=10"`
	Status string `form:"status"`
	UserID string `form:"user_id"`
}

// Pagination descreve a página retornada por uma listagem
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// OrderPage é o resultado de uma listagem de pedidos
type OrderPage struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// StatusStat agrega contagem e valor total de pedidos em um status
type StatusStat struct {
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderStats agrega as estatísticas de pedidos de um usuário
type OrderStats struct {
	TotalOrders int                   `json:"total_orders"`
	TotalAmount decimal.Decimal       `json:"total_amount"`
	ByStatus    map[string]StatusStat `json:"by_status"`
}

// APIResponse é o envelope JSON padrão das respostas
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
