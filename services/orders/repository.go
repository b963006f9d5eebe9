package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository define a interface para operações de banco de dados de pedidos
// e do ledger de estoque
type Repository interface {
	// BeginTx inicia a unidade de trabalho que engloba ledger + pedido
	BeginTx(ctx context.Context) (Tx, error)

	// GetProductsForUpdate busca os produtos com lock pessimista, sempre em
	// ordem crescente de id para evitar deadlock entre pedidos concorrentes
	GetProductsForUpdate(ctx context.Context, tx Tx, productIDs []string) ([]Product, error)

	// DecreaseStock decrementa o estoque condicionalmente (stock >= quantity)
	DecreaseStock(ctx context.Context, tx Tx, productID string, quantity int) error

	// IncreaseStock devolve estoque (compensação de cancelamento)
	IncreaseStock(ctx context.Context, tx Tx, productID string, quantity int) error

	// RecordMovement registra a movimentação de estoque ligada ao pedido
	RecordMovement(ctx context.Context, tx Tx, orderID, productID string, quantity int, movementType string) error

	// InsertOrder insere o pedido e todos os seus itens
	InsertOrder(ctx context.Context, tx Tx, order *Order) error

	// GetOrderForUpdate busca um pedido com lock pessimista
	GetOrderForUpdate(ctx context.Context, tx Tx, orderID string) (*Order, error)

	// GetOrderItems busca os itens de um pedido dentro da transação
	GetOrderItems(ctx context.Context, tx Tx, orderID string) ([]OrderItem, error)

	// UpdateOrderStatus atualiza o status de um pedido
	UpdateOrderStatus(ctx context.Context, tx Tx, orderID, status string) error

	// GetOrder busca um pedido pelo ID, com itens, fora de transação
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// ListOrders lista pedidos paginados segundo o filtro tipado
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error)

	// GetUserOrderStats agrega contagem e valores por status para um usuário
	GetUserOrderStats(ctx context.Context, userID string) (*OrderStats, error)
}

// Tx interface para transações
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// PostgresTx implementa a interface Tx
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *PostgresTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// PostgresOrderRepository implementa Repository usando PostgreSQL
type PostgresOrderRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository cria uma nova instância de PostgresOrderRepository
func NewOrderRepository(db *pgxpool.Pool) Repository {
	return &PostgresOrderRepository{
		db: db,
	}
}

// BeginTx inicia uma nova transação
func (r *PostgresOrderRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &PostgresTx{tx: tx}, nil
}

// GetProductsForUpdate obtém os produtos com lock pessimista (FOR UPDATE).
// ORDER BY id garante ordem estável de aquisição dos locks quando dois
// pedidos compartilham produtos.
func (r *PostgresOrderRepository) GetProductsForUpdate(ctx context.Context, tx Tx, productIDs []string) ([]Product, error) {
	pgTx := tx.(*PostgresTx).tx

	rows, err := pgTx.Query(ctx, `
		SELECT id, name, price, stock, is_active, created_at, updated_at
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, productIDs)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, mapPgError(err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}

	return products, nil
}

// DecreaseStock decrementa o estoque condicionalmente. Zero linhas afetadas
// significa que o estoque ficou insuficiente entre a leitura e o update.
func (r *PostgresOrderRepository) DecreaseStock(ctx context.Context, tx Tx, productID string, quantity int) error {
	pgTx := tx.(*PostgresTx).tx

	result, err := pgTx.Exec(ctx, `
		UPDATE products
		SET stock = stock - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND stock >= $2
	`, productID, quantity)
	if err != nil {
		return mapPgError(err)
	}

	if result.RowsAffected() == 0 {
		return ErrInsufficientStock
	}

	return nil
}

// IncreaseStock devolve estoque de forma incondicional
func (r *PostgresOrderRepository) IncreaseStock(ctx context.Context, tx Tx, productID string, quantity int) error {
	pgTx := tx.(*PostgresTx).tx

	result, err := pgTx.Exec(ctx, `
		UPDATE products
		SET stock = stock + $2,
		    updated_at = NOW()
		WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return mapPgError(err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	return nil
}

// RecordMovement insere o registro de movimentação de estoque
func (r *PostgresOrderRepository) RecordMovement(ctx context.Context, tx Tx, orderID, productID string, quantity int, movementType string) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		INSERT INTO inventory_movements (id, order_id, product_id, change_quantity, movement_type)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New().String(), orderID, productID, quantity, movementType)
	if err != nil {
		return mapPgError(err)
	}

	return nil
}

// InsertOrder insere o cabeçalho do pedido e todos os itens na mesma transação
func (r *PostgresOrderRepository) InsertOrder(ctx context.Context, tx Tx, order *Order) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, total_amount, shipping_address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.ID, order.UserID, order.Status, order.TotalAmount, order.ShippingAddress, order.Notes, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}

	for _, item := range order.Items {
		_, err := pgTx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, item.ID, item.OrderID, item.ProductID, item.Quantity, item.Price)
		if err != nil {
			return mapPgError(err)
		}
	}

	return nil
}

// GetOrderForUpdate busca o pedido com lock pessimista
func (r *PostgresOrderRepository) GetOrderForUpdate(ctx context.Context, tx Tx, orderID string) (*Order, error) {
	pgTx := tx.(*PostgresTx).tx

	var order Order
	err := pgTx.QueryRow(ctx, `
		SELECT id, user_id, status, total_amount, shipping_address, notes, created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(&order.ID, &order.UserID, &order.Status, &order.TotalAmount,
		&order.ShippingAddress, &order.Notes, &order.CreatedAt, &order.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, mapPgError(err)
	}

	return &order, nil
}

// GetOrderItems busca os itens de um pedido dentro da transação
func (r *PostgresOrderRepository) GetOrderItems(ctx context.Context, tx Tx, orderID string) ([]OrderItem, error) {
	pgTx := tx.(*PostgresTx).tx

	rows, err := pgTx.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, mapPgError(err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}

	return items, nil
}

// UpdateOrderStatus atualiza o status de um pedido
func (r *PostgresOrderRepository) UpdateOrderStatus(ctx context.Context, tx Tx, orderID, status string) error {
	pgTx := tx.(*PostgresTx).tx

	result, err := pgTx.Exec(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, orderID)
	if err != nil {
		return mapPgError(err)
	}

	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// GetOrder busca um pedido pelo ID, já com os itens carregados
func (r *PostgresOrderRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, status, total_amount, shipping_address, notes, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(&order.ID, &order.UserID, &order.Status, &order.TotalAmount,
		&order.ShippingAddress, &order.Notes, &order.CreatedAt, &order.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, mapPgError(err)
	}

	items, err := r.loadItems(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]

	return &order, nil
}

// OrderFilter é o filtro tipado da listagem de pedidos
type OrderFilter struct {
	UserID string
	Status string
	Page   int
	Limit  int
}

// buildWhere monta a cláusula WHERE apenas com os campos preenchidos
func (f OrderFilter) buildWhere() (string, []any) {
	var conditions []string
	var args []any

	if f.UserID != "" {
		args = append(args, f.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// ListOrders lista pedidos paginados, mais recentes primeiro
func (r *PostgresOrderRepository) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error) {
	where, args := filter.buildWhere()

	var total int
	countQuery := "SELECT COUNT(*) FROM orders " + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, mapPgError(err)
	}

	offset := (filter.Page - 1) * filter.Limit
	listQuery := fmt.Sprintf(`
		SELECT id, user_id, status, total_amount, shipping_address, notes, created_at, updated_at
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	rows, err := r.db.Query(ctx, listQuery, append(args, filter.Limit, offset)...)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	defer rows.Close()

	var orders []Order
	var orderIDs []string
	for rows.Next() {
		var order Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.Status, &order.TotalAmount,
			&order.ShippingAddress, &order.Notes, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, 0, mapPgError(err)
		}
		orders = append(orders, order)
		orderIDs = append(orderIDs, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapPgError(err)
	}

	if len(orderIDs) > 0 {
		itemsByOrder, err := r.loadItems(ctx, orderIDs)
		if err != nil {
			return nil, 0, err
		}
		for i := range orders {
			orders[i].Items = itemsByOrder[orders[i].ID]
		}
	}

	return orders, total, nil
}

// loadItems carrega os itens de um conjunto de pedidos em uma única query
func (r *PostgresOrderRepository) loadItems(ctx context.Context, orderIDs []string) (map[string][]OrderItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
	`, orderIDs)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	itemsByOrder := make(map[string][]OrderItem)
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, mapPgError(err)
		}
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}

	return itemsByOrder, nil
}

// GetUserOrderStats agrega contagem e valor total de pedidos por status
func (r *PostgresOrderRepository) GetUserOrderStats(ctx context.Context, userID string) (*OrderStats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE user_id = $1
		GROUP BY status
	`, userID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	stats := &OrderStats{
		TotalAmount: decimal.Zero,
		ByStatus:    make(map[string]StatusStat),
	}
	for rows.Next() {
		var status string
		var count int
		var amount decimal.Decimal
		if err := rows.Scan(&status, &count, &amount); err != nil {
			return nil, mapPgError(err)
		}
		stats.ByStatus[status] = StatusStat{Count: count, TotalAmount: amount}
		stats.TotalOrders += count
		stats.TotalAmount = stats.TotalAmount.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}

	return stats, nil
}

// mapPgError traduz falhas de serialização e deadlock para
// ErrConcurrencyConflict; o chamador decide se refaz a operação inteira
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 = serialization_failure, 40P01 = deadlock_detected
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return fmt.Errorf("%w: %s", ErrConcurrencyConflict, pgErr.Code)
		}
	}
	return err
}
