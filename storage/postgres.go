package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"go-storefront/models"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		password TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		addresses TEXT[] NOT NULL DEFAULT '{}',
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email))`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		image_url TEXT NOT NULL,
		tags TEXT[] NOT NULL DEFAULT '{}',
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		category TEXT NOT NULL DEFAULT 'polaroid',
		featured BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL UNIQUE REFERENCES users (id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id BIGSERIAL PRIMARY KEY,
		cart_id BIGINT NOT NULL REFERENCES carts (id),
		product_id BIGINT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (cart_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users (id),
		total NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL,
		shipping_address TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders (id),
		product_id BIGINT NOT NULL,
		quantity INTEGER NOT NULL,
		price NUMERIC(12,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

const (
	userColumns      = `id, username, email, name, password, phone, addresses, is_admin, created_at, updated_at`
	productColumns   = `id, title, description, price, image_url, tags, stock, category, featured, created_at, updated_at`
	cartColumns      = `id, user_id, created_at, updated_at`
	cartItemColumns  = `id, cart_id, product_id, quantity, created_at`
	orderColumns     = `id, user_id, total, status, shipping_address, payment_status, created_at, updated_at`
	orderItemColumns = `id, order_id, product_id, quantity, price, created_at`

	joinedProductColumns = `p.id, p.title, p.description, p.price, p.image_url, p.tags, p.stock, p.category, p.featured, p.created_at, p.updated_at`
)

// userRow and productRow adapt the array columns, which the models keep as plain slices.
type userRow struct {
	models.User
	AddressList pq.StringArray `db:"addresses"`
}

func (r userRow) toModel() *models.User {
	u := r.User
	u.Addresses = append([]string{}, r.AddressList...)
	return &u
}

type productRow struct {
	models.Product
	TagList pq.StringArray `db:"tags"`
}

func (r productRow) toModel() models.Product {
	p := r.Product
	p.Tags = append([]string{}, r.TagList...)
	return p
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open database handle
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Message)
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Message)
		}
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func rollback(tx *sqlx.Tx) {
	_ = tx.Rollback()
}

// Users ----------------------------------------------------------------------

func (s *PostgresStore) getUserWhere(ctx context.Context, where string, arg any) (*models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.getUserWhere(ctx, `id = $1`, id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUserWhere(ctx, `username = $1`, username)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserWhere(ctx, `lower(email) = lower($1)`, email)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.Addresses == nil {
		user.Addresses = []string{}
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO users (username, email, name, password, phone, addresses, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, user.Username, user.Email, user.Name, user.Password, user.Phone, pq.Array(user.Addresses), user.IsAdmin,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", mapPQError(err))
	}
	return nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, id int64, update models.UserUpdate) (*models.User, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	var row userRow
	if err := tx.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, notFound(err)
	}
	user := row.toModel()
	update.Apply(user)

	err = tx.QueryRowxContext(ctx, `
		UPDATE users SET name = $2, phone = $3, addresses = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, id, user.Name, user.Phone, pq.Array(user.Addresses)).Scan(&user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return user, nil
}

// Products -------------------------------------------------------------------

func (s *PostgresStore) selectProducts(ctx context.Context, query string, args ...any) ([]models.Product, error) {
	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	products := make([]models.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.toModel())
	}
	return products, nil
}

func (s *PostgresStore) GetProducts(ctx context.Context) ([]models.Product, error) {
	return s.selectProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
}

func (s *PostgresStore) GetFeaturedProducts(ctx context.Context) ([]models.Product, error) {
	return s.selectProducts(ctx, `SELECT `+productColumns+` FROM products WHERE featured ORDER BY id`)
}

func (s *PostgresStore) GetProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return s.selectProducts(ctx, `SELECT `+productColumns+` FROM products WHERE category = $1 ORDER BY id`, category)
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var row productRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	p := row.toModel()
	return &p, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	if product.Tags == nil {
		product.Tags = []string{}
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO products (title, description, price, image_url, tags, stock, category, featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, product.Title, product.Description, product.Price, product.ImageURL, pq.Array(product.Tags),
		product.Stock, product.Category, product.Featured,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", mapPQError(err))
	}
	return nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, id int64, update models.ProductUpdate) (*models.Product, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	var row productRow
	if err := tx.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, notFound(err)
	}
	p := row.toModel()
	update.Apply(&p)
	if err := validateProduct(&p); err != nil {
		return nil, err
	}

	err = tx.QueryRowxContext(ctx, `
		UPDATE products
		SET title = $2, description = $3, price = $4, image_url = $5, tags = $6,
			stock = $7, category = $8, featured = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, id, p.Title, p.Description, p.Price, p.ImageURL, pq.Array(p.Tags), p.Stock, p.Category, p.Featured,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Carts ----------------------------------------------------------------------

func (s *PostgresStore) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	if err := s.db.GetContext(ctx, &cart, `SELECT `+cartColumns+` FROM carts WHERE user_id = $1`, userID); err != nil {
		return nil, notFound(err)
	}
	return &cart, nil
}

func (s *PostgresStore) CreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, `INSERT INTO carts (user_id) VALUES ($1) RETURNING `+cartColumns, userID)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", mapPQError(err))
	}
	return &cart, nil
}

// GetOrCreateCart relies on the unique user_id constraint; the no-op update
// makes RETURNING yield the existing row on conflict.
func (s *PostgresStore) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING `+cartColumns, userID)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", mapPQError(err))
	}
	return &cart, nil
}

func scanCartLines(rows *sqlx.Rows) ([]models.CartLine, error) {
	defer rows.Close()

	lines := make([]models.CartLine, 0)
	for rows.Next() {
		var line models.CartLine
		var tags pq.StringArray
		p := &line.Product
		err := rows.Scan(
			&line.ID, &line.CartID, &line.ProductID, &line.Quantity, &line.CreatedAt,
			&p.ID, &p.Title, &p.Description, &p.Price, &p.ImageURL, &tags, &p.Stock, &p.Category, &p.Featured, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		p.Tags = append([]string{}, tags...)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}
	return lines, nil
}

const cartLinesQuery = `
	SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.created_at, ` + joinedProductColumns + `
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	WHERE ci.cart_id = $1
	ORDER BY ci.id`

func (s *PostgresStore) GetCartItems(ctx context.Context, cartID int64) ([]models.CartLine, error) {
	rows, err := s.db.QueryxContext(ctx, cartLinesQuery, cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart items %d: %w", cartID, err)
	}
	return scanCartLines(rows)
}

func (s *PostgresStore) AddCartItem(ctx context.Context, cartID, productID int64, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	var item models.CartItem
	err := s.db.GetContext(ctx, &item, `
		INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING `+cartItemColumns, cartID, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", mapPQError(err))
	}
	return &item, nil
}

func (s *PostgresStore) UpdateCartItem(ctx context.Context, cartID, productID int64, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	var item models.CartItem
	err := s.db.GetContext(ctx, &item, `
		UPDATE cart_items SET quantity = $3
		WHERE cart_id = $1 AND product_id = $2
		RETURNING `+cartItemColumns, cartID, productID, quantity)
	if err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (s *PostgresStore) RemoveCartItem(ctx context.Context, cartID, productID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ClearCart(ctx context.Context, cartID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	result, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("touch cart %d: %w", cartID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart %d: %w", cartID, err)
	}
	return tx.Commit()
}

// Orders ---------------------------------------------------------------------

func (s *PostgresStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.db.GetContext(ctx, &order, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (s *PostgresStore) GetUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	orders := make([]models.Order, 0)
	err := s.db.SelectContext(ctx, &orders, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("get orders for user %d: %w", userID, err)
	}
	return orders, nil
}

func (s *PostgresStore) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.created_at, `+joinedProductColumns+`
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items %d: %w", orderID, err)
	}
	defer rows.Close()

	lines := make([]models.OrderLine, 0)
	for rows.Next() {
		var line models.OrderLine
		var tags pq.StringArray
		p := &line.Product
		err := rows.Scan(
			&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.Price, &line.CreatedAt,
			&p.ID, &p.Title, &p.Description, &p.Price, &p.ImageURL, &tags, &p.Stock, &p.Category, &p.Featured, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		p.Tags = append([]string{}, tags...)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}
	return lines, nil
}

// PlaceOrder runs the checkout in one transaction. The cart row and the
// purchased product rows are locked so concurrent checkouts serialize.
func (s *PostgresStore) PlaceOrder(ctx context.Context, userID int64, shippingAddress string) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	var cartID int64
	if err := tx.QueryRowxContext(ctx, `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&cartID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEmptyCart
		}
		return nil, fmt.Errorf("lock cart: %w", err)
	}

	rows, err := tx.QueryxContext(ctx, cartLinesQuery+` FOR UPDATE OF p`, cartID)
	if err != nil {
		return nil, fmt.Errorf("read cart %d: %w", cartID, err)
	}
	lines, err := scanCartLines(rows)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	var total models.Money
	for _, line := range lines {
		if line.Product.Stock < line.Quantity {
			return nil, fmt.Errorf("%w for product %q", ErrInsufficientStock, line.Product.Title)
		}
		total = total.Plus(line.Subtotal())
	}

	var order models.Order
	err = tx.GetContext(ctx, &order, `
		INSERT INTO orders (user_id, total, status, shipping_address, payment_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+orderColumns,
		userID, total, models.OrderStatusPending, shippingAddress, models.PaymentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	for _, line := range lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)`, order.ID, line.ProductID, line.Quantity, line.Product.Price)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return nil, fmt.Errorf("clear cart %d: %w", cartID, err)
	}

	for _, line := range lines {
		_, err := tx.ExecContext(ctx, `UPDATE products SET stock = stock - $1, updated_at = now() WHERE id = $2`,
			line.Quantity, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("decrement stock of product %d: %w", line.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &order, nil
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	var current models.OrderStatus
	if err := tx.QueryRowxContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
		return nil, notFound(err)
	}
	if err := checkOrderTransition(current, status); err != nil {
		return nil, err
	}

	var order models.Order
	err = tx.GetContext(ctx, &order, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
		RETURNING `+orderColumns, id, status)
	if err != nil {
		return nil, fmt.Errorf("update status of order %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &order, nil
}

func (s *PostgresStore) UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	var current models.PaymentStatus
	if err := tx.QueryRowxContext(ctx, `SELECT payment_status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
		return nil, notFound(err)
	}
	if err := checkPaymentTransition(current, status); err != nil {
		return nil, err
	}

	var order models.Order
	err = tx.GetContext(ctx, &order, `
		UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1
		RETURNING `+orderColumns, id, status)
	if err != nil {
		return nil, fmt.Errorf("update payment status of order %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &order, nil
}
