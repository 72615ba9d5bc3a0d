package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go-storefront/models"
)

// MemoryStore implements Store with in-memory maps.
// A single RWMutex guards every map, so multi-step operations such as
// PlaceOrder and AddCartItem are atomic with respect to each other.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[int64]models.User
	products   map[int64]models.Product
	carts      map[int64]models.Cart
	cartItems  map[int64]models.CartItem
	orders     map[int64]models.Order
	orderItems map[int64]models.OrderItem

	nextUserID      int64
	nextProductID   int64
	nextCartID      int64
	nextCartItemID  int64
	nextOrderID     int64
	nextOrderItemID int64

	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:           make(map[int64]models.User),
		products:        make(map[int64]models.Product),
		carts:           make(map[int64]models.Cart),
		cartItems:       make(map[int64]models.CartItem),
		orders:          make(map[int64]models.Order),
		orderItems:      make(map[int64]models.OrderItem),
		nextUserID:      1,
		nextProductID:   1,
		nextCartID:      1,
		nextCartItemID:  1,
		nextOrderID:     1,
		nextOrderItemID: 1,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func allocate(counter *int64) int64 {
	id := *counter
	*counter++
	return id
}

func copyUser(u models.User) *models.User {
	u.Addresses = append([]string{}, u.Addresses...)
	return &u
}

func copyProduct(p models.Product) models.Product {
	p.Tags = append([]string{}, p.Tags...)
	return p
}

// Users ----------------------------------------------------------------------

func (m *MemoryStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username {
			return fmt.Errorf("%w: username %q is taken", ErrDuplicate, user.Username)
		}
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("%w: email %q is registered", ErrDuplicate, user.Email)
		}
	}

	now := m.now()
	user.ID = allocate(&m.nextUserID)
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Addresses == nil {
		user.Addresses = []string{}
	}
	m.users[user.ID] = *copyUser(*user)
	return nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, id int64, update models.UserUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	update.Apply(&u)
	u.UpdatedAt = m.now()
	m.users[id] = u
	return copyUser(u), nil
}

// Products -------------------------------------------------------------------

func (m *MemoryStore) listProducts(keep func(models.Product) bool) []models.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()

	products := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		if keep(p) {
			products = append(products, copyProduct(p))
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}

func (m *MemoryStore) GetProducts(_ context.Context) ([]models.Product, error) {
	return m.listProducts(func(models.Product) bool { return true }), nil
}

func (m *MemoryStore) GetFeaturedProducts(_ context.Context) ([]models.Product, error) {
	return m.listProducts(func(p models.Product) bool { return p.Featured }), nil
}

func (m *MemoryStore) GetProductsByCategory(_ context.Context, category string) ([]models.Product, error) {
	return m.listProducts(func(p models.Product) bool { return p.Category == category }), nil
}

func (m *MemoryStore) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = copyProduct(p)
	return &p, nil
}

func (m *MemoryStore) CreateProduct(_ context.Context, product *models.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	product.ID = allocate(&m.nextProductID)
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.Tags == nil {
		product.Tags = []string{}
	}
	m.products[product.ID] = copyProduct(*product)
	return nil
}

func (m *MemoryStore) UpdateProduct(_ context.Context, id int64, update models.ProductUpdate) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	update.Apply(&p)
	if err := validateProduct(&p); err != nil {
		return nil, err
	}
	p.UpdatedAt = m.now()
	m.products[id] = p

	p = copyProduct(p)
	return &p, nil
}

// DeleteProduct removes the product only; cart and order rows that reference
// it stay behind and are skipped by the joined queries.
func (m *MemoryStore) DeleteProduct(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	return nil
}

// Carts ----------------------------------------------------------------------

func (m *MemoryStore) cartForUserLocked(userID int64) (models.Cart, bool) {
	for _, c := range m.carts {
		if c.UserID == userID {
			return c, true
		}
	}
	return models.Cart{}, false
}

func (m *MemoryStore) createCartLocked(userID int64) models.Cart {
	now := m.now()
	cart := models.Cart{
		ID:        allocate(&m.nextCartID),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.carts[cart.ID] = cart
	return cart
}

func (m *MemoryStore) GetCart(_ context.Context, userID int64) (*models.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cart, ok := m.cartForUserLocked(userID)
	if !ok {
		return nil, ErrNotFound
	}
	return &cart, nil
}

func (m *MemoryStore) CreateCart(_ context.Context, userID int64) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cartForUserLocked(userID); ok {
		return nil, fmt.Errorf("%w: user %d already has a cart", ErrDuplicate, userID)
	}
	cart := m.createCartLocked(userID)
	return &cart, nil
}

func (m *MemoryStore) GetOrCreateCart(_ context.Context, userID int64) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.cartForUserLocked(userID)
	if !ok {
		cart = m.createCartLocked(userID)
	}
	return &cart, nil
}

func (m *MemoryStore) cartLinesLocked(cartID int64) []models.CartLine {
	lines := make([]models.CartLine, 0)
	for _, item := range m.cartItems {
		if item.CartID != cartID {
			continue
		}
		product, ok := m.products[item.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, models.CartLine{CartItem: item, Product: copyProduct(product)})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines
}

func (m *MemoryStore) GetCartItems(_ context.Context, cartID int64) ([]models.CartLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.cartLinesLocked(cartID), nil
}

func (m *MemoryStore) findCartItemLocked(cartID, productID int64) (models.CartItem, bool) {
	for _, item := range m.cartItems {
		if item.CartID == cartID && item.ProductID == productID {
			return item, true
		}
	}
	return models.CartItem{}, false
}

func (m *MemoryStore) touchCartLocked(cartID int64) {
	if cart, ok := m.carts[cartID]; ok {
		cart.UpdatedAt = m.now()
		m.carts[cartID] = cart
	}
}

func (m *MemoryStore) AddCartItem(_ context.Context, cartID, productID int64, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.carts[cartID]; !ok {
		return nil, ErrNotFound
	}

	item, ok := m.findCartItemLocked(cartID, productID)
	if ok {
		item.Quantity += quantity
	} else {
		item = models.CartItem{
			ID:        allocate(&m.nextCartItemID),
			CartID:    cartID,
			ProductID: productID,
			Quantity:  quantity,
			CreatedAt: m.now(),
		}
	}
	m.cartItems[item.ID] = item
	m.touchCartLocked(cartID)
	return &item, nil
}

func (m *MemoryStore) UpdateCartItem(_ context.Context, cartID, productID int64, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.findCartItemLocked(cartID, productID)
	if !ok {
		return nil, ErrNotFound
	}
	item.Quantity = quantity
	m.cartItems[item.ID] = item
	m.touchCartLocked(cartID)
	return &item, nil
}

func (m *MemoryStore) RemoveCartItem(_ context.Context, cartID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.findCartItemLocked(cartID, productID)
	if !ok {
		return ErrNotFound
	}
	delete(m.cartItems, item.ID)
	m.touchCartLocked(cartID)
	return nil
}

func (m *MemoryStore) clearCartLocked(cartID int64) {
	for id, item := range m.cartItems {
		if item.CartID == cartID {
			delete(m.cartItems, id)
		}
	}
	m.touchCartLocked(cartID)
}

func (m *MemoryStore) ClearCart(_ context.Context, cartID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.carts[cartID]; !ok {
		return ErrNotFound
	}
	m.clearCartLocked(cartID)
	return nil
}

// Orders ---------------------------------------------------------------------

func (m *MemoryStore) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *MemoryStore) GetUserOrders(_ context.Context, userID int64) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := make([]models.Order, 0)
	for _, o := range m.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (m *MemoryStore) GetOrderItems(_ context.Context, orderID int64) ([]models.OrderLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines := make([]models.OrderLine, 0)
	for _, item := range m.orderItems {
		if item.OrderID != orderID {
			continue
		}
		product, ok := m.products[item.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, models.OrderLine{OrderItem: item, Product: copyProduct(product)})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

func (m *MemoryStore) PlaceOrder(_ context.Context, userID int64, shippingAddress string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.cartForUserLocked(userID)
	if !ok {
		return nil, ErrEmptyCart
	}
	lines := m.cartLinesLocked(cart.ID)
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

	now := m.now()
	order := models.Order{
		ID:              allocate(&m.nextOrderID),
		UserID:          userID,
		Total:           total,
		Status:          models.OrderStatusPending,
		ShippingAddress: shippingAddress,
		PaymentStatus:   models.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.orders[order.ID] = order

	for _, line := range lines {
		item := models.OrderItem{
			ID:        allocate(&m.nextOrderItemID),
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Product.Price,
			CreatedAt: now,
		}
		m.orderItems[item.ID] = item
	}

	m.clearCartLocked(cart.ID)

	for _, line := range lines {
		product := m.products[line.ProductID]
		product.Stock -= line.Quantity
		product.UpdatedAt = now
		m.products[product.ID] = product
	}

	return &order, nil
}

func (m *MemoryStore) UpdateOrderStatus(_ context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := checkOrderTransition(o.Status, status); err != nil {
		return nil, err
	}
	o.Status = status
	o.UpdatedAt = m.now()
	m.orders[id] = o
	return &o, nil
}

func (m *MemoryStore) UpdatePaymentStatus(_ context.Context, id int64, status models.PaymentStatus) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := checkPaymentTransition(o.PaymentStatus, status); err != nil {
		return nil, err
	}
	o.PaymentStatus = status
	o.UpdatedAt = m.now()
	m.orders[id] = o
	return &o, nil
}
