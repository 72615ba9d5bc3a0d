// Package client is a typed Go client for the storefront HTTP API, plus
// stateful auth and cart sessions for interactive front ends.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-storefront/models"
)

const maxResponseBytes = 8 << 20

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront: %d %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Tokens     TokenStore
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the storefront API. The bearer token, when present, is read
// from the TokenStore on every request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenStore
}

// New creates a client. A nil token store means an in-memory one.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = &MemoryTokenStore{}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokens:     tokens,
	}
}

// Tokens returns the store the client reads its bearer token from.
func (c *Client) Tokens() TokenStore {
	return c.tokens
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if target == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	apiErr := &APIError{StatusCode: status}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// SignupRequest is the body of POST /api/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    models.User `json:"user"`
}

// Signup registers an account. The token is not stored; see AuthSession.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var res AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/signup", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Login exchanges credentials for a token. The token is not stored; see AuthSession.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var res AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/login", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/user/profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update models.UserUpdate) (*models.User, error) {
	var res struct {
		User models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/user/update", update, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// ProductFilter narrows a product listing. Category wins over Featured.
type ProductFilter struct {
	Category string
	Featured bool
}

func (c *Client) Products(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := url.Values{}
	if filter.Category != "" {
		query.Set("category", filter.Category)
	}
	if filter.Featured {
		query.Set("featured", "true")
	}
	path := "/api/products"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var products []models.Product
	if err := c.do(ctx, http.MethodGet, path, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) Product(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/products/%d", id), nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct requires an admin token.
func (c *Client) CreateProduct(ctx context.Context, product models.Product) (*models.Product, error) {
	var res struct {
		Product models.Product `json:"product"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/products", product, &res); err != nil {
		return nil, err
	}
	return &res.Product, nil
}

// UpdateProduct requires an admin token.
func (c *Client) UpdateProduct(ctx context.Context, id int64, update models.ProductUpdate) (*models.Product, error) {
	var res struct {
		Product models.Product `json:"product"`
	}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/products/%d", id), update, &res); err != nil {
		return nil, err
	}
	return &res.Product, nil
}

// DeleteProduct requires an admin token.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/products/%d", id), nil, nil)
}

// CartView is the body of GET /api/cart.
type CartView struct {
	Cart  models.Cart       `json:"cart"`
	Items []models.CartLine `json:"items"`
	Total models.Money      `json:"total"`
}

func (c *Client) Cart(ctx context.Context) (*CartView, error) {
	var view CartView
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

type cartItemResult struct {
	CartItem *models.CartItem `json:"cartItem"`
}

func (c *Client) AddToCart(ctx context.Context, productID int64, quantity int) (*models.CartItem, error) {
	var res cartItemResult
	body := map[string]any{"productId": productID, "quantity": quantity}
	if err := c.do(ctx, http.MethodPost, "/api/cart/add", body, &res); err != nil {
		return nil, err
	}
	return res.CartItem, nil
}

// UpdateCartItem sets a line's quantity. Zero removes the line and returns a nil item.
func (c *Client) UpdateCartItem(ctx context.Context, productID int64, quantity int) (*models.CartItem, error) {
	var res cartItemResult
	body := map[string]any{"productId": productID, "quantity": quantity}
	if err := c.do(ctx, http.MethodPut, "/api/cart/update", body, &res); err != nil {
		return nil, err
	}
	return res.CartItem, nil
}

func (c *Client) RemoveFromCart(ctx context.Context, productID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/cart/remove/%d", productID), nil, nil)
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/cart", nil, nil)
}

type orderResult struct {
	Order models.Order `json:"order"`
}

// PlaceOrder checks out the current cart.
func (c *Client) PlaceOrder(ctx context.Context, shippingAddress string) (*models.Order, error) {
	var res orderResult
	body := map[string]string{"shippingAddress": shippingAddress}
	if err := c.do(ctx, http.MethodPost, "/api/order", body, &res); err != nil {
		return nil, err
	}
	return &res.Order, nil
}

func (c *Client) OrderHistory(ctx context.Context) ([]models.OrderWithItems, error) {
	var orders []models.OrderWithItems
	if err := c.do(ctx, http.MethodGet, "/api/order/history", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) Order(ctx context.Context, id int64) (*models.OrderWithItems, error) {
	var order models.OrderWithItems
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/order/%d", id), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus requires an admin token.
func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	var res orderResult
	body := map[string]models.OrderStatus{"status": status}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/order/%d/status", id), body, &res); err != nil {
		return nil, err
	}
	return &res.Order, nil
}

// UpdatePaymentStatus requires an admin token.
func (c *Client) UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (*models.Order, error) {
	var res orderResult
	body := map[string]models.PaymentStatus{"paymentStatus": status}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/order/%d/payment", id), body, &res); err != nil {
		return nil, err
	}
	return &res.Order, nil
}
