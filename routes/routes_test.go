package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-storefront/controllers"
	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/storage"
	"go-storefront/utils"
)

type testAPI struct {
	t       *testing.T
	router  *mux.Router
	store   *storage.MemoryStore
	tokens  *utils.JWTManager
	polar   *models.Product
	sticker *models.Product
}

func newTestAPI(t *testing.T, limiter *middleware.RateLimiter) *testAPI {
	t.Helper()
	log, _ := test.NewNullLogger()
	store := storage.NewMemoryStore()
	tokens := utils.NewJWTManager("test-secret", time.Hour)
	emailService := utils.NewEmailService(utils.NoopMailer{}, log)

	userController := controllers.NewUserController(store, tokens, emailService)
	router := mux.NewRouter()
	RegisterRoutes(router, Options{Tokens: tokens, Logger: log, Limiter: limiter},
		userController,
		controllers.NewProductController(store),
		controllers.NewCartController(store, store),
		controllers.NewOrderController(store, store, emailService),
	)

	ctx := context.Background()
	created, err := userController.EnsureAdmin(ctx, "admin", "admin@example.com", "admin-pass")
	require.NoError(t, err)
	require.True(t, created)

	polar := &models.Product{
		Title: "Polar Night", Description: "Aurora print", Price: models.MustMoney("12.50"),
		ImageURL: "https://example.com/polar.jpg", Tags: []string{"night"}, Stock: 5,
		Category: models.DefaultCategory, Featured: true,
	}
	sticker := &models.Product{
		Title: "Sticker Pack", Description: "Ten stickers", Price: models.MustMoney("4.99"),
		ImageURL: "https://example.com/sticker.jpg", Tags: []string{}, Stock: 10,
		Category: "stickers",
	}
	require.NoError(t, store.CreateProduct(ctx, polar))
	require.NoError(t, store.CreateProduct(ctx, sticker))

	return &testAPI{t: t, router: router, store: store, tokens: tokens, polar: polar, sticker: sticker}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type authBody struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    models.User `json:"user"`
}

func (a *testAPI) signup(username string) (string, models.User) {
	a.t.Helper()
	rec := a.do("POST", "/api/signup", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"name":     "Test " + username,
		"password": "hunter22",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode[authBody](a.t, rec)
	return body.Token, body.User
}

func (a *testAPI) adminToken() string {
	a.t.Helper()
	rec := a.do("POST", "/api/login", "", map[string]string{"email": "admin@example.com", "password": "admin-pass"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[authBody](a.t, rec).Token
}

func TestSignupAndLogin(t *testing.T) {
	api := newTestAPI(t, nil)

	token, user := api.signup("ann")
	assert.NotEmpty(t, token)
	assert.Equal(t, "ann", user.Username)
	assert.False(t, user.IsAdmin)

	rec := api.do("POST", "/api/signup", "", map[string]string{
		"username": "ann", "email": "other@example.com", "name": "Ann", "password": "x",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already exists", decode[utils.ErrorBody](t, rec).Message)

	rec = api.do("POST", "/api/signup", "", map[string]string{"username": "bob"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields: email, name, password", decode[utils.ErrorBody](t, rec).Message)

	rec = api.do("POST", "/api/login", "", map[string]string{"email": "ann@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decode[utils.ErrorBody](t, rec).Message)

	rec = api.do("POST", "/api/login", "", map[string]string{"email": "nobody@example.com", "password": "hunter22"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do("POST", "/api/login", "", map[string]string{"email": "ann@example.com", "password": "hunter22"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[authBody](t, rec)
	assert.Equal(t, "Login successful", body.Message)
	assert.NotContains(t, rec.Body.String(), "password")

	claims, err := api.tokens.ParseJWT(body.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.ID)
}

func TestProfile(t *testing.T) {
	api := newTestAPI(t, nil)
	token, _ := api.signup("ann")

	rec := api.do("GET", "/api/user/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do("GET", "/api/user/profile", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do("GET", "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ann@example.com", decode[models.User](t, rec).Email)

	rec = api.do("PUT", "/api/user/update", token, map[string]any{
		"name":      "Ann Lee",
		"addresses": []string{"1 Main St"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[struct {
		Message string      `json:"message"`
		User    models.User `json:"user"`
	}](t, rec)
	assert.Equal(t, "Profile updated successfully", updated.Message)
	assert.Equal(t, "Ann Lee", updated.User.Name)
	assert.Equal(t, []string{"1 Main St"}, updated.User.Addresses)
	assert.Equal(t, "ann", updated.User.Username)
}

func TestProductCatalog(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do("GET", "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Product](t, rec), 2)

	rec = api.do("GET", "/api/products?featured=true", "", nil)
	featured := decode[[]models.Product](t, rec)
	require.Len(t, featured, 1)
	assert.Equal(t, "Polar Night", featured[0].Title)
	assert.Contains(t, rec.Body.String(), `"price":"12.50"`)

	rec = api.do("GET", "/api/products?category=stickers&featured=true", "", nil)
	byCategory := decode[[]models.Product](t, rec)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Sticker Pack", byCategory[0].Title)

	rec = api.do("GET", "/api/products?category=none", "", nil)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = api.do("GET", fmt.Sprintf("/api/products/%d", api.polar.ID), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do("GET", "/api/products/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decode[utils.ErrorBody](t, rec).Message)

	rec = api.do("GET", "/api/products/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductAdmin(t *testing.T) {
	api := newTestAPI(t, nil)
	userToken, _ := api.signup("ann")
	admin := api.adminToken()

	newProduct := map[string]any{
		"title": "Lake", "description": "Calm water", "price": "7.25",
		"imageUrl": "https://example.com/lake.jpg", "stock": 3,
	}

	rec := api.do("POST", "/api/products", "", newProduct)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do("POST", "/api/products", userToken, newProduct)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do("POST", "/api/products", admin, map[string]any{"title": "Lake"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do("POST", "/api/products", admin, newProduct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Product models.Product `json:"product"`
	}](t, rec).Product
	assert.Equal(t, models.DefaultCategory, created.Category)
	assert.Equal(t, "7.25", created.Price.String())

	path := fmt.Sprintf("/api/products/%d", created.ID)
	rec = api.do("PUT", path, admin, map[string]any{"stock": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do("PUT", path, admin, map[string]any{"price": 8})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price":"8.00"`)
	assert.Contains(t, rec.Body.String(), `"title":"Lake"`)

	rec = api.do("DELETE", path, admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = api.do("DELETE", path, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type cartBody struct {
	Cart  models.Cart       `json:"cart"`
	Items []models.CartLine `json:"items"`
	Total string            `json:"total"`
}

func TestCartFlow(t *testing.T) {
	api := newTestAPI(t, nil)
	token, _ := api.signup("ann")

	rec := api.do("GET", "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[cartBody](t, rec)
	assert.Empty(t, empty.Items)
	assert.Equal(t, "0.00", empty.Total)

	rec = api.do("POST", "/api/cart/add", token, map[string]any{"productId": api.polar.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Item added to cart", decode[utils.ErrorBody](t, rec).Message)

	rec = api.do("POST", "/api/cart/add", token, map[string]any{"productId": api.polar.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do("POST", "/api/cart/add", token, map[string]any{"productId": api.sticker.ID, "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	cart := decode[cartBody](t, api.do("GET", "/api/cart", token, nil))
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, "42.49", cart.Total)

	tests := []struct {
		name string
		body map[string]any
		want int
		msg  string
	}{
		{"unknown product", map[string]any{"productId": 999}, http.StatusNotFound, "Product not found"},
		{"over stock", map[string]any{"productId": api.polar.ID, "quantity": 6}, http.StatusBadRequest, "Insufficient stock"},
		{"zero quantity", map[string]any{"productId": api.polar.ID, "quantity": 0}, http.StatusBadRequest, ""},
		{"missing product", map[string]any{"quantity": 1}, http.StatusBadRequest, "Missing required fields: productId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do("POST", "/api/cart/add", token, tt.body)
			assert.Equal(t, tt.want, rec.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, decode[utils.ErrorBody](t, rec).Message)
			}
		})
	}

	rec = api.do("PUT", "/api/cart/update", token, map[string]any{"productId": api.polar.ID, "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cart updated", decode[utils.ErrorBody](t, rec).Message)

	rec = api.do("PUT", "/api/cart/update", token, map[string]any{"productId": api.polar.ID, "quantity": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do("PUT", "/api/cart/update", token, map[string]any{"productId": api.sticker.ID, "quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Item removed from cart", decode[utils.ErrorBody](t, rec).Message)

	rec = api.do("PUT", "/api/cart/update", token, map[string]any{"productId": api.sticker.ID, "quantity": 0})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cart = decode[cartBody](t, api.do("GET", "/api/cart", token, nil))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "12.50", cart.Total)

	rec = api.do("DELETE", fmt.Sprintf("/api/cart/remove/%d", api.polar.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do("DELETE", fmt.Sprintf("/api/cart/remove/%d", api.polar.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Item not found in cart", decode[utils.ErrorBody](t, rec).Message)

	api.do("POST", "/api/cart/add", token, map[string]any{"productId": api.sticker.ID, "quantity": 2})
	rec = api.do("DELETE", "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[cartBody](t, api.do("GET", "/api/cart", token, nil)).Items)
}

func TestCartUpdateWithoutCart(t *testing.T) {
	api := newTestAPI(t, nil)
	token, _ := api.signup("ann")

	rec := api.do("PUT", "/api/cart/update", token, map[string]any{"productId": api.polar.ID, "quantity": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Cart not found", decode[utils.ErrorBody](t, rec).Message)
}

type orderBody struct {
	Message string       `json:"message"`
	Order   models.Order `json:"order"`
}

func TestCheckoutAndOrders(t *testing.T) {
	api := newTestAPI(t, nil)
	ann, annUser := api.signup("ann")
	bob, _ := api.signup("bob")
	admin := api.adminToken()

	rec := api.do("POST", "/api/order", ann, map[string]string{"shippingAddress": "1 Main St"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cart is empty", decode[utils.ErrorBody](t, rec).Message)

	api.do("POST", "/api/cart/add", ann, map[string]any{"productId": api.polar.ID, "quantity": 2})

	rec = api.do("POST", "/api/order", ann, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Shipping address is required", decode[utils.ErrorBody](t, rec).Message)

	rec = api.do("POST", "/api/order", ann, map[string]string{"shippingAddress": "1 Main St"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	placed := decode[orderBody](t, rec)
	assert.Equal(t, "Order created successfully", placed.Message)
	assert.Equal(t, "25.00", placed.Order.Total.String())
	assert.Equal(t, annUser.ID, placed.Order.UserID)
	assert.Equal(t, models.OrderStatusPending, placed.Order.Status)
	assert.Equal(t, models.PaymentStatusPending, placed.Order.PaymentStatus)

	product, err := api.store.GetProduct(context.Background(), api.polar.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, product.Stock)
	assert.Empty(t, decode[cartBody](t, api.do("GET", "/api/cart", ann, nil)).Items)

	rec = api.do("GET", "/api/order/history", ann, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]models.OrderWithItems](t, rec)
	require.Len(t, history, 1)
	require.Len(t, history[0].Items, 1)
	assert.Equal(t, "12.50", history[0].Items[0].Price.String())

	rec = api.do("GET", "/api/order/history", bob, nil)
	assert.JSONEq(t, "[]", rec.Body.String())

	orderPath := fmt.Sprintf("/api/order/%d", placed.Order.ID)
	assert.Equal(t, http.StatusOK, api.do("GET", orderPath, ann, nil).Code)
	assert.Equal(t, http.StatusOK, api.do("GET", orderPath, admin, nil).Code)
	rec = api.do("GET", orderPath, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied", decode[utils.ErrorBody](t, rec).Message)
	assert.Equal(t, http.StatusNotFound, api.do("GET", "/api/order/999", ann, nil).Code)

	statusPath := orderPath + "/status"
	assert.Equal(t, http.StatusForbidden, api.do("PUT", statusPath, ann, map[string]string{"status": "paid"}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do("PUT", statusPath, admin, map[string]string{"status": "shipped"}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do("PUT", statusPath, admin, map[string]string{"status": "lost"}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do("PUT", statusPath, admin, map[string]string{}).Code)

	rec = api.do("PUT", statusPath, admin, map[string]string{"status": "paid"})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[orderBody](t, rec)
	assert.Equal(t, "Order status updated", updated.Message)
	assert.Equal(t, models.OrderStatusPaid, updated.Order.Status)

	rec = api.do("PUT", orderPath+"/payment", admin, map[string]string{"paymentStatus": "paid"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PaymentStatusPaid, decode[orderBody](t, rec).Order.PaymentStatus)
	assert.Equal(t, http.StatusBadRequest,
		api.do("PUT", orderPath+"/payment", admin, map[string]string{"paymentStatus": "failed"}).Code)
	assert.Equal(t, http.StatusNotFound,
		api.do("PUT", "/api/order/999/status", admin, map[string]string{"status": "paid"}).Code)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	api := newTestAPI(t, nil)
	token, _ := api.signup("ann")
	admin := api.adminToken()

	api.do("POST", "/api/cart/add", token, map[string]any{"productId": api.polar.ID, "quantity": 4})
	api.do("PUT", fmt.Sprintf("/api/products/%d", api.polar.ID), admin, map[string]any{"stock": 2})

	rec := api.do("POST", "/api/order", token, map[string]string{"shippingAddress": "1 Main St"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Insufficient stock", decode[utils.ErrorBody](t, rec).Message)

	// the cart is left intact
	assert.Len(t, decode[cartBody](t, api.do("GET", "/api/cart", token, nil)).Items, 1)
}

func TestLoginRateLimited(t *testing.T) {
	api := newTestAPI(t, middleware.NewRateLimiter(0.001, 2))

	for i := 0; i < 2; i++ {
		rec := api.do("POST", "/api/login", "", map[string]string{"email": "x@example.com", "password": "x"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := api.do("POST", "/api/login", "", map[string]string{"email": "x@example.com", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// other routes are not limited
	assert.Equal(t, http.StatusOK, api.do("GET", "/api/products", "", nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do("GET", "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.TraceIDHeader))

	api.do("GET", "/api/products", "", nil)
	rec = api.do("GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_http_requests_total")
}
