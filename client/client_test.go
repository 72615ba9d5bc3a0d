package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-storefront/controllers"
	"go-storefront/models"
	"go-storefront/routes"
	"go-storefront/storage"
	"go-storefront/utils"
)

func newTestServer(t *testing.T) (*httptest.Server, *storage.MemoryStore) {
	t.Helper()
	log, _ := test.NewNullLogger()
	store := storage.NewMemoryStore()
	tokens := utils.NewJWTManager("client-secret", time.Hour)
	emailService := utils.NewEmailService(utils.NoopMailer{}, log)

	userController := controllers.NewUserController(store, tokens, emailService)
	router := mux.NewRouter()
	routes.RegisterRoutes(router, routes.Options{Tokens: tokens, Logger: log},
		userController,
		controllers.NewProductController(store),
		controllers.NewCartController(store, store),
		controllers.NewOrderController(store, store, emailService),
	)
	_, err := userController.EnsureAdmin(context.Background(), "admin", "admin@example.com", "admin-pass")
	require.NoError(t, err)
	_, err = storage.SeedProducts(context.Background(), store)
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, store
}

func newTestClient(server *httptest.Server, tokens TokenStore) *Client {
	return New(Config{BaseURL: server.URL + "/", Tokens: tokens, HTTPClient: server.Client()})
}

func TestClientProductsAndErrors(t *testing.T) {
	server, _ := newTestServer(t)
	c := newTestClient(server, nil)
	ctx := context.Background()

	products, err := c.Products(ctx, ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, products, 6)

	featured, err := c.Products(ctx, ProductFilter{Featured: true})
	require.NoError(t, err)
	assert.Len(t, featured, 3)

	product, err := c.Product(ctx, products[0].ID)
	require.NoError(t, err)
	assert.Equal(t, products[0].Title, product.Title)

	_, err = c.Product(ctx, 999)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.Equal(t, "Product not found", apiErr.Message)

	_, err = c.Profile(ctx)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
}

func TestDecodeAPIErrorWithoutJSON(t *testing.T) {
	err := decodeAPIError(http.StatusBadGateway, []byte("upstream down\n"))
	assert.EqualError(t, err, "storefront: 502 upstream down")

	err = decodeAPIError(http.StatusServiceUnavailable, nil)
	assert.EqualError(t, err, "storefront: 503 Service Unavailable")
}

func TestAuthSession(t *testing.T) {
	server, _ := newTestServer(t)
	tokens := &MemoryTokenStore{}
	c := newTestClient(server, tokens)
	ctx := context.Background()

	session := NewAuthSession(c, nil)
	assert.True(t, session.State().Loading)

	require.NoError(t, session.Init(ctx))
	state := session.State()
	assert.False(t, state.Loading)
	assert.False(t, state.IsAuthenticated)

	require.NoError(t, session.Signup(ctx, SignupRequest{
		Username: "ann", Email: "ann@example.com", Name: "Ann", Password: "hunter22",
	}))
	state = session.State()
	require.True(t, state.IsAuthenticated)
	assert.Equal(t, "ann", state.User.Username)
	token, _ := tokens.Token()
	assert.NotEmpty(t, token)

	name := "Ann Lee"
	require.NoError(t, session.UpdateProfile(ctx, models.UserUpdate{Name: &name}))
	assert.Equal(t, "Ann Lee", session.State().User.Name)

	require.NoError(t, session.Logout())
	assert.False(t, session.State().IsAuthenticated)
	token, _ = tokens.Token()
	assert.Empty(t, token)

	err := session.Login(ctx, "ann@example.com", "wrong")
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, err, session.State().Err)
	assert.False(t, session.State().IsAuthenticated)

	require.NoError(t, session.Login(ctx, "ann@example.com", "hunter22"))
	assert.NoError(t, session.State().Err)

	// a fresh session restores the user from the stored token
	restored := NewAuthSession(newTestClient(server, tokens), nil)
	require.NoError(t, restored.Init(ctx))
	assert.Equal(t, "Ann Lee", restored.State().User.Name)
}

func TestAuthSessionDropsRejectedToken(t *testing.T) {
	server, _ := newTestServer(t)
	tokens := &MemoryTokenStore{}
	require.NoError(t, tokens.SetToken("stale-token"))

	log, hook := test.NewNullLogger()
	session := NewAuthSession(newTestClient(server, tokens), log)
	require.NoError(t, session.Init(context.Background()))

	state := session.State()
	assert.False(t, state.IsAuthenticated)
	assert.NoError(t, state.Err)
	token, _ := tokens.Token()
	assert.Empty(t, token)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "auth initialization failed", hook.LastEntry().Message)
}

func TestCartSession(t *testing.T) {
	server, store := newTestServer(t)
	c := newTestClient(server, nil)
	ctx := context.Background()

	auth := NewAuthSession(c, nil)
	require.NoError(t, auth.Signup(ctx, SignupRequest{
		Username: "ann", Email: "ann@example.com", Name: "Ann", Password: "hunter22",
	}))

	products, err := store.GetProducts(ctx)
	require.NoError(t, err)
	first, second := products[0], products[1]

	cart := NewCartSession(c)
	require.NoError(t, cart.Fetch(ctx))
	assert.Empty(t, cart.State().Items)
	assert.Equal(t, 0, cart.ItemCount())

	require.NoError(t, cart.Add(ctx, first.ID, 2))
	require.NoError(t, cart.Add(ctx, second.ID, 1))
	assert.Equal(t, 3, cart.ItemCount())
	want := first.Price.Times(2).Plus(second.Price)
	assert.Equal(t, want.String(), cart.State().Total.String())

	require.NoError(t, cart.Update(ctx, first.ID, 1))
	assert.Equal(t, 2, cart.ItemCount())

	require.NoError(t, cart.Update(ctx, second.ID, 0))
	assert.Len(t, cart.State().Items, 1)

	require.NoError(t, cart.Remove(ctx, first.ID))
	assert.Empty(t, cart.State().Items)

	err = cart.Remove(ctx, first.ID)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Equal(t, err, cart.State().Err)

	err = cart.Add(ctx, first.ID, first.Stock+1)
	assert.True(t, IsStatus(err, http.StatusBadRequest))
}

func TestClientCheckoutAndAdmin(t *testing.T) {
	server, _ := newTestServer(t)
	ctx := context.Background()

	shopper := newTestClient(server, nil)
	res, err := shopper.Signup(ctx, SignupRequest{
		Username: "ann", Email: "ann@example.com", Name: "Ann", Password: "hunter22",
	})
	require.NoError(t, err)
	require.NoError(t, shopper.Tokens().SetToken(res.Token))

	admin := newTestClient(server, nil)
	login, err := admin.Login(ctx, "admin@example.com", "admin-pass")
	require.NoError(t, err)
	require.NoError(t, admin.Tokens().SetToken(login.Token))

	product, err := admin.CreateProduct(ctx, models.Product{
		Title: "Harbor", Description: "Boats at dusk", Price: models.MustMoney("9.50"),
		ImageURL: "https://example.com/harbor.jpg", Stock: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCategory, product.Category)

	_, err = shopper.CreateProduct(ctx, models.Product{Title: "x"})
	assert.True(t, IsStatus(err, http.StatusForbidden))

	_, err = shopper.AddToCart(ctx, product.ID, 2)
	require.NoError(t, err)
	order, err := shopper.PlaceOrder(ctx, "1 Main St")
	require.NoError(t, err)
	assert.Equal(t, "19.00", order.Total.String())

	history, err := shopper.OrderHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, order.ID, history[0].ID)

	updated, err := admin.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, updated.Status)

	updated, err = admin.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)

	full, err := shopper.Order(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, full.Status)
	require.Len(t, full.Items, 1)

	stock := 0
	_, err = admin.UpdateProduct(ctx, product.ID, models.ProductUpdate{Stock: &stock})
	require.NoError(t, err)
	require.NoError(t, admin.DeleteProduct(ctx, product.ID))

	require.NoError(t, shopper.ClearCart(ctx))
}

func TestFileTokenStore(t *testing.T) {
	store := FileTokenStore{Path: filepath.Join(t.TempDir(), "nested", "token")}

	token, err := store.Token()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.SetToken("abc.def.ghi"))
	token, err = store.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	info, err := os.Stat(store.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, store.ClearToken())
	require.NoError(t, store.ClearToken())
	token, err = store.Token()
	require.NoError(t, err)
	assert.Empty(t, token)
}
