package client

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"go-storefront/models"
)

// AuthState is a snapshot of an AuthSession.
type AuthState struct {
	User            *models.User
	Loading         bool
	Err             error
	IsAuthenticated bool
}

// AuthSession tracks the signed-in user. It starts in the loading state
// until Init has run.
type AuthSession struct {
	client *Client
	log    logrus.FieldLogger

	mu      sync.RWMutex
	user    *models.User
	loading bool
	err     error
}

// NewAuthSession creates a session over c. A nil logger uses the standard logrus logger.
func NewAuthSession(c *Client, log logrus.FieldLogger) *AuthSession {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuthSession{client: c, log: log, loading: true}
}

// State returns a copy of the current session state.
func (s *AuthSession) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := AuthState{Loading: s.loading, Err: s.err, IsAuthenticated: s.user != nil}
	if s.user != nil {
		user := *s.user
		state.User = &user
	}
	return state
}

func (s *AuthSession) set(user *models.User, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.err = err
	s.loading = false
}

// Init restores the user from a stored token. A token the server rejects is
// discarded and the session ends up signed out without an error.
func (s *AuthSession) Init(ctx context.Context) error {
	token, err := s.client.tokens.Token()
	if err != nil {
		s.set(nil, err)
		return err
	}
	if token == "" {
		s.set(nil, nil)
		return nil
	}

	user, err := s.client.Profile(ctx)
	if err != nil {
		s.log.WithError(err).Warn("auth initialization failed")
		if clearErr := s.client.tokens.ClearToken(); clearErr != nil {
			s.set(nil, clearErr)
			return clearErr
		}
		s.set(nil, nil)
		return nil
	}
	s.set(user, nil)
	return nil
}

func (s *AuthSession) signIn(res *AuthResponse, err error) error {
	if err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		return err
	}
	if err := s.client.tokens.SetToken(res.Token); err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		return err
	}
	user := res.User
	s.set(&user, nil)
	return nil
}

// Login signs in and stores the token.
func (s *AuthSession) Login(ctx context.Context, email, password string) error {
	return s.signIn(s.client.Login(ctx, email, password))
}

// Signup registers, signs in and stores the token.
func (s *AuthSession) Signup(ctx context.Context, req SignupRequest) error {
	return s.signIn(s.client.Signup(ctx, req))
}

// Logout forgets the token locally. The token itself stays valid until it expires.
func (s *AuthSession) Logout() error {
	err := s.client.tokens.ClearToken()
	s.set(nil, err)
	return err
}

func (s *AuthSession) UpdateProfile(ctx context.Context, update models.UserUpdate) error {
	user, err := s.client.UpdateProfile(ctx, update)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.err = err
		return err
	}
	s.user = user
	s.err = nil
	return nil
}

// CartState is a snapshot of a CartSession.
type CartState struct {
	Items   []models.CartLine
	Total   models.Money
	Loading bool
	Err     error
}

// CartSession mirrors the server cart. Every mutation re-fetches it.
type CartSession struct {
	client *Client

	mu      sync.RWMutex
	items   []models.CartLine
	total   models.Money
	loading bool
	err     error
}

func NewCartSession(c *Client) *CartSession {
	return &CartSession{client: c}
}

// State returns a copy of the current cart state.
func (s *CartSession) State() CartState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CartState{
		Items:   append([]models.CartLine(nil), s.items...),
		Total:   s.total,
		Loading: s.loading,
		Err:     s.err,
	}
}

// ItemCount sums the quantities of all lines.
func (s *CartSession) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// Fetch reloads the cart from the server.
func (s *CartSession) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	view, err := s.client.Cart(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = err
		return err
	}
	s.items = view.Items
	s.total = view.Total
	s.err = nil
	return nil
}

func (s *CartSession) mutate(ctx context.Context, op func() error) error {
	if err := op(); err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		return err
	}
	return s.Fetch(ctx)
}

func (s *CartSession) Add(ctx context.Context, productID int64, quantity int) error {
	return s.mutate(ctx, func() error {
		_, err := s.client.AddToCart(ctx, productID, quantity)
		return err
	})
}

// Update sets a line's quantity; zero removes it.
func (s *CartSession) Update(ctx context.Context, productID int64, quantity int) error {
	return s.mutate(ctx, func() error {
		_, err := s.client.UpdateCartItem(ctx, productID, quantity)
		return err
	})
}

func (s *CartSession) Remove(ctx context.Context, productID int64) error {
	return s.mutate(ctx, func() error {
		return s.client.RemoveFromCart(ctx, productID)
	})
}
