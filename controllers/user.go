package controllers

import (
	"context"
	"errors"
	"net/http"

	"go-storefront/apperror"
	"go-storefront/metrics"
	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/storage"
	"go-storefront/utils"
)

// UserController handles user-related requests
type UserController struct {
	Store        storage.UserStore
	Tokens       *utils.JWTManager
	EmailService *utils.EmailService
}

// NewUserController creates a new UserController with EmailService
func NewUserController(store storage.UserStore, tokens *utils.JWTManager, emailService *utils.EmailService) *UserController {
	return &UserController{
		Store:        store,
		Tokens:       tokens,
		EmailService: emailService,
	}
}

type signupRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

type userResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

var errUserExists = apperror.New(apperror.Conflict, "User already exists")

// Signup handles user registration
func (uc *UserController) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	// Check if user already exists
	if exists, err := uc.userExists(ctx, req.Username, req.Email); err != nil {
		respondError(w, r, err)
		return
	} else if exists {
		respondError(w, r, errUserExists)
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Name:     req.Name,
		Password: hashedPassword,
		Phone:    req.Phone,
	}
	if err := uc.Store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			err = errUserExists
		}
		respondError(w, r, err)
		return
	}

	token, err := uc.Tokens.GenerateJWT(user)
	if err != nil {
		respondError(w, r, err)
		return
	}
	metrics.RecordSignup()

	// Send welcome email
	welcome := *user
	uc.EmailService.Go(func() error {
		return uc.EmailService.SendWelcomeEmail(welcome)
	})

	utils.WriteJSON(w, http.StatusCreated, authResponse{
		Message: "User created successfully",
		Token:   token,
		User:    user,
	})
}

func (uc *UserController) userExists(ctx context.Context, username, email string) (bool, error) {
	for _, lookup := range []func() (*models.User, error){
		func() (*models.User, error) { return uc.Store.GetUserByUsername(ctx, username) },
		func() (*models.User, error) { return uc.Store.GetUserByEmail(ctx, email) },
	} {
		_, err := lookup()
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return false, err
		}
	}
	return false, nil
}

// Login handles user authentication
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeRequest(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	invalid := apperror.New(apperror.Unauthorized, "Invalid credentials")

	user, err := uc.Store.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.RecordLogin(false)
		respondError(w, r, invalid)
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	if !utils.CheckPassword(user.Password, req.Password) {
		metrics.RecordLogin(false)
		respondError(w, r, invalid)
		return
	}

	token, err := uc.Tokens.GenerateJWT(user)
	if err != nil {
		respondError(w, r, err)
		return
	}
	metrics.RecordLogin(true)

	utils.WriteJSON(w, http.StatusOK, authResponse{
		Message: "Login successful",
		Token:   token,
		User:    user,
	})
}

// GetProfile returns the authenticated user's account
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	user, err := uc.Store.GetUser(ctx, claims.ID)
	if err != nil {
		respondError(w, r, notFoundAs(err, "User not found"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

// UpdateProfile changes name, phone or addresses of the authenticated user
func (uc *UserController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var update models.UserUpdate
	if err := decodeRequest(w, r, &update); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	user, err := uc.Store.UpdateUser(ctx, claims.ID, update)
	if err != nil {
		respondError(w, r, notFoundAs(err, "User not found"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, userResponse{
		Message: "Profile updated successfully",
		User:    user,
	})
}

// EnsureAdmin creates the bootstrap admin account unless the username is
// already registered. It reports whether an account was created.
func (uc *UserController) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	existing, err := uc.Store.GetUserByUsername(ctx, username)
	if err == nil {
		if !existing.IsAdmin {
			middleware.LoggerFromContext(ctx).WithField("username", username).
				Warn("bootstrap admin username belongs to a regular account")
		}
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return false, err
	}
	admin := &models.User{
		Username: username,
		Email:    email,
		Name:     "Administrator",
		Password: hashedPassword,
		IsAdmin:  true,
	}
	if err := uc.Store.CreateUser(ctx, admin); err != nil {
		return false, err
	}
	return true, nil
}
