package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ferrobank/ferro/internal/apperr"
	"github.com/ferrobank/ferro/internal/platform/account"
	"github.com/ferrobank/ferro/internal/platform/user"
)

// UserServiceInterface defines the interface for user operations needed by AuthHandler
type UserServiceInterface interface {
	Register(ctx context.Context, email, password, fullName string) (*user.User, *account.Account, error)
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
}

// JWTServiceInterface defines the interface for JWT operations
type JWTServiceInterface interface {
	GenerateToken(userID int64, email string, isAdmin bool) (string, error)
	Expiry() time.Duration
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	userService UserServiceInterface
	jwtService  JWTServiceInterface
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService UserServiceInterface, jwtService JWTServiceInterface) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtService:  jwtService,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expires_in"`
	User      *UserInfo    `json:"user"`
	Account   *AccountInfo `json:"account,omitempty"`
}

// UserInfo represents user information (without sensitive data)
type UserInfo struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	KYCStatus string `json:"kyc_status"`
	IsAdmin   bool   `json:"is_admin"`
}

// AccountInfo represents account information returned alongside the user
type AccountInfo struct {
	ID            int64  `json:"id"`
	AccountNumber string `json:"account_number"`
	Type          string `json:"type"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
}

func userInfo(u *user.User) *UserInfo {
	return &UserInfo{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		KYCStatus: string(u.KYCStatus),
		IsAdmin:   u.IsAdmin,
	}
}

func accountInfo(a *account.Account) *AccountInfo {
	return &AccountInfo{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		Type:          string(a.AccountType),
		Currency:      a.Currency,
		Status:        string(a.Status),
	}
}

// Register handles user registration (POST /api/v1/auth/register)
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" {
		respondAppError(w, apperr.Validation("email", "email is required"))
		return
	}
	if req.Password == "" {
		respondAppError(w, apperr.Validation("password", "password is required"))
		return
	}
	if req.FullName == "" {
		respondAppError(w, apperr.Validation("full_name", "full name is required"))
		return
	}

	registered, primary, err := h.userService.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		respondAppError(w, mapRegisterErr(err))
		return
	}

	token, err := h.jwtService.GenerateToken(registered.ID, registered.Email, registered.IsAdmin)
	if err != nil {
		respondError(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, AuthResponse{
		Token:     token,
		ExpiresIn: int64(h.jwtService.Expiry().Seconds()),
		User:      userInfo(registered),
		Account:   accountInfo(primary),
	}, http.StatusCreated)
}

// Login handles user login (POST /api/v1/auth/login)
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" {
		respondAppError(w, apperr.Validation("email", "email is required"))
		return
	}
	if req.Password == "" {
		respondAppError(w, apperr.Validation("password", "password is required"))
		return
	}

	authenticated, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidCredentials):
			respondAppError(w, apperr.Unauthorized("invalid email or password"))
		case errors.Is(err, user.ErrUserInactive):
			respondAppError(w, apperr.ActorInactive("account is deactivated"))
		default:
			respondError(w, "failed to login", http.StatusInternalServerError)
		}
		return
	}

	token, err := h.jwtService.GenerateToken(authenticated.ID, authenticated.Email, authenticated.IsAdmin)
	if err != nil {
		respondError(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, AuthResponse{
		Token:     token,
		ExpiresIn: int64(h.jwtService.Expiry().Seconds()),
		User:      userInfo(authenticated),
	}, http.StatusOK)
}

func mapRegisterErr(err error) error {
	switch {
	case errors.Is(err, user.ErrEmailTaken):
		return apperr.EmailTaken()
	case errors.Is(err, user.ErrInvalidEmail):
		return apperr.Validation("email", user.ErrInvalidEmail.Error())
	case errors.Is(err, user.ErrInvalidFullName):
		return apperr.Validation("full_name", user.ErrInvalidFullName.Error())
	case errors.Is(err, user.ErrPasswordTooShort):
		return apperr.Validation("password", user.ErrPasswordTooShort.Error())
	default:
		return apperr.DB("failed to register user", err)
	}
}
