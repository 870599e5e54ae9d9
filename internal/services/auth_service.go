package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/otomarket/backend/internal/audit"
	"github.com/otomarket/backend/internal/middleware"
)

// AuthService authenticates back-office operators. Every authenticated
// request carries the operator username, which the ledger stamps on each
// transaction and history row.
type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, auditLogger *audit.Logger) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		audit:     auditLogger,
		validator: NewValidationHelper(),
	}
}

// LoginRequest represents the login payload
// @Description Operator login request
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3" example:"admin"`
	Password string `json:"password" validate:"required,min=6" example:"password123"`
}

// AuthResponse represents a successful authentication
// @Description Authentication response with JWT
type AuthResponse struct {
	Token    string   `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	Operator Operator `json:"operator"`
}

// Operator represents a back-office operator
// @Description Operator account
type Operator struct {
	ID          int64  `json:"id" example:"1"`
	Username    string `json:"username" example:"admin"`
	DisplayName string `json:"display_name" example:"Store Admin"`
	Role        string `json:"role" example:"admin"`
}

// Login authenticates an operator
// @Summary Operator login
// @Description Authenticate with username and password, returns a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var op Operator
	var hashedPassword string
	err := s.db.QueryRow(`
		SELECT id, username, display_name, role, password
		FROM operators
		WHERE username = $1 AND is_active = TRUE`,
		strings.ToLower(req.Username)).
		Scan(&op.ID, &op.Username, &op.DisplayName, &op.Role, &hashedPassword)
	if err != nil {
		log.Printf("[AUTH] Operator not found: %s", req.Username)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if !verifyPassword(req.Password, hashedPassword) {
		log.Printf("[AUTH] Invalid password for operator: %s", req.Username)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	token, err := generateJWT(op.Username)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for %s: %v", op.Username, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogOperation("LOGIN", fmt.Sprintf("operator %s from %s", op.Username, r.RemoteAddr))
	log.Printf("[AUTH] Login successful for operator %s", op.Username)
	SendJSON(w, http.StatusOK, AuthResponse{Token: token, Operator: op})
}

// Logout invalidates the current token
// @Summary Operator logout
// @Description Blacklists the presented token until its natural expiry
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:]

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	SendJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// Me returns the authenticated operator
// @Summary Current operator
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Operator
// @Failure 404 {object} ErrorResponse
// @Router /auth/me [get]
func (s *AuthService) Me(w http.ResponseWriter, r *http.Request) {
	username := middleware.Operator(r.Context())

	var op Operator
	err := s.db.QueryRow(`
		SELECT id, username, display_name, role
		FROM operators
		WHERE username = $1 AND is_active = TRUE`, username).
		Scan(&op.ID, &op.Username, &op.DisplayName, &op.Role)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Operator not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch operator", http.StatusInternalServerError, nil)
		return
	}
	SendJSON(w, http.StatusOK, op)
}

func generateJWT(username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"exp": time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

// HashPassword derives an argon2id hash for storage, salt and hash
// base64-encoded and joined with '$'.
func HashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
