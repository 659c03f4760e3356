package services

import (
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

// AuthService issues sandbox bearer tokens via the client-credentials grant.
// Client secrets are stored argon2-hashed in the oauth_clients table.
type AuthService struct {
	db        *sql.DB
	validator *validator.Validate
}

// TokenRequest represents the client-credentials token request
// @Description OAuth client-credentials request structure
type TokenRequest struct {
	ClientID     string `json:"client_id" validate:"required" example:"partner-sandbox"`
	ClientSecret string `json:"client_secret" validate:"required,min=8" example:"sandbox-secret"`
	GrantType    string `json:"grant_type" validate:"required,eq=client_credentials" example:"client_credentials"`
}

// TokenResponse represents the issued bearer token
// @Description OAuth token response structure
type TokenResponse struct {
	AccessToken string `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType   string `json:"token_type" example:"Bearer"`
	ExpiresIn   int64  `json:"expires_in" example:"3600"`
}

func NewAuthService(db *sql.DB) *AuthService {
	return &AuthService{
		db:        db,
		validator: validator.New(),
	}
}

// Token handles the sandbox token endpoint
// @Summary Issue bearer token
// @Description Exchange sandbox client credentials for a JWT bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Token request"
// @Success 200 {object} TokenResponse "Token issued"
// @Failure 400 {string} string "Invalid request"
// @Failure 401 {string} string "Invalid client credentials"
// @Router /oauth/token [post]
func (s *AuthService) Token(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Token request from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req TokenRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Token request invalid: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Token request validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var secretHash string
	err := s.db.QueryRow("SELECT secret_hash FROM oauth_clients WHERE client_id = $1", req.ClientID).Scan(&secretHash)
	if err != nil {
		log.Printf("[AUTH] Unknown client: %s", req.ClientID)
		SendErrorResponse(w, "Invalid client credentials", http.StatusUnauthorized, nil)
		return
	}

	if !verifyClientSecret(req.ClientSecret, secretHash) {
		log.Printf("[AUTH] Invalid secret for client: %s", req.ClientID)
		SendErrorResponse(w, "Invalid client credentials", http.StatusUnauthorized, nil)
		return
	}

	expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
	token, err := generateJWT(req.ClientID, expiry)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for client %s: %v", req.ClientID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Token issued for client %s", req.ClientID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiry.Seconds()),
	})
}

// RegisterClient stores a sandbox client with an argon2-hashed secret.
// Used by the bootstrap path, not exposed over HTTP.
func (s *AuthService) RegisterClient(clientID, clientSecret string) error {
	secretHash, err := hashClientSecret(clientSecret)
	if err != nil {
		return fmt.Errorf("hash client secret: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO oauth_clients (client_id, secret_hash)
		VALUES ($1, $2)
		ON CONFLICT (client_id) DO UPDATE SET secret_hash = EXCLUDED.secret_hash`,
		clientID, secretHash)
	if err != nil {
		return fmt.Errorf("store client: %w", err)
	}

	log.Printf("[AUTH] Registered sandbox client %s", clientID)
	return nil
}

func generateJWT(clientID string, expiry time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"client_id": clientID,
		"exp":       time.Now().Add(expiry).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashClientSecret(secret string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(secret), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyClientSecret(secret, storedHash string) bool {
	parts := strings.Split(storedHash, "$")
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

	computedHash := argon2.IDKey([]byte(secret), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
