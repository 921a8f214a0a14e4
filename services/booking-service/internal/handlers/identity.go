package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinislot/clinislot/libs/auth"
	"github.com/clinislot/clinislot/services/booking-service/internal/model"
)

// IdentityHandler mints the signed identity tokens every ledger call
// requires. Patients get an anonymous owner key; the operator exchanges the
// clinic passphrase for an operator-role token. Roles are asserted only by
// token signature, never by anything the client can set directly.
type IdentityHandler struct {
	logger       *slog.Logger
	secret       string
	operatorHash string // bcrypt hash of the operator passphrase
	tokenTTL     time.Duration
}

func NewIdentityHandler(logger *slog.Logger, tokenSecret, operatorHash string, tokenTTL time.Duration) *IdentityHandler {
	if tokenTTL <= 0 {
		tokenTTL = 30 * 24 * time.Hour
	}
	return &IdentityHandler{
		logger:       logger,
		secret:       tokenSecret,
		operatorHash: operatorHash,
		tokenTTL:     tokenTTL,
	}
}

type identityResponse struct {
	OwnerKey  string `json:"owner_key"`
	Role      string `json:"role"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type operatorLoginRequest struct {
	Passphrase string `json:"passphrase"`
}

// Issue serves POST /api/v1/identity: a fresh anonymous patient identity.
func (h *IdentityHandler) Issue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.mint(w, uuid.NewString(), model.RolePatient)
}

// OperatorLogin serves POST /api/v1/operator/login.
func (h *IdentityHandler) OperatorLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.operatorHash == "" {
		http.Error(w, "operator login is not configured", http.StatusServiceUnavailable)
		return
	}

	var req operatorLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.operatorHash), []byte(req.Passphrase)); err != nil {
		http.Error(w, "invalid passphrase", http.StatusUnauthorized)
		return
	}
	h.mint(w, uuid.NewString(), model.RoleOperator)
}

func (h *IdentityHandler) mint(w http.ResponseWriter, ownerKey, role string) {
	now := time.Now()
	expires := now.Add(h.tokenTTL)
	token, err := auth.SignHS256(auth.Claims{
		Sub:  ownerKey,
		Role: role,
		Iat:  now.Unix(),
		Exp:  expires.Unix(),
	}, h.secret)
	if err != nil {
		h.logger.Error("token signing failed", "err", err)
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, identityResponse{
		OwnerKey:  ownerKey,
		Role:      role,
		Token:     token,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
	})
}
