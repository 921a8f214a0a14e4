package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinislot/clinislot/libs/auth"
	"github.com/clinislot/clinislot/services/booking-service/internal/model"
)

func newIdentityHandler(t *testing.T, operatorPassphrase string) *IdentityHandler {
	t.Helper()
	hash := ""
	if operatorPassphrase != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(operatorPassphrase), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash passphrase: %v", err)
		}
		hash = string(h)
	}
	return NewIdentityHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), testSecret, hash, time.Hour)
}

func TestIssuePatientIdentity(t *testing.T) {
	h := newIdentityHandler(t, "")

	rec := doJSON(h.Issue, http.MethodPost, "/api/v1/identity", "", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp identityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Role != model.RolePatient {
		t.Fatalf("role = %q, want patient", resp.Role)
	}
	if resp.OwnerKey == "" || resp.Token == "" {
		t.Fatalf("response missing fields: %+v", resp)
	}

	claims, err := auth.ParseAndVerifyHS256(resp.Token, testSecret)
	if err != nil {
		t.Fatalf("verify minted token: %v", err)
	}
	if claims.Sub != resp.OwnerKey || claims.Role != model.RolePatient {
		t.Fatalf("claims = %+v", claims)
	}

	// Two mints never share an owner key.
	second := doJSON(h.Issue, http.MethodPost, "/api/v1/identity", "", "")
	var other identityResponse
	if err := json.Unmarshal(second.Body.Bytes(), &other); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if other.OwnerKey == resp.OwnerKey {
		t.Fatal("two identities share an owner key")
	}
}

func TestOperatorLogin(t *testing.T) {
	h := newIdentityHandler(t, "door-passphrase")

	rec := doJSON(h.OperatorLogin, http.MethodPost, "/api/v1/operator/login", "",
		`{"passphrase":"door-passphrase"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp identityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Role != model.RoleOperator {
		t.Fatalf("role = %q, want operator", resp.Role)
	}
	claims, err := auth.ParseAndVerifyHS256(resp.Token, testSecret)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.Role != model.RoleOperator {
		t.Fatalf("token role = %q, want operator", claims.Role)
	}
}

func TestOperatorLoginWrongPassphrase(t *testing.T) {
	h := newIdentityHandler(t, "door-passphrase")
	rec := doJSON(h.OperatorLogin, http.MethodPost, "/api/v1/operator/login", "",
		`{"passphrase":"guess"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestOperatorLoginUnconfigured(t *testing.T) {
	h := newIdentityHandler(t, "")
	rec := doJSON(h.OperatorLogin, http.MethodPost, "/api/v1/operator/login", "",
		`{"passphrase":"anything"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestIdentityMethodNotAllowed(t *testing.T) {
	h := newIdentityHandler(t, "door-passphrase")
	if rec := doJSON(h.Issue, http.MethodGet, "/api/v1/identity", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("issue GET status = %d", rec.Code)
	}
	if rec := doJSON(h.OperatorLogin, http.MethodGet, "/api/v1/operator/login", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("login GET status = %d", rec.Code)
	}
}
