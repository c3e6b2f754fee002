package calendar

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

const stateTTL = 15 * time.Minute

// CredentialStore persists a therapist's calendar refresh token.
type CredentialStore interface {
	SaveCalendarCredentials(ctx context.Context, therapistID, refreshToken, calendarID string) error
}

// OAuthHandler runs the therapist calendar-connect flow.
type OAuthHandler struct {
	oauth      *oauth2.Config
	store      CredentialStore
	stateKey   []byte
	successURL string
	logger     *logging.Logger
}

// NewOAuthHandler builds the connect/callback handler. State tokens are signed with stateKey.
func NewOAuthHandler(cfg *oauth2.Config, store CredentialStore, stateKey, successURL string, logger *logging.Logger) *OAuthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if successURL == "" {
		successURL = "/"
	}
	return &OAuthHandler{
		oauth:      cfg,
		store:      store,
		stateKey:   []byte(stateKey),
		successURL: successURL,
		logger:     logger,
	}
}

// Connect redirects the therapist to Google consent with offline access.
func (h *OAuthHandler) Connect(w http.ResponseWriter, r *http.Request) {
	therapistID := strings.TrimSpace(r.URL.Query().Get("therapistId"))
	if therapistID == "" {
		http.Error(w, "therapistId is required", http.StatusBadRequest)
		return
	}
	state, err := h.signState(therapistID)
	if err != nil {
		h.logger.Error("calendar oauth: sign state", "error", err)
		http.Error(w, "could not start calendar connection", http.StatusInternalServerError)
		return
	}
	url := h.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	http.Redirect(w, r, url, http.StatusFound)
}

// Callback exchanges the authorization code and stores the refresh token.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		http.Error(w, "calendar connection was declined", http.StatusBadRequest)
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}
	therapistID, err := h.parseState(q.Get("state"))
	if err != nil {
		http.Error(w, "invalid or expired state", http.StatusBadRequest)
		return
	}

	token, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("calendar oauth: code exchange failed", "therapist_id", therapistID, "error", err)
		http.Error(w, "could not connect calendar", http.StatusBadGateway)
		return
	}
	if token.RefreshToken == "" {
		http.Error(w, "Google did not return a refresh token; remove the app's access and try again", http.StatusBadRequest)
		return
	}
	if err := h.store.SaveCalendarCredentials(r.Context(), therapistID, token.RefreshToken, "primary"); err != nil {
		h.logger.Error("calendar oauth: save credentials", "therapist_id", therapistID, "error", err)
		http.Error(w, "could not save calendar connection", http.StatusInternalServerError)
		return
	}
	h.logger.Info("calendar connected", "therapist_id", therapistID)
	http.Redirect(w, r, h.successURL, http.StatusFound)
}

func (h *OAuthHandler) signState(therapistID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   therapistID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.stateKey)
}

func (h *OAuthHandler) parseState(state string) (string, error) {
	if state == "" {
		return "", errors.New("empty state")
	}
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(state, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.stateKey, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid state")
	}
	return claims.Subject, nil
}
