// ABOUTME: Short-lived credential endpoint for the managed voice transport
// ABOUTME: Signs a scoped token the client exchanges with the external service
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// voiceTokenTTL bounds how long an issued transport credential stays valid
const voiceTokenTTL = 5 * time.Minute

// VoiceCredential is the response body of the transport token endpoint
type VoiceCredential struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// handleVoiceToken issues a short-lived signed credential for the external
// transport. The transport itself is opaque to the relay.
func (s *Server) handleVoiceToken(w http.ResponseWriter, r *http.Request) {
	identity := ResolveToken(r.URL.Query().Get("token"), s.config.AuthSecret)
	room := r.URL.Query().Get("room")

	expires := time.Now().Add(voiceTokenTTL)
	claims := jwt.MapClaims{
		"sub":  identity.ID,
		"name": identity.Name,
		"room": room,
		"exp":  expires.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AuthSecret))
	if err != nil {
		log.Printf("Failed to sign voice credential: %v", err)
		http.Error(w, "credential unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(VoiceCredential{
		Token:     signed,
		ExpiresAt: expires.Unix(),
	}); err != nil {
		log.Printf("Failed to write voice credential: %v", err)
	}
}
