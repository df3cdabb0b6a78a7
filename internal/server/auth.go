// ABOUTME: Token resolution for connecting clients
// ABOUTME: HS256 bearer tokens map to identity; no token means anonymous
package server

import (
	"fmt"
	"log"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the resolved identity of a connection
type Identity struct {
	ID     string
	Name   string
	Authed bool
}

// ResolveToken maps an opaque token to an identity. An empty token is the
// valid anonymous path; an invalid token also degrades to anonymous rather
// than rejecting the connection.
func ResolveToken(token, secret string) Identity {
	if token == "" {
		return anonymousIdentity()
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		log.Printf("Token rejected, continuing anonymously: %v", err)
		return anonymousIdentity()
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return anonymousIdentity()
	}

	id, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	if id == "" {
		return anonymousIdentity()
	}
	if name == "" {
		name = fmt.Sprintf("User_%.8s", id)
	}

	return Identity{ID: id, Name: name, Authed: true}
}

func anonymousIdentity() Identity {
	id := uuid.New().String()
	return Identity{
		ID:   id,
		Name: fmt.Sprintf("User_%.8s", id),
	}
}
