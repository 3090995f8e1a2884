// Package auth maps bearer tokens to subjects and decides which stored
// contexts a subject may touch.
//
// It avoids storage concerns; tokens come from configuration.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
)

// AnySubject may access every context.
const AnySubject = "*"

// Authenticator resolves a token to the subject it was issued to.
type Authenticator interface {
	Subject(token string) (string, error)
}

// StaticToken authenticates a single shared token as one subject.
// It is intended only for development and proofs of concept.
type StaticToken struct {
	Token string
	As    string
}

func (s StaticToken) Subject(token string) (string, error) {
	if s.Token == "" || s.As == "" {
		return "", ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return "", ErrUnauthorized
	}
	return s.As, nil
}

// FuncAuthenticator adapts a function into an Authenticator.
type FuncAuthenticator func(token string) (string, error)

func (f FuncAuthenticator) Subject(token string) (string, error) {
	return f(token)
}

// TokenTable authenticates against a fixed token to subject table.
type TokenTable struct {
	entries []tokenEntry
}

type tokenEntry struct {
	token   []byte
	subject string
}

func NewTokenTable(tokens map[string]string) *TokenTable {
	t := &TokenTable{entries: make([]tokenEntry, 0, len(tokens))}
	for token, subject := range tokens {
		if token == "" || subject == "" {
			continue
		}
		t.entries = append(t.entries, tokenEntry{token: []byte(token), subject: subject})
	}
	return t
}

// Subject compares token against every entry so the time taken does not
// depend on which entry matched.
func (t *TokenTable) Subject(token string) (string, error) {
	in := []byte(token)
	subject := ""
	for _, e := range t.entries {
		if subtle.ConstantTimeCompare(e.token, in) == 1 {
			subject = e.subject
		}
	}
	if subject == "" {
		return "", ErrUnauthorized
	}
	return subject, nil
}

func (t *TokenTable) Len() int {
	return len(t.entries)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrUnauthorized
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrUnauthorized
	}
	return token, nil
}

// Authorize allows subject to act on the context owned by owner.
func Authorize(subject, owner string) error {
	if subject == "" {
		return ErrUnauthorized
	}
	if subject == AnySubject || subject == owner {
		return nil
	}
	return ErrForbidden
}
