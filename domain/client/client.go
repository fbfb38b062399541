// Package client provides client (customer) value types and validation.
package client

import (
	"strings"
	"time"
)

// SyncState tracks propagation of a client record to an external platform.
type SyncState string

const (
	SyncPending SyncState = "pending" // Not yet pushed
	SyncDone    SyncState = "done"    // Acknowledged by the platform
	SyncFailed  SyncState = "failed"  // Last push attempt failed
)

// Client represents a customer of the back office (value type).
type Client struct {
	ID         string
	Name       string
	Email      string
	Document   string // CPF or CNPJ, digits only
	Phone      string
	City       string
	State      string
	CustomerID string    // Asaas customer ID
	ERPCode    string    // Omie client code
	ERPSync    SyncState // Omie propagation state
	PaySync    SyncState // Asaas propagation state
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the fields required before a client can be persisted.
// Returns an empty string when valid, otherwise a short reason.
// This is a PURE function.
func Validate(c Client) string {
	if strings.TrimSpace(c.Name) == "" {
		return "name is required"
	}
	if !validEmail(c.Email) {
		return "invalid email"
	}
	if !validDocument(c.Document) {
		return "document must be a CPF (11 digits) or CNPJ (14 digits)"
	}
	return ""
}

// NormalizeDocument strips formatting characters from a CPF/CNPJ.
// This is a PURE function.
func NormalizeDocument(doc string) string {
	var sb strings.Builder
	for _, r := range doc {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func validDocument(doc string) bool {
	return len(doc) == 11 || len(doc) == 14
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return strings.Contains(email[at+1:], ".")
}
