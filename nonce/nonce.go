// Package nonce issues and consumes single-use, time-limited challenges bound to device identifiers.
package nonce

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

const (
	// Size is the number of random bytes in a nonce.
	Size       = 24
	DefaultTTL = 300 * time.Second
)

// Entry is an issued challenge.
type Entry struct {
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store keeps at most one live nonce per device.
type Store interface {
	// Issue creates a fresh nonce for the device, replacing any previous one.
	Issue(ctx context.Context, deviceID string) (Entry, error)
	// Verify consumes the device's nonce if it matches and has not expired.
	// A mismatch leaves the stored nonce in place. Failures of any kind yield false.
	Verify(ctx context.Context, deviceID, nonce string) bool
	// Reset drops every issued nonce.
	Reset(ctx context.Context) error
	Close() error
}

func generate() (string, error) {
	b := make([]byte, Size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
