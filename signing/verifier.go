package signing

import (
	"context"
	"crypto"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"

	"github.com/cerbtk/registry/logging"
	"github.com/cerbtk/registry/types"
)

// Verifier checks payload signatures against a fixed set of trusted keys.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	keys             []crypto.PublicKey
	defaultAlgorithm string
}

// NewVerifier loads the trusted key store once. A missing key store is not an error
// but leaves the verifier rejecting everything.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	logger := logging.FromContext(ctx).Named("signing")
	if _, err := lookupAlgorithm(cfg.Algorithm); err != nil {
		return nil, fmt.Errorf("default algorithm: %w", err)
	}

	keys, skipped, err := LoadTrustedKeys(cfg.TrustedKeysPath)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger.Warn("skipped unparseable trusted keys", zap.Int("count", skipped))
	}
	if len(keys) == 0 {
		logger.Warn("no trusted keys loaded, every signature will be rejected",
			zap.String("path", cfg.TrustedKeysPath))
	} else {
		logger.Info("loaded trusted keys", zap.Int("count", len(keys)), zap.String("path", cfg.TrustedKeysPath))
	}
	return NewVerifierWithKeys(keys, cfg.Algorithm), nil
}

func NewVerifierWithKeys(keys []crypto.PublicKey, defaultAlgorithm string) *Verifier {
	return &Verifier{
		keys:             append([]crypto.PublicKey(nil), keys...),
		defaultAlgorithm: defaultAlgorithm,
	}
}

func (v *Verifier) KeyCount() int {
	return len(v.keys)
}

// Verify reports whether any trusted key of the payload's algorithm family verifies its signature.
// Every failure, including malformed input, yields false.
func (v *Verifier) Verify(ctx context.Context, p *types.RegistrationPayload) bool {
	logger := logging.FromContext(ctx)
	if p == nil {
		return false
	}

	name := v.defaultAlgorithm
	if p.Algorithm != nil {
		name = *p.Algorithm
	}
	alg, err := lookupAlgorithm(name)
	if err != nil {
		logger.Debug("signature rejected", zap.Error(err))
		return false
	}

	signature, err := base64.StdEncoding.DecodeString(p.Signature)
	if err != nil || len(signature) == 0 {
		logger.Debug("signature rejected: undecodable signature")
		return false
	}

	message := []byte(CanonicalMessage(p))
	for _, key := range v.keys {
		if alg.verify(key, message, signature) {
			return true
		}
	}
	logger.Debug("signature rejected: no trusted key verifies",
		zap.String("algorithm", alg.name),
		zap.String("device_id", p.DeviceID),
	)
	return false
}
