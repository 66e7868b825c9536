package signing

import (
	"crypto"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cerbtk/registry/types"
)

const separator = "|"

var ErrKeyAlgorithmMismatch = errors.New("key does not match signature algorithm")

// CanonicalMessage builds the exact string signed by devices:
// deviceId|owner|timestamp|firmwareHash|buildId|recipe|boardRev|nonce.
func CanonicalMessage(p *types.RegistrationPayload) string {
	return strings.Join([]string{
		p.DeviceID,
		p.Owner,
		p.Timestamp,
		types.Value(p.FirmwareHash),
		types.Value(p.BuildID),
		types.Value(p.Recipe),
		types.Value(p.BoardRev),
		types.Value(p.Nonce),
	}, separator)
}

// Sign produces the base64 signature of the payload's canonical message.
func Sign(p *types.RegistrationPayload, signer crypto.Signer, algorithmName string) (string, error) {
	alg, err := lookupAlgorithm(algorithmName)
	if err != nil {
		return "", err
	}
	if family, ok := familyOf(signer.Public()); !ok || family != alg.family {
		return "", fmt.Errorf("%w: %T for %s", ErrKeyAlgorithmMismatch, signer.Public(), alg.name)
	}

	signature, err := signer.Sign(rand.Reader, alg.digest([]byte(CanonicalMessage(p))), alg.hash)
	if err != nil {
		return "", fmt.Errorf("signing payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}
