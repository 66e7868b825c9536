package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownAlgorithm = errors.New("unknown signature algorithm")

type keyFamily int

const (
	familyRSA keyFamily = iota
	familyEC
	familyEd25519
)

func (f keyFamily) String() string {
	switch f {
	case familyRSA:
		return "RSA"
	case familyEC:
		return "EC"
	case familyEd25519:
		return "Ed25519"
	}
	return "unknown"
}

type algorithm struct {
	name   string
	family keyFamily
	hash   crypto.Hash // zero for algorithms that sign the message itself
}

var algorithms = map[string]algorithm{}

func init() {
	for _, a := range []algorithm{
		{"SHA256withRSA", familyRSA, crypto.SHA256},
		{"SHA384withRSA", familyRSA, crypto.SHA384},
		{"SHA512withRSA", familyRSA, crypto.SHA512},
		{"SHA256withECDSA", familyEC, crypto.SHA256},
		{"SHA384withECDSA", familyEC, crypto.SHA384},
		{"SHA512withECDSA", familyEC, crypto.SHA512},
		{"Ed25519", familyEd25519, 0},
	} {
		algorithms[strings.ToLower(a.name)] = a
	}
}

func lookupAlgorithm(name string) (algorithm, error) {
	a, ok := algorithms[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return algorithm{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return a, nil
}

func familyOf(key crypto.PublicKey) (keyFamily, bool) {
	switch key.(type) {
	case *rsa.PublicKey:
		return familyRSA, true
	case *ecdsa.PublicKey:
		return familyEC, true
	case ed25519.PublicKey:
		return familyEd25519, true
	}
	return 0, false
}

// digest returns what is actually handed to the primitive: the hash of the message,
// or the message itself for Ed25519.
func (a algorithm) digest(message []byte) []byte {
	if a.hash == 0 {
		return message
	}
	h := a.hash.New()
	h.Write(message)
	return h.Sum(nil)
}

func (a algorithm) verify(key crypto.PublicKey, message, signature []byte) bool {
	if family, ok := familyOf(key); !ok || family != a.family {
		return false
	}
	switch k := key.(type) {
	case *rsa.PublicKey:
		return rsa.VerifyPKCS1v15(k, a.hash, a.digest(message), signature) == nil
	case *ecdsa.PublicKey:
		return ecdsa.VerifyASN1(k, a.digest(message), signature)
	case ed25519.PublicKey:
		return len(k) == ed25519.PublicKeySize && ed25519.Verify(k, message, signature)
	}
	return false
}
