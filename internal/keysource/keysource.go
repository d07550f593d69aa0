// Package keysource loads the deployer's signing key from the environment
// or the operating system keyring.
package keysource

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zalando/go-keyring"
)

var (
	ErrBadReference = errors.New("invalid key reference")
	ErrKeyNotFound  = errors.New("signing key not found")
)

// Load resolves a key reference:
//
//	env:NAME             hex private key in environment variable NAME
//	keyring:SERVICE/USER hex private key stored in the OS keyring
func Load(ref string) (*ecdsa.PrivateKey, error) {
	scheme, rest, ok := strings.Cut(ref, ":")
	if !ok || rest == "" {
		return nil, fmt.Errorf("%w: %q (want env:NAME or keyring:SERVICE/USER)", ErrBadReference, ref)
	}

	var secret string
	switch scheme {
	case "env":
		v, ok := os.LookupEnv(rest)
		if !ok || strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w: environment variable %s is empty", ErrKeyNotFound, rest)
		}
		secret = v
	case "keyring":
		service, user, ok := strings.Cut(rest, "/")
		if !ok || service == "" || user == "" {
			return nil, fmt.Errorf("%w: %q (want keyring:SERVICE/USER)", ErrBadReference, ref)
		}
		v, err := keyring.Get(service, user)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, fmt.Errorf("%w: no keyring entry for %s/%s", ErrKeyNotFound, service, user)
		}
		if err != nil {
			return nil, fmt.Errorf("reading keyring entry %s/%s: %w", service, user, err)
		}
		secret = v
	default:
		return nil, fmt.Errorf("%w: unknown scheme %q", ErrBadReference, scheme)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(secret), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing signing key from %s: %w", scheme, err)
	}
	return key, nil
}
