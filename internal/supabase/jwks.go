package supabase

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"
)

const (
	jwksTTL = time.Hour
	// jwksMinRefresh bounds how often an unknown kid or a failed fetch may hit
	// the JWKS endpoint again.
	jwksMinRefresh = time.Minute
)

var errUnknownKid = errors.New("unknown kid")

type jwks struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Crv string `json:"crv"`
	N   string `json:"n"`
	E   string `json:"e"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// KeySet caches the project's asymmetric signing keys.
type KeySet struct {
	url        string
	mu         sync.RWMutex
	cache      map[string]crypto.PublicKey
	fetched    time.Time
	attempted  time.Time
	httpClient *http.Client
	now        func() time.Time
}

// NewKeySet reads keys from <projectURL>/auth/v1/.well-known/jwks.json.
func NewKeySet(projectURL string, httpClient *http.Client) *KeySet {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeySet{
		url:        projectURL + "/auth/v1/.well-known/jwks.json",
		cache:      make(map[string]crypto.PublicKey),
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Verify checks an RS256 or ES256 signature over signingInput.
func (k *KeySet) Verify(ctx context.Context, alg, kid, signingInput string, signature []byte) error {
	if err := k.ensureKeys(ctx); err != nil {
		return err
	}
	key, ok := k.keyFor(kid)
	if !ok {
		if !k.claimRefresh() {
			return errUnknownKid
		}
		if err := k.refresh(ctx); err != nil {
			return err
		}
		key, ok = k.keyFor(kid)
		if !ok {
			return errUnknownKid
		}
	}
	hashed := sha256.Sum256([]byte(signingInput))
	switch alg {
	case "RS256":
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return errors.New("key type mismatch")
		}
		return rsa.VerifyPKCS1v15(pub, crypto.SHA256, hashed[:], signature)
	case "ES256":
		pub, ok := key.(*ecdsa.PublicKey)
		if !ok {
			return errors.New("key type mismatch")
		}
		if len(signature) != 64 {
			return errors.New("invalid signature length")
		}
		r := new(big.Int).SetBytes(signature[:32])
		s := new(big.Int).SetBytes(signature[32:])
		if !ecdsa.Verify(pub, hashed[:], r, s) {
			return errors.New("invalid signature")
		}
		return nil
	default:
		return fmt.Errorf("unsupported alg %q", alg)
	}
}

func (k *KeySet) ensureKeys(ctx context.Context) error {
	k.mu.RLock()
	fresh := k.now().Sub(k.fetched) < jwksTTL && len(k.cache) > 0
	empty := len(k.cache) == 0
	k.mu.RUnlock()
	if fresh {
		return nil
	}
	if !k.claimRefresh() {
		if empty {
			return errors.New("jwks unavailable")
		}
		// Keep serving the stale keys until the next attempt is allowed.
		return nil
	}
	return k.refresh(ctx)
}

// claimRefresh reserves a fetch slot. It returns false when the last attempt
// was less than jwksMinRefresh ago.
func (k *KeySet) claimRefresh() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	if !k.attempted.IsZero() && now.Sub(k.attempted) < jwksMinRefresh {
		return false
	}
	k.attempted = now
	return true
}

func (k *KeySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return err
	}
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks status %d", resp.StatusCode)
	}
	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return err
	}
	keys := make(map[string]crypto.PublicKey)
	for _, key := range set.Keys {
		var (
			pub crypto.PublicKey
			err error
		)
		switch key.Kty {
		case "RSA":
			pub, err = rsaKeyFromJWK(key)
		case "EC":
			pub, err = ecKeyFromJWK(key)
		default:
			continue
		}
		if err != nil {
			continue
		}
		keys[key.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("no keys fetched")
	}
	k.mu.Lock()
	k.cache = keys
	k.fetched = k.now()
	k.mu.Unlock()
	return nil
}

func (k *KeySet) keyFor(kid string) (crypto.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	pk, ok := k.cache[kid]
	return pk, ok
}

func rsaKeyFromJWK(j jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}

func ecKeyFromJWK(j jwk) (*ecdsa.PublicKey, error) {
	if j.Crv != "P-256" {
		return nil, fmt.Errorf("unsupported curve %q", j.Crv)
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(j.X)
	if err != nil {
		return nil, err
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(j.Y)
	if err != nil {
		return nil, err
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
