package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksResponse struct {
	Keys []jwksKey `json:"keys"`
}

// keySet caches the provider's RSA signing keys and refetches them when a
// kid is unknown or the cache is older than ttl.
type keySet struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	url       string
	ttl       time.Duration
	fetchedAt time.Time
	client    *resty.Client
}

func newKeySet(url string, ttl time.Duration, client *resty.Client) *keySet {
	return &keySet{
		keys:   make(map[string]*rsa.PublicKey),
		url:    url,
		ttl:    ttl,
		client: client,
	}
}

func (k *keySet) get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	key, ok := k.keys[kid]
	expired := time.Since(k.fetchedAt) > k.ttl
	k.mu.RUnlock()

	if ok && !expired {
		return key, nil
	}

	if err := k.fetch(ctx); err != nil {
		// A stale key still verifies while the endpoint is down.
		if ok {
			return key, nil
		}
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok = k.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key with kid %q not found in JWKS", kid)
	}
	return key, nil
}

func (k *keySet) fetch(ctx context.Context) error {
	resp, err := k.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(k.url)
	if err != nil {
		return fmt.Errorf("GET %s: %w", k.url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode())
	}

	// Providers do not all label the document as JSON, so decode it
	// regardless of Content-Type.
	var jwks jwksResponse
	if err := json.Unmarshal(resp.Body(), &jwks); err != nil {
		return fmt.Errorf("decoding JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, jk := range jwks.Keys {
		if jk.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(jk)
		if err != nil {
			continue
		}
		keys[jk.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("JWKS contains no usable RSA keys")
	}

	k.mu.Lock()
	k.keys = keys
	k.fetchedAt = time.Now()
	k.mu.Unlock()
	return nil
}

func parseRSAPublicKey(k jwksKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// Verifier checks ID tokens against the provider's published keys.
type Verifier struct {
	issuer   string
	audience string
	keys     *keySet
	now      func() time.Time
}

func NewVerifier(issuer, audience, jwksURL string, client *resty.Client) *Verifier {
	return &Verifier{
		issuer:   issuer,
		audience: audience,
		keys:     newKeySet(jwksURL, 5*time.Minute, client),
		now:      time.Now,
	}
}

// Verify checks the RS256 signature, issuer, audience and expiry of raw and
// returns its claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return v.keys.get(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}
