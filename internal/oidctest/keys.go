package oidctest

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

const keyLifetime = time.Hour

func Algorithm() jwa.SignatureAlgorithm { return jwa.RS256() }

type signingKey struct {
	private  jwk.Key
	public   jwk.Key
	deadline time.Time
}

func (s *signingKey) expiredForSigning(now time.Time) bool {
	return s == nil || s.deadline.Before(now)
}

func (s *signingKey) expiredForVerifying(now time.Time) bool {
	return s == nil || s.deadline.Add(keyLifetime).Before(now)
}

// keySource rotates RSA keys: a key signs for keyLifetime and is still
// published for verification during the following keyLifetime.
type keySource struct {
	cur  *signingKey
	prev *signingKey
	mu   sync.RWMutex
}

func (k *keySource) current(now time.Time) (jwk.Key, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cur.expiredForSigning(now) {
		cur, err := generateKey(now)
		if err != nil {
			return nil, err
		}
		k.prev = k.cur
		k.cur = cur
	}
	return k.cur.private, nil
}

func (k *keySource) publicKeys(now time.Time) []jwk.Key {
	k.mu.RLock()
	cur, prev := k.cur, k.prev
	k.mu.RUnlock()

	keys := []jwk.Key{}
	if !cur.expiredForVerifying(now) {
		keys = append(keys, cur.public)
	}
	if !prev.expiredForVerifying(now) {
		keys = append(keys, prev.public)
	}
	return keys
}

func generateKey(now time.Time) (*signingKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate rsa key: %w", err)
	}
	private, err := jwk.Import(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to convert rsa key to jwk: %w", err)
	}
	public, err := private.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get public key from jwk: %w", err)
	}
	thumbprint, err := public.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("failed to get thumbprint from public key: %w", err)
	}

	keyID := fmt.Sprintf("%x", thumbprint)
	for _, key := range []jwk.Key{private, public} {
		if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
			return nil, fmt.Errorf("failed to set key id: %w", err)
		}
		if err := key.Set(jwk.AlgorithmKey, Algorithm()); err != nil {
			return nil, fmt.Errorf("failed to set key algorithm: %w", err)
		}
	}

	return &signingKey{
		private:  private,
		public:   public,
		deadline: now.Add(keyLifetime),
	}, nil
}
