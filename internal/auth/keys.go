package auth

// KeyStore holds HS256 signing secrets indexed by issuer and kid.
// Keys are loaded once at startup and never mutated afterwards, so
// lookups need no locking.
type KeyStore struct {
	hs256Keys map[string]map[string][]byte // issuer -> kid -> secret
}

// NewKeyStore creates an empty KeyStore.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		hs256Keys: make(map[string]map[string][]byte),
	}
}

// LoadHS256Key registers a shared secret for an issuer and kid.
func (ks *KeyStore) LoadHS256Key(issuer, kid string, secret []byte) {
	if _, ok := ks.hs256Keys[issuer]; !ok {
		ks.hs256Keys[issuer] = make(map[string][]byte)
	}
	ks.hs256Keys[issuer][kid] = secret
}

// GetHS256Key looks up the secret for an issuer and kid.
func (ks *KeyStore) GetHS256Key(issuer, kid string) ([]byte, bool) {
	if keys, ok := ks.hs256Keys[issuer]; ok {
		if secret, ok := keys[kid]; ok {
			return secret, true
		}
	}
	return nil, false
}
