// Package store provides the in-memory backing collaborators for the
// broker: client registry, credential store, retained-message store and
// topic-alias tables. Each is a map guarded by a sync.RWMutex, read-heavy
// and safe for concurrent use by many connection goroutines.
package store

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash"
	"sync"
)

const (
	saltLen                  = 12
	defaultHashIterations    = 600000
	defaultHashAlgorithm     = "sha512"
)

// Credential is a single password credential attached to a user, shaped
// after the original c_mqtt.c credential record: secretData carries the
// base64 hash/salt, credentialData carries the PBKDF2 parameters.
type Credential struct {
	Type          string        `json:"type"`
	CreatedDate   int64         `json:"createdDate"`
	SecretData    SecretData    `json:"secretData"`
	CredentialData CredentialData `json:"credentialData"`
}

// SecretData holds the base64-encoded PBKDF2 hash and salt.
type SecretData struct {
	Value string `json:"value"`
	Salt  string `json:"salt"`
}

// CredentialData records the PBKDF2 parameters used to produce the hash,
// so verification remains possible after the defaults change.
type CredentialData struct {
	HashIterations       int    `json:"hashIterations"`
	Algorithm            string `json:"algorithm"`
	AdditionalParameters string `json:"additionalParameters,omitempty"`
}

// CredentialRecord is the on-disk/in-memory shape for one user: a username
// plus its list of credentials (password today, extensible per spec).
type CredentialRecord struct {
	Username    string       `json:"username"`
	Credentials []Credential `json:"credentials"`
}

// CredentialStore verifies and manages the username/password credentials
// a CONNECT is checked against.
type CredentialStore interface {
	// Verify reports whether password is correct for username. If
	// allowAnonymous is true and username is empty, Verify short-circuits
	// to true, mirroring mqtt_check_password's allow_anonymous branch.
	Verify(username, password string) (bool, error)
	// CreateUser hashes password and stores/replaces username's record.
	CreateUser(username, password string) error
	// Users lists every registered username, for the list-users admin
	// command.
	Users() []string
}

// MemoryCredentialStore is an in-memory CredentialStore, the default used
// when no persistence path is configured.
type MemoryCredentialStore struct {
	mu             sync.RWMutex
	records        map[string]CredentialRecord
	allowAnonymous bool
	iterations     int
}

// NewMemoryCredentialStore returns an empty store. allowAnonymous controls
// whether an empty username always verifies.
func NewMemoryCredentialStore(allowAnonymous bool) *MemoryCredentialStore {
	return &MemoryCredentialStore{
		records:        make(map[string]CredentialRecord),
		allowAnonymous: allowAnonymous,
		iterations:     defaultHashIterations,
	}
}

func (s *MemoryCredentialStore) Verify(username, password string) (bool, error) {
	if s.allowAnonymous && username == "" {
		return true, nil
	}
	s.mu.RLock()
	record, ok := s.records[username]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	for _, cred := range record.Credentials {
		if cred.Type != "password" {
			continue
		}
		ok, err := checkPassword(password, cred)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryCredentialStore) CreateUser(username, password string) error {
	cred, err := hashPassword(password, s.iterations, defaultHashAlgorithm)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[username] = CredentialRecord{
		Username:    username,
		Credentials: []Credential{cred},
	}
	return nil
}

func (s *MemoryCredentialStore) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.records))
	for u := range s.records {
		users = append(users, u)
	}
	return users
}

// LoadCredentialRecords seeds the store from already-hashed records, the
// shape persisted to disk between restarts.
func (s *MemoryCredentialStore) LoadCredentialRecords(data []byte) error {
	var records []CredentialRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.Username] = r
	}
	return nil
}

// hashPassword derives a password hash the way the original c_mqtt.c's
// hash_password does: a random 12-byte salt, PBKDF2-HMAC over the
// configured digest (sha512 by default), base64-encoded hash and salt.
func hashPassword(password string, iterations int, algorithm string) (Credential, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return Credential{}, fmt.Errorf("generate salt: %w", err)
	}
	digest, err := digestFor(algorithm)
	if err != nil {
		return Credential{}, err
	}
	derived := pbkdf2(digest, []byte(password), salt, iterations, digest().Size())
	return Credential{
		Type: "password",
		SecretData: SecretData{
			Value: base64.StdEncoding.EncodeToString(derived),
			Salt:  base64.StdEncoding.EncodeToString(salt),
		},
		CredentialData: CredentialData{
			HashIterations: iterations,
			Algorithm:      algorithm,
		},
	}, nil
}

// checkPassword recomputes the PBKDF2 hash with the credential's stored
// salt/iterations/algorithm and compares it in constant time, mirroring
// check_passwd in the original implementation.
func checkPassword(password string, cred Credential) (bool, error) {
	salt, err := base64.StdEncoding.DecodeString(cred.SecretData.Salt)
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	want, err := base64.StdEncoding.DecodeString(cred.SecretData.Value)
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}
	algorithm := cred.CredentialData.Algorithm
	if algorithm == "" {
		algorithm = defaultHashAlgorithm
	}
	iterations := cred.CredentialData.HashIterations
	if iterations <= 0 {
		iterations = defaultHashIterations
	}
	digest, err := digestFor(algorithm)
	if err != nil {
		return false, err
	}
	got := pbkdf2(digest, []byte(password), salt, iterations, len(want))
	return hmac.Equal(got, want), nil
}

func digestFor(algorithm string) (func() hash.Hash, error) {
	switch algorithm {
	case "sha512", "":
		return sha512.New, nil
	case "sha256":
		return sha256.New, nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm: %s", algorithm)
	}
}

// pbkdf2 implements RFC 8018's PBKDF2 over an HMAC pseudorandom function.
// The stdlib has no PBKDF2 implementation and golang.org/x/crypto/pbkdf2
// is not present in any retrieval-pack go.mod, so this is the one
// stdlib-only component of the store package; see DESIGN.md.
func pbkdf2(newHash func() hash.Hash, password, salt []byte, iterations, keyLen int) []byte {
	prf := hmac.New(newHash, password)
	hashLen := prf.Size()
	numBlocks := (keyLen + hashLen - 1) / hashLen

	var derived []byte
	buf := make([]byte, 4)
	for block := 1; block <= numBlocks; block++ {
		prf.Reset()
		prf.Write(salt)
		buf[0] = byte(block >> 24)
		buf[1] = byte(block >> 16)
		buf[2] = byte(block >> 8)
		buf[3] = byte(block)
		prf.Write(buf)
		u := prf.Sum(nil)
		result := make([]byte, len(u))
		copy(result, u)
		for n := 2; n <= iterations; n++ {
			prf.Reset()
			prf.Write(u)
			u = prf.Sum(nil)
			for i := range result {
				result[i] ^= u[i]
			}
		}
		derived = append(derived, result...)
	}
	return derived[:keyLen]
}
