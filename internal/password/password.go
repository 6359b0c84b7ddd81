package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/daap14/adminportal/internal/metrics"
)

// ErrEmptyInput is returned when a plaintext or digest argument is empty.
var ErrEmptyInput = errors.New("password must be a non-empty string")

const (
	// DefaultCost is the bcrypt work factor used when none is configured.
	DefaultCost = 12

	// MaxLength is the longest password accepted from clients, in bytes.
	MaxLength = 256

	// bcryptLimit is the longest input bcrypt accepts.
	bcryptLimit = 72
)

var digestPattern = regexp.MustCompile(`^\$2[aby]\$\d{2}\$[./A-Za-z0-9]{53}$`)

// Hasher hashes and verifies stored credentials with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher. Costs below bcrypt.MinCost fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns a salted bcrypt digest of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyInput
	}
	b, err := bcrypt.GenerateFromPassword(bcryptInput(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plaintext matches stored. Stored values that are not
// bcrypt digests are legacy plaintext rows and are compared directly; every
// such comparison is logged and counted so the rows can be migrated.
func (h *Hasher) Verify(plaintext, stored string) (bool, error) {
	if plaintext == "" || stored == "" {
		return false, ErrEmptyInput
	}

	if !LooksLikeDigest(stored) {
		metrics.LegacyPasswordComparisons.Inc()
		slog.Warn("legacy plaintext credential comparison")
		return subtle.ConstantTimeCompare([]byte(plaintext), []byte(stored)) == 1, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(stored), bcryptInput(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("comparing password: %w", err)
}

// bcryptInput returns plaintext unchanged when bcrypt can take it whole.
// Longer inputs are reduced to the base64 SHA-256 of the full plaintext so
// that no byte past the 72nd is ignored.
func bcryptInput(plaintext string) []byte {
	if len(plaintext) <= bcryptLimit {
		return []byte(plaintext)
	}
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// NeedsRehash reports whether stored should be replaced with a fresh digest:
// either it is legacy plaintext or it was hashed with a lower cost.
func (h *Hasher) NeedsRehash(stored string) bool {
	if !LooksLikeDigest(stored) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(stored))
	if err != nil {
		return true
	}
	return cost < h.cost
}

// LooksLikeDigest recognizes the canonical bcrypt format ($2a$/$2b$/$2y$, cost, 53 chars).
func LooksLikeDigest(s string) bool {
	return digestPattern.MatchString(s)
}
