package invitation

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

const (
	minBaseLength = 3
	suffixMin     = 100
	suffixSpan    = 900
	// MaxUsernameAttempts bounds the suffix search; it covers every 3-digit suffix once.
	MaxUsernameAttempts = suffixSpan
)

// NormalizeBase builds the username stem: trimmed first+last name, lower-cased,
// stripped to [a-z0-9] and padded with "x" to three characters.
func NormalizeBase(firstName, lastName string) string {
	raw := strings.ToLower(strings.TrimSpace(firstName) + strings.TrimSpace(lastName))

	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	base := b.String()
	if base == "" {
		return "user"
	}
	if len(base) < minBaseLength {
		base += strings.Repeat("x", minBaseLength-len(base))
	}
	return base
}

// GenerateUniqueUsername returns base+NNN, probing users and unused
// invitations from a random starting suffix and wrapping around once.
func (e *Engine) GenerateUniqueUsername(ctx context.Context, firstName, lastName string) (string, error) {
	base := NormalizeBase(firstName, lastName)
	start := e.suffixStart()

	for i := 0; i < MaxUsernameAttempts; i++ {
		suffix := suffixMin + (start-suffixMin+i)%suffixSpan
		candidate := base + strconv.Itoa(suffix)

		taken, err := e.repo.UsernameTaken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("checking username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrUsernameGenerationExhausted
}

func defaultSuffixStart() int {
	return suffixMin + rand.Intn(suffixSpan)
}
