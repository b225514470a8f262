package brain

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/roadmapforge/orchestrator/repository"
)

const (
	suffixAlphabet    = "abcdefghijklmnopqrstuvwxyz0123456789"
	shortSuffixLen    = 8
	fallbackSuffixLen = 12
	maxSuffixAttempts = 10
)

// EnsureUniqueRoadmapID disambiguates a candidate roadmap id against what's
// already stored. It accepts the intent agent's candidate id; if unused, it is kept as-is.
// Otherwise the candidate is treated as `base-XXXXXXXX` (an 8-char trailing
// suffix) and a fresh suffix is generated and checked against the store up
// to 10 times. On exhaustion it falls back to `base-<12 random chars>`,
// which is never itself re-checked — the roadmaps table's primary key is
// the final backstop against the vanishingly unlikely remaining collision.
func (b *Brain) EnsureUniqueRoadmapID(ctx context.Context, candidate string) (string, error) {
	base := stripSuffix(candidate)

	taken, err := b.roadmapIDTaken(ctx, candidate)
	if err != nil {
		return "", err
	}
	if !taken {
		return candidate, nil
	}

	for attempt := 0; attempt < maxSuffixAttempts; attempt++ {
		next := base + "-" + randomSuffix(shortSuffixLen)
		taken, err := b.roadmapIDTaken(ctx, next)
		if err != nil {
			return "", err
		}
		if !taken {
			return next, nil
		}
	}

	return base + "-" + randomSuffix(fallbackSuffixLen), nil
}

func (b *Brain) roadmapIDTaken(ctx context.Context, id string) (bool, error) {
	_, err := b.roadmaps.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("brain: check roadmap id uniqueness: %w", err)
	}
	return true, nil
}

// stripSuffix drops a trailing "-XXXXXXXX" (8 lowercase-alnum chars) if
// present, so repeated disambiguation doesn't stack suffixes.
func stripSuffix(id string) string {
	idx := strings.LastIndex(id, "-")
	if idx < 0 || len(id)-idx-1 != shortSuffixLen {
		return id
	}
	suffix := id[idx+1:]
	for _, r := range suffix {
		if !strings.ContainsRune(suffixAlphabet, r) {
			return id
		}
	}
	return id[:idx]
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unrecoverable on any real
		// platform; fall back to a fixed-entropy-free suffix rather than
		// block indefinitely.
		for i := range buf {
			buf[i] = suffixAlphabet[i%len(suffixAlphabet)]
		}
		return string(buf)
	}
	out := make([]byte, n)
	for i, bb := range buf {
		out[i] = suffixAlphabet[int(bb)%len(suffixAlphabet)]
	}
	return string(out)
}
