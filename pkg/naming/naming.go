// Package naming derives collision-free storage keys from user supplied
// filenames.
//
// A storage key is built from a slug of the original base name plus the
// original extension:
//
//	"Quarterly Report.PDF" -> "quarterly-report.PDF"
//	second upload          -> "quarterly-report (1).PDF"
//
// The resolver never decides on its own whether a key is free. It walks the
// candidate sequence and hands each candidate to a ClaimFunc supplied by the
// registry, which checks and reserves the key inside its own lock or
// transaction. This keeps resolve-and-reserve a single atomic step.
package naming

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// DefaultMaxAttempts bounds the candidate walk.
const DefaultMaxAttempts = 10000

// ErrResolutionExhausted is returned when no candidate could be claimed
// within the attempt bound.
var ErrResolutionExhausted = errors.New("no free storage key within attempt bound")

// ClaimFunc atomically checks a candidate key and reserves it when free.
// It returns true when the key now belongs to the caller.
type ClaimFunc func(ctx context.Context, key string) (bool, error)

// Resolver walks candidate keys until one is claimed.
type Resolver struct {
	// MaxAttempts is the number of candidates tried before giving up.
	// Zero means DefaultMaxAttempts.
	MaxAttempts int

	// FallbackToken generates the slug used when the original name has no
	// alphanumeric content. Defaults to "file-" plus 8 random hex chars.
	FallbackToken func() string
}

// NewResolver returns a resolver with the given attempt bound.
func NewResolver(maxAttempts int) *Resolver {
	return &Resolver{MaxAttempts: maxAttempts}
}

// SplitName separates a client supplied filename into base name and
// extension. Directory components are dropped and the extension carries no
// leading dot. Dotfiles such as ".env" have no extension.
func SplitName(original string) (base, ext string) {
	name := path.Base(strings.ReplaceAll(original, "\\", "/"))
	if name == "." || name == "/" {
		return "", ""
	}

	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx+1:]
}

// Slugify lowercases and transliterates name, collapsing every run of
// non-alphanumeric characters into a single "-". The result may be empty.
func Slugify(name string) string {
	parts := strings.FieldsFunc(slug.Make(name), func(r rune) bool {
		return r == '-' || r == '_'
	})
	return strings.Join(parts, "-")
}

// Candidate returns the n-th key for a slug: "slug.ext" for n == 0 and
// "slug (n).ext" afterwards. An empty extension yields no trailing dot.
func Candidate(base, ext string, n int) string {
	key := base
	if n > 0 {
		key = fmt.Sprintf("%s (%d)", base, n)
	}
	if ext != "" {
		key += "." + ext
	}
	return key
}

// Resolve derives the slug for displayName and claims the first free
// candidate key.
//
// Parameters:
//   - ctx: checked between attempts
//   - displayName: original base name (without extension)
//   - ext: original extension, used verbatim
//   - claim: atomic check-and-reserve provided by the registry
//
// Returns:
//   - string: the claimed key
//   - error: ErrResolutionExhausted, a claim error, or ctx.Err()
func (r *Resolver) Resolve(ctx context.Context, displayName, ext string, claim ClaimFunc) (string, error) {
	base := Slugify(displayName)
	if base == "" {
		base = r.fallback()
	}

	limit := r.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}

	for n := 0; n < limit; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		key := Candidate(base, ext, n)
		ok, err := claim(ctx, key)
		if err != nil {
			return "", fmt.Errorf("claim %q: %w", key, err)
		}
		if ok {
			return key, nil
		}
	}

	return "", fmt.Errorf("%s after %d attempts: %w", base, limit, ErrResolutionExhausted)
}

func (r *Resolver) fallback() string {
	if r.FallbackToken != nil {
		if tok := r.FallbackToken(); tok != "" {
			return tok
		}
	}
	return "file-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
