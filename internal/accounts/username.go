package accounts

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"glucowizard/internal/domain"
)

const maxUsernameLength = 150

var (
	usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+\-]+$`)
	usernameStrip   = regexp.MustCompile(`[^\p{L}\p{N}_.@+\-]+`)
)

// NormalizeUsername applies NFKC so visually identical names compare equal.
func NormalizeUsername(username string) string {
	return norm.NFKC.String(strings.TrimSpace(username))
}

// NormalizeEmail trims the address and lowercases the domain part only.
func NormalizeEmail(email string) string {
	email = norm.NFKC.String(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// ValidUsername reports whether name fits the allowed character set and length.
func ValidUsername(name string) bool {
	return name != "" && len([]rune(name)) <= maxUsernameLength && usernamePattern.MatchString(name)
}

// usernameFromEmail derives a username candidate from the address local part.
func usernameFromEmail(email string) string {
	base := usernameStrip.ReplaceAllString(NormalizeUsername(domain.EmailLocalPart(email)), "")
	if base == "" {
		base = "user"
	}
	return truncateRunes(base, maxUsernameLength)
}

// uniqueUsername returns base, or base followed by the smallest numeric suffix
// that is not taken yet.
func uniqueUsername(ctx context.Context, users domain.UserRepository, base string) (string, error) {
	candidate := base
	for i := 1; i <= 1000; i++ {
		exists, err := users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		suffix := strconv.Itoa(i)
		candidate = truncateRunes(base, maxUsernameLength-len(suffix)) + suffix
	}
	return "", fmt.Errorf("no free username for %q", base)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
