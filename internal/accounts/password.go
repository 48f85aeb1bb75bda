package accounts

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
)

const (
	minPasswordLength     = 8
	maxSimilarity         = 0.7
	similarityMinPartSize = 3
)

//go:embed common_passwords.txt
var commonPasswordsRaw string

var (
	commonOnce      sync.Once
	commonPasswords map[string]struct{}
	folder          = cases.Fold()
	attrSplit       = regexp.MustCompile(`\W+`)
)

func loadCommonPasswords() {
	commonPasswords = make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(commonPasswordsRaw))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			commonPasswords[folder.String(line)] = struct{}{}
		}
	}
}

// ValidatePassword applies the account password rules and returns every
// violated rule as a user-facing message. An empty result means the password is accepted.
func ValidatePassword(password, username, email string) []string {
	var problems []string
	if len([]rune(password)) < minPasswordLength {
		problems = append(problems, fmt.Sprintf("This password is too short. It must contain at least %d characters.", minPasswordLength))
	}
	commonOnce.Do(loadCommonPasswords)
	if _, ok := commonPasswords[folder.String(strings.TrimSpace(password))]; ok {
		problems = append(problems, "This password is too common.")
	}
	if password != "" && isNumeric(password) {
		problems = append(problems, "This password is entirely numeric.")
	}
	attrs := []struct{ label, value string }{
		{"username", username},
		{"email address", email},
	}
	for _, attr := range attrs {
		if tooSimilar(password, attr.value) {
			problems = append(problems, fmt.Sprintf("The password is too similar to the %s.", attr.label))
			break
		}
	}
	return problems
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// tooSimilar compares the password with the attribute and with each of its
// word parts, so "alice.smith@example.com" also matches "alicesmith".
func tooSimilar(password, value string) bool {
	if strings.TrimSpace(value) == "" || password == "" {
		return false
	}
	pw := folder.String(password)
	value = folder.String(value)
	candidates := append([]string{value}, attrSplit.Split(value, -1)...)
	for _, part := range candidates {
		if len([]rune(part)) < similarityMinPartSize {
			continue
		}
		if similarity(pw, part) >= maxSimilarity {
			return true
		}
	}
	return false
}

// similarity is the Ratcliff/Obershelp ratio: twice the number of matching
// characters divided by the total length of both strings.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(ra, rb)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	ai, bi, size := longestCommonRun(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingRunes(a[:ai], b[:bi]) + matchingRunes(a[ai+size:], b[bi+size:])
}

func longestCommonRun(a, b []rune) (int, int, int) {
	bestA, bestB, best := 0, 0, 0
	prev := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		cur := make([]int, len(b)+1)
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
					bestA, bestB = i-cur[j], j-cur[j]
				}
			}
		}
		prev = cur
	}
	return bestA, bestB, best
}

// HashPassword returns a bcrypt hash suitable for users.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
