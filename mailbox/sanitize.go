package mailbox

import (
	"strings"
)

const maxLoginLength = 64

// SanitizeLogin lowercases login, keeps only [a-z0-9._-] and truncates the
// result to 64 characters. It is idempotent.
func SanitizeLogin(login string) string {
	login = strings.ToLower(strings.TrimSpace(login))

	var b strings.Builder
	b.Grow(len(login))
	for i := 0; i < len(login) && b.Len() < maxLoginLength; i++ {
		ch := login[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '.', ch == '_', ch == '-':
			b.WriteByte(ch)
		}
	}
	return b.String()
}
