package projects

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"github.com/bryanwahyu/codescan/internal/domain/users"
)

const maxNameInKey = 40

// NewKey builds a project key from the owner, the project name and a
// timestamp plus random suffix. Uniqueness is best-effort.
func NewKey(owner users.UserID, name string, now time.Time) string {
	ownerPart := string(owner)
	if len(ownerPart) > 8 {
		ownerPart = ownerPart[:8]
	}
	return fmt.Sprintf("project_%s_%s_%d%03d",
		keySafe(ownerPart), keySafe(name), now.UnixMilli(), rand.IntN(1000))
}

// keySafe keeps characters the engine accepts in keys; whitespace becomes '_'.
func keySafe(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune('_')
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.'):
			b.WriteRune(r)
		}
		if b.Len() >= maxNameInKey {
			break
		}
	}
	if b.Len() == 0 {
		return "x"
	}
	return b.String()
}
