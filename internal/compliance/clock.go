package compliance

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// CodeGenerator produces candidate connect codes for a new profile.
// Candidates need not be unique; the store rejects collisions and the
// caller asks for another one.
type CodeGenerator interface {
	New(companyName string) string
}

// RandomCodeGenerator builds codes as the first four characters of the
// company name (whitespace removed, upper-cased) followed by three random
// digits, e.g. "ZESP123".
type RandomCodeGenerator struct{}

func (RandomCodeGenerator) New(companyName string) string {
	return fmt.Sprintf("%s%d", CodePrefix(companyName), 100+rand.IntN(900))
}

// CodePrefix returns the company-derived part of a connect code.
func CodePrefix(companyName string) string {
	var b strings.Builder
	n := 0
	for _, r := range companyName {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		if n++; n == 4 {
			break
		}
	}
	return b.String()
}

// dateOf truncates t to midnight UTC.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
