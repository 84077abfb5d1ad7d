package credential

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	// DefaultLength is an exported constant or variable used by the credential service.
	DefaultLength = 12
	// MinPolicyLength is an exported constant or variable used by the credential service.
	MinPolicyLength = 12
)

// Character classes. Ambiguous glyphs are excluded from generation so a
// credential read over the phone or off a printout types back correctly.
const (
	upperChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowerChars  = "abcdefghjkmnpqrstuvwxyz"
	digitChars  = "23456789"
	symbolChars = "!@#$%^&*"
	allChars    = upperChars + lowerChars + digitChars + symbolChars
)

// ErrLengthTooShort is an exported constant or variable used by the credential service.
var ErrLengthTooShort = errors.New("password length must allow all four character classes")

// Generate produces a random password of the given length containing at
// least one character from each of the four classes, with the remainder
// drawn uniformly from their union and the result shuffled. length values
// below 4 cannot satisfy the class requirement and return an error.
func Generate(length int) (string, error) {
	if length < 4 {
		return "", ErrLengthTooShort
	}

	buf := make([]byte, 0, length)

	for _, class := range []string{upperChars, lowerChars, digitChars, symbolChars} {
		c, err := randomByte(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for i := 4; i < length; i++ {
		c, err := randomByte(allChars)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	if err := shuffle(buf); err != nil {
		return "", err
	}

	return string(buf), nil
}

// Criteria names the individual checks of the complexity policy. Check
// returns the unmet ones so callers can surface actionable feedback to the
// administrator supplying a manual password; the list never carries
// information about the target account beyond its own email.
type Criteria struct {
	Length           bool
	Uppercase        bool
	Lowercase        bool
	Digit            bool
	Symbol           bool
	NoEmailLocalPart bool
}

// Met reports whether every criterion passed.
func (c Criteria) Met() bool {
	return c.Length && c.Uppercase && c.Lowercase && c.Digit && c.Symbol && c.NoEmailLocalPart
}

// Unmet lists the failed criteria by name, for 400-level responses.
func (c Criteria) Unmet() []string {
	var out []string
	if !c.Length {
		out = append(out, "min_length_12")
	}
	if !c.Uppercase {
		out = append(out, "uppercase")
	}
	if !c.Lowercase {
		out = append(out, "lowercase")
	}
	if !c.Digit {
		out = append(out, "digit")
	}
	if !c.Symbol {
		out = append(out, "symbol")
	}
	if !c.NoEmailLocalPart {
		out = append(out, "contains_email_local_part")
	}
	return out
}

// Check evaluates the complexity policy for pw relative to the target
// account's email. An empty email skips the local-part containment check.
func Check(pw, email string) Criteria {
	c := Criteria{
		Length:           len(pw) >= MinPolicyLength,
		NoEmailLocalPart: true,
	}

	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			c.Uppercase = true
		case r >= 'a' && r <= 'z':
			c.Lowercase = true
		case r >= '0' && r <= '9':
			c.Digit = true
		default:
			c.Symbol = true
		}
	}

	local := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		local = email[:at]
	}
	local = strings.ToLower(strings.TrimSpace(local))
	if local != "" && strings.Contains(strings.ToLower(pw), local) {
		c.NoEmailLocalPart = false
	}

	return c
}

// MeetsPolicy reports whether pw satisfies the full complexity policy
// relative to email.
func MeetsPolicy(pw, email string) bool {
	return Check(pw, email).Met()
}

func randomByte(class string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(class))))
	if err != nil {
		return 0, err
	}
	return class[n.Int64()], nil
}

// Fisher-Yates with crypto/rand draws.
func shuffle(buf []byte) error {
	for i := len(buf) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return err
		}
		j := n.Int64()
		buf[i], buf[j] = buf[j], buf[i]
	}
	return nil
}
