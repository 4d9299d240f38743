package parse

import (
	"fmt"
	"regexp"
	"strings"
)

// PayloadPrefix marks a QR payload produced by QRPayload.
const PayloadPrefix = "ATT-"

var (
	codeRe    = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,62}$`)
	controlRe = regexp.MustCompile(`[\x00-\x1f\x7f\x{feff}]`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// NormalizeCode canonicalises a student code: trimmed, upper case, inner
// whitespace removed.
func NormalizeCode(raw string) (string, error) {
	s := spaceRe.ReplaceAllString(strings.TrimSpace(raw), "")
	s = strings.ToUpper(s)
	if !codeRe.MatchString(s) {
		return "", fmt.Errorf("invalid student code: %q", raw)
	}
	return s, nil
}

// QRPayload derives the string printed in a student's QR code. It is a pure
// function of the student code, so the payload never changes for a student.
func QRPayload(studentCode string) (string, error) {
	code, err := NormalizeCode(studentCode)
	if err != nil {
		return "", err
	}
	return PayloadPrefix + code, nil
}

// DecodedText cleans the raw text a camera decoder hands us. Scanners tend to
// append CR/LF or a BOM; those are dropped. Bare student codes are accepted
// and mapped to their payload so that hand-typed codes work too.
func DecodedText(raw string) (string, error) {
	s := strings.TrimSpace(controlRe.ReplaceAllString(raw, ""))
	if s == "" {
		return "", fmt.Errorf("empty scan")
	}

	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, PayloadPrefix) {
		code, err := NormalizeCode(upper[len(PayloadPrefix):])
		if err != nil {
			return "", fmt.Errorf("malformed payload %q: %w", raw, err)
		}
		return PayloadPrefix + code, nil
	}
	return QRPayload(s)
}

// StudentCode extracts the student code back out of a payload.
func StudentCode(payload string) (string, error) {
	p, err := DecodedText(payload)
	if err != nil {
		return "", err
	}
	return p[len(PayloadPrefix):], nil
}
