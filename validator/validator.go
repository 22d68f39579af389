package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Result is the outcome of a single validation call. Errors lists every
// violated rule in evaluation order; Sanitized carries the cleaned value
// for validators that sanitize their input.
type Result struct {
	Valid     bool
	Errors    []string
	Sanitized string
}

const (
	// maxInputRunes bounds sanitizer output to keep memory and regex
	// costs proportional to a small constant.
	maxInputRunes = 1000

	emailMaxLength    = 254
	passwordMinLength = 12
	passwordMaxLength = 128
	nameMinLength     = 2
	nameMaxLength     = 100

	maxRepeatRun = 3

	passwordSymbols = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

var (
	scriptBlockRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	iframeBlockRe  = regexp.MustCompile(`(?is)<iframe\b[^>]*>.*?</iframe\s*>`)
	strayTagRe     = regexp.MustCompile(`(?i)</?(?:script|iframe)\b[^>]*>?`)
	uriSchemeRe    = regexp.MustCompile(`(?i)(?:javascript|vbscript|data)\s*:`)
	eventHandlerRe = regexp.MustCompile(`(?i)\bon[a-z]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)
	htmlTagRe      = regexp.MustCompile(`<[^>]*>`)
)

// commonPasswordFragments is a case-insensitive substring deny-list of
// common passwords and keyboard walks.
var commonPasswordFragments = []string{
	"password",
	"123456",
	"12345678",
	"qwerty",
	"qwertz",
	"azerty",
	"asdfgh",
	"zxcvbn",
	"1q2w3e",
	"abc123",
	"letmein",
	"welcome",
	"iloveyou",
	"trustno1",
	"monkey",
	"dragon",
	"sunshine",
	"princess",
	"football",
}

// Sanitize strips script/iframe markup, dangerous URI schemes, and inline
// event-handler attributes from input, trims surrounding whitespace, and
// truncates to a bounded length. It is pure and idempotent.
func Sanitize(input string) string {
	s := truncateRunes(input, maxInputRunes)

	// Strip to a fixed point so nothing reassembled by an earlier pass
	// survives a later one.
	for {
		next := scriptBlockRe.ReplaceAllString(s, "")
		next = iframeBlockRe.ReplaceAllString(next, "")
		next = strayTagRe.ReplaceAllString(next, "")
		next = uriSchemeRe.ReplaceAllString(next, "")
		next = eventHandlerRe.ReplaceAllString(next, "")
		if next == s {
			break
		}
		s = next
	}

	return strings.TrimSpace(s)
}

// StripHTML removes all HTML tags from input and collapses the remaining
// whitespace. Used to defang server response bodies before they reach
// user-visible error messages.
func StripHTML(input string) string {
	s := Sanitize(input)
	s = htmlTagRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// ValidateEmail sanitizes and lower-cases input, then checks it against a
// conservative email grammar: bounded length, single-address shape, and
// no leading, trailing, or consecutive dots in the local part.
func ValidateEmail(input string) Result {
	sanitized := strings.ToLower(Sanitize(input))
	var errs []string

	if err := validation.Validate(sanitized, validation.Required); err != nil {
		errs = append(errs, "email is required")
	}
	if len(sanitized) > emailMaxLength {
		errs = append(errs, fmt.Sprintf("email must be at most %d characters", emailMaxLength))
	}
	if sanitized != "" {
		if err := validation.Validate(sanitized, is.Email); err != nil {
			errs = append(errs, "email format is invalid")
		}
		if local, ok := emailLocalPart(sanitized); ok {
			if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
				errs = append(errs, "email local part must not begin or end with a dot")
			}
			if strings.Contains(local, "..") {
				errs = append(errs, "email local part must not contain consecutive dots")
			}
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs, Sanitized: sanitized}
}

// ValidatePassword enforces the password policy on the raw input. The
// secret is never sanitized or echoed back; Sanitized is always empty.
func ValidatePassword(input string) Result {
	var errs []string

	length := len([]rune(input))
	if length < passwordMinLength {
		errs = append(errs, fmt.Sprintf("password must be at least %d characters", passwordMinLength))
	}
	if length > passwordMaxLength {
		errs = append(errs, fmt.Sprintf("password must be at most %d characters", passwordMaxLength))
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range input {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}
	if !hasLower {
		errs = append(errs, "password must contain at least one lowercase letter")
	}
	if !hasUpper {
		errs = append(errs, "password must contain at least one uppercase letter")
	}
	if !hasDigit {
		errs = append(errs, "password must contain at least one digit")
	}
	if !hasSymbol {
		errs = append(errs, "password must contain at least one symbol")
	}

	if hasRepeatRun(input, maxRepeatRun) {
		errs = append(errs, "password must not repeat the same character more than three times in a row")
	}

	lowered := strings.ToLower(input)
	for _, fragment := range commonPasswordFragments {
		if strings.Contains(lowered, fragment) {
			errs = append(errs, "password must not contain common words or keyboard patterns")
			break
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ValidateName sanitizes input and enforces the display-name policy:
// bounded length, letters/spaces/hyphens/apostrophes only, and at least
// one letter.
func ValidateName(input string) Result {
	sanitized := Sanitize(input)
	var errs []string

	if err := validation.Validate(sanitized, validation.Required); err != nil {
		errs = append(errs, "name is required")
	}
	if sanitized != "" {
		if err := validation.Validate(sanitized, validation.RuneLength(nameMinLength, nameMaxLength)); err != nil {
			errs = append(errs, fmt.Sprintf("name must be between %d and %d characters", nameMinLength, nameMaxLength))
		}

		hasLetter := false
		allowed := true
		for _, r := range sanitized {
			switch {
			case unicode.IsLetter(r):
				hasLetter = true
			case r == ' ' || r == '-' || r == '\'':
			default:
				allowed = false
			}
		}
		if !allowed {
			errs = append(errs, "name may only contain letters, spaces, hyphens, and apostrophes")
		}
		if !hasLetter {
			errs = append(errs, "name must contain at least one letter")
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs, Sanitized: sanitized}
}

// ValidateRequired is the generic presence helper for arbitrary form
// fields; field names the value in error messages.
func ValidateRequired(field, input string) Result {
	sanitized := Sanitize(input)
	var errs []string

	if err := validation.Validate(sanitized, validation.Required); err != nil {
		errs = append(errs, fmt.Sprintf("%s is required", field))
	}

	return Result{Valid: len(errs) == 0, Errors: errs, Sanitized: sanitized}
}

// ValidateLength is the generic bounded-length helper for arbitrary form
// fields; the bounds are counted in runes.
func ValidateLength(field, input string, min, max int) Result {
	sanitized := Sanitize(input)
	var errs []string

	if err := validation.Validate(sanitized, validation.RuneLength(min, max)); err != nil {
		errs = append(errs, fmt.Sprintf("%s must be between %d and %d characters", field, min, max))
	}

	return Result{Valid: len(errs) == 0, Errors: errs, Sanitized: sanitized}
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func hasRepeatRun(s string, maxRun int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run > maxRun {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

func emailLocalPart(s string) (string, bool) {
	idx := strings.LastIndex(s, "@")
	if idx <= 0 {
		return "", false
	}
	return s[:idx], true
}
