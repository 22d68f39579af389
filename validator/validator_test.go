package validator

import (
	"strings"
	"testing"
)

func TestSanitizeStripsScriptBlocks(t *testing.T) {
	got := Sanitize("<script>x</script>hi")
	if got != "hi" {
		t.Fatalf("expected %q, got %q", "hi", got)
	}
}

func TestSanitizeStripsNestedPayloads(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"iframe block", `<iframe src="evil"></iframe>ok`, "ok"},
		{"stray closing tag", "</script>ok", "ok"},
		{"reassembled script", "<scr<script></script>ipt>alert(1)</script>ok", "ok"},
		{"javascript scheme", "javascript:alert(1)", "alert(1)"},
		{"spaced scheme", "java<script></script>script :x", "x"},
		{"event handler", `<div onclick="steal()">body`, "<div >body"},
		{"data scheme", "data:text/html;base64,xyz", "text/html;base64,xyz"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.input); got != tc.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"<script>x</script>hi",
		strings.Repeat("a", 2000) + "<script>tail</script>",
		"  plain text  ",
		"java" + "script:" + strings.Repeat("<script>", 50),
		strings.Repeat("<scr", 400) + "ipt>",
	}

	for _, input := range inputs {
		once := Sanitize(input)
		twice := Sanitize(once)
		if once != twice {
			t.Fatalf("Sanitize not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}

func TestSanitizeTruncates(t *testing.T) {
	long := strings.Repeat("a", 5000)
	got := Sanitize(long)
	if len([]rune(got)) != maxInputRunes {
		t.Fatalf("expected %d runes, got %d", maxInputRunes, len([]rune(got)))
	}
}

func TestStripHTMLRemovesAllTags(t *testing.T) {
	got := StripHTML("<html><body><h1>Server Error</h1><p>stack trace</p></body></html>")
	if got != "Server Error stack trace" {
		t.Fatalf("unexpected strip result: %q", got)
	}
}

func TestValidateEmailAccepts(t *testing.T) {
	for _, email := range []string{
		"user@example.com",
		"  USER@Example.COM  ",
		"first.last@sub.example.org",
		"u+tag@example.io",
	} {
		result := ValidateEmail(email)
		if !result.Valid {
			t.Fatalf("expected %q to validate, got %v", email, result.Errors)
		}
	}
}

func TestValidateEmailLowercasesSanitized(t *testing.T) {
	result := ValidateEmail("User@Example.COM")
	if result.Sanitized != "user@example.com" {
		t.Fatalf("expected lowercased sanitized email, got %q", result.Sanitized)
	}
}

func TestValidateEmailRejects(t *testing.T) {
	cases := []struct {
		name  string
		email string
	}{
		{"empty", ""},
		{"no at", "userexample.com"},
		{"consecutive dots", "a..b@example.com"},
		{"leading dot", ".a@example.com"},
		{"trailing dot", "a.@example.com"},
		{"too long", strings.Repeat("a", 250) + "@example.com"},
		{"markup only", "<script>x</script>"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateEmail(tc.email)
			if result.Valid {
				t.Fatalf("expected %q to be rejected", tc.email)
			}
			if len(result.Errors) == 0 {
				t.Fatal("expected at least one violation")
			}
		})
	}
}

func TestValidatePasswordAccepts(t *testing.T) {
	result := ValidatePassword("Tr0ub4dour&horn!")
	if !result.Valid {
		t.Fatalf("expected acceptance, got %v", result.Errors)
	}
	if result.Sanitized != "" {
		t.Fatalf("password result must never echo the secret, got %q", result.Sanitized)
	}
}

func TestValidatePasswordRejects(t *testing.T) {
	cases := []struct {
		name     string
		password string
	}{
		{"too short", "Ab1!"},
		{"too long", strings.Repeat("Ab1!", 40)},
		{"no uppercase", "trouble4horn&low"},
		{"no lowercase", "TROUBLE4HORN&UP!"},
		{"no digit", "TroubleHorn&More!"},
		{"no symbol", "Trouble4HornMore1"},
		{"repeat run", "Troubbbble4&horn"},
		{"common word", "MyPassword4horn!"},
		{"keyboard walk", "Zxqwerty4horn&!a"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidatePassword(tc.password)
			if result.Valid {
				t.Fatalf("expected %q to be rejected", tc.password)
			}
		})
	}
}

func TestValidatePasswordCollectsAllViolations(t *testing.T) {
	result := ValidatePassword("aaaa")
	if result.Valid {
		t.Fatal("expected rejection")
	}
	// short, no upper, no digit, no symbol, repeat run
	if len(result.Errors) < 5 {
		t.Fatalf("expected every violated rule reported, got %v", result.Errors)
	}
}

func TestValidateName(t *testing.T) {
	if result := ValidateName("Anne-Marie O'Neill"); !result.Valid {
		t.Fatalf("expected acceptance, got %v", result.Errors)
	}
	if result := ValidateName("A"); result.Valid {
		t.Fatal("expected single-rune name to be rejected")
	}
	if result := ValidateName("Robert; DROP TABLE"); result.Valid {
		t.Fatal("expected punctuation to be rejected")
	}
	if result := ValidateName("--"); result.Valid {
		t.Fatal("expected letterless name to be rejected")
	}
	if result := ValidateName(strings.Repeat("a", 150)); result.Valid {
		t.Fatal("expected over-long name to be rejected")
	}
}

func TestValidateNameSanitizesMarkup(t *testing.T) {
	result := ValidateName("<script>x</script>Jean Cole")
	if !result.Valid {
		t.Fatalf("expected acceptance after sanitization, got %v", result.Errors)
	}
	if result.Sanitized != "Jean Cole" {
		t.Fatalf("unexpected sanitized name %q", result.Sanitized)
	}
}

func TestValidateRequired(t *testing.T) {
	if result := ValidateRequired("bio", "something"); !result.Valid {
		t.Fatalf("expected acceptance, got %v", result.Errors)
	}

	result := ValidateRequired("bio", "   ")
	if result.Valid {
		t.Fatal("expected whitespace-only value to be rejected")
	}
	if result.Errors[0] != "bio is required" {
		t.Fatalf("unexpected message %q", result.Errors[0])
	}
}

func TestValidateLength(t *testing.T) {
	if result := ValidateLength("title", "hello", 2, 10); !result.Valid {
		t.Fatalf("expected acceptance, got %v", result.Errors)
	}
	if result := ValidateLength("title", "h", 2, 10); result.Valid {
		t.Fatal("expected short value to be rejected")
	}
	if result := ValidateLength("title", strings.Repeat("h", 11), 2, 10); result.Valid {
		t.Fatal("expected long value to be rejected")
	}
}
