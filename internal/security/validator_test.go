package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyThreats(t *testing.T) {
	v := NewValidator()

	cases := []struct {
		name  string
		value string
		want  Verdict
	}{
		{"sql tautology", "1' OR 1=1 --", VerdictSQLInjection},
		{"sql union select", "foo UNION SELECT password FROM users", VerdictSQLInjection},
		{"sql drop table", "x; DROP TABLE orders", VerdictSQLInjection},
		{"sql comment marker", "value /* hidden */", VerdictSQLInjection},
		{"xss script block", "<script>alert(1)</script>", VerdictXSS},
		{"xss scheme", "javascript:alert(document.cookie)", VerdictXSS},
		{"xss event handler", `<img src=x onerror=alert(1)>`, VerdictXSS},
		{"xss iframe", "<IFRAME src='http://evil'>", VerdictXSS},
		{"traversal dotdot", "../../etc/passwd", VerdictPathTraversal},
		{"traversal tilde", "~root", VerdictPathTraversal},
		{"clean symbol", "BTC", VerdictClean},
		{"clean sentence", "buy 0.5 at market", VerdictClean},
		{"clean empty", "", VerdictClean},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, v.Classify(tc.value))
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	v := NewValidator()

	// Trips both the SQL comment marker and the traversal family; the SQL
	// family is checked first so its verdict is reported.
	got := v.Classify("../path -- comment")
	assert.Equal(t, VerdictSQLInjection, got)

	// XSS precedes traversal.
	got = v.Classify("<script>fetch('../x')</script>")
	assert.Equal(t, VerdictXSS, got)
}

func TestClassifyCaseInsensitive(t *testing.T) {
	v := NewValidator()
	assert.Equal(t, VerdictSQLInjection, v.Classify("SeLeCt name FrOm users"))
	assert.Equal(t, VerdictXSS, v.Classify("JAVASCRIPT:void(0)"))
}

func TestClassifyTooLarge(t *testing.T) {
	v := NewValidator(WithMaxFieldLength(16))
	assert.Equal(t, VerdictTooLarge, v.Classify(strings.Repeat("a", 17)))
	assert.Equal(t, VerdictClean, v.Classify(strings.Repeat("a", 16)))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "BTC", Sanitize("  BTC\x00 "))
	assert.Equal(t, "a b", Sanitize("a b"), "interior content untouched")
	assert.Equal(t, "", Sanitize("\x00\x00"))
}

func TestValidateSignatureFormat(t *testing.T) {
	assert.True(t, ValidateSignatureFormat("0x"+strings.Repeat("a", 130)))
	assert.True(t, ValidateSignatureFormat(strings.Repeat("a", 128)))
	assert.True(t, ValidateSignatureFormat("0x"+strings.Repeat("AB12", 32)), "uppercase hex accepted")

	assert.False(t, ValidateSignatureFormat("0x"+strings.Repeat("a", 10)))
	assert.False(t, ValidateSignatureFormat(strings.Repeat("g", 128)), "not hex")
	assert.False(t, ValidateSignatureFormat(""))
	assert.False(t, ValidateSignatureFormat("0x"))
}

func TestValidateSymbol(t *testing.T) {
	assert.True(t, ValidateSymbol("BTC"))
	assert.True(t, ValidateSymbol("DOGECOIN"))

	assert.False(t, ValidateSymbol("btc"), "lowercase rejected, caller uppercases")
	assert.False(t, ValidateSymbol("B"))
	assert.False(t, ValidateSymbol("TOOLONGSYMBOL"))
	assert.False(t, ValidateSymbol("BTC-USD"))
}
