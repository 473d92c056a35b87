package security

import (
	"regexp"
	"strings"
)

// Verdict is the classification outcome for a single scalar value.
type Verdict int

const (
	VerdictClean Verdict = iota
	VerdictSQLInjection
	VerdictXSS
	VerdictPathTraversal
	VerdictTooLarge
)

// Category returns the threat-family label used in error bodies, audit
// events, and metrics.
func (v Verdict) Category() string {
	switch v {
	case VerdictSQLInjection:
		return "sql_injection"
	case VerdictXSS:
		return "xss"
	case VerdictPathTraversal:
		return "path_traversal"
	case VerdictTooLarge:
		return "too_large"
	default:
		return "clean"
	}
}

// Reason returns the human-readable denial reason for a verdict.
func (v Verdict) Reason() string {
	switch v {
	case VerdictSQLInjection:
		return "SQL injection pattern detected"
	case VerdictXSS:
		return "XSS pattern detected"
	case VerdictPathTraversal:
		return "Path traversal pattern detected"
	case VerdictTooLarge:
		return "Input too large"
	default:
		return ""
	}
}

// Rule classifies a value against one threat family. Rules are independent
// predicates; the classifier evaluates them in registration order and the
// first match wins, so the order fixes which verdict a caller sees when a
// value trips several families.
type Rule interface {
	Verdict() Verdict
	Match(value string) bool
}

type patternRule struct {
	verdict  Verdict
	patterns []*regexp.Regexp
}

func (r *patternRule) Verdict() Verdict { return r.verdict }

func (r *patternRule) Match(value string) bool {
	for _, p := range r.patterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

func compileRule(v Verdict, exprs []string) Rule {
	patterns := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		patterns[i] = regexp.MustCompile(e)
	}
	return &patternRule{verdict: v, patterns: patterns}
}

// Pattern families. Matching is substring-based and case-insensitive: an
// occurrence anywhere in the value trips the verdict.
var (
	sqlInjectionExprs = []string{
		`(?i)(\bunion\b.*\bselect\b)`,
		`(?i)(\bselect\b.*\bfrom\b)`,
		`(?i)(\binsert\b.*\binto\b)`,
		`(?i)(\bdelete\b.*\bfrom\b)`,
		`(?i)(\bdrop\b.*\btable\b)`,
		`(?i)(\bexec\b|\bexecute\b)`,
		`(--|#|/\*|\*/)`,
		`(?i)(\bor\b.*=.*\bor\b)`,
		`(?i)(\band\b.*=.*\band\b)`,
		`('.*--)`,
		`(1=1|1 = 1)`,
	}

	xssExprs = []string{
		`(?i)<script[^>]*>.*?</script>`,
		`(?i)javascript:`,
		`(?i)on\w+\s*=`, // inline event handlers like onclick=
		`(?i)<iframe`,
		`(?i)<embed`,
		`(?i)<object`,
		`(?i)eval\s*\(`,
		`(?i)expression\s*\(`,
	}

	pathTraversalExprs = []string{
		`\.\./`,
		`\.\.\.`,
		`~`,
	}
)

// Validator classifies untrusted scalar strings against an ordered list of
// threat pattern rules and validates trading-domain string formats. All
// patterns are compiled once at construction; every method is pure and safe
// for concurrent use.
type Validator struct {
	rules          []Rule
	maxFieldLength int
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxFieldLength overrides the per-field length ceiling.
func WithMaxFieldLength(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxFieldLength = n
		}
	}
}

// WithRule appends an extra threat rule after the built-in families.
func WithRule(r Rule) Option {
	return func(v *Validator) {
		v.rules = append(v.rules, r)
	}
}

// NewValidator builds a validator with the built-in families in their fixed
// precedence: SQL injection, then XSS, then path traversal.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		rules: []Rule{
			compileRule(VerdictSQLInjection, sqlInjectionExprs),
			compileRule(VerdictXSS, xssExprs),
			compileRule(VerdictPathTraversal, pathTraversalExprs),
		},
		maxFieldLength: 10_000,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Classify returns the verdict of the first matching rule, or VerdictTooLarge
// when the value exceeds the field length ceiling, or VerdictClean. Callers
// sanitize first; Classify does not mutate the value.
func (v *Validator) Classify(value string) Verdict {
	for _, r := range v.rules {
		if r.Match(value) {
			return r.Verdict()
		}
	}
	if len(value) > v.maxFieldLength {
		return VerdictTooLarge
	}
	return VerdictClean
}

// Sanitize strips embedded NUL characters and surrounding whitespace.
// Interior content is left untouched.
func Sanitize(value string) string {
	return strings.TrimSpace(strings.ReplaceAll(value, "\x00", ""))
}

var (
	hexRe    = regexp.MustCompile(`^[0-9a-f]+$`)
	symbolRe = regexp.MustCompile(`^[A-Z]{2,10}$`)
)

// ValidateSignatureFormat reports whether sig looks like a wallet signature:
// after stripping an optional 0x prefix, a hex string of exactly 128 or 130
// characters. Shape check only; no cryptographic verification happens here.
func ValidateSignatureFormat(sig string) bool {
	s := strings.ToLower(sig)
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 128 && len(s) != 130 {
		return false
	}
	return hexRe.MatchString(s)
}

// ValidateSymbol reports whether sym is an uppercase coin symbol of 2-10
// letters. The caller uppercases beforehand; this does not mutate.
func ValidateSymbol(sym string) bool {
	return symbolRe.MatchString(sym)
}
