package search

import (
	"regexp"
	"strings"
)

// Query normalization substitutions. The set is intentionally minimal and
// deterministic: it is part of the stable interface, matching indexes
// built against the same mixed Spanish/English corpus.
var normalizationSubs = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\bcmo\b`), "como"},
	{regexp.MustCompile(`\bcreate\b`), "crear"},
	{regexp.MustCompile(`\bsession\b`), "sesion"},
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeQuery canonicalizes a query before intention-cache lookup and
// insertion: lowercase, trim, drop question marks, apply the fixed
// substitution set, collapse whitespace.
func NormalizeQuery(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.ReplaceAll(q, "?", "")
	for _, sub := range normalizationSubs {
		q = sub.re.ReplaceAllString(q, sub.repl)
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(q, " "))
}

// Pattern masking rules: entity-specific tokens collapse so recurring
// query shapes can be counted.
var patternMasks = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\b(sesion|sesiones)\b`), "[SESSION]"},
	{regexp.MustCompile(`\b(stripe|paypal|mercadopago)\b`), "[PAYMENT_PROVIDER]"},
	{regexp.MustCompile(`\b\w*service\b`), "[SERVICE]"},
	{regexp.MustCompile(`\b\w*controller\b`), "[CONTROLLER]"},
}

// MaskPattern converts a normalized query into its recorded pattern.
func MaskPattern(queryNormalized string) string {
	p := queryNormalized
	for _, mask := range patternMasks {
		p = mask.re.ReplaceAllString(p, mask.repl)
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(p, " "))
}
