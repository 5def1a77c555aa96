package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoTags_SplitsAndDedupes(t *testing.T) {
	tags := autoTags("src/payment-service/StripeCheckout.php", "createCheckoutSession",
		"$client = new StripeClient();", nil)

	assert.Contains(t, tags, "payment")
	assert.Contains(t, tags, "checkout")
	assert.Contains(t, tags, "session")
	assert.Contains(t, tags, "stripe")
	assert.LessOrEqual(t, len(tags), maxTags)

	// Case-insensitive dedup: "Checkout" from the path and "checkout"
	// from the symbol collapse to one.
	count := 0
	for _, tag := range tags {
		if strings.EqualFold(tag, "checkout") {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAutoTags_PampaTagsFirstAndCapped(t *testing.T) {
	pampa := []string{"alpha", "beta"}
	tags := autoTags("very/long/path/with/many/words/more/other/extra/file.js",
		"someLongSymbolNameHere", "", pampa)

	require.GreaterOrEqual(t, len(tags), 2)
	assert.Equal(t, "alpha", tags[0])
	assert.Equal(t, "beta", tags[1])
	assert.LessOrEqual(t, len(tags), maxTags)
}

func TestAutoTags_DropsShortWords(t *testing.T) {
	tags := autoTags("a/b.go", "do", "", nil)
	for _, tag := range tags {
		assert.Greater(t, len(tag), 2)
	}
}

func TestLastDelimitedBlock(t *testing.T) {
	window := "/** first */ code here /** second block */ more"
	got := lastDelimitedBlock(window, "/**", "*/")
	assert.Equal(t, "/** second block */", got)

	assert.Empty(t, lastDelimitedBlock("no comments here", "/**", "*/"))
}

func TestLastDelimitedBlock_PythonDocstring(t *testing.T) {
	window := `x = 1
"""Creates a session."""
`
	got := lastDelimitedBlock(window, `"""`, `"""`)
	assert.Equal(t, `"""Creates a session."""`, got)
}

func TestSplitDeclaration(t *testing.T) {
	tests := []struct {
		text  string
		name  string
		value string
	}{
		{"const API_ENDPOINT = 'https://api.stripe.com';", "API_ENDPOINT", "'https://api.stripe.com'"},
		{"$apiKey = getenv('STRIPE_KEY')", "apiKey", "getenv('STRIPE_KEY')"},
		{"export const serviceUrl = base + '/v1'", "serviceUrl", "base + '/v1'"},
		{"no assignment here", "", ""},
	}
	for _, tt := range tests {
		name, value := splitDeclaration(tt.text)
		assert.Equal(t, tt.name, name, tt.text)
		assert.Equal(t, tt.value, value, tt.text)
	}
}

func TestAcceptVariable(t *testing.T) {
	tests := []struct {
		name string
		decl string
		lang string
		want bool
	}{
		{"API_ENDPOINT", "const API_ENDPOINT = 'x'", "javascript", true},
		{"apiKey", "const apiKey = 'x'", "javascript", true},          // const + hint
		{"serviceUrl", "export const serviceUrl = 'x'", "typescript", true},
		{"anything", "export const anything = 1", "typescript", true}, // exported
		{"temp", "let temp = 1", "javascript", false},
		{"ab", "const ab = 1", "javascript", false},
		{"MAX_RETRIES", "static final int MAX_RETRIES = 3;", "java", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, acceptVariable(tt.name, tt.decl, tt.lang), tt.decl)
	}
}

func TestTruncateVariableValue(t *testing.T) {
	long := strings.Repeat("v", 500)
	assert.Len(t, truncate(long, maxVariableValue), maxVariableValue)
	assert.Equal(t, "short", truncate("short", maxVariableValue))
}

func TestCallNameRegex(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"$this->createSession(1)", "createSession"},
		{"Stripe::charge($amount)", "charge"},
		{"client.fetchUser(id)", "fetchUser"},
		{"plainCall()", "plainCall"},
	}
	for _, tt := range tests {
		m := callNameRe.FindStringSubmatch(tt.text)
		require.NotNil(t, m, tt.text)
		assert.Equal(t, tt.want, m[1], tt.text)
	}
}

func TestScanParameterList(t *testing.T) {
	params, rest := scanParameterList("function pay($amount, $currency = 'usd', &$ref) : Session {")
	assert.Equal(t, []string{"$amount", "$currency", "$ref"}, params)
	assert.Contains(t, rest, ": Session")

	params, _ = scanParameterList("def f(a, b=build(1, 2), *args):")
	assert.Equal(t, []string{"a", "b", "args"}, params)
}

func TestScanParameterList_CapsAtTwelve(t *testing.T) {
	inner := "a1, a2, a3, a4, a5, a6, a7, a8, a9, a10, a11, a12, a13, a14"
	params, _ := scanParameterList("f(" + inner + ")")
	assert.Len(t, params, maxParameters)
}

func TestBuildSignature(t *testing.T) {
	class := &Chunk{Type: TypeClass, Symbol: "PaymentService"}
	sig := buildSignature(class, nil, nil)
	assert.Equal(t, "class PaymentService", sig.Raw)

	fn := &Chunk{
		Type:   TypeFunction,
		Symbol: "fetchUser",
		Code:   "function fetchUser(id: number): Promise<User> {",
	}
	sig = buildSignature(fn, nil, nil)
	assert.Equal(t, "fetchUser(id) : Promise<User>", sig.Raw)
	assert.Equal(t, "Promise<User>", sig.Return)

	arrow := &Chunk{
		Type:   TypeFunction,
		Symbol: "charge",
		Code:   "def charge(self, amount) -> Receipt:",
	}
	sig = buildSignature(arrow, nil, nil)
	assert.Equal(t, "Receipt", sig.Return)
}

func TestImportantVariables_FromGoSource(t *testing.T) {
	src := `package cfg

func Load() {
	const apiEndpoint = "https://api.example.com"
	const MAX_SIZE = 1024
	var temp = 1
	_ = temp
}
`
	chunks := extractOne(t, "cfg/load.go", src)
	require.Len(t, chunks, 1)

	names := make([]string, 0)
	for _, v := range chunks[0].Variables {
		names = append(names, v.Name)
	}
	assert.Contains(t, names, "apiEndpoint")
	assert.Contains(t, names, "MAX_SIZE")
	assert.NotContains(t, names, "temp")
}

func TestOutgoingCalls_FiltersKeywords(t *testing.T) {
	src := `function handler(req) {
  if (req.valid) {
    return processPayment(req);
  }
  notifyUser(req.user);
}
`
	chunks := extractOne(t, "h.js", src)
	require.Len(t, chunks, 1)

	assert.Contains(t, chunks[0].Calls, "processPayment")
	assert.Contains(t, chunks[0].Calls, "notifyUser")
	assert.NotContains(t, chunks[0].Calls, "if")
	assert.NotContains(t, chunks[0].Calls, "return")
}
