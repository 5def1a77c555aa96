package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractOne(t *testing.T, path, source string) []*Chunk {
	t.Helper()
	e := NewExtractor()
	t.Cleanup(e.Close)

	chunks, supported := e.Extract(context.Background(), path, []byte(source))
	require.True(t, supported, "expected %s to be supported", path)
	return chunks
}

func TestExtract_PHPFunction(t *testing.T) {
	src := `<?php
/**
 * Creates a Stripe checkout session.
 * @pampa-tags: stripe, payment
 * @pampa-intent: create stripe checkout session
 */
function createCheckoutSession($amount, $currency = 'usd') {
    $session = \Stripe\Checkout\Session::create(['amount' => $amount]);
    return $session;
}
`
	chunks := extractOne(t, "src/payments.php", src)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, "createCheckoutSession", c.Symbol)
	assert.Equal(t, TypeFunction, c.Type)
	assert.Equal(t, "php", c.Lang)
	assert.Contains(t, c.DocComment, "@pampa-tags")
	assert.Equal(t, "create stripe checkout session", c.Intent)
	assert.Contains(t, c.Tags, "stripe")
	assert.Contains(t, c.Tags, "payment")
}

func TestExtract_GoFunctionAndMethod(t *testing.T) {
	src := `package server

func Start(addr string) error {
	return listen(addr)
}

func (s *Server) HandleRequest(w Writer, r *Request) {
	s.router.dispatch(w, r)
}
`
	chunks := extractOne(t, "internal/server/server.go", src)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Start", chunks[0].Symbol)
	assert.Equal(t, TypeFunction, chunks[0].Type)

	// The receiver identifier must not shadow the method name.
	assert.Equal(t, "HandleRequest", chunks[1].Symbol)
	assert.Equal(t, TypeMethod, chunks[1].Type)
}

func TestExtract_PythonFunctionAndClass(t *testing.T) {
	src := `class PaymentService:
    def charge(self, amount):
        return self.gateway.charge(amount)

def create_session(user_id):
    """Creates a session for the user."""
    return Session(user_id)
`
	chunks := extractOne(t, "services/payments.py", src)
	require.Len(t, chunks, 3)

	assert.Equal(t, "PaymentService", chunks[0].Symbol)
	assert.Equal(t, TypeClass, chunks[0].Type)
	assert.Equal(t, "charge", chunks[1].Symbol)
	assert.Equal(t, "create_session", chunks[2].Symbol)
}

func TestExtract_JavaScriptClassAndFunction(t *testing.T) {
	src := `/** Validates login credentials. */
function validateLogin(username, password) {
  return checkCredentials(username, password);
}

class AuthController {
  handle(req, res) {
    return validateLogin(req.user, req.pass);
  }
}
`
	chunks := extractOne(t, "src/auth/controller.js", src)
	require.GreaterOrEqual(t, len(chunks), 3)

	assert.Equal(t, "validateLogin", chunks[0].Symbol)
	assert.Contains(t, chunks[0].DocComment, "Validates login")

	var names []string
	for _, c := range chunks {
		names = append(names, c.Symbol)
	}
	assert.Contains(t, names, "AuthController")
	assert.Contains(t, names, "handle")
}

func TestExtract_TypeScript(t *testing.T) {
	src := `function fetchUser(id: number): Promise<User> {
  return api.get('/users/' + id);
}
`
	chunks := extractOne(t, "src/users.ts", src)
	require.Len(t, chunks, 1)
	assert.Equal(t, "fetchUser", chunks[0].Symbol)
	assert.Equal(t, "typescript", chunks[0].Lang)
	assert.Equal(t, []string{"id"}, chunks[0].Signature.Parameters)
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	e := NewExtractor()
	t.Cleanup(e.Close)

	chunks, supported := e.Extract(context.Background(), "README.md", []byte("# hi"))
	assert.False(t, supported)
	assert.Nil(t, chunks)
}

func TestExtract_ChunkOrderIsPreOrder(t *testing.T) {
	src := `function first() { return 1; }
function second() { return 2; }
function third() { return 3; }
`
	chunks := extractOne(t, "order.js", src)
	require.Len(t, chunks, 3)
	assert.Equal(t, "first", chunks[0].Symbol)
	assert.Equal(t, "second", chunks[1].Symbol)
	assert.Equal(t, "third", chunks[2].Symbol)
}

func TestFallbackChunk_WholeFile(t *testing.T) {
	c := fallbackChunk("src/broken.php", "php", []byte("<?php this is not valid"))
	assert.Equal(t, TypeFile, c.Type)
	assert.Equal(t, "broken.php", c.Symbol)
	assert.Equal(t, "<?php this is not valid", c.Code)
}

func TestExtractSymbol_SynthesizedName(t *testing.T) {
	n := &Node{Type: "function_definition", StartByte: 42, EndByte: 50}
	sym := extractSymbol(n, []byte("xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"))
	assert.Equal(t, "function_definition_42", sym)
}

func TestChunkTypeForNode(t *testing.T) {
	assert.Equal(t, TypeMethod, chunkTypeForNode("method_declaration"))
	assert.Equal(t, TypeMethod, chunkTypeForNode("method_definition"))
	assert.Equal(t, TypeClass, chunkTypeForNode("class_declaration"))
	assert.Equal(t, TypeClass, chunkTypeForNode("class_definition"))
	assert.Equal(t, TypeFunction, chunkTypeForNode("function_declaration"))
}

func TestRuleForPath(t *testing.T) {
	tests := []struct {
		path string
		lang string
	}{
		{"a/b.php", "php"},
		{"a/b.py", "python"},
		{"a/b.js", "javascript"},
		{"a/b.jsx", "tsx"},
		{"a/b.tsx", "tsx"},
		{"a/b.ts", "typescript"},
		{"a/b.go", "go"},
		{"a/b.java", "java"},
	}
	for _, tt := range tests {
		rule := RuleForPath(tt.path)
		require.NotNil(t, rule, tt.path)
		assert.Equal(t, tt.lang, rule.Lang)
	}

	assert.Nil(t, RuleForPath("a/b.rb"))
	assert.Nil(t, RuleForPath("Makefile"))
}
