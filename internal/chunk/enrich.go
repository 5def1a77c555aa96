package chunk

import (
	"regexp"
	"strings"
)

const (
	// docCommentLookback bounds how far above a node we scan for its doc.
	docCommentLookback = 500

	maxTags          = 10
	maxVariableValue = 100
	maxSignatureScan = 400
	maxParameters    = 12
)

var (
	pampaTagsRe        = regexp.MustCompile(`@pampa-tags:\s*([^\n*]+)`)
	pampaIntentRe      = regexp.MustCompile(`@pampa-intent:\s*([^\n*]+)`)
	pampaDescriptionRe = regexp.MustCompile(`@pampa-description:\s*([^\n*]+)`)

	wordSplitRe   = regexp.MustCompile(`[_\-/.\s]+`)
	camelSplitRe  = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	allCapsRe     = regexp.MustCompile(`^[A-Z][A-Z0-9_]{2,}$`)
	javaStaticRe  = regexp.MustCompile(`static\s+(?:final\s+)?\w[\w<>\[\]]*\s+([A-Z_][A-Z0-9_]*)`)
	callNameRe    = regexp.MustCompile(`(?:\$?[A-Za-z_]\w*->|[A-Za-z_]\w*::|[A-Za-z_]\w*\.)*([A-Za-z_]\w*)\s*\(`)
	returnColonRe = regexp.MustCompile(`^\s*:\s*([^\s{;]+)`)
	returnArrowRe = regexp.MustCompile(`^\s*->\s*([^\s{;:]+)`)
)

// techKeywords is the fixed dictionary of technical terms promoted to tags
// when they appear in the chunk code.
var techKeywords = []string{
	"stripe", "payment", "session", "checkout", "auth", "authentication",
	"login", "register", "middleware", "database", "connection", "pool",
	"config", "service", "controller", "model", "repository", "test", "api",
	"customer", "user", "admin", "notification", "email", "validation",
	"request", "response", "http", "route",
}

// variableNameHints mark configuration-carrying names worth indexing.
var variableNameHints = []string{
	"config", "setting", "option", "endpoint", "url", "key", "secret",
	"token", "api", "service", "client", "provider",
}

// callBlacklist filters control-flow keywords from the call scan.
var callBlacklist = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "function": true, "class": true, "new": true,
	"await": true, "yield": true, "isset": true, "empty": true,
	"echo": true, "print": true, "require": true, "include": true,
}

// enrich fills in all derived metadata for a chunk.
func enrich(c *Chunk, n *Node, tree *Tree, rule *LanguageRule, relPath string) {
	c.DocComment = docCommentBefore(n, tree.Source, rule)

	var pampaTags []string
	if c.DocComment != "" {
		if m := pampaTagsRe.FindStringSubmatch(c.DocComment); m != nil {
			for _, tag := range strings.Split(m[1], ",") {
				if t := strings.TrimSpace(tag); t != "" {
					pampaTags = append(pampaTags, t)
				}
			}
		}
		if m := pampaIntentRe.FindStringSubmatch(c.DocComment); m != nil {
			c.Intent = strings.TrimSpace(m[1])
		}
		if m := pampaDescriptionRe.FindStringSubmatch(c.DocComment); m != nil {
			c.Description = strings.TrimSpace(m[1])
		}
	}

	c.PampaTagged = len(pampaTags) > 0
	c.Tags = autoTags(relPath, c.Symbol, c.Code, pampaTags)
	c.Variables = importantVariables(n, tree, rule)
	c.Calls = outgoingCalls(n, tree)
	c.Signature = buildSignature(c, n, tree.Source)
}

// docCommentBefore scans up to docCommentLookback bytes preceding the node
// for the language's doc comment delimiters and keeps the last match.
func docCommentBefore(n *Node, source []byte, rule *LanguageRule) string {
	end := int(n.StartByte)
	start := end - docCommentLookback
	if start < 0 {
		start = 0
	}
	window := string(source[start:end])

	doc := lastDelimitedBlock(window, rule.CommentOpen, rule.CommentClose)
	if doc == "" && rule.AltCommentOpen != "" {
		doc = lastDelimitedBlock(window, rule.AltCommentOpen, rule.AltCommentClose)
	}
	return doc
}

func lastDelimitedBlock(window, open, close string) string {
	searchEnd := len(window)
	for searchEnd > 0 {
		closeIdx := strings.LastIndex(window[:searchEnd], close)
		if closeIdx < 0 {
			return ""
		}
		openIdx := strings.LastIndex(window[:closeIdx], open)
		if openIdx < 0 {
			// Same delimiter on both sides (Python docstrings): the
			// "close" we found may actually be the opener.
			if open == close {
				return ""
			}
			searchEnd = closeIdx
			continue
		}
		return strings.TrimSpace(window[openIdx : closeIdx+len(close)])
	}
	return ""
}

// autoTags derives tags from the path, the symbol, the fixed keyword
// dictionary, and any explicit pampa tags. Deduplicated case-insensitively
// and capped at maxTags, pampa tags first.
func autoTags(relPath, symbol, code string, pampaTags []string) []string {
	seen := make(map[string]bool)
	var tags []string

	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		lower := strings.ToLower(tag)
		if tag == "" || seen[lower] || len(tags) >= maxTags {
			return
		}
		seen[lower] = true
		tags = append(tags, tag)
	}

	for _, t := range pampaTags {
		add(t)
	}

	for _, word := range splitWords(relPath) {
		if len(word) > 2 {
			add(strings.ToLower(word))
		}
	}
	for _, word := range splitWords(symbol) {
		if len(word) > 2 {
			add(strings.ToLower(word))
		}
	}

	lowerCode := strings.ToLower(code)
	for _, kw := range techKeywords {
		if strings.Contains(lowerCode, kw) {
			add(kw)
		}
	}

	return tags
}

// splitWords splits on path separators, underscores, dashes and camelCase.
func splitWords(s string) []string {
	s = camelSplitRe.ReplaceAllString(s, "$1 $2")
	return wordSplitRe.Split(s, -1)
}

// importantVariables walks the chunk subtree for variable nodes and keeps
// only configuration-grade values: hinted const names, ALL_CAPS constants,
// exported constants, and Java static finals.
func importantVariables(n *Node, tree *Tree, rule *LanguageRule) []Variable {
	var vars []Variable
	seen := make(map[string]bool)

	n.Walk(func(d *Node) bool {
		if !rule.isVariableNode(d.Type) {
			return true
		}
		// Python: expression_statement only frames its inner assignment;
		// the assignment child carries the candidate, never both.
		if d.Type == "expression_statement" {
			return true
		}

		text := d.Content(tree.Source)
		name, value := splitDeclaration(text)
		if name == "" || seen[name] {
			return true
		}
		if !acceptVariable(name, text, rule.Lang) {
			return true
		}
		seen[name] = true
		vars = append(vars, Variable{Name: name, Value: truncate(value, maxVariableValue)})
		return true
	})

	return vars
}

func acceptVariable(name, declText, lang string) bool {
	lower := strings.ToLower(name)
	isConst := strings.Contains(declText, "const ") || strings.Contains(declText, "const\t")
	isExported := strings.Contains(declText, "export const")

	if (isConst || isExported) && containsAny(lower, variableNameHints) {
		return true
	}
	if allCapsRe.MatchString(name) {
		return true
	}
	if isExported {
		return true
	}
	if lang == "java" && javaStaticRe.MatchString(declText) {
		return true
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// splitDeclaration extracts the declared name and the assigned value text.
func splitDeclaration(text string) (name, value string) {
	eq := strings.Index(text, "=")
	if eq < 0 {
		return "", ""
	}
	left := strings.TrimSpace(text[:eq])
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text[eq+1:]), ";"))

	fields := strings.Fields(left)
	if len(fields) == 0 {
		return "", ""
	}
	name = fields[len(fields)-1]
	name = strings.TrimPrefix(name, "$")
	name = strings.TrimRight(name, ":")
	return name, value
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// outgoingCalls scans descendant call/invocation nodes for callee names.
func outgoingCalls(n *Node, tree *Tree) []string {
	var calls []string
	seen := make(map[string]bool)

	n.Walk(func(d *Node) bool {
		if !strings.Contains(d.Type, "call") && !strings.Contains(d.Type, "invocation") {
			return true
		}
		text := d.Content(tree.Source)
		for _, m := range callNameRe.FindAllStringSubmatch(text, -1) {
			callee := m[1]
			if callBlacklist[callee] || seen[callee] {
				continue
			}
			seen[callee] = true
			calls = append(calls, callee)
		}
		// Nested calls are visible in the outer node's text already.
		return false
	})

	return calls
}

// buildSignature derives the callable signature: class chunks get
// "class {symbol}"; otherwise parameters come from a balanced-paren scan
// over the first maxSignatureScan bytes of the node.
func buildSignature(c *Chunk, n *Node, source []byte) Signature {
	if c.Type == TypeClass {
		return Signature{Raw: "class " + c.Symbol}
	}

	head := c.Code
	if len(head) > maxSignatureScan {
		head = head[:maxSignatureScan]
	}

	params, rest := scanParameterList(head)
	ret := ""
	if m := returnColonRe.FindStringSubmatch(rest); m != nil {
		ret = strings.TrimSpace(m[1])
	} else if m := returnArrowRe.FindStringSubmatch(rest); m != nil {
		ret = strings.TrimSpace(m[1])
	}

	raw := c.Symbol + "(" + strings.Join(params, ", ") + ")"
	if ret != "" {
		raw += " : " + ret
	}
	return Signature{Raw: raw, Parameters: params, Return: ret}
}

// scanParameterList finds the first balanced parenthesis group and splits
// it into cleaned parameter names. Returns the cleaned parameters and the
// text immediately following the closing paren (for return type sniffing).
func scanParameterList(head string) ([]string, string) {
	open := strings.Index(head, "(")
	if open < 0 {
		return nil, ""
	}

	depth := 0
	end := -1
	for i := open; i < len(head); i++ {
		switch head[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil, ""
	}

	inner := head[open+1 : end]
	rest := head[end+1:]

	var params []string
	for _, part := range splitTopLevel(inner, ',') {
		p := cleanParameter(part)
		if p == "" {
			continue
		}
		params = append(params, p)
		if len(params) >= maxParameters {
			break
		}
	}
	return params, rest
}

// splitTopLevel splits on sep ignoring separators nested in brackets.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// cleanParameter strips defaults and decoration, keeping the bare name.
func cleanParameter(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if eq := strings.IndexByte(p, '='); eq >= 0 {
		p = strings.TrimSpace(p[:eq])
	}
	p = strings.TrimLeft(p, "*&")
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	// For typed parameters keep the declared name (last token for C-style
	// "Type name", the leading token for "name: type" style).
	if colon := strings.IndexByte(p, ':'); colon >= 0 {
		p = strings.TrimSpace(p[:colon])
		return strings.TrimLeft(p, "*&")
	}
	fields := strings.Fields(p)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimLeft(fields[len(fields)-1], "*&")
}
