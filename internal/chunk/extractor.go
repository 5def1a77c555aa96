package chunk

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
)

// symbolKeywords are identifier-looking tokens that must never be taken as
// a symbol name (modifiers and declaration keywords across the supported
// languages).
var symbolKeywords = map[string]bool{
	"public": true, "private": true, "protected": true, "static": true,
	"function": true, "class": true, "abstract": true, "final": true,
	"const": true, "var": true, "let": true,
}

var symbolFallbackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`function\s+(\w+)`),
	regexp.MustCompile(`class\s+(\w+)`),
	regexp.MustCompile(`(\w+)\s*\([^)]*\)\s*\{`),
}

// Extractor turns source files into ordered chunk candidates.
type Extractor struct {
	parser *Parser
}

// NewExtractor creates an extractor with a fresh parser.
func NewExtractor() *Extractor {
	return &Extractor{parser: NewParser()}
}

// Close releases parser resources.
func (e *Extractor) Close() {
	e.parser.Close()
}

// Extract parses source bytes and returns the ordered chunk list for the
// file. Unsupported extensions return (nil, false). A parse failure yields
// a single whole-file fallback chunk so the file is never silently dropped.
func (e *Extractor) Extract(ctx context.Context, relPath string, source []byte) ([]*Chunk, bool) {
	rule := RuleForPath(relPath)
	if rule == nil {
		return nil, false
	}

	tree, err := e.parser.Parse(ctx, source, rule)
	if err != nil {
		return []*Chunk{fallbackChunk(relPath, rule.Lang, source)}, true
	}

	var chunks []*Chunk
	tree.Root.Walk(func(n *Node) bool {
		if !rule.isChunkNode(n.Type) {
			return true
		}
		symbol := extractSymbol(n, tree.Source)
		c := &Chunk{
			NodeType:  n.Type,
			Type:      chunkTypeForNode(n.Type),
			Symbol:    symbol,
			Lang:      rule.Lang,
			Code:      n.Content(tree.Source),
			StartByte: n.StartByte,
			EndByte:   n.EndByte,
		}
		enrich(c, n, tree, rule, relPath)
		chunks = append(chunks, c)
		return true
	})

	if len(chunks) == 0 {
		// Tree-sitter recovers from most syntax errors; a tree that is
		// all errors with nothing extractable gets the same whole-file
		// treatment as a hard parse failure.
		if tree.Root.HasError {
			return []*Chunk{fallbackChunk(relPath, rule.Lang, source)}, true
		}
		return nil, true
	}
	return chunks, true
}

// fallbackChunk wraps the whole file as one chunk when parsing fails.
func fallbackChunk(relPath, lang string, source []byte) *Chunk {
	base := filepath.Base(relPath)
	c := &Chunk{
		NodeType: "file",
		Type:     TypeFile,
		Symbol:   base,
		Lang:     lang,
		Code:     string(source),
	}
	c.Tags = autoTags(relPath, base, c.Code, nil)
	c.Signature = Signature{Raw: base}
	return c
}

func chunkTypeForNode(nodeType string) ChunkType {
	switch {
	case strings.HasPrefix(nodeType, "method_"):
		return TypeMethod
	case strings.HasPrefix(nodeType, "class_"):
		return TypeClass
	default:
		return TypeFunction
	}
}

// extractSymbol finds the declared name of a chunk node: the first
// identifier-like descendant that is not a declaration keyword, falling
// back to regexes on the node text, then to a synthesized name.
func extractSymbol(n *Node, source []byte) string {
	// Direct children first: for Go methods the receiver's identifier
	// sits deeper in an earlier subtree than the method name.
	for _, d := range n.Children {
		if !isIdentifierNode(d.Type) {
			continue
		}
		text := d.Content(source)
		if text != "" && !symbolKeywords[strings.ToLower(text)] {
			return text
		}
	}

	var found string
	n.Walk(func(d *Node) bool {
		if found != "" {
			return false
		}
		if d == n {
			return true
		}
		if !isIdentifierNode(d.Type) {
			return true
		}
		text := d.Content(source)
		if text == "" || symbolKeywords[strings.ToLower(text)] {
			return true
		}
		found = text
		return false
	})
	if found != "" {
		return found
	}

	text := n.Content(source)
	for _, re := range symbolFallbackPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}

	return n.Type + "_" + uitoa(n.StartByte)
}

func isIdentifierNode(nodeType string) bool {
	return strings.Contains(nodeType, "identifier") || nodeType == "name"
}

func uitoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
