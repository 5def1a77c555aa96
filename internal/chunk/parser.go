package chunk

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps tree-sitter for AST parsing. One sitter.Parser is kept per
// language; tree-sitter parsers are not safe for concurrent use, so the
// whole Parser serializes Parse calls.
type Parser struct {
	mu      sync.Mutex
	parsers map[string]*sitter.Parser
}

// NewParser creates a parser covering all registered languages.
func NewParser() *Parser {
	return &Parser{parsers: make(map[string]*sitter.Parser)}
}

// Parse parses source bytes under the given language rule.
func (p *Parser) Parse(ctx context.Context, source []byte, rule *LanguageRule) (*Tree, error) {
	if rule == nil {
		return nil, fmt.Errorf("no language rule")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	parser, ok := p.parsers[rule.Lang]
	if !ok {
		parser = sitter.NewParser()
		parser.SetLanguage(rule.grammar)
		p.parsers[rule.Lang] = parser
	}

	tsTree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rule.Lang, err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("parse %s: nil tree", rule.Lang)
	}
	defer tsTree.Close()

	return &Tree{
		Root:   convertNode(tsTree.RootNode()),
		Source: source,
		Lang:   rule.Lang,
	}, nil
}

// Close releases all parser resources.
func (p *Parser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, parser := range p.parsers {
		parser.Close()
	}
	p.parsers = make(map[string]*sitter.Parser)
}

func convertNode(tsNode *sitter.Node) *Node {
	if tsNode == nil {
		return nil
	}

	node := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartPoint: Point{
			Row:    tsNode.StartPoint().Row,
			Column: tsNode.StartPoint().Column,
		},
		EndPoint: Point{
			Row:    tsNode.EndPoint().Row,
			Column: tsNode.EndPoint().Column,
		},
		HasError: tsNode.HasError(),
		Children: make([]*Node, 0, int(tsNode.ChildCount())),
	}

	for i := 0; i < int(tsNode.ChildCount()); i++ {
		if child := tsNode.Child(i); child != nil {
			node.Children = append(node.Children, convertNode(child))
		}
	}

	return node
}
