// Package chunk extracts semantically meaningful code chunks (functions,
// methods, classes) from source files using tree-sitter, and enriches them
// with tags, doc comments, important variables, call edges and signatures.
package chunk

// ChunkType classifies the extracted source region.
type ChunkType string

const (
	TypeFunction ChunkType = "function"
	TypeMethod   ChunkType = "method"
	TypeClass    ChunkType = "class"
	// TypeFile is the whole-file fallback used when parsing fails,
	// so no file is silently dropped from the index.
	TypeFile ChunkType = "file"
)

// Point is a row/column position in the source.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a language-agnostic view of a tree-sitter node.
type Node struct {
	Type      string
	StartByte uint32
	EndByte   uint32
	StartPoint Point
	EndPoint   Point
	HasError  bool
	Children  []*Node
}

// Walk visits the node and its descendants pre-order.
// Returning false from fn stops descending into that subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Content returns the source text covered by the node.
func (n *Node) Content(source []byte) string {
	if n == nil || int(n.StartByte) > len(source) || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// Tree is a parsed source file.
type Tree struct {
	Root   *Node
	Source []byte
	Lang   string
}

// Variable is an important constant/configuration value found in a chunk.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Signature describes the callable surface of a chunk.
type Signature struct {
	Raw        string   `json:"raw"`
	Parameters []string `json:"parameters"`
	Return     string   `json:"return"`
}

// Chunk is one extracted source region plus its enrichment metadata.
type Chunk struct {
	// NodeType is the tree-sitter node type that produced the chunk
	// ("file" for the fallback chunk).
	NodeType  string
	Type      ChunkType
	Symbol    string
	Lang      string
	Code      string
	StartByte uint32
	EndByte   uint32

	// Enrichment.
	DocComment string
	Tags       []string
	// PampaTagged reports whether any tag came from an explicit
	// @pampa-tags annotation rather than auto-tagging.
	PampaTagged bool
	Intent      string
	Description string
	Variables   []Variable
	Calls       []string
	Signature   Signature
}
