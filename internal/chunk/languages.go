package chunk

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageRule drives extraction for one language. The table below is the
// single source of truth for which node types become chunks, which hold
// candidate variables, and how doc comments look.
type LanguageRule struct {
	Lang          string
	ChunkNodes    []string
	VariableNodes []string
	// CommentOpen/CommentClose delimit the language's doc comment block.
	CommentOpen  string
	CommentClose string
	// AltCommentOpen/AltCommentClose are a secondary doc delimiter pair
	// (Python's single-quoted docstrings). Empty when not applicable.
	AltCommentOpen  string
	AltCommentClose string

	grammar *sitter.Language
}

var languageRules = map[string]*LanguageRule{
	".php": {
		Lang:          "php",
		ChunkNodes:    []string{"function_definition", "method_declaration"},
		VariableNodes: []string{"const_declaration", "assignment_expression"},
		CommentOpen:   "/**",
		CommentClose:  "*/",
		grammar:       php.GetLanguage(),
	},
	".py": {
		Lang:            "python",
		ChunkNodes:      []string{"function_definition", "class_definition"},
		VariableNodes:   []string{"assignment", "expression_statement"},
		CommentOpen:     `"""`,
		CommentClose:    `"""`,
		AltCommentOpen:  "'''",
		AltCommentClose: "'''",
		grammar:         python.GetLanguage(),
	},
	".js": {
		Lang:          "javascript",
		ChunkNodes:    []string{"function_declaration", "method_definition", "class_declaration"},
		VariableNodes: []string{"lexical_declaration", "variable_declaration"},
		CommentOpen:   "/**",
		CommentClose:  "*/",
		grammar:       javascript.GetLanguage(),
	},
	".jsx": {
		Lang:          "tsx",
		ChunkNodes:    []string{"function_declaration", "class_declaration"},
		VariableNodes: []string{"lexical_declaration", "variable_declaration"},
		CommentOpen:   "/**",
		CommentClose:  "*/",
		grammar:       tsx.GetLanguage(),
	},
	".tsx": {
		Lang:          "tsx",
		ChunkNodes:    []string{"function_declaration", "class_declaration"},
		VariableNodes: []string{"lexical_declaration", "variable_declaration"},
		CommentOpen:   "/**",
		CommentClose:  "*/",
		grammar:       tsx.GetLanguage(),
	},
	".ts": {
		Lang:          "typescript",
		ChunkNodes:    []string{"function_declaration", "method_definition", "class_declaration"},
		VariableNodes: []string{"lexical_declaration", "variable_declaration"},
		CommentOpen:   "/**",
		CommentClose:  "*/",
		grammar:       typescript.GetLanguage(),
	},
	".go": {
		Lang:          "go",
		ChunkNodes:    []string{"function_declaration", "method_declaration"},
		VariableNodes: []string{"const_declaration", "var_declaration"},
		CommentOpen:   "/*",
		CommentClose:  "*/",
		grammar:       golang.GetLanguage(),
	},
	".java": {
		Lang:          "java",
		ChunkNodes:    []string{"method_declaration", "class_declaration"},
		VariableNodes: []string{"variable_declaration", "field_declaration"},
		CommentOpen:   "/**",
		CommentClose:  "*/",
		grammar:       java.GetLanguage(),
	},
}

// RuleForPath returns the language rule for a file path, or nil when the
// extension is not supported.
func RuleForPath(path string) *LanguageRule {
	ext := strings.ToLower(filepath.Ext(path))
	return languageRules[ext]
}

// RuleForLang returns the rule for a language name, or nil.
func RuleForLang(lang string) *LanguageRule {
	for _, r := range languageRules {
		if r.Lang == lang {
			return r
		}
	}
	return nil
}

// SupportedExtensions returns all extensions the extractor handles.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(languageRules))
	for ext := range languageRules {
		exts = append(exts, ext)
	}
	return exts
}

// SupportedLanguages returns the set of language names.
func SupportedLanguages() map[string]bool {
	langs := make(map[string]bool, len(languageRules))
	for _, r := range languageRules {
		langs[r.Lang] = true
	}
	return langs
}

func (r *LanguageRule) isChunkNode(nodeType string) bool {
	for _, t := range r.ChunkNodes {
		if t == nodeType {
			return true
		}
	}
	return false
}

func (r *LanguageRule) isVariableNode(nodeType string) bool {
	for _, t := range r.VariableNodes {
		if t == nodeType {
			return true
		}
	}
	return false
}
