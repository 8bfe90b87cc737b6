package extract

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language pairs a grammar with the name used in logs.
type Language struct {
	Name    string
	Grammar *sitter.Language
}

// LanguageFor returns the grammar for a source path. Returns ok=false for
// unsupported extensions and for type-declaration-only files.
func LanguageFor(path string) (Language, bool) {
	if strings.HasSuffix(path, ".d.ts") {
		return Language{}, false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return Language{Name: "javascript", Grammar: javascript.GetLanguage()}, true
	case ".ts", ".mts", ".cts":
		return Language{Name: "typescript", Grammar: typescript.GetLanguage()}, true
	case ".tsx":
		return Language{Name: "tsx", Grammar: tsx.GetLanguage()}, true
	default:
		return Language{}, false
	}
}
