// Package content formats call results for the terminal: JSON is indented and
// run through Chroma for syntax highlighting.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
)

// Formatter names accepted by NewSyntaxHighlighter
const (
	FormatterTerminal256 = "terminal256"
	FormatterNoop        = "noop"
)

// SyntaxHighlighter provides code syntax highlighting capabilities using Chroma
type SyntaxHighlighter struct {
	formatter chroma.Formatter
	style     *chroma.Style
	theme     string
}

// NewSyntaxHighlighter creates a highlighter; unknown names fall back to the
// GitHub style and the plain formatter.
func NewSyntaxHighlighter(themeName, formatterName string) *SyntaxHighlighter {
	formatter := formatters.Get(formatterName)
	if formatter == nil {
		formatter = formatters.Fallback
	}

	style := styles.Get(themeName)
	if style == nil {
		style = styles.GitHub
	}

	return &SyntaxHighlighter{
		formatter: formatter,
		style:     style,
		theme:     themeName,
	}
}

// Highlight applies syntax highlighting to code
func (sh *SyntaxHighlighter) Highlight(code, language string) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}

	var highlighted strings.Builder
	if err := sh.formatter.Format(&highlighted, sh.style, iterator); err != nil {
		return code, err
	}
	return highlighted.String(), nil
}

// HighlightJSON indents raw and highlights it. Invalid JSON is returned as-is
// together with the indent error.
func (sh *SyntaxHighlighter) HighlightJSON(raw []byte) (string, error) {
	pretty, err := IndentJSON(raw)
	if err != nil {
		return string(raw), err
	}
	return sh.Highlight(pretty, "json")
}

// SetTheme updates the syntax highlighting theme
func (sh *SyntaxHighlighter) SetTheme(themeName string) error {
	style := styles.Get(themeName)
	if style == nil || (style == styles.Fallback && themeName != style.Name) {
		return fmt.Errorf("theme '%s' not found", themeName)
	}

	sh.style = style
	sh.theme = themeName
	return nil
}

// Theme returns the active style name
func (sh *SyntaxHighlighter) Theme() string {
	return sh.theme
}

// IndentJSON pretty-prints raw with two-space indentation
func IndentJSON(raw []byte) (string, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(raw), "", "  "); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	return out.String(), nil
}

// CompactJSON removes insignificant whitespace from raw
func CompactJSON(raw []byte) (string, error) {
	var out bytes.Buffer
	if err := json.Compact(&out, raw); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	return out.String(), nil
}
