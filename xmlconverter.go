// xmlconverter.go — EVL→XML converter (spec.md §4.9).
//
// Re-scans source with the tokenizer (lexer.go) in its hash-string-collapse
// mode, walking token-by-token rather than going through Reader/Classify:
// the converter is a re-formatter, not an evaluator, and spec.md §9's second
// open question (the `convert` function's `context = EVL_CONTEXT` typo)
// only matters if a comparison, not an assignment, governs which wrapping
// rule applies — this implementation always compares.
package evl

import (
	"fmt"
	"strings"
)

// ConvertEVLToXML implements CONVERT_EVL_TO_XML (spec.md §6, §4.9).
func ConvertEVLToXML(src string, st *SymbolTable) (string, error) {
	c := &xmlConverter{lex: NewConverterLexer(src)}
	return c.run()
}

type xmlConverter struct {
	lex          *Lexer
	xmlStack     []string // names of currently-open XML elements, outermost first
	evlDepth     int       // open-paren depth of the current EVL run, 0 = between forms
	out          strings.Builder
	pendingBlock strings.Builder
	blockOpen    bool
}

func (c *xmlConverter) run() (string, error) {
	for {
		tok, err := c.nextToken()
		if err != nil {
			return "", err
		}
		if tok.Type == TokEOF {
			c.closeBlock()
			if len(c.xmlStack) > 0 {
				return "", NewReaderError(tok.Line, tok.Col, UnexpectedEndOfInput, "unclosed XML element <"+c.xmlStack[len(c.xmlStack)-1]+">")
			}
			return c.out.String(), nil
		}

		switch tok.Type {
		case TokXMLStart:
			tag := tok.Literal.(*XMLTag)
			if tag.Name == "comment" {
				body, err := c.consumeCommentBody()
				if err != nil {
					return "", err
				}
				c.out.WriteString(tok.Whitespace)
				c.out.WriteString("# ")
				c.out.WriteString(body)
				continue
			}
			if c.evlDepth > 0 {
				raw, err := c.scanRawSpan(tag.Name, tok.Lexeme)
				if err != nil {
					return "", err
				}
				c.writeIndentedBlockComment(tok.Whitespace, raw)
				continue
			}
			c.closeBlock()
			c.out.WriteString(tok.Whitespace)
			c.out.WriteString(tok.Lexeme)
			c.xmlStack = append(c.xmlStack, tag.Name)

		case TokXMLEmpty:
			if c.evlDepth > 0 {
				c.writeIndentedBlockComment(tok.Whitespace, tok.Lexeme)
				continue
			}
			c.closeBlock()
			c.out.WriteString(tok.Whitespace)
			c.out.WriteString(tok.Lexeme)

		case TokXMLEnd:
			c.closeBlock()
			c.out.WriteString(tok.Whitespace)
			c.out.WriteString(tok.Lexeme)
			if len(c.xmlStack) > 0 {
				c.xmlStack = c.xmlStack[:len(c.xmlStack)-1]
			}

		case TokXMLText:
			c.out.WriteString(tok.Lexeme)

		default:
			if tok.Type == TokLParen || tok.Type == TokHashLParen {
				c.evlDepth++
			} else if tok.Type == TokRParen && c.evlDepth > 0 {
				c.evlDepth--
			}

			if len(c.xmlStack) > 0 {
				if c.blockOpen && hasBlankLine(tok.Whitespace) {
					c.closeBlock()
				}
				c.blockOpen = true
				c.pendingBlock.WriteString(tok.Whitespace)
				c.pendingBlock.WriteString(xmlEscape(tok.Lexeme))
			} else {
				c.out.WriteString(tok.Whitespace)
				c.out.WriteString(xmlEscape(tok.Lexeme))
			}
		}
	}
}

// closeBlock flushes a pending <toplevelcode><blockcode>…</blockcode>
// </toplevelcode> wrap, if one is open.
func (c *xmlConverter) closeBlock() {
	if !c.blockOpen {
		return
	}
	c.out.WriteString("<toplevelcode><blockcode>")
	c.out.WriteString(c.pendingBlock.String())
	c.out.WriteString("</blockcode></toplevelcode>")
	c.pendingBlock.Reset()
	c.blockOpen = false
}

func (c *xmlConverter) writeIndentedBlockComment(ws, body string) {
	n := marginFromWhitespace(ws)
	c.out.WriteString(ws)
	fmt.Fprintf(&c.out, `<indentation style="margin-left: %d ch"><blockcomment>%s</blockcomment></indentation>`, n, body)
}

// rawModeNow reports whether the current point is inside a pure-XML
// element (anything but chapter/section), mirroring reader.go's
// isMixedContentTag rule so text content tokenizes as TokXMLText here too.
func (c *xmlConverter) rawModeNow() bool {
	if len(c.xmlStack) == 0 {
		return false
	}
	return !isMixedContentTag(c.xmlStack[len(c.xmlStack)-1])
}

// nextToken pulls the next token, toggling the lexer's XML-text mode based
// on the current element, and stepping out of that mode just long enough to
// classify an upcoming '<…>' as a nested element or the closing tag (see
// lexer.go's scanXMLText: it stops right before '<' without consuming it).
func (c *xmlConverter) nextToken() (Token, error) {
	if c.rawModeNow() {
		return c.rawToken()
	}
	c.lex.SetXMLTextMode(false)
	return c.lex.Next()
}

// rawToken always prefers XML-text scanning, used both by nextToken (when
// genuinely in a pure-XML element) and by the opaque-content scanners below
// (comment bodies, EVL-embedded XML elements) where nothing should ever be
// read as a live EVL token.
func (c *xmlConverter) rawToken() (Token, error) {
	c.lex.SetXMLTextMode(true)
	tok, err := c.lex.Next()
	if err != nil {
		return Token{}, err
	}
	if tok.Type == TokXMLText && tok.Lexeme != "" {
		return tok, nil
	}
	c.lex.SetXMLTextMode(false)
	return c.lex.Next()
}

// consumeCommentBody reads <comment>…</comment> content (already past the
// start tag) as opaque text, returning its body with the wrapper tags
// discarded (spec.md §4.9: "folded into a single end-of-line comment token
// whose body passes through").
func (c *xmlConverter) consumeCommentBody() (string, error) {
	var b strings.Builder
	for {
		tok, err := c.rawToken()
		if err != nil {
			return "", err
		}
		switch tok.Type {
		case TokEOF:
			return "", NewReaderError(tok.Line, tok.Col, UnexpectedEndOfInput, "unclosed <comment>")
		case TokXMLText:
			b.WriteString(tok.Lexeme)
		case TokXMLEnd:
			if tok.Literal.(*XMLTag).Name == "comment" {
				return b.String(), nil
			}
			b.WriteString(tok.Lexeme)
		default:
			b.WriteString(tok.Lexeme)
		}
	}
}

// scanRawSpan reads tagName's content, already past its start tag (whose raw
// lexeme is startLexeme), as opaque verbatim XML/text through the matching
// end tag, for the "embedded XML element inside EVL context" wrap (spec.md
// §4.9). Nested elements of any name are tracked by depth but never
// interpreted; everything is passed through verbatim, matching "XML lexemes
// pass through verbatim".
func (c *xmlConverter) scanRawSpan(tagName, startLexeme string) (string, error) {
	var b strings.Builder
	b.WriteString(startLexeme)
	depth := 0
	for {
		tok, err := c.rawToken()
		if err != nil {
			return "", err
		}
		switch tok.Type {
		case TokEOF:
			return "", NewReaderError(tok.Line, tok.Col, UnexpectedEndOfInput, "unclosed XML element <"+tagName+">")
		case TokXMLText:
			b.WriteString(tok.Lexeme)
		case TokXMLStart:
			b.WriteString(tok.Whitespace)
			b.WriteString(tok.Lexeme)
			depth++
		case TokXMLEmpty:
			b.WriteString(tok.Whitespace)
			b.WriteString(tok.Lexeme)
		case TokXMLEnd:
			b.WriteString(tok.Whitespace)
			b.WriteString(tok.Lexeme)
			if depth == 0 {
				return b.String(), nil
			}
			depth--
		default:
			b.WriteString(tok.Whitespace)
			b.WriteString(tok.Lexeme)
		}
	}
}

// hasBlankLine reports whether ws (a run of whitespace between two tokens)
// contains at least one blank line, i.e. two-or-more newlines (spec.md §4.9).
func hasBlankLine(ws string) bool {
	return strings.Count(ws, "\n") >= 2
}

// marginFromWhitespace is N in `margin-left: N ch` (spec.md §4.9): the count
// of spaces immediately after the first newline of ws. Whitespace with no
// newline (the embedded element shares a line with the preceding token) has
// no margin to report.
func marginFromWhitespace(ws string) int {
	idx := strings.IndexByte(ws, '\n')
	if idx < 0 {
		return 0
	}
	n := 0
	for i := idx + 1; i < len(ws) && ws[i] == ' '; i++ {
		n++
	}
	return n
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func xmlEscape(s string) string { return xmlEscaper.Replace(s) }
