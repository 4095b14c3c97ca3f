// reader.go — turns a Token stream into EVL objects (spec.md §4.2).
//
// Grounded on the teacher's parser.go insofar as both are hand-written
// recursive-descent readers driven by a single token of lookahead, but the
// grammar here is S-expression-shaped rather than MindScript's infix
// grammar, and it must additionally skip XML elements as block comments
// while still surfacing any EVL forms scripted inside them (spec.md §4.2).
package evl

import "fmt"

// Reader consumes tokens from a Lexer and produces Values.
type Reader struct {
	lex      *Lexer
	st       *SymbolTable
	features func(name string) bool
	onXMLForm func(Value)

	tok     Token
	havePeek bool
}

// NewReader constructs a Reader. featureTest resolves bare feature symbols
// against the current *features* list (spec.md §4.2); onXMLForm, if
// non-nil, is invoked once per fully-read EVL object encountered inside an
// XML element (spec.md §4.2's "scripted content inside documentation").
func NewReader(src string, st *SymbolTable, featureTest func(string) bool, onXMLForm func(Value)) *Reader {
	return &Reader{lex: NewLexer(src), st: st, features: featureTest, onXMLForm: onXMLForm}
}

func (r *Reader) peek() (Token, error) {
	if !r.havePeek {
		t, err := r.lex.Next()
		if err != nil {
			return Token{}, err
		}
		r.tok = t
		r.havePeek = true
	}
	return r.tok, nil
}

func (r *Reader) advance() { r.havePeek = false }

// ReadForm reads the next top-level form. ok is false with a nil error at
// clean end-of-input (no form present); spec.md §6 uses this to distinguish
// FOUND_NO_FORM from a real error.
func (r *Reader) ReadForm() (Value, bool, error) {
	for {
		tok, err := r.peek()
		if err != nil {
			return Value{}, false, err
		}
		if tok.Type == TokEOF {
			return Value{}, false, nil
		}
		v, produced, err := r.readAttempt()
		if err != nil {
			return Value{}, false, err
		}
		if produced {
			return v, true, nil
		}
		// Discarded read-time conditional or a fully-skipped XML element:
		// nothing occupies this slot, try the next one.
	}
}

// readRequired reads exactly one form, treating end-of-input as an error.
// Used wherever the grammar demands "exactly one more object" (a dotted
// tail, an abbreviation's operand, a read-time conditional's own sub-forms).
func (r *Reader) readRequired() (Value, error) {
	for {
		tok, err := r.peek()
		if err != nil {
			return Value{}, err
		}
		if tok.Type == TokEOF {
			return Value{}, NewReaderError(tok.Line, tok.Col, UnexpectedEndOfInput, "unexpected end of input")
		}
		v, produced, err := r.readAttempt()
		if err != nil {
			return Value{}, err
		}
		if produced {
			return v, nil
		}
	}
}

// readAttempt reads one slot's worth of input. produced=false, err=nil
// means the slot consumed input but yielded no form (a discarded read-time
// conditional, or an XML element skipped in its entirety); the caller's own
// loop decides whether to retry or stop.
func (r *Reader) readAttempt() (Value, bool, error) {
	tok, err := r.peek()
	if err != nil {
		return Value{}, false, err
	}
	switch tok.Type {
	case TokXMLStart, TokXMLEmpty:
		if err := r.skipXMLElement(); err != nil {
			return Value{}, false, err
		}
		return Value{}, false, nil
	case TokHashPlus, TokHashMinus:
		r.advance()
		v, keep, err := r.readReadTimeConditional(tok.Type == TokHashPlus)
		if err != nil {
			return Value{}, false, err
		}
		if !keep {
			return Value{}, false, nil
		}
		return v, true, nil
	default:
		v, err := r.readExpr(tok)
		if err != nil {
			return Value{}, false, err
		}
		return v, true, nil
	}
}

func abbrevName(tt TokenType) string {
	switch tt {
	case TokQuote:
		return "quote"
	case TokQuasiquote:
		return "quasiquote"
	case TokUnquote:
		return "unquote"
	case TokUnquoteSplicing:
		return "unquote-splicing"
	default:
		return ""
	}
}

// readExpr dispatches on an already-peeked, not-yet-consumed token for
// every category that is not a read-time conditional or an XML tag (those
// are intercepted by readAttempt).
func (r *Reader) readExpr(tok Token) (Value, error) {
	switch tok.Type {
	case TokQuote, TokQuasiquote, TokUnquote, TokUnquoteSplicing:
		r.advance()
		inner, err := r.readRequired()
		if err != nil {
			return Value{}, err
		}
		head := r.st.Variable(abbrevName(tok.Type))
		return NewCons(head, NewCons(inner, EmptyList)), nil
	case TokLParen:
		r.advance()
		return r.readList()
	case TokHashLParen:
		r.advance()
		return r.readVector()
	case TokVoid:
		r.advance()
		return Void, nil
	case TokBoolean:
		r.advance()
		return Boolean(tok.Literal.(bool)), nil
	case TokCharacter:
		r.advance()
		return Character(tok.Literal.(string)), nil
	case TokString:
		r.advance()
		return String(tok.Literal.(string)), nil
	case TokNumber:
		r.advance()
		return Number(tok.Literal.(float64)), nil
	case TokKeyword:
		r.advance()
		return r.st.Keyword(tok.Literal.(string)), nil
	case TokVariable:
		r.advance()
		return r.st.Variable(tok.Literal.(string)), nil
	case TokDot:
		return Value{}, NewReaderError(tok.Line, tok.Col, UnexpectedDot, "unexpected dot")
	case TokRParen:
		return Value{}, NewReaderError(tok.Line, tok.Col, UnexpectedClosingParen, "unexpected closing parenthesis")
	case TokXMLEnd:
		return Value{}, NewReaderError(tok.Line, tok.Col, UnexpectedXMLEndTag, "unexpected XML end tag")
	default:
		return Value{}, NewCannotHappen(fmt.Sprintf("unhandled token type %d in readExpr", tok.Type))
	}
}

// readList reads until a closing parenthesis, honoring an optional dotted
// tail (spec.md §4.2): the dot may not open the list, and must be followed
// by exactly one object and then the closing parenthesis.
func (r *Reader) readList() (Value, error) {
	var items []Value
	for {
		tok, err := r.peek()
		if err != nil {
			return Value{}, err
		}
		switch tok.Type {
		case TokRParen:
			r.advance()
			return SliceToList(items, EmptyList), nil
		case TokEOF:
			return Value{}, NewReaderError(tok.Line, tok.Col, UnexpectedEndOfInput, "unclosed list")
		case TokDot:
			if len(items) == 0 {
				return Value{}, NewReaderError(tok.Line, tok.Col, UnexpectedDot, "dot cannot appear at the head of a list")
			}
			r.advance()
			tail, err := r.readRequired()
			if err != nil {
				return Value{}, err
			}
			closeTok, err := r.peek()
			if err != nil {
				return Value{}, err
			}
			if closeTok.Type != TokRParen {
				return Value{}, NewReaderError(closeTok.Line, closeTok.Col, UnexpectedDot, "dot must be followed by exactly one object and then ')'")
			}
			r.advance()
			return SliceToList(items, tail), nil
		default:
			v, produced, err := r.readAttempt()
			if err != nil {
				return Value{}, err
			}
			if produced {
				items = append(items, v)
			}
		}
	}
}

// readVector reads until a closing parenthesis; dotting is forbidden
// (spec.md §4.2).
func (r *Reader) readVector() (Value, error) {
	var items []Value
	for {
		tok, err := r.peek()
		if err != nil {
			return Value{}, err
		}
		switch tok.Type {
		case TokRParen:
			r.advance()
			return NewVector(items), nil
		case TokEOF:
			return Value{}, NewReaderError(tok.Line, tok.Col, UnexpectedEndOfInput, "unclosed vector")
		case TokDot:
			return Value{}, NewReaderError(tok.Line, tok.Col, UnexpectedDot, "dot is not allowed in a vector literal")
		default:
			v, produced, err := r.readAttempt()
			if err != nil {
				return Value{}, err
			}
			if produced {
				items = append(items, v)
			}
		}
	}
}

// isMixedContentTag reports whether an XML element may directly contain
// scripted EVL forms and further markup (spec.md §4.1: "within 'pure-XML'
// contexts (inside any XML element other than chapter/section) whitespace
// is treated as text"). chapter and section are the two elements that carry
// documentation structure mixed with live code; everything else (title,
// para, comment, ...) is read as raw character data.
func isMixedContentTag(name string) bool {
	return name == "chapter" || name == "section"
}

// skipXMLElement consumes an XML element (already peeked as its start or
// empty tag) as a block comment. Any EVL form scripted inside the element's
// content is delivered to onXMLForm as it is read, and nested XML elements
// are skipped recursively.
func (r *Reader) skipXMLElement() error {
	startTok, err := r.peek()
	if err != nil {
		return err
	}
	tag := startTok.Literal.(*XMLTag)
	r.advance()
	if startTok.Type == TokXMLEmpty {
		return nil
	}
	return r.skipXMLChildren(tag.Name)
}

// skipXMLChildren reads tagName's content up to and including its matching
// end tag. In a pure-XML element the lexer is switched to raw text-scanning
// mode for every stretch between tags (flipped off just long enough to
// classify the next '<...>' as a nested element or the closing tag, per
// scanXMLText's contract of stopping right before '<' without consuming it).
func (r *Reader) skipXMLChildren(tagName string) error {
	raw := !isMixedContentTag(tagName)
	for {
		if raw {
			r.lex.SetXMLTextMode(true)
			r.havePeek = false
			tok, err := r.peek()
			if err != nil {
				return err
			}
			if tok.Type == TokXMLText && tok.Lexeme != "" {
				r.advance()
			}
			r.lex.SetXMLTextMode(false)
			r.havePeek = false
		}

		tok, err := r.peek()
		if err != nil {
			return err
		}
		switch tok.Type {
		case TokEOF:
			return NewReaderError(tok.Line, tok.Col, UnexpectedEndOfInput, "unclosed XML element <"+tagName+">")
		case TokXMLEnd:
			endTag := tok.Literal.(*XMLTag)
			r.advance()
			if endTag.Name != tagName {
				return NewReaderError(tok.Line, tok.Col, UnexpectedXMLEndTag, "mismatched XML end tag </"+endTag.Name+">, expected </"+tagName+">")
			}
			return nil
		case TokXMLStart:
			nested := tok.Literal.(*XMLTag)
			r.advance()
			if err := r.skipXMLChildren(nested.Name); err != nil {
				return err
			}
		case TokXMLEmpty:
			r.advance()
		default:
			if raw {
				return NewReaderError(tok.Line, tok.Col, "", "unexpected EVL token inside pure-XML element <"+tagName+">")
			}
			v, err := r.readRequired()
			if err != nil {
				return err
			}
			if r.onXMLForm != nil {
				r.onXMLForm(v)
			}
		}
	}
}

// readReadTimeConditional implements #+expr obj / #-expr obj (spec.md §4.2
// and its "Open question": both expr and obj are unconditionally consumed;
// keep reports whether obj should be used as the next form.
func (r *Reader) readReadTimeConditional(positive bool) (Value, bool, error) {
	exprForm, err := r.readRequired()
	if err != nil {
		return Value{}, false, err
	}
	objForm, err := r.readRequired()
	if err != nil {
		return Value{}, false, err
	}
	polarity, err := evalFeatureExpr(exprForm, r.features)
	if err != nil {
		return Value{}, false, err
	}
	return objForm, polarity == positive, nil
}

// evalFeatureExpr evaluates a feature expression (spec.md GLOSSARY) against
// the *features* membership test: a bare symbol, or (not e), (and e...), or
// (or e...).
func evalFeatureExpr(v Value, test func(string) bool) (bool, error) {
	if test == nil {
		test = func(string) bool { return false }
	}
	switch v.Tag {
	case TagVariable:
		return test(v.AsVariable().Name), nil
	case TagCons:
		items, ok := ListToSlice(v)
		if !ok || len(items) == 0 {
			return false, NewReaderError(0, 0, "", "invalid feature expression")
		}
		head := items[0]
		if head.Tag != TagVariable {
			return false, NewReaderError(0, 0, "", "invalid feature expression operator")
		}
		switch head.AsVariable().Name {
		case "not":
			if len(items) != 2 {
				return false, NewReaderError(0, 0, "", "(not e) takes exactly one operand")
			}
			b, err := evalFeatureExpr(items[1], test)
			return !b, err
		case "and":
			for _, e := range items[1:] {
				b, err := evalFeatureExpr(e, test)
				if err != nil {
					return false, err
				}
				if !b {
					return false, nil
				}
			}
			return true, nil
		case "or":
			for _, e := range items[1:] {
				b, err := evalFeatureExpr(e, test)
				if err != nil {
					return false, err
				}
				if b {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, NewReaderError(0, 0, "", "unknown feature expression operator: "+head.AsVariable().Name)
		}
	default:
		return false, NewReaderError(0, 0, "", "invalid feature expression")
	}
}
