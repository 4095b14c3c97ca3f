package evl

import "testing"

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	l := NewLexer(src)
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("Next() error on %q: %v", src, err)
		}
		toks = append(toks, tok)
		if tok.Type == TokEOF {
			return toks
		}
	}
}

func scanTypes(t *testing.T, src string) []TokenType {
	t.Helper()
	toks := scanAll(t, src)
	out := make([]TokenType, 0, len(toks))
	for _, tok := range toks {
		if tok.Type == TokEOF {
			break
		}
		out = append(out, tok.Type)
	}
	return out
}

func wantErrType(t *testing.T, src string, want interface{}) {
	t.Helper()
	l := NewLexer(src)
	for {
		_, err := l.Next()
		if err != nil {
			switch want.(type) {
			case *TruncatedToken:
				if _, ok := err.(*TruncatedToken); !ok {
					t.Fatalf("%q: expected *TruncatedToken, got %T (%v)", src, err, err)
				}
			case *TokenizerError:
				if _, ok := err.(*TokenizerError); !ok {
					t.Fatalf("%q: expected *TokenizerError, got %T (%v)", src, err, err)
				}
			}
			return
		}
	}
}

func TestLexerAbbreviationTokens(t *testing.T) {
	got := scanTypes(t, "' ` , ,@")
	want := []TokenType{TokQuote, TokQuasiquote, TokUnquote, TokUnquoteSplicing}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLexerHashConstructs(t *testing.T) {
	toks := scanAll(t, `#v #t #f #( #+ #-`)
	types := []TokenType{TokVoid, TokBoolean, TokBoolean, TokHashLParen, TokHashPlus, TokHashMinus}
	for i, want := range types {
		if toks[i].Type != want {
			t.Fatalf("token %d: got %v, want %v", i, toks[i].Type, want)
		}
	}
	if toks[1].Literal.(bool) != true || toks[2].Literal.(bool) != false {
		t.Fatal("#t/#f literal payload wrong")
	}
}

func TestLexerCharacterLiteralQueuesRemainingUnits(t *testing.T) {
	toks := scanAll(t, `#"abc"`)
	// first token carries 'a'; remaining units 'b','c' are queued.
	if toks[0].Type != TokCharacter || toks[0].Literal.(string) != "a" {
		t.Fatalf("first character token wrong: %+v", toks[0])
	}
	if toks[1].Type != TokCharacter || toks[1].Literal.(string) != "b" {
		t.Fatalf("second (queued) character token wrong: %+v", toks[1])
	}
	if toks[2].Type != TokCharacter || toks[2].Literal.(string) != "c" {
		t.Fatalf("third (queued) character token wrong: %+v", toks[2])
	}
	if toks[3].Type != TokEOF {
		t.Fatalf("expected EOF after queued characters, got %v", toks[3].Type)
	}
}

func TestLexerCharacterLiteralWithIndexPrefix(t *testing.T) {
	toks := scanAll(t, `#2"abc"`)
	if toks[0].Type != TokCharacter || toks[0].Literal.(string) != "b" {
		t.Fatalf("expected #2 prefix to select 'b' first, got %+v", toks[0])
	}
	if toks[1].Literal.(string) != "c" {
		t.Fatalf("expected 'c' queued after, got %+v", toks[1])
	}
}

func TestLexerConverterModeCollapsesHashString(t *testing.T) {
	l := NewConverterLexer(`#"abc"`)
	tok, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Type != TokCharacter || tok.Lexeme != `#"abc"` {
		t.Fatalf("expected a single collapsed token spanning the whole literal, got %+v", tok)
	}
	next, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Type != TokEOF {
		t.Fatalf("expected EOF immediately after the collapsed literal, got %v", next.Type)
	}
}

func TestLexerStringEscapes(t *testing.T) {
	toks := scanAll(t, `"a\tb\nc\\d\"e"`)
	if toks[0].Type != TokString {
		t.Fatalf("expected a string token, got %v", toks[0].Type)
	}
	want := "a\tb\nc\\d\"e"
	if toks[0].Literal.(string) != want {
		t.Fatalf("got %q, want %q", toks[0].Literal, want)
	}
}

func TestLexerUnicodeEscape(t *testing.T) {
	toks := scanAll(t, `"\U{48}\U{65}\U{6C}\U{6C}\U{6F}"`)
	if toks[0].Literal.(string) != "Hello" {
		t.Fatalf("got %q, want Hello", toks[0].Literal)
	}
}

func TestLexerTruncatedStringIsTruncatedToken(t *testing.T) {
	wantErrType(t, `"unterminated`, &TruncatedToken{})
}

func TestLexerTruncatedHashConstructIsTruncatedToken(t *testing.T) {
	wantErrType(t, `#"unterminated`, &TruncatedToken{})
	wantErrType(t, `#`, &TruncatedToken{})
}

func TestLexerKeywordAndVariable(t *testing.T) {
	toks := scanAll(t, `:foo bar`)
	if toks[0].Type != TokKeyword || toks[0].Literal.(string) != "foo" {
		t.Fatalf("keyword token wrong: %+v", toks[0])
	}
	if toks[1].Type != TokVariable || toks[1].Literal.(string) != "bar" {
		t.Fatalf("variable token wrong: %+v", toks[1])
	}
}

func TestLexerNumber(t *testing.T) {
	toks := scanAll(t, `3 -2.5 1e10 +4`)
	want := []float64{3, -2.5, 1e10, 4}
	for i, w := range want {
		if toks[i].Type != TokNumber {
			t.Fatalf("token %d: expected number, got %v (%q)", i, toks[i].Type, toks[i].Lexeme)
		}
		if toks[i].Literal.(float64) != w {
			t.Fatalf("token %d: got %v, want %v", i, toks[i].Literal, w)
		}
	}
}

func TestLexerDotVsNumberVsProtoToken(t *testing.T) {
	toks := scanAll(t, `(a . b)`)
	// index: ( a . b )
	if toks[2].Type != TokDot {
		t.Fatalf("expected a bare dot token, got %v", toks[2].Type)
	}
	toks = scanAll(t, `.5 .foo`)
	if toks[0].Type != TokNumber || toks[0].Literal.(float64) != 0.5 {
		t.Fatalf("expected .5 to scan as a number, got %v (%q)", toks[0].Type, toks[0].Lexeme)
	}
	if toks[1].Type != TokVariable || toks[1].Literal.(string) != ".foo" {
		t.Fatalf("expected .foo to scan as a variable, got %v (%q)", toks[1].Type, toks[1].Lexeme)
	}
}

func TestLexerXMLStartEndEmptyTags(t *testing.T) {
	toks := scanAll(t, `<para>text</para><br/>`)
	if toks[0].Type != TokXMLStart {
		t.Fatalf("expected XML start tag, got %v", toks[0].Type)
	}
	tag := toks[0].Literal.(*XMLTag)
	if tag.Name != "para" {
		t.Fatalf("expected tag name para, got %q", tag.Name)
	}
	// index: <para> text </para> <br/>
	if toks[2].Type != TokXMLEnd || toks[2].Literal.(*XMLTag).Name != "para" {
		t.Fatalf("expected XML end tag para, got %v (%q)", toks[2].Type, toks[2].Lexeme)
	}
	if toks[3].Type != TokXMLEmpty || toks[3].Literal.(*XMLTag).Name != "br" {
		t.Fatalf("expected XML empty tag br, got %v (%q)", toks[3].Type, toks[3].Lexeme)
	}
}

func TestLexerXMLAttributes(t *testing.T) {
	l := NewLexer(`<a href="x" id='y'>`)
	tok, err := l.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tag := tok.Literal.(*XMLTag)
	if len(tag.Attrs) != 2 || tag.Attrs[0].Name != "href" || tag.Attrs[0].Value != "x" {
		t.Fatalf("attrs parsed wrong: %+v", tag.Attrs)
	}
	if tag.Attrs[1].Name != "id" || tag.Attrs[1].Value != "y" {
		t.Fatalf("second attr parsed wrong: %+v", tag.Attrs[1])
	}
}

func TestLexerWhitespacePreservedOnToken(t *testing.T) {
	toks := scanAll(t, "(  foo   bar)")
	// index 0 '(' ws="", index1 'foo' ws="  ", index2 'bar' ws="   "
	if toks[1].Whitespace != "  " {
		t.Fatalf("expected 2-space whitespace before foo, got %q", toks[1].Whitespace)
	}
	if toks[2].Whitespace != "   " {
		t.Fatalf("expected 3-space whitespace before bar, got %q", toks[2].Whitespace)
	}
}

func TestLexerRejectsInvalidControlCharacter(t *testing.T) {
	wantErrType(t, "\x01", &TokenizerError{})
}

func TestLexerMalformedXMLTag(t *testing.T) {
	l := NewLexer(`<a=b>`)
	_, err := l.Next()
	if err == nil {
		t.Fatal("expected an error for malformed XML markup")
	}
}
