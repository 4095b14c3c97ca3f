package evl

import (
	"strings"
	"testing"
)

func TestConvertEVLToXMLWrapsScriptedFormAsBlockcode(t *testing.T) {
	src := `<chapter><title>T</title><para>p</para>(foo)</chapter>`
	got, err := ConvertEVLToXML(src, NewSymbolTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<chapter><title>T</title><para>p</para><toplevelcode><blockcode>(foo)</blockcode></toplevelcode></chapter>`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestConvertEVLToXMLFoldsCommentElement(t *testing.T) {
	got, err := ConvertEVLToXML("foo <comment>note</comment> bar", NewSymbolTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "foo # note bar"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestConvertEVLToXMLWrapsEmbeddedElementAsIndentedBlockComment(t *testing.T) {
	got, err := ConvertEVLToXML("(foo <bar>baz</bar> 1)", NewSymbolTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, `<indentation style="margin-left: 0 ch"><blockcomment><bar>baz</bar></blockcomment></indentation>`) {
		t.Fatalf("expected an indented blockcomment wrapping the embedded element, got %q", got)
	}
	if !strings.HasPrefix(got, "(foo ") || !strings.HasSuffix(got, " 1)") {
		t.Fatalf("expected the surrounding EVL code untouched, got %q", got)
	}
}

func TestConvertEVLToXMLTopLevelCodeWithNoSurroundingXML(t *testing.T) {
	got, err := ConvertEVLToXML("(+ 1 2)", NewSymbolTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Outside any XML element, EVL source passes through verbatim; nothing
	// to wrap in toplevelcode since there is no enclosing element to escape.
	if got != "(+ 1 2)" {
		t.Fatalf("got %q", got)
	}
}

func TestConvertEVLToXMLUnclosedElementIsAnError(t *testing.T) {
	_, err := ConvertEVLToXML("<chapter><para>p</para>", NewSymbolTable())
	if err == nil {
		t.Fatal("expected an UnexpectedEndOfInput error for the unclosed <chapter>")
	}
	re, ok := err.(*ReaderError)
	if !ok || re.Sub != UnexpectedEndOfInput {
		t.Fatalf("expected UnexpectedEndOfInput, got %v", err)
	}
}

func TestConvertEVLToXMLEscapesAmpersandAndAngleBracketInStringContent(t *testing.T) {
	got, err := ConvertEVLToXML(`(foo "a&b>c")`, NewSymbolTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `(foo "a&amp;b&gt;c")`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestConvertEVLToXMLSplitsBlockOnBlankLine(t *testing.T) {
	src := "<chapter>(foo)\n\n(bar)</chapter>"
	got, err := ConvertEVLToXML(src, NewSymbolTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(got, "<toplevelcode>") != 2 {
		t.Fatalf("expected a blank line to split into two separate toplevelcode blocks, got %q", got)
	}
}
