package evl

import "testing"

func TestEngineRequiresInitializeBeforeUse(t *testing.T) {
	e := NewEngine()
	if e.AbortFlag() != nil {
		t.Fatal("AbortFlag must be nil before the first Initialize")
	}
}

func TestEngineInitializeRunsPreloadFiles(t *testing.T) {
	e := NewEngine()
	resp := e.Initialize("trampolinepp", []string{"(vset! x 1)", "(vset! x (+ x 1)) (vref x)"})
	if resp.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %+v", resp)
	}
	if len(resp.Output) != 1 || resp.Output[0] != "2.0" {
		t.Fatalf("expected [\"2.0\"], got %v", resp.Output)
	}
}

func TestEngineInitializeRejectsUnknownStrategy(t *testing.T) {
	e := NewEngine()
	resp := e.Initialize("not-a-strategy", nil)
	if resp.Status != StatusError {
		t.Fatalf("expected ERROR, got %+v", resp)
	}
}

func TestEngineEvaluateFirstFormScenarioPlus(t *testing.T) {
	e := NewEngine()
	e.Initialize("trampolinepp", nil)
	resp := e.EvaluateFirstForm("(+ 1 2)")
	if resp.Status != StatusSuccess || len(resp.Output) != 1 || resp.Output[0] != "3.0" {
		t.Fatalf("got %+v", resp)
	}
}

func TestEngineEvaluateFirstFormIfTrue(t *testing.T) {
	e := NewEngine()
	e.Initialize("trampolinepp", nil)
	resp := e.EvaluateFirstForm("(if #t 'a 'b)")
	if resp.Status != StatusSuccess || resp.Output[0] != "a" {
		t.Fatalf("got %+v", resp)
	}
}

func TestEngineEvaluateFirstFormNonBooleanTestIsError(t *testing.T) {
	e := NewEngine()
	e.Initialize("trampolinepp", nil)
	resp := e.EvaluateFirstForm("(if 0 'a 'b)")
	if resp.Status != StatusError || resp.ErrorKind != "EvaluatorError" {
		t.Fatalf("got %+v", resp)
	}
}

func TestEngineEvaluateFirstFormUnclosedListReportsFoundNoForm(t *testing.T) {
	e := NewEngine()
	e.Initialize("trampolinepp", nil)
	resp := e.EvaluateFirstForm("( 1 2")
	if resp.Status != StatusFoundNoForm {
		t.Fatalf("expected FOUND_NO_FORM for unclosed input, got %+v", resp)
	}
}

func TestEngineEvaluateFirstFormEmptyInputReportsFoundNoForm(t *testing.T) {
	e := NewEngine()
	e.Initialize("trampolinepp", nil)
	resp := e.EvaluateFirstForm("   ")
	if resp.Status != StatusFoundNoForm {
		t.Fatalf("expected FOUND_NO_FORM for whitespace-only input, got %+v", resp)
	}
}

func TestEngineEvaluateFirstFormTruncatedStringReportsFoundNoForm(t *testing.T) {
	e := NewEngine()
	e.Initialize("trampolinepp", nil)
	resp := e.EvaluateFirstForm(`"unterminated`)
	if resp.Status != StatusFoundNoForm {
		t.Fatalf("expected FOUND_NO_FORM for a truncated string token, got %+v", resp)
	}
}

func TestEngineEvaluateFirstFormMalformedInputIsStillAnError(t *testing.T) {
	e := NewEngine()
	e.Initialize("trampolinepp", nil)
	resp := e.EvaluateFirstForm(")")
	if resp.Status != StatusError {
		t.Fatalf("a bare unexpected ')' is malformed, not incomplete; got %+v", resp)
	}
}

func TestEngineEvaluateAllFormsReturnsLastFormOnly(t *testing.T) {
	e := NewEngine()
	e.Initialize("trampolinepp", nil)
	resp := e.EvaluateAllForms("(vset! x 1) (vset! x 2) (vref x)")
	if resp.Status != StatusSuccess || len(resp.Output) != 1 || resp.Output[0] != "2.0" {
		t.Fatalf("got %+v", resp)
	}
}

func TestEngineEvaluateAllFormsUnclosedTailReportsFoundNoForm(t *testing.T) {
	e := NewEngine()
	e.Initialize("trampolinepp", nil)
	resp := e.EvaluateAllForms("( 1 2")
	if resp.Status != StatusFoundNoForm {
		t.Fatalf("expected FOUND_NO_FORM when no complete form precedes the truncation, got %+v", resp)
	}
}

func TestEngineEvaluateAllFormsTruncatedTailAfterACompleteFormIsAnError(t *testing.T) {
	// Unlike the no-forms-at-all case, a truncated form *after* at least one
	// already evaluated is reported as ERROR rather than silently returning
	// the prior value: EvaluateAllForms maps incomplete input to
	// FOUND_NO_FORM only while hadForm is still false.
	e := NewEngine()
	e.Initialize("trampolinepp", nil)
	resp := e.EvaluateAllForms("(+ 1 2) ( 3 4")
	if resp.Status != StatusError {
		t.Fatalf("got %+v", resp)
	}
}

func TestEngineConvertEVLToXML(t *testing.T) {
	e := NewEngine()
	e.Initialize("trampolinepp", nil)
	resp := e.ConvertEVLToXML(`<chapter><title>T</title><para>p</para>(foo)</chapter>`)
	if resp.Status != StatusSuccess {
		t.Fatalf("got %+v", resp)
	}
	want := `<chapter><title>T</title><para>p</para><toplevelcode><blockcode>(foo)</blockcode></toplevelcode></chapter>`
	if resp.XML != want {
		t.Fatalf("got %q, want %q", resp.XML, want)
	}
}

func TestEngineAbortFlagReportsAbortedBeforeEvaluating(t *testing.T) {
	e := NewEngine()
	e.Initialize("trampolinepp", nil)
	e.AbortFlag().Set()
	resp := e.EvaluateFirstForm("(+ 1 2)")
	if resp.Status != StatusAborted {
		t.Fatalf("expected ABORTED, got %+v", resp)
	}
}

func TestEngineReinitializeReplacesRuntimeState(t *testing.T) {
	e := NewEngine()
	e.Initialize("trampolinepp", []string{"(vset! x 99)"})
	first := e.EvaluateFirstForm("(vref x)")
	if first.Status != StatusSuccess || first.Output[0] != "99.0" {
		t.Fatalf("got %+v", first)
	}
	e.Initialize("trampolinepp", nil)
	second := e.EvaluateFirstForm("(vref x)")
	if second.Status != StatusError || second.ErrorKind != "EvaluatorError" {
		t.Fatalf("expected x to be unbound again after re-initializing, got %+v", second)
	}
}

func TestEngineUserErrorPrimitive(t *testing.T) {
	e := NewEngine()
	e.Initialize("trampolinepp", nil)
	resp := e.EvaluateFirstForm(`(error "oops")`)
	if resp.Status != StatusError || resp.ErrorKind != "Error" {
		t.Fatalf("got %+v", resp)
	}
}
