package evl

import "testing"

// allStrategyNames mirrors runtime.go's StrategyNames; kept as a local copy
// so a test loop reads naturally against the literal six names spec.md §4.8
// enumerates.
var allStrategyNames = []string{"plainrec", "cps", "oocps", "sboocps", "trampoline", "trampolinepp"}

// evalSrc evaluates every top-level form in src against a fresh runtime for
// strategy, returning the last form's stringified primary value.
func evalSrc(t *testing.T, strategy, src string) (string, error) {
	t.Helper()
	rt, err := NewRuntime(strategy)
	if err != nil {
		t.Fatalf("NewRuntime(%q): %v", strategy, err)
	}
	reader := rt.NewReaderFor(src, nil)
	var last Value
	for {
		form, ok, ferr := reader.ReadForm()
		if ferr != nil {
			return "", ferr
		}
		if !ok {
			break
		}
		v, everr := rt.Evaluator.Eval(form, nil, nil)
		if everr != nil {
			return "", everr
		}
		last = v
	}
	return Stringify(last.PrimaryValue()), nil
}

func TestSemanticEquivalenceAcrossAllSixEvaluators(t *testing.T) {
	corpus := []struct {
		name, src, want string
	}{
		{"arith", "(+ 1 2)", "3.0"},
		{"if-true", "(if #t 'a 'b)", "a"},
		{"if-false", "(if #f 'a 'b)", "b"},
		{"progn-order", "(progn 1 2 3)", "3.0"},
		{"quote-list", "(quote (1 2 3))", "(1.0 2.0 3.0)"},
		{"lambda-call", "((_vlambda (x y) (+ x y)) 3 4)", "7.0"},
		{"apply-spread", "(apply + (list 1 2 3))", "6.0"},
		{"catch-errors-ok", "(_catch-errors 42)", "#v"},
		{"catch-errors-err", `(_catch-errors (error "oops"))`, "\"Error\""},
		{"recursive-function", `(progn
			(fset! fact (_vlambda (n) (if (= n 0) 1 (* n (fact (- n 1))))))
			(fact 5))`, "120.0"},
		{"vset-vref-roundtrip", "(progn (vset! x 10) (vref x))", "10.0"},
		{"values-primary", "(values 1 2 3)", "1.0"},
		{"multiple-value-call", "(multiple-value-call + (values 1 2) 3)", "6.0"},
		{"dynamic-scope", `(progn (dset! y 5) (dref y))`, "5.0"},
		{"macro-expansion", `(progn
			(fset! my-if (_mlambda (test then else) (list 'if test then else)))
			(my-if #t 'yes 'no))`, "yes"},
	}

	for _, c := range corpus {
		c := c
		t.Run(c.name, func(t *testing.T) {
			var results []string
			for _, strat := range allStrategyNames {
				got, err := evalSrc(t, strat, c.src)
				if err != nil {
					t.Fatalf("[%s] unexpected error: %v", strat, err)
				}
				if got != c.want {
					t.Fatalf("[%s] got %q, want %q", strat, got, c.want)
				}
				results = append(results, got)
			}
			for i := 1; i < len(results); i++ {
				if results[i] != results[0] {
					t.Fatalf("evaluators disagree: %v vs %v (%v)", results[0], results[i], allStrategyNames)
				}
			}
		})
	}
}

func TestOrderOfEffects(t *testing.T) {
	for _, strat := range allStrategyNames {
		got, err := evalSrc(t, strat, "(progn (vset! x 1) (vset! x 2) (vref x))")
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", strat, err)
		}
		if got != "2.0" {
			t.Fatalf("[%s] expected 2.0, got %s", strat, got)
		}
	}
}

func TestOperandEvaluationOrderLeftToRight(t *testing.T) {
	// Side-effecting operands observed via a shared trace variable: each
	// operand appends its tag to the trace list and returns the tag, so the
	// trace reveals the order operands were actually evaluated in.
	src := `(progn
		(vset! trace (list))
		(fset! bump (_vlambda (tag) (progn (vset! trace (append trace (list tag))) tag)))
		(list (bump 1) (bump 2) (bump 3))
		(vref trace))`
	for _, strat := range allStrategyNames {
		got, err := evalSrc(t, strat, src)
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", strat, err)
		}
		if got != "(1.0 2.0 3.0)" {
			t.Fatalf("[%s] expected left-to-right trace (1.0 2.0 3.0), got %s", strat, got)
		}
	}
}

func TestIfRequiresBooleanTest(t *testing.T) {
	for _, strat := range allStrategyNames {
		_, err := evalSrc(t, strat, "(if 0 'a 'b)")
		if err == nil {
			t.Fatalf("[%s] expected an error for a non-boolean test", strat)
		}
		ee, ok := err.(EVLError)
		if !ok || ee.Kind() != "EvaluatorError" {
			t.Fatalf("[%s] expected an EvaluatorError, got %T: %v", strat, err, err)
		}
	}
}

func TestApplyMalformedSpreadTail(t *testing.T) {
	for _, strat := range allStrategyNames {
		_, err := evalSrc(t, strat, "(apply + 1 2)")
		if err == nil {
			t.Fatalf("[%s] expected MalformedSpreadableSequenceOfObjects", strat)
		}
		ev, ok := err.(*EvaluatorError)
		if !ok || ev.Sub != MalformedSpreadableSequenceOfObjects {
			t.Fatalf("[%s] expected MalformedSpreadableSequenceOfObjects, got %v", strat, err)
		}
	}
}

func TestUnboundVariableErrorAcrossEvaluators(t *testing.T) {
	for _, strat := range allStrategyNames {
		_, err := evalSrc(t, strat, "never-bound")
		if err == nil {
			t.Fatalf("[%s] expected an UnboundVariable error", strat)
		}
		ev, ok := err.(*EvaluatorError)
		if !ok || ev.Sub != UnboundVariable {
			t.Fatalf("[%s] expected UnboundVariable, got %v", strat, err)
		}
	}
}

func TestEmptyListIsNotAForm(t *testing.T) {
	for _, strat := range allStrategyNames {
		rt, err := NewRuntime(strat)
		if err != nil {
			t.Fatalf("[%s] NewRuntime: %v", strat, err)
		}
		_, err = rt.Evaluator.Eval(EmptyList, nil, nil)
		if err == nil {
			t.Fatalf("[%s] evaluating the empty list must fail", strat)
		}
	}
}

// For-each is implemented by cps/oocps/sboocps and explicitly unimplemented
// by plainrec/trampoline/trampolinepp (spec.md §4.4).
func TestForEachImplementedOnlyOnThreeStrategies(t *testing.T) {
	src := `(progn (vset! sum 0)
		(_for-each (_vlambda (x) (vset! sum (+ sum x))) (list 1 2 3))
		(vref sum))`
	implemented := map[string]bool{"cps": true, "oocps": true, "sboocps": true}
	for _, strat := range allStrategyNames {
		got, err := evalSrc(t, strat, src)
		if implemented[strat] {
			if err != nil {
				t.Fatalf("[%s] expected _for-each to work, got error: %v", strat, err)
			}
			if got != "6.0" {
				t.Fatalf("[%s] expected sum 6.0, got %s", strat, got)
			}
		} else {
			if err == nil {
				t.Fatalf("[%s] expected _for-each to be unimplemented", strat)
			}
		}
	}
}

func TestCatchErrorsRecoversNamedErrorKind(t *testing.T) {
	for _, strat := range allStrategyNames {
		got, err := evalSrc(t, strat, "(_catch-errors (vref never-bound))")
		if err != nil {
			t.Fatalf("[%s] catch-errors must absorb the error, got %v", strat, err)
		}
		if got != "\"EvaluatorError\"" {
			t.Fatalf("[%s] expected \"EvaluatorError\", got %s", strat, got)
		}
	}
}

func TestAbortBypassesActiveCatchErrorsHandler(t *testing.T) {
	for _, strat := range allStrategyNames {
		rt, err := NewRuntime(strat)
		if err != nil {
			t.Fatalf("[%s] NewRuntime: %v", strat, err)
		}
		rt.Session.Abort.Set()
		reader := rt.NewReaderFor(`(_catch-errors (+ 1 2))`, nil)
		form, ok, err := reader.ReadForm()
		if err != nil || !ok {
			t.Fatalf("[%s] unexpected read failure: ok=%v err=%v", strat, ok, err)
		}
		_, err = rt.Evaluator.Eval(form, nil, nil)
		if err == nil {
			t.Fatalf("[%s] expected Aborted to win over an active _catch-errors handler", strat)
		}
		if _, aborted := err.(*Aborted); !aborted {
			t.Fatalf("[%s] expected *Aborted, got %T", strat, err)
		}
	}
}

// Tail safety (spec.md §8): trampoline and trampolinepp must evaluate a
// self-tail-recursive loop of very large N without exhausting the host
// stack, because tail calls never grow it in those two strategies.
func TestTailSafetyOnTrampolines(t *testing.T) {
	src := `(progn
		(fset! test-loop (_vlambda (n acc) (if (= n 0) acc (test-loop (- n 1) (+ acc 1)))))
		(test-loop 1000000 0))`
	for _, strat := range []string{"trampoline", "trampolinepp"} {
		got, err := evalSrc(t, strat, src)
		if err != nil {
			t.Fatalf("[%s] unexpected error on a million-deep tail loop: %v", strat, err)
		}
		if got != "1000000.0" {
			t.Fatalf("[%s] expected 1000000.0, got %s", strat, got)
		}
	}
}

func TestTrampolinePPMacroLetIdiom(t *testing.T) {
	// A call whose operator is a literal _flambda and whose every operand is
	// a literal _mlambda is the macro-let idiom (spec.md §4.7); the macros
	// should see each other and expand correctly under trampolinepp, the
	// only strategy that special-cases this shape.
	src := `((_flambda (double)
			(double (+ 1 2)))
		  (_mlambda (x) (list '* x 2)))`
	got, err := evalSrc(t, "trampolinepp", src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "6.0" {
		t.Fatalf("got %s, want 6.0", got)
	}
}

func TestScenarioPlusAliasedToPrimitive(t *testing.T) {
	got, err := evalSrc(t, DefaultStrategy, "(+ 1 2)")
	if err != nil || got != "3.0" {
		t.Fatalf("got %q, err %v", got, err)
	}
}
