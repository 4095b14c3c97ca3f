// evaluator.go — state and contract shared by all six evaluator strategies
// (spec.md §4.8). Each strategy lives in its own eval_*.go file and differs
// only in control representation; none of them own symbol interning,
// feature flags, or the abort channel separately.
package evl

// Session bundles what every evaluator strategy needs regardless of how it
// represents control: the interned symbol table, the abort flag, and the
// *features* variable (spec.md §5). INITIALIZE builds a fresh Session per
// evaluator selection so no state leaks between sessions.
type Session struct {
	Symbols  *SymbolTable
	Abort    *AbortFlag
	Features *Variable
}

// NewSession wires a fresh symbol table, primitive registry, and
// *features* binding naming strategyName as the active evaluator
// (spec.md §5's "fresh *features* list...containing the name of the newly
// selected evaluator strategy").
func NewSession(strategyName string) *Session {
	st := NewSymbolTable()
	RegisterPrimitives(st)
	featuresVar := st.Variable("*features*").AsVariable()
	initial := SliceToList([]Value{st.Keyword(strategyName)}, EmptyList)
	featuresVar.ValueCell = &initial
	return &Session{Symbols: st, Abort: &AbortFlag{}, Features: featuresVar}
}

// FeatureTest reports whether name appears in the current *features* list,
// for the reader's read-time conditionals (reader.go).
func (s *Session) FeatureTest(name string) bool {
	if s.Features.ValueCell == nil {
		return false
	}
	items, ok := ListToSlice(*s.Features.ValueCell)
	if !ok {
		return false
	}
	for _, it := range items {
		switch it.Tag {
		case TagKeyword:
			if it.AsKeyword().Name == name {
				return true
			}
		case TagVariable:
			if it.AsVariable().Name == name {
				return true
			}
		}
	}
	return false
}

// Evaluator is implemented once per strategy (eval_plainrec.go,
// eval_cps.go, eval_oocps.go, eval_sboocps.go, eval_trampoline.go,
// eval_trampolinepp.go). lex is the lexical frame chain in effect; dyn is
// the dynamic frame chain in effect at the call site. Eval always honors
// the abort check before doing any work (spec.md §4.8, §5).
type Evaluator interface {
	Eval(form Value, lex, dyn *Frame) (Value, error)
}

// notImplemented models spec.md §4.4's "not every evaluator implements
// [_for-each]; the plain-recursive and both trampoline evaluators
// explicitly do not; they signal 'not implemented'".
func notImplemented(what string) error {
	return NewEvaluatorError("", what+" is not implemented by this evaluator strategy")
}
