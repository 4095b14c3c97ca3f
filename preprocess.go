// preprocess.go — the compile-time pass behind the trampoline++ evaluator
// (spec.md §4.7).
//
// Two things happen here that the plain trampoline redoes on every pass
// through a loop: classifying a call/special form's shape (Classify's
// operator-name switch) and, for the macro-let idiom described below,
// recognizing the idiom's shape. Both are memoized per syntactic *Cons so a
// hot loop body pays for them once, not once per iteration; the macro
// closures the idiom introduces are still built each time it is evaluated.
//
// Lexical addressing here stops at classify-once-and-cache plus macro-let
// resolution rather than computing true (frame-depth, slot-index) pairs:
// Frame (env.go) is a per-variable map at each level, not a fixed-layout
// array, so there is no positional slot to address. A full positional
// scheme would mean replacing Frame's map storage with arrays sized at
// preprocessing time — a bigger change to the environment representation
// than this pass makes, and not needed to give every hot-path form a single
// cached classification instead of a re-run of Classify.
package evl

// ppInfo is the cached, one-time analysis of a single call/special form.
type ppInfo struct {
	Form        *Form
	ClassifyErr error

	// Recognized ((_flambda (f...) body) (_mlambda ...) ...) shape
	// (spec.md §4.7's "macro-let"): MacroLetBody is non-nil exactly when
	// this call form is one.
	MacroLetParams  []*Variable
	MacroLetLambdas []*LambdaForm
	MacroLetBody    []Value
}

func preprocessForm(c *Cons) *ppInfo {
	if info := tryMacroLet(c); info != nil {
		return info
	}
	form := Value{Tag: TagCons, Data: c}
	fm, ok, err := Classify(form)
	if err != nil {
		return &ppInfo{ClassifyErr: err}
	}
	if !ok {
		return &ppInfo{}
	}
	return &ppInfo{Form: fm}
}

// tryMacroLet recognizes a call whose operator position is a literal
// _flambda expression and whose every operand is a literal _mlambda
// expression — a function-namespace let that exists only to scope a set of
// mutually visible macros around body. Anything else about the shape (a
// rest parameter, an arity mismatch, a non-macro operand) falls back to
// ordinary call evaluation; it's still correct, just not specially
// optimized.
func tryMacroLet(c *Cons) *ppInfo {
	if c.Car.Tag != TagCons {
		return nil
	}
	hc := c.Car.AsCons()
	if hc.Car.Tag != TagVariable || hc.Car.AsVariable().Name != "_flambda" {
		return nil
	}
	flamFm, ok, err := Classify(c.Car)
	if err != nil || !ok || flamFm.Kind != FLambda || flamFm.Lambda.Params.Rest != nil {
		return nil
	}
	lam := flamFm.Lambda
	operands, ok := ListToSlice(c.Cdr)
	if !ok || len(operands) != len(lam.Params.Fixed) {
		return nil
	}
	lambdas := make([]*LambdaForm, len(operands))
	for i, op := range operands {
		if op.Tag != TagCons {
			return nil
		}
		oc := op.AsCons()
		if oc.Car.Tag != TagVariable || oc.Car.AsVariable().Name != "_mlambda" {
			return nil
		}
		opFm, ok, err := Classify(op)
		if err != nil || !ok || opFm.Kind != FLambda || !opFm.Lambda.Macro {
			return nil
		}
		lambdas[i] = opFm.Lambda
	}
	return &ppInfo{MacroLetParams: lam.Params.Fixed, MacroLetLambdas: lambdas, MacroLetBody: lam.Body}
}
