// eval_plainrec.go — the plain recursive evaluator (spec.md §4.8 strategy 1).
//
// Direct host-recursive interpreter: every eval step is a genuine Go call,
// so the host stack grows with EVL's call depth and there is no tail-call
// optimization. Dynamic environment is threaded as an explicit extra
// argument alongside the lexical one, matching spec.md §4.6's description
// of the two chains as independent, identically-shaped structures. Errors
// propagate as ordinary Go error returns rather than panics, since nothing
// here needs to unwind past more than a few stack frames at once; the
// trampoline variants (eval_trampoline.go, eval_trampolinepp.go) are where
// host-stack growth actually becomes the issue that forces an explicit
// control stack.
package evl

// PlainRecEvaluator implements Evaluator using direct Go recursion.
type PlainRecEvaluator struct{ *Session }

func NewPlainRecEvaluator(s *Session) *PlainRecEvaluator { return &PlainRecEvaluator{s} }

func (e *PlainRecEvaluator) Eval(form Value, lex, dyn *Frame) (Value, error) {
	if e.Abort.IsSet() {
		return Value{}, NewAborted()
	}
	switch form.Tag {
	case TagVoid, TagBoolean, TagNumber, TagCharacter, TagString, TagKeyword, TagClosure, TagPrimitive:
		return form, nil
	case TagEmptyList:
		return Value{}, NewEvaluatorError("", "the empty list is not a form")
	case TagVariable:
		return Lookup(lex, form.AsVariable(), NSValue)
	case TagCons:
		return e.evalForm(form, lex, dyn)
	default:
		return Value{}, NewCannotHappen("unexpected value tag in eval: " + TypeName(form))
	}
}

func (e *PlainRecEvaluator) evalForm(form Value, lex, dyn *Frame) (Value, error) {
	fm, ok, err := Classify(form)
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return e.evalCall(form, lex, dyn)
	}
	switch fm.Kind {
	case FQuote:
		return fm.Quote, nil
	case FProgn:
		return e.evalBody(fm.Progn, lex, dyn)
	case FIf:
		return e.evalIf(fm.If, lex, dyn)
	case FLambda:
		return ClosureVal(&Closure{
			Scope:     fm.Lambda.Scope,
			Namespace: fm.Lambda.Namespace,
			Macro:     fm.Lambda.Macro,
			Params:    fm.Lambda.Params.Fixed,
			Rest:      fm.Lambda.Params.Rest,
			Body:      fm.Lambda.Body,
			Env:       lex,
		}), nil
	case FRef:
		return e.evalRef(fm.Ref, lex, dyn)
	case FSet:
		return e.evalSet(fm.Set, lex, dyn)
	case FForEach:
		return Value{}, notImplemented("_for-each")
	case FCatchErrors:
		return e.evalCatchErrors(fm.CatchErrors, lex, dyn)
	case FApply:
		return e.evalApply(fm.Apply, lex, dyn)
	case FMultiValueCall:
		return e.evalMultiValueCall(fm.MultiCall, lex, dyn)
	case FMultiValueApply:
		return e.evalMultiValueApply(fm.MultiApply, lex, dyn)
	default:
		return Value{}, NewCannotHappen("unhandled form kind in evalForm")
	}
}

func (e *PlainRecEvaluator) evalBody(body []Value, lex, dyn *Frame) (Value, error) {
	result := Void
	for _, f := range body {
		v, err := e.Eval(f, lex, dyn)
		if err != nil {
			return Value{}, err
		}
		result = v
	}
	return result, nil
}

func (e *PlainRecEvaluator) evalIf(fm *IfForm, lex, dyn *Frame) (Value, error) {
	t, err := e.Eval(fm.Test, lex, dyn)
	if err != nil {
		return Value{}, err
	}
	if t.Tag != TagBoolean {
		return Value{}, NewEvaluatorError("", "test-form does not evaluate to a boolean")
	}
	if t.Data.(bool) {
		return e.Eval(fm.Then, lex, dyn)
	}
	return e.Eval(fm.Else, lex, dyn)
}

func (e *PlainRecEvaluator) evalRef(fm *RefForm, lex, dyn *Frame) (Value, error) {
	switch fm.Kind {
	case RefLexicalValue:
		return Lookup(lex, fm.Var, NSValue)
	case RefLexicalFunction:
		return Lookup(lex, fm.Var, NSFunction)
	default:
		return Lookup(dyn, fm.Var, NSValue)
	}
}

func (e *PlainRecEvaluator) evalSet(fm *SetForm, lex, dyn *Frame) (Value, error) {
	v, err := e.Eval(fm.ValueExpr, lex, dyn)
	if err != nil {
		return Value{}, err
	}
	switch fm.Kind {
	case RefLexicalValue:
		Set(lex, fm.Var, NSValue, v)
	case RefLexicalFunction:
		Set(lex, fm.Var, NSFunction, v)
	default:
		Set(dyn, fm.Var, NSValue, v)
	}
	return Void, nil
}

func (e *PlainRecEvaluator) evalCatchErrors(tryExpr Value, lex, dyn *Frame) (Value, error) {
	_, err := e.Eval(tryExpr, lex, dyn)
	if err == nil {
		return Void, nil
	}
	if _, aborted := err.(*Aborted); aborted {
		return Value{}, err
	}
	if ee, ok := err.(EVLError); ok {
		return String(ee.Kind()), nil
	}
	return String(err.Error()), nil
}

// resolveCallee implements spec.md §4.4's call-head rule: a bare variable
// is looked up in the function namespace; anything else is evaluated like
// any other expression.
func (e *PlainRecEvaluator) resolveCallee(head Value, lex, dyn *Frame) (Value, error) {
	if head.Tag == TagVariable {
		return Lookup(lex, head.AsVariable(), NSFunction)
	}
	return e.Eval(head, lex, dyn)
}

func (e *PlainRecEvaluator) evalCall(form Value, lex, dyn *Frame) (Value, error) {
	c := form.AsCons()
	operands, ok := ListToSlice(c.Cdr)
	if !ok {
		return Value{}, NewEvaluatorError("", "call: malformed operand list")
	}
	callee, err := e.resolveCallee(c.Car, lex, dyn)
	if err != nil {
		return Value{}, err
	}
	if callee.Tag == TagClosure && callee.AsClosure().Macro {
		return e.evalMacroCall(callee.AsClosure(), operands, lex, dyn)
	}
	args := make([]Value, len(operands))
	for i, op := range operands {
		v, err := e.Eval(op, lex, dyn)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return e.invoke(callee, args, lex, dyn)
}

// evalMacroCall passes operands unevaluated to the macro closure's body,
// then evaluates the resulting expansion back in the caller's own
// environment (spec.md §4.4, GLOSSARY "Macro closure").
func (e *PlainRecEvaluator) evalMacroCall(cl *Closure, operands []Value, lex, dyn *Frame) (Value, error) {
	newLex, err := BindParams(cl.Env, cl, operands)
	if err != nil {
		return Value{}, err
	}
	expansion, err := e.evalBody(cl.Body, newLex, dyn)
	if err != nil {
		return Value{}, err
	}
	return e.Eval(expansion, lex, dyn)
}

// invoke calls callee with already-evaluated args. A dynamically-scoped
// closure's parameters extend the dynamic chain instead of the lexical one
// (spec.md §4.6); its body still sees its own captured lexical chain for
// everything else, per invariant (b).
func (e *PlainRecEvaluator) invoke(callee Value, args []Value, lex, dyn *Frame) (Value, error) {
	switch callee.Tag {
	case TagPrimitive:
		return CallPrimitive(callee.AsPrimitive(), args)
	case TagClosure:
		cl := callee.AsClosure()
		if cl.Scope == Dynamic {
			newDyn, err := BindParams(dyn, cl, args)
			if err != nil {
				return Value{}, err
			}
			return e.evalBody(cl.Body, cl.Env, newDyn)
		}
		newLex, err := BindParams(cl.Env, cl, args)
		if err != nil {
			return Value{}, err
		}
		return e.evalBody(cl.Body, newLex, dyn)
	default:
		return Value{}, NewEvaluatorError("", "cannot call a value of type "+TypeName(callee))
	}
}

func (e *PlainRecEvaluator) invokeApply(callee Value, leadingVals []Value, spreadVal Value, lex, dyn *Frame) (Value, error) {
	switch callee.Tag {
	case TagPrimitive:
		if !IsProperList(spreadVal) {
			return Value{}, NewEvaluatorError(MalformedSpreadableSequenceOfObjects, "apply's spread argument is not a proper list")
		}
		items, _ := ListToSlice(spreadVal)
		args := make([]Value, 0, len(leadingVals)+len(items))
		args = append(args, leadingVals...)
		args = append(args, items...)
		return CallPrimitive(callee.AsPrimitive(), args)
	case TagClosure:
		cl := callee.AsClosure()
		if cl.Scope == Dynamic {
			newDyn, err := BindParamsApply(dyn, cl, leadingVals, spreadVal)
			if err != nil {
				return Value{}, err
			}
			return e.evalBody(cl.Body, cl.Env, newDyn)
		}
		newLex, err := BindParamsApply(cl.Env, cl, leadingVals, spreadVal)
		if err != nil {
			return Value{}, err
		}
		return e.evalBody(cl.Body, newLex, dyn)
	default:
		return Value{}, NewEvaluatorError("", "cannot apply a value of type "+TypeName(callee))
	}
}

func (e *PlainRecEvaluator) evalApply(fm *ApplyForm, lex, dyn *Frame) (Value, error) {
	callee, err := e.resolveCallee(fm.Op, lex, dyn)
	if err != nil {
		return Value{}, err
	}
	leadingVals := make([]Value, len(fm.Leading))
	for i, op := range fm.Leading {
		v, err := e.Eval(op, lex, dyn)
		if err != nil {
			return Value{}, err
		}
		leadingVals[i] = v
	}
	spreadVal, err := e.Eval(fm.SpreadExpr, lex, dyn)
	if err != nil {
		return Value{}, err
	}
	return e.invokeApply(callee, leadingVals, spreadVal, lex, dyn)
}

func (e *PlainRecEvaluator) evalMultiValueCall(fm *MultiCallForm, lex, dyn *Frame) (Value, error) {
	callee, err := e.resolveCallee(fm.Op, lex, dyn)
	if err != nil {
		return Value{}, err
	}
	var args []Value
	for _, op := range fm.Operands {
		v, err := e.Eval(op, lex, dyn)
		if err != nil {
			return Value{}, err
		}
		args = append(args, v.AllValues()...)
	}
	return e.invoke(callee, args, lex, dyn)
}

func (e *PlainRecEvaluator) evalMultiValueApply(fm *MultiApplyForm, lex, dyn *Frame) (Value, error) {
	callee, err := e.resolveCallee(fm.Op, lex, dyn)
	if err != nil {
		return Value{}, err
	}
	var leadingVals []Value
	for _, op := range fm.Leading {
		v, err := e.Eval(op, lex, dyn)
		if err != nil {
			return Value{}, err
		}
		leadingVals = append(leadingVals, v.AllValues()...)
	}
	spreadVal, err := e.Eval(fm.SpreadExpr, lex, dyn)
	if err != nil {
		return Value{}, err
	}
	return e.invokeApply(callee, leadingVals, spreadVal, lex, dyn)
}
