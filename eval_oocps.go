// eval_oocps.go — the object-oriented CPS evaluator (spec.md §4.8 strategy 3).
//
// Same control discipline as eval_cps.go, but continuations are reified as a
// closed set of tagged record types implementing Continuation instead of
// raw Go func values. This is what spec.md means by "the set of
// continuations enumerable": one can list every Continuation implementation
// and know that is the entire vocabulary of "what happens next" this
// evaluator can express. Invoking a continuation is still an ordinary Go
// call, so the host stack grows exactly as it does under plain CPS.
package evl

// Continuation receives the value produced by a sub-evaluation and decides
// what happens next.
type Continuation interface {
	Invoke(e *OOCPSEvaluator, v Value) (Value, error)
}

// doneCont is the outermost continuation: it simply returns its value.
type doneCont struct{}

func (doneCont) Invoke(e *OOCPSEvaluator, v Value) (Value, error) { return v, nil }

type OOCPSEvaluator struct{ *Session }

func NewOOCPSEvaluator(s *Session) *OOCPSEvaluator { return &OOCPSEvaluator{s} }

func (e *OOCPSEvaluator) Eval(form Value, lex, dyn *Frame) (Value, error) {
	return e.eval(form, lex, dyn, doneCont{})
}

func (e *OOCPSEvaluator) eval(form Value, lex, dyn *Frame, k Continuation) (Value, error) {
	if e.Abort.IsSet() {
		return Value{}, NewAborted()
	}
	switch form.Tag {
	case TagVoid, TagBoolean, TagNumber, TagCharacter, TagString, TagKeyword, TagClosure, TagPrimitive:
		return k.Invoke(e, form)
	case TagEmptyList:
		return Value{}, NewEvaluatorError("", "the empty list is not a form")
	case TagVariable:
		v, err := Lookup(lex, form.AsVariable(), NSValue)
		if err != nil {
			return Value{}, err
		}
		return k.Invoke(e, v)
	case TagCons:
		return e.evalForm(form, lex, dyn, k)
	default:
		return Value{}, NewCannotHappen("unexpected value tag in eval: " + TypeName(form))
	}
}

// listCont accumulates the evaluated values of a fixed operand slice,
// left to right, then hands the completed slice to Next.
type listCont struct {
	ops       []Value
	i         int
	acc       []Value
	lex, dyn  *Frame
	Next      func(e *OOCPSEvaluator, vs []Value) (Value, error)
}

func (c *listCont) Invoke(e *OOCPSEvaluator, v Value) (Value, error) {
	c.acc[c.i] = v
	if c.i+1 >= len(c.ops) {
		return c.Next(e, c.acc)
	}
	return e.eval(c.ops[c.i+1], c.lex, c.dyn, &listCont{ops: c.ops, i: c.i + 1, acc: c.acc, lex: c.lex, dyn: c.dyn, Next: c.Next})
}

func (e *OOCPSEvaluator) evalList(ops []Value, lex, dyn *Frame, next func(e *OOCPSEvaluator, vs []Value) (Value, error)) (Value, error) {
	if len(ops) == 0 {
		return next(e, nil)
	}
	acc := make([]Value, len(ops))
	return e.eval(ops[0], lex, dyn, &listCont{ops: ops, i: 0, acc: acc, lex: lex, dyn: dyn, Next: next})
}

// bodyCont evaluates a progn-like body, discarding every value but the
// last, which it hands to Next.
type bodyCont struct {
	rest     []Value
	lex, dyn *Frame
	Next     Continuation
}

func (c *bodyCont) Invoke(e *OOCPSEvaluator, v Value) (Value, error) {
	if len(c.rest) == 0 {
		return c.Next.Invoke(e, v)
	}
	if len(c.rest) == 1 {
		return e.eval(c.rest[0], c.lex, c.dyn, c.Next)
	}
	return e.eval(c.rest[0], c.lex, c.dyn, &bodyCont{rest: c.rest[1:], lex: c.lex, dyn: c.dyn, Next: c.Next})
}

func (e *OOCPSEvaluator) evalBody(body []Value, lex, dyn *Frame, k Continuation) (Value, error) {
	if len(body) == 0 {
		return k.Invoke(e, Void)
	}
	if len(body) == 1 {
		return e.eval(body[0], lex, dyn, k)
	}
	return e.eval(body[0], lex, dyn, &bodyCont{rest: body[1:], lex: lex, dyn: dyn, Next: k})
}

type ifCont struct {
	then, els Value
	lex, dyn  *Frame
	Next      Continuation
}

func (c *ifCont) Invoke(e *OOCPSEvaluator, t Value) (Value, error) {
	if t.Tag != TagBoolean {
		return Value{}, NewEvaluatorError("", "test-form does not evaluate to a boolean")
	}
	if t.Data.(bool) {
		return e.eval(c.then, c.lex, c.dyn, c.Next)
	}
	return e.eval(c.els, c.lex, c.dyn, c.Next)
}

type setCont struct {
	kind     RefKind
	v        *Variable
	lex, dyn *Frame
	Next     Continuation
}

func (c *setCont) Invoke(e *OOCPSEvaluator, val Value) (Value, error) {
	switch c.kind {
	case RefLexicalValue:
		Set(c.lex, c.v, NSValue, val)
	case RefLexicalFunction:
		Set(c.lex, c.v, NSFunction, val)
	default:
		Set(c.dyn, c.v, NSValue, val)
	}
	return c.Next.Invoke(e, Void)
}

type catchCont struct{ Next Continuation }

func (c *catchCont) Invoke(e *OOCPSEvaluator, v Value) (Value, error) {
	return c.Next.Invoke(e, Void)
}

type macroExpandCont struct {
	lex, dyn *Frame
	Next     Continuation
}

func (c *macroExpandCont) Invoke(e *OOCPSEvaluator, expansion Value) (Value, error) {
	return e.eval(expansion, c.lex, c.dyn, c.Next)
}

func (e *OOCPSEvaluator) evalForm(form Value, lex, dyn *Frame, k Continuation) (Value, error) {
	fm, ok, err := Classify(form)
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return e.evalCall(form, lex, dyn, k)
	}
	switch fm.Kind {
	case FQuote:
		return k.Invoke(e, fm.Quote)
	case FProgn:
		return e.evalBody(fm.Progn, lex, dyn, k)
	case FIf:
		return e.eval(fm.If.Test, lex, dyn, &ifCont{then: fm.If.Then, els: fm.If.Else, lex: lex, dyn: dyn, Next: k})
	case FLambda:
		return k.Invoke(e, ClosureVal(&Closure{
			Scope: fm.Lambda.Scope, Namespace: fm.Lambda.Namespace, Macro: fm.Lambda.Macro,
			Params: fm.Lambda.Params.Fixed, Rest: fm.Lambda.Params.Rest, Body: fm.Lambda.Body, Env: lex,
		}))
	case FRef:
		v, err := e.evalRef(fm.Ref, lex, dyn)
		if err != nil {
			return Value{}, err
		}
		return k.Invoke(e, v)
	case FSet:
		return e.eval(fm.Set.ValueExpr, lex, dyn, &setCont{kind: fm.Set.Kind, v: fm.Set.Var, lex: lex, dyn: dyn, Next: k})
	case FForEach:
		return e.evalForEach(fm.ForEach, lex, dyn, k)
	case FCatchErrors:
		v, err := e.eval(fm.CatchErrors, lex, dyn, doneCont{})
		if err != nil {
			if _, aborted := err.(*Aborted); aborted {
				return Value{}, err
			}
			if ee, ok := err.(EVLError); ok {
				return k.Invoke(e, String(ee.Kind()))
			}
			return k.Invoke(e, String(err.Error()))
		}
		_ = v
		return k.Invoke(e, Void)
	case FApply:
		return e.evalApply(fm.Apply, lex, dyn, k)
	case FMultiValueCall:
		return e.evalMultiValueCall(fm.MultiCall, lex, dyn, k)
	case FMultiValueApply:
		return e.evalMultiValueApply(fm.MultiApply, lex, dyn, k)
	default:
		return Value{}, NewCannotHappen("unhandled form kind in evalForm")
	}
}

func (e *OOCPSEvaluator) evalRef(fm *RefForm, lex, dyn *Frame) (Value, error) {
	switch fm.Kind {
	case RefLexicalValue:
		return Lookup(lex, fm.Var, NSValue)
	case RefLexicalFunction:
		return Lookup(lex, fm.Var, NSFunction)
	default:
		return Lookup(dyn, fm.Var, NSValue)
	}
}

func (e *OOCPSEvaluator) resolveCallee(head Value, lex, dyn *Frame, k Continuation) (Value, error) {
	if head.Tag == TagVariable {
		v, err := Lookup(lex, head.AsVariable(), NSFunction)
		if err != nil {
			return Value{}, err
		}
		return k.Invoke(e, v)
	}
	return e.eval(head, lex, dyn, k)
}

type calleeToCallCont struct {
	operands []Value
	lex, dyn *Frame
	Next     Continuation
}

func (c *calleeToCallCont) Invoke(e *OOCPSEvaluator, callee Value) (Value, error) {
	if callee.Tag == TagClosure && callee.AsClosure().Macro {
		return e.evalMacroCall(callee.AsClosure(), c.operands, c.lex, c.dyn, c.Next)
	}
	return e.evalList(c.operands, c.lex, c.dyn, func(e *OOCPSEvaluator, args []Value) (Value, error) {
		return e.invoke(callee, args, c.lex, c.dyn, c.Next)
	})
}

func (e *OOCPSEvaluator) evalCall(form Value, lex, dyn *Frame, k Continuation) (Value, error) {
	c := form.AsCons()
	operands, ok := ListToSlice(c.Cdr)
	if !ok {
		return Value{}, NewEvaluatorError("", "call: malformed operand list")
	}
	return e.resolveCallee(c.Car, lex, dyn, &calleeToCallCont{operands: operands, lex: lex, dyn: dyn, Next: k})
}

func (e *OOCPSEvaluator) evalMacroCall(cl *Closure, operands []Value, lex, dyn *Frame, k Continuation) (Value, error) {
	newLex, err := BindParams(cl.Env, cl, operands)
	if err != nil {
		return Value{}, err
	}
	return e.evalBody(cl.Body, newLex, dyn, &macroExpandCont{lex: lex, dyn: dyn, Next: k})
}

func (e *OOCPSEvaluator) invoke(callee Value, args []Value, lex, dyn *Frame, k Continuation) (Value, error) {
	switch callee.Tag {
	case TagPrimitive:
		v, err := CallPrimitive(callee.AsPrimitive(), args)
		if err != nil {
			return Value{}, err
		}
		return k.Invoke(e, v)
	case TagClosure:
		cl := callee.AsClosure()
		if cl.Scope == Dynamic {
			newDyn, err := BindParams(dyn, cl, args)
			if err != nil {
				return Value{}, err
			}
			return e.evalBody(cl.Body, cl.Env, newDyn, k)
		}
		newLex, err := BindParams(cl.Env, cl, args)
		if err != nil {
			return Value{}, err
		}
		return e.evalBody(cl.Body, newLex, dyn, k)
	default:
		return Value{}, NewEvaluatorError("", "cannot call a value of type "+TypeName(callee))
	}
}

func (e *OOCPSEvaluator) invokeApply(callee Value, leadingVals []Value, spreadVal Value, lex, dyn *Frame, k Continuation) (Value, error) {
	switch callee.Tag {
	case TagPrimitive:
		if !IsProperList(spreadVal) {
			return Value{}, NewEvaluatorError(MalformedSpreadableSequenceOfObjects, "apply's spread argument is not a proper list")
		}
		items, _ := ListToSlice(spreadVal)
		args := append(append([]Value{}, leadingVals...), items...)
		v, err := CallPrimitive(callee.AsPrimitive(), args)
		if err != nil {
			return Value{}, err
		}
		return k.Invoke(e, v)
	case TagClosure:
		cl := callee.AsClosure()
		if cl.Scope == Dynamic {
			newDyn, err := BindParamsApply(dyn, cl, leadingVals, spreadVal)
			if err != nil {
				return Value{}, err
			}
			return e.evalBody(cl.Body, cl.Env, newDyn, k)
		}
		newLex, err := BindParamsApply(cl.Env, cl, leadingVals, spreadVal)
		if err != nil {
			return Value{}, err
		}
		return e.evalBody(cl.Body, newLex, dyn, k)
	default:
		return Value{}, NewEvaluatorError("", "cannot apply a value of type "+TypeName(callee))
	}
}

func (e *OOCPSEvaluator) evalApply(fm *ApplyForm, lex, dyn *Frame, k Continuation) (Value, error) {
	return e.resolveCallee(fm.Op, lex, dyn, &applyCalleeCont{fm: fm, lex: lex, dyn: dyn, Next: k})
}

type applyCalleeCont struct {
	fm       *ApplyForm
	lex, dyn *Frame
	Next     Continuation
}

func (c *applyCalleeCont) Invoke(e *OOCPSEvaluator, callee Value) (Value, error) {
	return e.evalList(c.fm.Leading, c.lex, c.dyn, func(e *OOCPSEvaluator, leadingVals []Value) (Value, error) {
		return e.eval(c.fm.SpreadExpr, c.lex, c.dyn, &oocpsSpreadCont{callee: callee, leading: leadingVals, lex: c.lex, dyn: c.dyn, Next: c.Next})
	})
}

type oocpsSpreadCont struct {
	callee   Value
	leading  []Value
	lex, dyn *Frame
	Next     Continuation
}

func (c *oocpsSpreadCont) Invoke(e *OOCPSEvaluator, spreadVal Value) (Value, error) {
	return e.invokeApply(c.callee, c.leading, spreadVal, c.lex, c.dyn, c.Next)
}

func (e *OOCPSEvaluator) evalMultiValueCall(fm *MultiCallForm, lex, dyn *Frame, k Continuation) (Value, error) {
	return e.resolveCallee(fm.Op, lex, dyn, &multiCallCalleeCont{operands: fm.Operands, lex: lex, dyn: dyn, Next: k})
}

type multiCallCalleeCont struct {
	operands []Value
	lex, dyn *Frame
	Next     Continuation
}

func (c *multiCallCalleeCont) Invoke(e *OOCPSEvaluator, callee Value) (Value, error) {
	return e.evalList(c.operands, c.lex, c.dyn, func(e *OOCPSEvaluator, vs []Value) (Value, error) {
		var args []Value
		for _, v := range vs {
			args = append(args, v.AllValues()...)
		}
		return e.invoke(callee, args, c.lex, c.dyn, c.Next)
	})
}

func (e *OOCPSEvaluator) evalMultiValueApply(fm *MultiApplyForm, lex, dyn *Frame, k Continuation) (Value, error) {
	return e.resolveCallee(fm.Op, lex, dyn, &multiApplyCalleeCont{fm: fm, lex: lex, dyn: dyn, Next: k})
}

type multiApplyCalleeCont struct {
	fm       *MultiApplyForm
	lex, dyn *Frame
	Next     Continuation
}

func (c *multiApplyCalleeCont) Invoke(e *OOCPSEvaluator, callee Value) (Value, error) {
	return e.evalList(c.fm.Leading, c.lex, c.dyn, func(e *OOCPSEvaluator, vs []Value) (Value, error) {
		var leadingVals []Value
		for _, v := range vs {
			leadingVals = append(leadingVals, v.AllValues()...)
		}
		return e.eval(c.fm.SpreadExpr, c.lex, c.dyn, &oocpsSpreadCont{callee: callee, leading: leadingVals, lex: c.lex, dyn: c.dyn, Next: c.Next})
	})
}

type forEachFnCont struct {
	listExpr Value
	lex, dyn *Frame
	Next     Continuation
}

func (c *forEachFnCont) Invoke(e *OOCPSEvaluator, fnV Value) (Value, error) {
	return e.eval(c.listExpr, c.lex, c.dyn, &forEachListCont{fnV: fnV, lex: c.lex, dyn: c.dyn, Next: c.Next})
}

type forEachListCont struct {
	fnV      Value
	lex, dyn *Frame
	Next     Continuation
}

func (c *forEachListCont) Invoke(e *OOCPSEvaluator, listV Value) (Value, error) {
	items, ok := ListToSlice(listV)
	if !ok {
		return Value{}, NewEvaluatorError("", "_for-each: expected a proper list")
	}
	return e.forEachStep(c.fnV, items, 0, c.lex, c.dyn, c.Next)
}

type forEachStepCont struct {
	fnV      Value
	items    []Value
	i        int
	lex, dyn *Frame
	Next     Continuation
}

func (c *forEachStepCont) Invoke(e *OOCPSEvaluator, _ Value) (Value, error) {
	return e.forEachStep(c.fnV, c.items, c.i+1, c.lex, c.dyn, c.Next)
}

func (e *OOCPSEvaluator) forEachStep(fnV Value, items []Value, i int, lex, dyn *Frame, k Continuation) (Value, error) {
	if i >= len(items) {
		return k.Invoke(e, Void)
	}
	return e.invoke(fnV, []Value{items[i]}, lex, dyn, &forEachStepCont{fnV: fnV, items: items, i: i, lex: lex, dyn: dyn, Next: k})
}

func (e *OOCPSEvaluator) evalForEach(fm *ForEachForm, lex, dyn *Frame, k Continuation) (Value, error) {
	return e.eval(fm.Fn, lex, dyn, &forEachFnCont{listExpr: fm.List, lex: lex, dyn: dyn, Next: k})
}
