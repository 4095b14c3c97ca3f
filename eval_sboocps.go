// eval_sboocps.go — stack-based object-oriented CPS evaluator
// (spec.md §4.8 strategy 4).
//
// Continuations and dynamic frames live on one explicit stack, instead of a
// continuation object plus a separately threaded dynamic chain. Entering a
// dynamically-scoped closure pushes a dynamic-frame marker alongside the
// ordinary continuation entries; a dynamic lookup scans the stack downward
// for the nearest marker instead of following a parameter passed call to
// call. Advancing control (the normal "a value is ready, what next")
// pops and discards any markers it passes over, since they carry no
// continuation behavior of their own; a dynamic lookup is the only thing
// that stops to look at one. _catch-errors unwinds the same stack on error,
// so a pending dynamic frame whose call never returns normally is cleaned
// up exactly like any other frame caught in the unwind.
package evl

type sbStep interface{ isSBStep() }

type sbBounce struct {
	Form Value
	Lex  *Frame
}

func (sbBounce) isSBStep() {}

type sbValue struct{ V Value }

func (sbValue) isSBStep() {}

// sbCont is a stack entry that knows what to do once a value is ready.
// Plain dynamic-frame markers (sbDynMark) deliberately do not implement it:
// advancing control skips them.
type sbCont interface {
	SBResume(v Value, stack *[]interface{}) (sbStep, error)
}

// sbDynMark records the dynamic frame introduced by one call to a
// dynamically-scoped closure.
type sbDynMark struct{ Frame *Frame }

func currentDyn(stack []interface{}) *Frame {
	for i := len(stack) - 1; i >= 0; i-- {
		if dm, ok := stack[i].(sbDynMark); ok {
			return dm.Frame
		}
	}
	return nil
}

type funcContSB struct {
	fn func(v Value, stack *[]interface{}) (sbStep, error)
}

func (c *funcContSB) SBResume(v Value, stack *[]interface{}) (sbStep, error) { return c.fn(v, stack) }

type sbCatchMarker struct{}

func (sbCatchMarker) SBResume(v Value, stack *[]interface{}) (sbStep, error) { return sbValue{Void}, nil }

type sbPrognCont struct {
	Rest []Value
	Lex  *Frame
}

func (c *sbPrognCont) SBResume(v Value, stack *[]interface{}) (sbStep, error) {
	if len(c.Rest) == 1 {
		return sbBounce{c.Rest[0], c.Lex}, nil
	}
	*stack = append(*stack, &sbPrognCont{c.Rest[1:], c.Lex})
	return sbBounce{c.Rest[0], c.Lex}, nil
}

func sbBodyAsBounce(body []Value, lex *Frame, stack *[]interface{}) (sbStep, error) {
	if len(body) == 0 {
		return sbValue{Void}, nil
	}
	if len(body) == 1 {
		return sbBounce{body[0], lex}, nil
	}
	*stack = append(*stack, &sbPrognCont{body[1:], lex})
	return sbBounce{body[0], lex}, nil
}

type sbIfCont struct {
	Then, Else Value
	Lex        *Frame
}

func (c *sbIfCont) SBResume(v Value, stack *[]interface{}) (sbStep, error) {
	if v.Tag != TagBoolean {
		return nil, NewEvaluatorError("", "test-form does not evaluate to a boolean")
	}
	if v.Data.(bool) {
		return sbBounce{c.Then, c.Lex}, nil
	}
	return sbBounce{c.Else, c.Lex}, nil
}

type sbSetCont struct {
	Kind RefKind
	Var  *Variable
	Lex  *Frame
}

func (c *sbSetCont) SBResume(v Value, stack *[]interface{}) (sbStep, error) {
	switch c.Kind {
	case RefLexicalValue:
		Set(c.Lex, c.Var, NSValue, v)
	case RefLexicalFunction:
		Set(c.Lex, c.Var, NSFunction, v)
	default:
		Set(currentDyn(*stack), c.Var, NSValue, v)
	}
	return sbValue{Void}, nil
}

type sbArgCont struct {
	Callee     Value
	Flatten    bool
	Done       []Value
	Remaining  []Value
	SpreadExpr Value
	HasSpread  bool
	Lex        *Frame
	e          *SBOOCPSEvaluator
}

func (c *sbArgCont) SBResume(v Value, stack *[]interface{}) (sbStep, error) {
	if c.Flatten {
		c.Done = append(c.Done, v.AllValues()...)
	} else {
		c.Done = append(c.Done, v)
	}
	if len(c.Remaining) > 0 {
		next := c.Remaining[0]
		c.Remaining = c.Remaining[1:]
		*stack = append(*stack, c)
		return sbBounce{next, c.Lex}, nil
	}
	if c.HasSpread {
		*stack = append(*stack, &sbSpreadCont{Callee: c.Callee, Leading: c.Done, Lex: c.Lex, e: c.e})
		return sbBounce{c.SpreadExpr, c.Lex}, nil
	}
	return c.e.dispatchCall(c.Callee, c.Done, c.Lex, stack)
}

type sbSpreadCont struct {
	Callee  Value
	Leading []Value
	Lex     *Frame
	e       *SBOOCPSEvaluator
}

func (c *sbSpreadCont) SBResume(v Value, stack *[]interface{}) (sbStep, error) {
	return c.e.dispatchApply(c.Callee, c.Leading, v, c.Lex, stack)
}

type SBOOCPSEvaluator struct{ *Session }

func NewSBOOCPSEvaluator(s *Session) *SBOOCPSEvaluator { return &SBOOCPSEvaluator{s} }

func (e *SBOOCPSEvaluator) Eval(form Value, lex, dyn *Frame) (Value, error) {
	if dyn == nil {
		dyn = NewFrame(nil)
	}
	stack := make([]interface{}, 0, 64)
	stack = append(stack, sbDynMark{dyn})
	cur := sbStep(sbBounce{form, lex})
	for {
		if e.Abort.IsSet() {
			return Value{}, NewAborted()
		}
		var next sbStep
		var err error
		switch s := cur.(type) {
		case sbBounce:
			next, err = e.step(s.Form, s.Lex, &stack)
		case sbValue:
			c, ok := popSBCont(&stack)
			if !ok {
				return s.V, nil
			}
			next, err = c.SBResume(s.V, &stack)
		default:
			return Value{}, NewCannotHappen("unknown stack-based step kind")
		}
		if err != nil {
			if _, aborted := err.(*Aborted); aborted {
				return Value{}, err
			}
			handled := false
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if _, isCatch := top.(sbCatchMarker); isCatch {
					kind := err.Error()
					if ee, ok := err.(EVLError); ok {
						kind = ee.Kind()
					}
					next = sbValue{String(kind)}
					handled = true
					break
				}
			}
			if !handled {
				return Value{}, err
			}
		}
		cur = next
	}
}

func popSBCont(stack *[]interface{}) (sbCont, bool) {
	for len(*stack) > 0 {
		top := (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]
		if c, ok := top.(sbCont); ok {
			return c, true
		}
	}
	return nil, false
}

func (e *SBOOCPSEvaluator) step(form Value, lex *Frame, stack *[]interface{}) (sbStep, error) {
	switch form.Tag {
	case TagVoid, TagBoolean, TagNumber, TagCharacter, TagString, TagKeyword, TagClosure, TagPrimitive:
		return sbValue{form}, nil
	case TagEmptyList:
		return nil, NewEvaluatorError("", "the empty list is not a form")
	case TagVariable:
		v, err := Lookup(lex, form.AsVariable(), NSValue)
		if err != nil {
			return nil, err
		}
		return sbValue{v}, nil
	case TagCons:
		return e.stepForm(form, lex, stack)
	default:
		return nil, NewCannotHappen("unexpected value tag in eval: " + TypeName(form))
	}
}

func (e *SBOOCPSEvaluator) stepForm(form Value, lex *Frame, stack *[]interface{}) (sbStep, error) {
	fm, ok, err := Classify(form)
	if err != nil {
		return nil, err
	}
	if !ok {
		return e.stepCall(form, lex, stack)
	}
	switch fm.Kind {
	case FQuote:
		return sbValue{fm.Quote}, nil
	case FProgn:
		return sbBodyAsBounce(fm.Progn, lex, stack)
	case FIf:
		*stack = append(*stack, &sbIfCont{Then: fm.If.Then, Else: fm.If.Else, Lex: lex})
		return sbBounce{fm.If.Test, lex}, nil
	case FLambda:
		return sbValue{ClosureVal(&Closure{
			Scope: fm.Lambda.Scope, Namespace: fm.Lambda.Namespace, Macro: fm.Lambda.Macro,
			Params: fm.Lambda.Params.Fixed, Rest: fm.Lambda.Params.Rest, Body: fm.Lambda.Body, Env: lex,
		})}, nil
	case FRef:
		var v Value
		var err error
		switch fm.Ref.Kind {
		case RefLexicalValue:
			v, err = Lookup(lex, fm.Ref.Var, NSValue)
		case RefLexicalFunction:
			v, err = Lookup(lex, fm.Ref.Var, NSFunction)
		default:
			v, err = Lookup(currentDyn(*stack), fm.Ref.Var, NSValue)
		}
		if err != nil {
			return nil, err
		}
		return sbValue{v}, nil
	case FSet:
		*stack = append(*stack, &sbSetCont{Kind: fm.Set.Kind, Var: fm.Set.Var, Lex: lex})
		return sbBounce{fm.Set.ValueExpr, lex}, nil
	case FForEach:
		return e.stepForEach(fm.ForEach, lex, stack)
	case FCatchErrors:
		*stack = append(*stack, sbCatchMarker{})
		return sbBounce{fm.CatchErrors, lex}, nil
	case FApply:
		return e.stepApply(fm.Apply, lex, stack)
	case FMultiValueCall:
		return e.stepMultiValueCall(fm.MultiCall, lex, stack)
	case FMultiValueApply:
		return e.stepMultiValueApply(fm.MultiApply, lex, stack)
	default:
		return nil, NewCannotHappen("unhandled form kind")
	}
}

func (e *SBOOCPSEvaluator) resolveCallee(headExpr Value, lex *Frame, stack *[]interface{}, next func(callee Value, stack *[]interface{}) (sbStep, error)) (sbStep, error) {
	if headExpr.Tag == TagVariable {
		callee, err := Lookup(lex, headExpr.AsVariable(), NSFunction)
		if err != nil {
			return nil, err
		}
		return next(callee, stack)
	}
	*stack = append(*stack, &funcContSB{fn: next})
	return sbBounce{headExpr, lex}, nil
}

func (e *SBOOCPSEvaluator) stepCall(form Value, lex *Frame, stack *[]interface{}) (sbStep, error) {
	c := form.AsCons()
	operands, ok := ListToSlice(c.Cdr)
	if !ok {
		return nil, NewEvaluatorError("", "call: malformed operand list")
	}
	return e.resolveCallee(c.Car, lex, stack, func(callee Value, stack *[]interface{}) (sbStep, error) {
		return e.startCall(callee, operands, lex, stack)
	})
}

func (e *SBOOCPSEvaluator) startCall(callee Value, operands []Value, lex *Frame, stack *[]interface{}) (sbStep, error) {
	if callee.Tag == TagClosure && callee.AsClosure().Macro {
		cl := callee.AsClosure()
		newLex, err := BindParams(cl.Env, cl, operands)
		if err != nil {
			return nil, err
		}
		*stack = append(*stack, &funcContSB{fn: func(expansion Value, stack *[]interface{}) (sbStep, error) {
			return sbBounce{expansion, lex}, nil
		}})
		return sbBodyAsBounce(cl.Body, newLex, stack)
	}
	return e.startArgs(callee, false, operands, Value{}, false, lex, stack)
}

func (e *SBOOCPSEvaluator) startArgs(callee Value, flatten bool, leading []Value, spreadExpr Value, hasSpread bool, lex *Frame, stack *[]interface{}) (sbStep, error) {
	if len(leading) == 0 {
		if hasSpread {
			*stack = append(*stack, &sbSpreadCont{Callee: callee, Lex: lex, e: e})
			return sbBounce{spreadExpr, lex}, nil
		}
		return e.dispatchCall(callee, nil, lex, stack)
	}
	ac := &sbArgCont{Callee: callee, Flatten: flatten, Remaining: leading[1:], SpreadExpr: spreadExpr, HasSpread: hasSpread, Lex: lex, e: e}
	*stack = append(*stack, ac)
	return sbBounce{leading[0], lex}, nil
}

func (e *SBOOCPSEvaluator) dispatchCall(callee Value, args []Value, lex *Frame, stack *[]interface{}) (sbStep, error) {
	switch callee.Tag {
	case TagPrimitive:
		v, err := CallPrimitive(callee.AsPrimitive(), args)
		if err != nil {
			return nil, err
		}
		return sbValue{v}, nil
	case TagClosure:
		cl := callee.AsClosure()
		if cl.Scope == Dynamic {
			newDyn, err := BindParams(currentDyn(*stack), cl, args)
			if err != nil {
				return nil, err
			}
			*stack = append(*stack, sbDynMark{newDyn})
			return sbBodyAsBounce(cl.Body, cl.Env, stack)
		}
		newLex, err := BindParams(cl.Env, cl, args)
		if err != nil {
			return nil, err
		}
		return sbBodyAsBounce(cl.Body, newLex, stack)
	default:
		return nil, NewEvaluatorError("", "cannot call a value of type "+TypeName(callee))
	}
}

func (e *SBOOCPSEvaluator) dispatchApply(callee Value, leadingVals []Value, spreadVal Value, lex *Frame, stack *[]interface{}) (sbStep, error) {
	switch callee.Tag {
	case TagPrimitive:
		if !IsProperList(spreadVal) {
			return nil, NewEvaluatorError(MalformedSpreadableSequenceOfObjects, "apply's spread argument is not a proper list")
		}
		items, _ := ListToSlice(spreadVal)
		args := append(append([]Value{}, leadingVals...), items...)
		v, err := CallPrimitive(callee.AsPrimitive(), args)
		if err != nil {
			return nil, err
		}
		return sbValue{v}, nil
	case TagClosure:
		cl := callee.AsClosure()
		if cl.Scope == Dynamic {
			newDyn, err := BindParamsApply(currentDyn(*stack), cl, leadingVals, spreadVal)
			if err != nil {
				return nil, err
			}
			*stack = append(*stack, sbDynMark{newDyn})
			return sbBodyAsBounce(cl.Body, cl.Env, stack)
		}
		newLex, err := BindParamsApply(cl.Env, cl, leadingVals, spreadVal)
		if err != nil {
			return nil, err
		}
		return sbBodyAsBounce(cl.Body, newLex, stack)
	default:
		return nil, NewEvaluatorError("", "cannot apply a value of type "+TypeName(callee))
	}
}

func (e *SBOOCPSEvaluator) stepApply(fm *ApplyForm, lex *Frame, stack *[]interface{}) (sbStep, error) {
	return e.resolveCallee(fm.Op, lex, stack, func(callee Value, stack *[]interface{}) (sbStep, error) {
		return e.startArgs(callee, false, fm.Leading, fm.SpreadExpr, true, lex, stack)
	})
}

func (e *SBOOCPSEvaluator) stepMultiValueCall(fm *MultiCallForm, lex *Frame, stack *[]interface{}) (sbStep, error) {
	return e.resolveCallee(fm.Op, lex, stack, func(callee Value, stack *[]interface{}) (sbStep, error) {
		return e.startArgs(callee, true, fm.Operands, Value{}, false, lex, stack)
	})
}

func (e *SBOOCPSEvaluator) stepMultiValueApply(fm *MultiApplyForm, lex *Frame, stack *[]interface{}) (sbStep, error) {
	return e.resolveCallee(fm.Op, lex, stack, func(callee Value, stack *[]interface{}) (sbStep, error) {
		return e.startArgs(callee, true, fm.Leading, fm.SpreadExpr, true, lex, stack)
	})
}

func (e *SBOOCPSEvaluator) stepForEach(fm *ForEachForm, lex *Frame, stack *[]interface{}) (sbStep, error) {
	*stack = append(*stack, &funcContSB{fn: func(fnV Value, stack *[]interface{}) (sbStep, error) {
		*stack = append(*stack, &funcContSB{fn: func(listV Value, stack *[]interface{}) (sbStep, error) {
			items, ok := ListToSlice(listV)
			if !ok {
				return nil, NewEvaluatorError("", "_for-each: expected a proper list")
			}
			return e.forEachStep(fnV, items, 0, lex, stack)
		}})
		return sbBounce{fm.List, lex}, nil
	}})
	return sbBounce{fm.Fn, lex}, nil
}

func (e *SBOOCPSEvaluator) forEachStep(fnV Value, items []Value, i int, lex *Frame, stack *[]interface{}) (sbStep, error) {
	if i >= len(items) {
		return sbValue{Void}, nil
	}
	*stack = append(*stack, &funcContSB{fn: func(_ Value, stack *[]interface{}) (sbStep, error) {
		return e.forEachStep(fnV, items, i+1, lex, stack)
	}})
	return e.dispatchCall(fnV, []Value{items[i]}, lex, stack)
}
