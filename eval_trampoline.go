// eval_trampoline.go — the trampoline evaluator (spec.md §4.8 strategy 5).
//
// Unlike the three evaluators above, a tail call here never recurses on the
// host Go stack. Eval runs a single loop that repeatedly either dispatches a
// "bounce" (evaluate a form in an environment) or resumes the continuation
// on top of an explicit stack with a value. A tail position never pushes a
// new stack entry before bouncing into the next form, so a self-tail-
// recursive EVL loop keeps this stack's depth bounded regardless of how
// many iterations it runs. Error handling uses an explicit marker
// (catchMarker) pushed onto the same stack by _catch-errors: on a
// non-aborting error the loop unwinds frames until it finds one, discarding
// everything above it, exactly like rewinding the stack to a recorded mark.
package evl

// step is either a bounceStep (evaluate Form next) or a valueStep (a value
// is ready to be handed to whatever continuation is on top of the stack).
type step interface{ isStep() }

type bounceStep struct {
	Form     Value
	Lex, Dyn *Frame
}

func (bounceStep) isStep() {}

type valueStep struct{ V Value }

func (valueStep) isStep() {}

// contFrame is one entry of the trampoline's explicit control stack.
type contFrame interface {
	Resume(v Value, stack *[]contFrame) (step, error)
}

// funcCont wraps an ad hoc Go closure as a contFrame, for the handful of
// continuations that don't need a dedicated named type.
type funcCont struct {
	fn func(v Value, stack *[]contFrame) (step, error)
}

func (c *funcCont) Resume(v Value, stack *[]contFrame) (step, error) { return c.fn(v, stack) }

// catchMarker is pushed by _catch-errors. On the normal (no-error) path it
// discards the try-expression's value and produces Void, matching
// evalCatchErrors' plain-recursive semantics. On the error path the driver
// loop finds and discards it directly without calling Resume.
type catchMarker struct{}

func (catchMarker) Resume(v Value, stack *[]contFrame) (step, error) { return valueStep{Void}, nil }

type prognCont struct {
	Rest     []Value
	Lex, Dyn *Frame
}

func (c *prognCont) Resume(v Value, stack *[]contFrame) (step, error) {
	if len(c.Rest) == 1 {
		return bounceStep{c.Rest[0], c.Lex, c.Dyn}, nil
	}
	*stack = append(*stack, &prognCont{c.Rest[1:], c.Lex, c.Dyn})
	return bounceStep{c.Rest[0], c.Lex, c.Dyn}, nil
}

// bodyAsBounce turns a closure/progn body into the first bounce plus,
// when there is more than one form, a single prognCont for the rest. The
// last form is always reached by a tail bounce with no frame pushed for it.
func bodyAsBounce(body []Value, lex, dyn *Frame, stack *[]contFrame) (step, error) {
	if len(body) == 0 {
		return valueStep{Void}, nil
	}
	if len(body) == 1 {
		return bounceStep{body[0], lex, dyn}, nil
	}
	*stack = append(*stack, &prognCont{body[1:], lex, dyn})
	return bounceStep{body[0], lex, dyn}, nil
}

type ifCont2 struct {
	Then, Else Value
	Lex, Dyn   *Frame
}

func (c *ifCont2) Resume(v Value, stack *[]contFrame) (step, error) {
	if v.Tag != TagBoolean {
		return nil, NewEvaluatorError("", "test-form does not evaluate to a boolean")
	}
	if v.Data.(bool) {
		return bounceStep{c.Then, c.Lex, c.Dyn}, nil
	}
	return bounceStep{c.Else, c.Lex, c.Dyn}, nil
}

type setCont2 struct {
	Kind     RefKind
	Var      *Variable
	Lex, Dyn *Frame
}

func (c *setCont2) Resume(v Value, stack *[]contFrame) (step, error) {
	switch c.Kind {
	case RefLexicalValue:
		Set(c.Lex, c.Var, NSValue, v)
	case RefLexicalFunction:
		Set(c.Lex, c.Var, NSFunction, v)
	default:
		Set(c.Dyn, c.Var, NSValue, v)
	}
	return valueStep{Void}, nil
}

// applyArgCont accumulates a leading operand list, optionally flattening
// each result through AllValues (multiple-value-call/apply), then either
// dispatches the call directly or, if there is a spread expression, bounces
// into it via spreadCont.
type applyArgCont struct {
	Callee     Value
	Flatten    bool
	Done       []Value
	Remaining  []Value
	SpreadExpr Value
	HasSpread  bool
	Lex, Dyn   *Frame
	e          *TrampolineEvaluator
}

func (c *applyArgCont) Resume(v Value, stack *[]contFrame) (step, error) {
	if c.Flatten {
		c.Done = append(c.Done, v.AllValues()...)
	} else {
		c.Done = append(c.Done, v)
	}
	if len(c.Remaining) > 0 {
		next := c.Remaining[0]
		c.Remaining = c.Remaining[1:]
		*stack = append(*stack, c)
		return bounceStep{next, c.Lex, c.Dyn}, nil
	}
	if c.HasSpread {
		*stack = append(*stack, &spreadCont{Callee: c.Callee, Leading: c.Done, Lex: c.Lex, Dyn: c.Dyn, e: c.e})
		return bounceStep{c.SpreadExpr, c.Lex, c.Dyn}, nil
	}
	return c.e.dispatchCall(c.Callee, c.Done, c.Lex, c.Dyn, stack)
}

type spreadCont struct {
	Callee   Value
	Leading  []Value
	Lex, Dyn *Frame
	e        *TrampolineEvaluator
}

func (c *spreadCont) Resume(v Value, stack *[]contFrame) (step, error) {
	return c.e.dispatchApply(c.Callee, c.Leading, v, c.Lex, c.Dyn, stack)
}

type TrampolineEvaluator struct{ *Session }

func NewTrampolineEvaluator(s *Session) *TrampolineEvaluator { return &TrampolineEvaluator{s} }

func (e *TrampolineEvaluator) Eval(form Value, lex, dyn *Frame) (Value, error) {
	stack := make([]contFrame, 0, 64)
	cur := step(bounceStep{form, lex, dyn})
	for {
		if e.Abort.IsSet() {
			return Value{}, NewAborted()
		}
		var next step
		var err error
		switch s := cur.(type) {
		case bounceStep:
			next, err = e.step(s.Form, s.Lex, s.Dyn, &stack)
		case valueStep:
			if len(stack) == 0 {
				return s.V, nil
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			next, err = top.Resume(s.V, &stack)
		default:
			return Value{}, NewCannotHappen("unknown trampoline step kind")
		}
		if err != nil {
			if _, aborted := err.(*Aborted); aborted {
				return Value{}, err
			}
			handled := false
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if _, isCatch := top.(catchMarker); isCatch {
					kind := err.Error()
					if ee, ok := err.(EVLError); ok {
						kind = ee.Kind()
					}
					next = valueStep{String(kind)}
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

func (e *TrampolineEvaluator) step(form Value, lex, dyn *Frame, stack *[]contFrame) (step, error) {
	switch form.Tag {
	case TagVoid, TagBoolean, TagNumber, TagCharacter, TagString, TagKeyword, TagClosure, TagPrimitive:
		return valueStep{form}, nil
	case TagEmptyList:
		return nil, NewEvaluatorError("", "the empty list is not a form")
	case TagVariable:
		v, err := Lookup(lex, form.AsVariable(), NSValue)
		if err != nil {
			return nil, err
		}
		return valueStep{v}, nil
	case TagCons:
		return e.stepForm(form, lex, dyn, stack)
	default:
		return nil, NewCannotHappen("unexpected value tag in eval: " + TypeName(form))
	}
}

func (e *TrampolineEvaluator) stepForm(form Value, lex, dyn *Frame, stack *[]contFrame) (step, error) {
	fm, ok, err := Classify(form)
	if err != nil {
		return nil, err
	}
	if !ok {
		return e.stepCall(form, lex, dyn, stack)
	}
	switch fm.Kind {
	case FQuote:
		return valueStep{fm.Quote}, nil
	case FProgn:
		return bodyAsBounce(fm.Progn, lex, dyn, stack)
	case FIf:
		*stack = append(*stack, &ifCont2{Then: fm.If.Then, Else: fm.If.Else, Lex: lex, Dyn: dyn})
		return bounceStep{fm.If.Test, lex, dyn}, nil
	case FLambda:
		return valueStep{ClosureVal(&Closure{
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
			v, err = Lookup(dyn, fm.Ref.Var, NSValue)
		}
		if err != nil {
			return nil, err
		}
		return valueStep{v}, nil
	case FSet:
		*stack = append(*stack, &setCont2{Kind: fm.Set.Kind, Var: fm.Set.Var, Lex: lex, Dyn: dyn})
		return bounceStep{fm.Set.ValueExpr, lex, dyn}, nil
	case FForEach:
		return nil, notImplemented("_for-each")
	case FCatchErrors:
		*stack = append(*stack, catchMarker{})
		return bounceStep{fm.CatchErrors, lex, dyn}, nil
	case FApply:
		return e.stepApply(fm.Apply, lex, dyn, stack)
	case FMultiValueCall:
		return e.stepMultiValueCall(fm.MultiCall, lex, dyn, stack)
	case FMultiValueApply:
		return e.stepMultiValueApply(fm.MultiApply, lex, dyn, stack)
	default:
		return nil, NewCannotHappen("unhandled form kind")
	}
}

func (e *TrampolineEvaluator) resolveCallee(headExpr Value, lex, dyn *Frame, stack *[]contFrame, next func(callee Value, stack *[]contFrame) (step, error)) (step, error) {
	if headExpr.Tag == TagVariable {
		callee, err := Lookup(lex, headExpr.AsVariable(), NSFunction)
		if err != nil {
			return nil, err
		}
		return next(callee, stack)
	}
	*stack = append(*stack, &funcCont{fn: next})
	return bounceStep{headExpr, lex, dyn}, nil
}

func (e *TrampolineEvaluator) stepCall(form Value, lex, dyn *Frame, stack *[]contFrame) (step, error) {
	c := form.AsCons()
	operands, ok := ListToSlice(c.Cdr)
	if !ok {
		return nil, NewEvaluatorError("", "call: malformed operand list")
	}
	return e.resolveCallee(c.Car, lex, dyn, stack, func(callee Value, stack *[]contFrame) (step, error) {
		return e.startCall(callee, operands, lex, dyn, stack)
	})
}

func (e *TrampolineEvaluator) startCall(callee Value, operands []Value, lex, dyn *Frame, stack *[]contFrame) (step, error) {
	if callee.Tag == TagClosure && callee.AsClosure().Macro {
		cl := callee.AsClosure()
		newLex, err := BindParams(cl.Env, cl, operands)
		if err != nil {
			return nil, err
		}
		*stack = append(*stack, &funcCont{fn: func(expansion Value, stack *[]contFrame) (step, error) {
			return bounceStep{expansion, lex, dyn}, nil
		}})
		return bodyAsBounce(cl.Body, newLex, dyn, stack)
	}
	return e.startArgs(callee, false, operands, Value{}, false, lex, dyn, stack)
}

func (e *TrampolineEvaluator) startArgs(callee Value, flatten bool, leading []Value, spreadExpr Value, hasSpread bool, lex, dyn *Frame, stack *[]contFrame) (step, error) {
	if len(leading) == 0 {
		if hasSpread {
			*stack = append(*stack, &spreadCont{Callee: callee, Lex: lex, Dyn: dyn, e: e})
			return bounceStep{spreadExpr, lex, dyn}, nil
		}
		return e.dispatchCall(callee, nil, lex, dyn, stack)
	}
	ac := &applyArgCont{Callee: callee, Flatten: flatten, Remaining: leading[1:], SpreadExpr: spreadExpr, HasSpread: hasSpread, Lex: lex, Dyn: dyn, e: e}
	*stack = append(*stack, ac)
	return bounceStep{leading[0], lex, dyn}, nil
}

func (e *TrampolineEvaluator) dispatchCall(callee Value, args []Value, lex, dyn *Frame, stack *[]contFrame) (step, error) {
	switch callee.Tag {
	case TagPrimitive:
		v, err := CallPrimitive(callee.AsPrimitive(), args)
		if err != nil {
			return nil, err
		}
		return valueStep{v}, nil
	case TagClosure:
		cl := callee.AsClosure()
		if cl.Scope == Dynamic {
			newDyn, err := BindParams(dyn, cl, args)
			if err != nil {
				return nil, err
			}
			return bodyAsBounce(cl.Body, cl.Env, newDyn, stack)
		}
		newLex, err := BindParams(cl.Env, cl, args)
		if err != nil {
			return nil, err
		}
		return bodyAsBounce(cl.Body, newLex, dyn, stack)
	default:
		return nil, NewEvaluatorError("", "cannot call a value of type "+TypeName(callee))
	}
}

func (e *TrampolineEvaluator) dispatchApply(callee Value, leadingVals []Value, spreadVal Value, lex, dyn *Frame, stack *[]contFrame) (step, error) {
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
		return valueStep{v}, nil
	case TagClosure:
		cl := callee.AsClosure()
		if cl.Scope == Dynamic {
			newDyn, err := BindParamsApply(dyn, cl, leadingVals, spreadVal)
			if err != nil {
				return nil, err
			}
			return bodyAsBounce(cl.Body, cl.Env, newDyn, stack)
		}
		newLex, err := BindParamsApply(cl.Env, cl, leadingVals, spreadVal)
		if err != nil {
			return nil, err
		}
		return bodyAsBounce(cl.Body, newLex, dyn, stack)
	default:
		return nil, NewEvaluatorError("", "cannot apply a value of type "+TypeName(callee))
	}
}

func (e *TrampolineEvaluator) stepApply(fm *ApplyForm, lex, dyn *Frame, stack *[]contFrame) (step, error) {
	return e.resolveCallee(fm.Op, lex, dyn, stack, func(callee Value, stack *[]contFrame) (step, error) {
		return e.startArgs(callee, false, fm.Leading, fm.SpreadExpr, true, lex, dyn, stack)
	})
}

func (e *TrampolineEvaluator) stepMultiValueCall(fm *MultiCallForm, lex, dyn *Frame, stack *[]contFrame) (step, error) {
	return e.resolveCallee(fm.Op, lex, dyn, stack, func(callee Value, stack *[]contFrame) (step, error) {
		return e.startArgs(callee, true, fm.Operands, Value{}, false, lex, dyn, stack)
	})
}

func (e *TrampolineEvaluator) stepMultiValueApply(fm *MultiApplyForm, lex, dyn *Frame, stack *[]contFrame) (step, error) {
	return e.resolveCallee(fm.Op, lex, dyn, stack, func(callee Value, stack *[]contFrame) (step, error) {
		return e.startArgs(callee, true, fm.Leading, fm.SpreadExpr, true, lex, dyn, stack)
	})
}
