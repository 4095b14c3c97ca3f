// eval_cps.go — the closure-passing evaluator (spec.md §4.8 strategy 2).
//
// Every eval step takes an explicit continuation function; the result of a
// sub-evaluation flows into the continuation instead of being returned up a
// call frame. The host Go stack still grows with EVL's call depth (each
// continuation invocation is itself a Go call), which is the point: this
// strategy exposes the *shape* of continuations without yet solving the
// stack-growth problem the trampoline variants address.
package evl

// Cont receives the value produced by a sub-evaluation.
type Cont func(Value) (Value, error)

type CPSEvaluator struct{ *Session }

func NewCPSEvaluator(s *Session) *CPSEvaluator { return &CPSEvaluator{s} }

func (e *CPSEvaluator) Eval(form Value, lex, dyn *Frame) (Value, error) {
	return e.eval(form, lex, dyn, func(v Value) (Value, error) { return v, nil })
}

func (e *CPSEvaluator) eval(form Value, lex, dyn *Frame, k Cont) (Value, error) {
	if e.Abort.IsSet() {
		return Value{}, NewAborted()
	}
	switch form.Tag {
	case TagVoid, TagBoolean, TagNumber, TagCharacter, TagString, TagKeyword, TagClosure, TagPrimitive:
		return k(form)
	case TagEmptyList:
		return Value{}, NewEvaluatorError("", "the empty list is not a form")
	case TagVariable:
		v, err := Lookup(lex, form.AsVariable(), NSValue)
		if err != nil {
			return Value{}, err
		}
		return k(v)
	case TagCons:
		return e.evalForm(form, lex, dyn, k)
	default:
		return Value{}, NewCannotHappen("unexpected value tag in eval: " + TypeName(form))
	}
}

// evalList evaluates ops left to right, threading each result through an
// accumulator, and finally hands the full slice to k.
func (e *CPSEvaluator) evalList(ops []Value, lex, dyn *Frame, k func([]Value) (Value, error)) (Value, error) {
	acc := make([]Value, len(ops))
	var step func(i int) (Value, error)
	step = func(i int) (Value, error) {
		if i >= len(ops) {
			return k(acc)
		}
		return e.eval(ops[i], lex, dyn, func(v Value) (Value, error) {
			acc[i] = v
			return step(i + 1)
		})
	}
	return step(0)
}

func (e *CPSEvaluator) evalForm(form Value, lex, dyn *Frame, k Cont) (Value, error) {
	fm, ok, err := Classify(form)
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return e.evalCall(form, lex, dyn, k)
	}
	switch fm.Kind {
	case FQuote:
		return k(fm.Quote)
	case FProgn:
		return e.evalBody(fm.Progn, lex, dyn, k)
	case FIf:
		return e.eval(fm.If.Test, lex, dyn, func(t Value) (Value, error) {
			if t.Tag != TagBoolean {
				return Value{}, NewEvaluatorError("", "test-form does not evaluate to a boolean")
			}
			if t.Data.(bool) {
				return e.eval(fm.If.Then, lex, dyn, k)
			}
			return e.eval(fm.If.Else, lex, dyn, k)
		})
	case FLambda:
		return k(ClosureVal(&Closure{
			Scope: fm.Lambda.Scope, Namespace: fm.Lambda.Namespace, Macro: fm.Lambda.Macro,
			Params: fm.Lambda.Params.Fixed, Rest: fm.Lambda.Params.Rest, Body: fm.Lambda.Body, Env: lex,
		}))
	case FRef:
		v, err := e.evalRef(fm.Ref, lex, dyn)
		if err != nil {
			return Value{}, err
		}
		return k(v)
	case FSet:
		return e.eval(fm.Set.ValueExpr, lex, dyn, func(v Value) (Value, error) {
			assignRef(fm.Set, lex, dyn, v)
			return k(Void)
		})
	case FForEach:
		return e.evalForEach(fm.ForEach, lex, dyn, k)
	case FCatchErrors:
		v, err := e.eval(fm.CatchErrors, lex, dyn, func(v Value) (Value, error) { return v, nil })
		if err != nil {
			if _, aborted := err.(*Aborted); aborted {
				return Value{}, err
			}
			if ee, ok := err.(EVLError); ok {
				return k(String(ee.Kind()))
			}
			return k(String(err.Error()))
		}
		_ = v
		return k(Void)
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

func (e *CPSEvaluator) evalBody(body []Value, lex, dyn *Frame, k Cont) (Value, error) {
	if len(body) == 0 {
		return k(Void)
	}
	var step func(i int) (Value, error)
	step = func(i int) (Value, error) {
		return e.eval(body[i], lex, dyn, func(v Value) (Value, error) {
			if i == len(body)-1 {
				return k(v)
			}
			return step(i + 1)
		})
	}
	return step(0)
}

func (e *CPSEvaluator) evalRef(fm *RefForm, lex, dyn *Frame) (Value, error) {
	switch fm.Kind {
	case RefLexicalValue:
		return Lookup(lex, fm.Var, NSValue)
	case RefLexicalFunction:
		return Lookup(lex, fm.Var, NSFunction)
	default:
		return Lookup(dyn, fm.Var, NSValue)
	}
}

func assignRef(fm *SetForm, lex, dyn *Frame, v Value) {
	switch fm.Kind {
	case RefLexicalValue:
		Set(lex, fm.Var, NSValue, v)
	case RefLexicalFunction:
		Set(lex, fm.Var, NSFunction, v)
	default:
		Set(dyn, fm.Var, NSValue, v)
	}
}

func (e *CPSEvaluator) resolveCallee(head Value, lex, dyn *Frame, k Cont) (Value, error) {
	if head.Tag == TagVariable {
		v, err := Lookup(lex, head.AsVariable(), NSFunction)
		if err != nil {
			return Value{}, err
		}
		return k(v)
	}
	return e.eval(head, lex, dyn, k)
}

func (e *CPSEvaluator) evalCall(form Value, lex, dyn *Frame, k Cont) (Value, error) {
	c := form.AsCons()
	operands, ok := ListToSlice(c.Cdr)
	if !ok {
		return Value{}, NewEvaluatorError("", "call: malformed operand list")
	}
	return e.resolveCallee(c.Car, lex, dyn, func(callee Value) (Value, error) {
		if callee.Tag == TagClosure && callee.AsClosure().Macro {
			return e.evalMacroCall(callee.AsClosure(), operands, lex, dyn, k)
		}
		return e.evalList(operands, lex, dyn, func(args []Value) (Value, error) {
			return e.invoke(callee, args, lex, dyn, k)
		})
	})
}

func (e *CPSEvaluator) evalMacroCall(cl *Closure, operands []Value, lex, dyn *Frame, k Cont) (Value, error) {
	newLex, err := BindParams(cl.Env, cl, operands)
	if err != nil {
		return Value{}, err
	}
	return e.evalBody(cl.Body, newLex, dyn, func(expansion Value) (Value, error) {
		return e.eval(expansion, lex, dyn, k)
	})
}

func (e *CPSEvaluator) invoke(callee Value, args []Value, lex, dyn *Frame, k Cont) (Value, error) {
	switch callee.Tag {
	case TagPrimitive:
		v, err := CallPrimitive(callee.AsPrimitive(), args)
		if err != nil {
			return Value{}, err
		}
		return k(v)
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

func (e *CPSEvaluator) invokeApply(callee Value, leadingVals []Value, spreadVal Value, lex, dyn *Frame, k Cont) (Value, error) {
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
		return k(v)
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

func (e *CPSEvaluator) evalApply(fm *ApplyForm, lex, dyn *Frame, k Cont) (Value, error) {
	return e.resolveCallee(fm.Op, lex, dyn, func(callee Value) (Value, error) {
		return e.evalList(fm.Leading, lex, dyn, func(leadingVals []Value) (Value, error) {
			return e.eval(fm.SpreadExpr, lex, dyn, func(spreadVal Value) (Value, error) {
				return e.invokeApply(callee, leadingVals, spreadVal, lex, dyn, k)
			})
		})
	})
}

func (e *CPSEvaluator) evalMultiValueCall(fm *MultiCallForm, lex, dyn *Frame, k Cont) (Value, error) {
	return e.resolveCallee(fm.Op, lex, dyn, func(callee Value) (Value, error) {
		return e.evalList(fm.Operands, lex, dyn, func(vs []Value) (Value, error) {
			var args []Value
			for _, v := range vs {
				args = append(args, v.AllValues()...)
			}
			return e.invoke(callee, args, lex, dyn, k)
		})
	})
}

func (e *CPSEvaluator) evalMultiValueApply(fm *MultiApplyForm, lex, dyn *Frame, k Cont) (Value, error) {
	return e.resolveCallee(fm.Op, lex, dyn, func(callee Value) (Value, error) {
		return e.evalList(fm.Leading, lex, dyn, func(vs []Value) (Value, error) {
			var leadingVals []Value
			for _, v := range vs {
				leadingVals = append(leadingVals, v.AllValues()...)
			}
			return e.eval(fm.SpreadExpr, lex, dyn, func(spreadVal Value) (Value, error) {
				return e.invokeApply(callee, leadingVals, spreadVal, lex, dyn, k)
			})
		})
	})
}

func (e *CPSEvaluator) evalForEach(fm *ForEachForm, lex, dyn *Frame, k Cont) (Value, error) {
	return e.eval(fm.Fn, lex, dyn, func(fnV Value) (Value, error) {
		return e.eval(fm.List, lex, dyn, func(listV Value) (Value, error) {
			items, ok := ListToSlice(listV)
			if !ok {
				return Value{}, NewEvaluatorError("", "_for-each: expected a proper list")
			}
			var step func(i int) (Value, error)
			step = func(i int) (Value, error) {
				if i >= len(items) {
					return k(Void)
				}
				return e.invoke(fnV, []Value{items[i]}, lex, dyn, func(Value) (Value, error) {
					return step(i + 1)
				})
			}
			return step(0)
		})
	})
}
