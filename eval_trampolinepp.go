// eval_trampolinepp.go — trampoline++ (spec.md §4.8 strategy 6).
//
// Same bounce-and-explicit-stack driver as eval_trampoline.go — tail calls
// still cost O(1) host stack regardless of EVL recursion depth — but every
// call/special form is classified exactly once and cached by its *Cons
// identity (preprocess.go), and the macro-let idiom is resolved once rather
// than re-expanded on every iteration of a loop that contains it. Like the
// plain trampoline, this strategy does not implement _for-each.
package evl

// TrampolinePPEvaluator wraps the plain trampoline's shared call/apply
// plumbing (none of which calls back into step/stepForm) and replaces only
// form dispatch with the cached version.
type TrampolinePPEvaluator struct {
	*TrampolineEvaluator
	cache map[*Cons]*ppInfo
}

func NewTrampolinePPEvaluator(s *Session) *TrampolinePPEvaluator {
	return &TrampolinePPEvaluator{
		TrampolineEvaluator: NewTrampolineEvaluator(s),
		cache:                make(map[*Cons]*ppInfo),
	}
}

func (e *TrampolinePPEvaluator) Eval(form Value, lex, dyn *Frame) (Value, error) {
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
			next, err = e.ppStep(s.Form, s.Lex, s.Dyn, &stack)
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

func (e *TrampolinePPEvaluator) ppStep(form Value, lex, dyn *Frame, stack *[]contFrame) (step, error) {
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
		return e.ppStepForm(form, lex, dyn, stack)
	default:
		return nil, NewCannotHappen("unexpected value tag in eval: " + TypeName(form))
	}
}

func (e *TrampolinePPEvaluator) ppStepForm(form Value, lex, dyn *Frame, stack *[]contFrame) (step, error) {
	c := form.AsCons()
	info, cached := e.cache[c]
	if !cached {
		info = preprocessForm(c)
		e.cache[c] = info
	}
	if info.ClassifyErr != nil {
		return nil, info.ClassifyErr
	}
	if info.MacroLetBody != nil {
		newLex := NewFrame(lex)
		for i, p := range info.MacroLetParams {
			lf := info.MacroLetLambdas[i]
			cl := &Closure{
				Scope: lf.Scope, Namespace: lf.Namespace, Macro: lf.Macro,
				Params: lf.Params.Fixed, Rest: lf.Params.Rest, Body: lf.Body, Env: newLex,
			}
			newLex.Bind(p, NSFunction, ClosureVal(cl))
		}
		return bodyAsBounce(info.MacroLetBody, newLex, dyn, stack)
	}
	fm := info.Form
	if fm == nil {
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
