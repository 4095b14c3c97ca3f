// formanalyzer.go — syntactic validation of special-operator forms
// (spec.md §4.3).
//
// Centralizes the "is this list a recognized special operator, and if so
// what are its destructured parts" question so all six evaluators share one
// shape-checking pass, following spec.md §9's suggested tagged-variant
// design (Form::Quote | Progn | If | Lambda{…} | Ref{…} | Set{…} | ForEach |
// CatchErrors | Call{…}). Go has no sum types, so Form carries one populated
// field per Kind, the way the teacher's Fun/Value variants are each their
// own struct selected by a tag.
package evl

import "strconv"

type FormKind int

const (
	FQuote FormKind = iota
	FProgn
	FIf
	FLambda
	FRef
	FSet
	FForEach
	FCatchErrors
	FApply
	FMultiValueCall
	FMultiValueApply
)

// RefKind distinguishes which namespace/chain vref/fref/dref (and their
// set! counterparts) touch.
type RefKind int

const (
	RefLexicalValue RefKind = iota
	RefLexicalFunction
	RefDynamic
)

type IfForm struct{ Test, Then, Else Value }

// ParamList is a form analyzer-validated parameter list: Fixed holds
// distinct parameter variables in order; Rest, if non-nil, is the trailing
// rest-parameter, or — when Fixed is empty and Rest is set from a bare
// variable spelling — "bind every argument to this one" (spec.md §4.3).
type ParamList struct {
	Fixed []*Variable
	Rest  *Variable
}

type LambdaForm struct {
	Scope     Scope
	Namespace Namespace
	Macro     bool
	Params    ParamList
	Body      []Value
}

type RefForm struct {
	Kind RefKind
	Var  *Variable
}

type SetForm struct {
	Kind      RefKind
	Var       *Variable
	ValueExpr Value
}

type ForEachForm struct{ Fn, List Value }

type ApplyForm struct {
	Op         Value
	Leading    []Value
	SpreadExpr Value
}

type MultiCallForm struct {
	Op       Value
	Operands []Value
}

type MultiApplyForm struct {
	Op         Value
	Leading    []Value
	SpreadExpr Value
}

// Form is the destructured, shape-validated result of Classify. Exactly the
// field matching Kind is populated.
type Form struct {
	Kind        FormKind
	Quote       Value
	Progn       []Value
	If          *IfForm
	Lambda      *LambdaForm
	Ref         *RefForm
	Set         *SetForm
	ForEach     *ForEachForm
	CatchErrors Value
	Apply       *ApplyForm
	MultiCall   *MultiCallForm
	MultiApply  *MultiApplyForm
}

// Classify reports whether expr's head is a recognized special operator. ok
// is false (err always nil in that case) for anything else — ordinary
// calls and self-evaluating atoms are not this component's concern. When ok
// is true, err is non-nil exactly when the operator's operands are
// malformed (FormAnalyzerError, spec.md §7).
func Classify(expr Value) (form *Form, ok bool, err error) {
	if expr.Tag != TagCons {
		return nil, false, nil
	}
	c := expr.AsCons()
	if c.Car.Tag != TagVariable {
		return nil, false, nil
	}
	name := c.Car.AsVariable().Name
	switch name {
	case "quote":
		args, err := exactArgs(c.Cdr, 1, name)
		if err != nil {
			return nil, true, err
		}
		return &Form{Kind: FQuote, Quote: args[0]}, true, nil
	case "progn":
		args, ok := ListToSlice(c.Cdr)
		if !ok {
			return nil, true, NewFormAnalyzerError("progn: malformed body")
		}
		return &Form{Kind: FProgn, Progn: args}, true, nil
	case "if":
		args, err := exactArgs(c.Cdr, 3, name)
		if err != nil {
			return nil, true, err
		}
		return &Form{Kind: FIf, If: &IfForm{Test: args[0], Then: args[1], Else: args[2]}}, true, nil
	case "_vlambda":
		return classifyLambda(c.Cdr, Lexical, NSValue, false)
	case "_mlambda":
		return classifyLambda(c.Cdr, Lexical, NSValue, true)
	case "_flambda":
		return classifyLambda(c.Cdr, Lexical, NSFunction, false)
	case "_dlambda":
		return classifyLambda(c.Cdr, Dynamic, NSValue, false)
	case "vref":
		return classifyRef(c.Cdr, RefLexicalValue, name)
	case "fref":
		return classifyRef(c.Cdr, RefLexicalFunction, name)
	case "dref":
		return classifyRef(c.Cdr, RefDynamic, name)
	case "vset!", "set!":
		return classifySet(c.Cdr, RefLexicalValue, name)
	case "fset!":
		return classifySet(c.Cdr, RefLexicalFunction, name)
	case "dset!":
		return classifySet(c.Cdr, RefDynamic, name)
	case "_for-each":
		args, err := exactArgs(c.Cdr, 2, name)
		if err != nil {
			return nil, true, err
		}
		return &Form{Kind: FForEach, ForEach: &ForEachForm{Fn: args[0], List: args[1]}}, true, nil
	case "_catch-errors":
		args, err := exactArgs(c.Cdr, 1, name)
		if err != nil {
			return nil, true, err
		}
		return &Form{Kind: FCatchErrors, CatchErrors: args[0]}, true, nil
	case "apply":
		items, ok := ListToSlice(c.Cdr)
		if !ok || len(items) < 2 {
			return nil, true, NewFormAnalyzerError("apply requires an operator and at least one operand")
		}
		return &Form{Kind: FApply, Apply: &ApplyForm{Op: items[0], Leading: items[1 : len(items)-1], SpreadExpr: items[len(items)-1]}}, true, nil
	case "multiple-value-call":
		items, ok := ListToSlice(c.Cdr)
		if !ok || len(items) < 1 {
			return nil, true, NewFormAnalyzerError("multiple-value-call requires an operator")
		}
		return &Form{Kind: FMultiValueCall, MultiCall: &MultiCallForm{Op: items[0], Operands: items[1:]}}, true, nil
	case "multiple-value-apply":
		items, ok := ListToSlice(c.Cdr)
		if !ok || len(items) < 2 {
			return nil, true, NewFormAnalyzerError("multiple-value-apply requires an operator and at least one operand")
		}
		return &Form{Kind: FMultiValueApply, MultiApply: &MultiApplyForm{Op: items[0], Leading: items[1 : len(items)-1], SpreadExpr: items[len(items)-1]}}, true, nil
	default:
		return nil, false, nil
	}
}

func exactArgs(list Value, n int, opName string) ([]Value, error) {
	items, ok := ListToSlice(list)
	if !ok || len(items) != n {
		return nil, NewFormAnalyzerError(opName + ": expected " + strconv.Itoa(n) + " operand(s)")
	}
	return items, nil
}

func asVariableOperand(v Value) (*Variable, bool) {
	if v.Tag != TagVariable {
		return nil, false
	}
	return v.AsVariable(), true
}

func classifyRef(rest Value, kind RefKind, opName string) (*Form, bool, error) {
	items, err := exactArgs(rest, 1, opName)
	if err != nil {
		return nil, true, err
	}
	v, ok := asVariableOperand(items[0])
	if !ok {
		return nil, true, NewFormAnalyzerError(opName + ": operand must be a variable")
	}
	return &Form{Kind: FRef, Ref: &RefForm{Kind: kind, Var: v}}, true, nil
}

func classifySet(rest Value, kind RefKind, opName string) (*Form, bool, error) {
	items, err := exactArgs(rest, 2, opName)
	if err != nil {
		return nil, true, err
	}
	v, ok := asVariableOperand(items[0])
	if !ok {
		return nil, true, NewFormAnalyzerError(opName + ": first operand must be a variable")
	}
	return &Form{Kind: FSet, Set: &SetForm{Kind: kind, Var: v, ValueExpr: items[1]}}, true, nil
}

func classifyLambda(rest Value, scope Scope, ns Namespace, macro bool) (*Form, bool, error) {
	items, ok := ListToSlice(rest)
	if !ok || len(items) < 1 {
		return nil, true, NewFormAnalyzerError("lambda form requires a parameter list and a body")
	}
	params, err := classifyParamList(items[0])
	if err != nil {
		return nil, true, err
	}
	return &Form{Kind: FLambda, Lambda: &LambdaForm{Scope: scope, Namespace: ns, Macro: macro, Params: params, Body: items[1:]}}, true, nil
}

// classifyParamList validates a parameter list: a proper list of distinct
// variables, optionally dotted to a trailing rest variable, or a bare
// variable meaning "all arguments into this one" (spec.md §4.3).
func classifyParamList(v Value) (ParamList, error) {
	if v.Tag == TagVariable {
		return ParamList{Rest: v.AsVariable()}, nil
	}
	var fixed []*Variable
	seen := map[*Variable]bool{}
	for {
		switch v.Tag {
		case TagEmptyList:
			return ParamList{Fixed: fixed}, nil
		case TagCons:
			c := v.AsCons()
			if c.Car.Tag != TagVariable {
				return ParamList{}, NewFormAnalyzerError("parameter list element is not a variable")
			}
			pv := c.Car.AsVariable()
			if seen[pv] {
				return ParamList{}, NewFormAnalyzerError("duplicate parameter: " + pv.Name)
			}
			seen[pv] = true
			fixed = append(fixed, pv)
			v = c.Cdr
		case TagVariable:
			rv := v.AsVariable()
			if seen[rv] {
				return ParamList{}, NewFormAnalyzerError("duplicate parameter: " + rv.Name)
			}
			return ParamList{Fixed: fixed, Rest: rv}, nil
		default:
			return ParamList{}, NewFormAnalyzerError("malformed parameter list")
		}
	}
}
