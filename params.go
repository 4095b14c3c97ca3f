// params.go — parameter pairing for closure calls and applies (spec.md §4.5).
//
// Grounded on object.go's Closure shape (fixed Params plus an optional
// Rest). There are two ways a closure receives arguments: a plain call
// supplies an evaluated argument slice with no pre-existing chain, while
// apply additionally supplies a value that must spread as a proper list.
// Only the apply case can adopt a suffix of its input by reference instead
// of copying, because only it starts from an existing cons chain.
package evl

import "strconv"

// BindParams binds args, a plain evaluated argument list, against cl's
// parameters, returning a fresh child frame of parent. The rest binding (if
// any) is always a freshly built list: a plain call has no pre-existing
// chain to share.
func BindParams(parent *Frame, cl *Closure, args []Value) (*Frame, error) {
	n := len(cl.Params)
	if len(args) < n {
		return nil, NewEvaluatorError(TooFewArguments, closureArityMsg(cl, len(args)))
	}
	if cl.Rest == nil && len(args) > n {
		return nil, NewEvaluatorError(TooManyArguments, closureArityMsg(cl, len(args)))
	}
	frame := NewFrame(parent)
	for i, p := range cl.Params {
		frame.Bind(p, cl.Namespace, args[i])
	}
	if cl.Rest != nil {
		frame.Bind(cl.Rest, cl.Namespace, SliceToList(args[n:], EmptyList))
	}
	return frame, nil
}

// BindParamsApply binds the argument sequence apply builds: leading, a
// plain evaluated prefix, followed by the elements of spreadTail, which
// must itself be a proper list (otherwise MalformedSpreadableSequenceOfObjects,
// spec.md §7). Whatever suffix of the combined sequence falls inside
// spreadTail's own cons chain is adopted by reference for the rest binding
// rather than copied.
func BindParamsApply(parent *Frame, cl *Closure, leading []Value, spreadTail Value) (*Frame, error) {
	if !IsProperList(spreadTail) {
		return nil, NewEvaluatorError(MalformedSpreadableSequenceOfObjects, "apply's spread argument is not a proper list")
	}
	n := len(cl.Params)
	frame := NewFrame(parent)

	if n <= len(leading) {
		for i, p := range cl.Params {
			frame.Bind(p, cl.Namespace, leading[i])
		}
		if cl.Rest == nil {
			if len(leading) > n || spreadTail.Tag != TagEmptyList {
				return nil, NewEvaluatorError(TooManyArguments, closureArityMsg(cl, len(leading)+spreadLen(spreadTail)))
			}
			return frame, nil
		}
		// leading[n:] (if any) must be consed onto spreadTail, which is
		// shared by reference as the resulting list's tail.
		frame.Bind(cl.Rest, cl.Namespace, SliceToList(leading[n:], spreadTail))
		return frame, nil
	}

	// leading alone doesn't cover every fixed parameter; pull the rest from
	// spreadTail's own elements, walking its cons chain directly.
	for i, p := range cl.Params {
		if i < len(leading) {
			frame.Bind(p, cl.Namespace, leading[i])
			continue
		}
		if spreadTail.Tag != TagCons {
			return nil, NewEvaluatorError(TooFewArguments, closureArityMsg(cl, len(leading)+spreadLen(spreadTail)))
		}
		c := spreadTail.AsCons()
		frame.Bind(p, cl.Namespace, c.Car)
		spreadTail = c.Cdr
	}
	if cl.Rest == nil {
		if spreadTail.Tag != TagEmptyList {
			return nil, NewEvaluatorError(TooManyArguments, closureArityMsg(cl, n+spreadLen(spreadTail)))
		}
		return frame, nil
	}
	// Everything left in spreadTail is exactly the rest binding: no copy.
	frame.Bind(cl.Rest, cl.Namespace, spreadTail)
	return frame, nil
}

func spreadLen(v Value) int {
	items, _ := ListToSlice(v)
	return len(items)
}

func closureArityMsg(cl *Closure, got int) string {
	if cl.Rest != nil {
		return "expected at least " + strconv.Itoa(len(cl.Params)) + " arguments, got " + strconv.Itoa(got)
	}
	return "expected exactly " + strconv.Itoa(len(cl.Params)) + " arguments, got " + strconv.Itoa(got)
}
