// call.go — uniform call dispatch shared by every evaluator.
//
// Calling a primitive only needs an arity check against its declared range
// (spec.md §2 component 9) before invoking its Go function; calling a
// closure additionally needs a parameter frame (params.go). Centralizing
// the primitive-arity check here keeps all six evaluators' call sites
// identical instead of repeating the same two comparisons six times.
package evl

import "strconv"

// CallPrimitive validates args against p's declared arity and, if it fits,
// invokes p.Fn. MaxArity < 0 means unbounded (object.go).
func CallPrimitive(p *PrimitiveFunction, args []Value) (Value, error) {
	if len(args) < p.MinArity {
		return Value{}, NewEvaluatorError(TooFewArguments, p.Name+": expected at least "+strconv.Itoa(p.MinArity)+" argument(s), got "+strconv.Itoa(len(args)))
	}
	if p.MaxArity >= 0 && len(args) > p.MaxArity {
		return Value{}, NewEvaluatorError(TooManyArguments, p.Name+": expected at most "+strconv.Itoa(p.MaxArity)+" argument(s), got "+strconv.Itoa(len(args)))
	}
	return p.Fn(args)
}
