package evl

import "strconv"

// registerStringPrimitives installs a small set of string/number
// conversions beyond the arithmetic and comparison core.
func registerStringPrimitives(st *SymbolTable) {
	registerFn(st, "string-length", 1, 1, func(args []Value) (Value, error) {
		s, err := wantString(args[0], "string-length")
		if err != nil {
			return Value{}, err
		}
		return Number(float64(len([]rune(s)))), nil
	})
	registerFn(st, "string-append", 0, -1, func(args []Value) (Value, error) {
		out := ""
		for _, a := range args {
			s, err := wantString(a, "string-append")
			if err != nil {
				return Value{}, err
			}
			out += s
		}
		return String(out), nil
	})
	registerFn(st, "number->string", 1, 1, func(args []Value) (Value, error) {
		n, err := wantNumber(args[0], "number->string")
		if err != nil {
			return Value{}, err
		}
		return String(formatNumber(n)), nil
	})
	registerFn(st, "string->number", 1, 1, func(args []Value) (Value, error) {
		s, err := wantString(args[0], "string->number")
		if err != nil {
			return Value{}, err
		}
		f, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			return Value{}, NewEvaluatorError("", "string->number: not a number: "+s)
		}
		return Number(f), nil
	})
}

func wantString(v Value, who string) (string, error) {
	if v.Tag != TagString {
		return "", NewEvaluatorError("", who+": expected a string, got "+TypeName(v))
	}
	return v.Data.(string), nil
}
