package evl

// registerArithPrimitives installs the `_+ _- _* _/` primitives and their
// bare-symbol aliases (spec.md §8 scenario 1).
func registerArithPrimitives(st *SymbolTable) {
	registerFn(st, "_+", 0, -1, func(args []Value) (Value, error) {
		sum := 0.0
		for _, a := range args {
			n, err := wantNumber(a, "_+")
			if err != nil {
				return Value{}, err
			}
			sum += n
		}
		return Number(sum), nil
	})
	registerFn(st, "_-", 1, -1, func(args []Value) (Value, error) {
		first, err := wantNumber(args[0], "_-")
		if err != nil {
			return Value{}, err
		}
		if len(args) == 1 {
			return Number(-first), nil
		}
		result := first
		for _, a := range args[1:] {
			n, err := wantNumber(a, "_-")
			if err != nil {
				return Value{}, err
			}
			result -= n
		}
		return Number(result), nil
	})
	registerFn(st, "_*", 0, -1, func(args []Value) (Value, error) {
		prod := 1.0
		for _, a := range args {
			n, err := wantNumber(a, "_*")
			if err != nil {
				return Value{}, err
			}
			prod *= n
		}
		return Number(prod), nil
	})
	registerFn(st, "_/", 1, -1, func(args []Value) (Value, error) {
		first, err := wantNumber(args[0], "_/")
		if err != nil {
			return Value{}, err
		}
		if len(args) == 1 {
			return Number(1 / first), nil
		}
		result := first
		for _, a := range args[1:] {
			n, err := wantNumber(a, "_/")
			if err != nil {
				return Value{}, err
			}
			result /= n
		}
		return Number(result), nil
	})

	aliasFn(st, "+", "_+")
	aliasFn(st, "-", "_-")
	aliasFn(st, "*", "_*")
	aliasFn(st, "/", "_/")
}

func wantNumber(v Value, who string) (float64, error) {
	if v.Tag != TagNumber {
		return 0, NewEvaluatorError("", who+": expected a number, got "+TypeName(v))
	}
	return v.Data.(float64), nil
}
