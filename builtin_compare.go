package evl

// registerComparePrimitives installs numeric comparisons, eq?/eql?, and
// not.
func registerComparePrimitives(st *SymbolTable) {
	cmp := func(name string, ok func(a, b float64) bool) {
		registerFn(st, name, 1, -1, func(args []Value) (Value, error) {
			prev, err := wantNumber(args[0], name)
			if err != nil {
				return Value{}, err
			}
			for _, a := range args[1:] {
				n, err := wantNumber(a, name)
				if err != nil {
					return Value{}, err
				}
				if !ok(prev, n) {
					return False, nil
				}
				prev = n
			}
			return True, nil
		})
	}
	cmp("_=", func(a, b float64) bool { return a == b })
	cmp("_<", func(a, b float64) bool { return a < b })
	cmp("_>", func(a, b float64) bool { return a > b })
	cmp("_<=", func(a, b float64) bool { return a <= b })
	cmp("_>=", func(a, b float64) bool { return a >= b })
	aliasFn(st, "=", "_=")
	aliasFn(st, "<", "_<")
	aliasFn(st, ">", "_>")
	aliasFn(st, "<=", "_<=")
	aliasFn(st, ">=", "_>=")

	registerFn(st, "eq?", 2, 2, func(args []Value) (Value, error) { return Boolean(Eq(args[0], args[1])), nil })
	registerFn(st, "eql?", 2, 2, func(args []Value) (Value, error) { return Boolean(Eql(args[0], args[1])), nil })
	registerFn(st, "not", 1, 1, func(args []Value) (Value, error) {
		b, err := wantBoolean(args[0], "not")
		if err != nil {
			return Value{}, err
		}
		return Boolean(!b), nil
	})
}

func wantBoolean(v Value, who string) (bool, error) {
	if v.Tag != TagBoolean {
		return false, NewEvaluatorError("", who+": expected a boolean, got "+TypeName(v))
	}
	return v.Data.(bool), nil
}
