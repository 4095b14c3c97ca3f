package evl

// registerListPrimitives installs cons/list and vector operations
// (spec.md §2 component 9).
func registerListPrimitives(st *SymbolTable) {
	registerFn(st, "cons", 2, 2, func(args []Value) (Value, error) { return NewCons(args[0], args[1]), nil })
	registerFn(st, "car", 1, 1, func(args []Value) (Value, error) {
		if args[0].Tag != TagCons {
			return Value{}, NewEvaluatorError("", "car: expected a cons, got "+TypeName(args[0]))
		}
		return args[0].AsCons().Car, nil
	})
	registerFn(st, "cdr", 1, 1, func(args []Value) (Value, error) {
		if args[0].Tag != TagCons {
			return Value{}, NewEvaluatorError("", "cdr: expected a cons, got "+TypeName(args[0]))
		}
		return args[0].AsCons().Cdr, nil
	})
	registerFn(st, "set-car!", 2, 2, func(args []Value) (Value, error) {
		if args[0].Tag != TagCons {
			return Value{}, NewEvaluatorError("", "set-car!: expected a cons, got "+TypeName(args[0]))
		}
		args[0].AsCons().Car = args[1]
		return Void, nil
	})
	registerFn(st, "set-cdr!", 2, 2, func(args []Value) (Value, error) {
		if args[0].Tag != TagCons {
			return Value{}, NewEvaluatorError("", "set-cdr!: expected a cons, got "+TypeName(args[0]))
		}
		args[0].AsCons().Cdr = args[1]
		return Void, nil
	})
	registerFn(st, "list", 0, -1, func(args []Value) (Value, error) {
		items := make([]Value, len(args))
		copy(items, args)
		return SliceToList(items, EmptyList), nil
	})
	registerFn(st, "list?", 1, 1, func(args []Value) (Value, error) { return Boolean(IsProperList(args[0])), nil })
	registerFn(st, "null?", 1, 1, func(args []Value) (Value, error) { return Boolean(args[0].Tag == TagEmptyList), nil })
	registerFn(st, "pair?", 1, 1, func(args []Value) (Value, error) { return Boolean(args[0].Tag == TagCons), nil })
	registerFn(st, "length", 1, 1, func(args []Value) (Value, error) {
		items, ok := ListToSlice(args[0])
		if !ok {
			return Value{}, NewEvaluatorError("", "length: expected a proper list")
		}
		return Number(float64(len(items))), nil
	})
	registerFn(st, "append", 0, -1, func(args []Value) (Value, error) {
		if len(args) == 0 {
			return EmptyList, nil
		}
		var all []Value
		for _, l := range args[:len(args)-1] {
			items, ok := ListToSlice(l)
			if !ok {
				return Value{}, NewEvaluatorError("", "append: expected a proper list")
			}
			all = append(all, items...)
		}
		return SliceToList(all, args[len(args)-1]), nil
	})
	registerFn(st, "reverse", 1, 1, func(args []Value) (Value, error) {
		items, ok := ListToSlice(args[0])
		if !ok {
			return Value{}, NewEvaluatorError("", "reverse: expected a proper list")
		}
		out := EmptyList
		for _, it := range items {
			out = NewCons(it, out)
		}
		return out, nil
	})

	registerFn(st, "vector", 0, -1, func(args []Value) (Value, error) {
		items := make([]Value, len(args))
		copy(items, args)
		return NewVector(items), nil
	})
	registerFn(st, "vector-ref", 2, 2, func(args []Value) (Value, error) {
		vec, err := wantVector(args[0], "vector-ref")
		if err != nil {
			return Value{}, err
		}
		i, err := wantIndex(args[1], "vector-ref", len(vec.Items))
		if err != nil {
			return Value{}, err
		}
		return vec.Items[i], nil
	})
	registerFn(st, "vector-set!", 3, 3, func(args []Value) (Value, error) {
		vec, err := wantVector(args[0], "vector-set!")
		if err != nil {
			return Value{}, err
		}
		i, err := wantIndex(args[1], "vector-set!", len(vec.Items))
		if err != nil {
			return Value{}, err
		}
		vec.Items[i] = args[2]
		return Void, nil
	})
	registerFn(st, "vector-length", 1, 1, func(args []Value) (Value, error) {
		vec, err := wantVector(args[0], "vector-length")
		if err != nil {
			return Value{}, err
		}
		return Number(float64(len(vec.Items))), nil
	})
}

func wantVector(v Value, who string) (*Vector, error) {
	if v.Tag != TagVector {
		return nil, NewEvaluatorError("", who+": expected a vector, got "+TypeName(v))
	}
	return v.AsVector(), nil
}

func wantIndex(v Value, who string, length int) (int, error) {
	n, err := wantNumber(v, who)
	if err != nil {
		return 0, err
	}
	i := int(n)
	if float64(i) != n || i < 0 || i >= length {
		return 0, NewEvaluatorError("", who+": index out of range")
	}
	return i, nil
}
