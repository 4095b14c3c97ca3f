package evl

// registerControlPrimitives installs `error` and `values` (spec.md §2
// component 9, §8 scenario 3).
func registerControlPrimitives(st *SymbolTable) {
	registerFn(st, "error", 1, 1, func(args []Value) (Value, error) {
		if args[0].Tag != TagString {
			return Value{}, NewEvaluatorError("", "error: expected a string message, got "+TypeName(args[0]))
		}
		return Value{}, NewUserError(args[0].Data.(string))
	})
	registerFn(st, "values", 0, -1, func(args []Value) (Value, error) {
		vs := make([]Value, len(args))
		copy(vs, args)
		return MultiVal(vs), nil
	})
}
