package evl

// registerPredicatePrimitives installs the per-tag type predicates.
func registerPredicatePrimitives(st *SymbolTable) {
	registerFn(st, "number?", 1, 1, tagPred(TagNumber))
	registerFn(st, "boolean?", 1, 1, tagPred(TagBoolean))
	registerFn(st, "character?", 1, 1, tagPred(TagCharacter))
	registerFn(st, "string?", 1, 1, tagPred(TagString))
	registerFn(st, "keyword?", 1, 1, tagPred(TagKeyword))
	registerFn(st, "variable?", 1, 1, tagPred(TagVariable))
	registerFn(st, "vector?", 1, 1, tagPred(TagVector))
	registerFn(st, "void?", 1, 1, tagPred(TagVoid))
	registerFn(st, "closure?", 1, 1, tagPred(TagClosure))
	registerFn(st, "primitive?", 1, 1, tagPred(TagPrimitive))
}

func tagPred(t Tag) func([]Value) (Value, error) {
	return func(args []Value) (Value, error) { return Boolean(args[0].Tag == t), nil }
}
