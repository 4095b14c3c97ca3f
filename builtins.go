// builtins.go — primitive function registration (spec.md §2 component 9).
//
// Grounded on the teacher's registerXBuiltins(ip) pattern in runtime.go:
// one register function per topical group, all invoked from a single entry
// point. Here each primitive is wired into a fresh SymbolTable's function
// namespace rather than a long-lived interpreter, since spec.md §5 requires
// INITIALIZE to build an entirely new symbol table per session.
package evl

// RegisterPrimitives installs every primitive function into st's function
// namespace. Call once per fresh SymbolTable.
func RegisterPrimitives(st *SymbolTable) {
	registerArithPrimitives(st)
	registerComparePrimitives(st)
	registerListPrimitives(st)
	registerPredicatePrimitives(st)
	registerControlPrimitives(st)
	registerStringPrimitives(st)
}

func registerFn(st *SymbolTable, name string, min, max int, fn func([]Value) (Value, error)) {
	v := st.Variable(name).AsVariable()
	val := PrimitiveVal(&PrimitiveFunction{Name: name, MinArity: min, MaxArity: max, Fn: fn})
	v.FunctionCell = &val
}

// aliasFn binds alias to the same PrimitiveFunction already registered
// under canonical (spec.md §8 scenario 1: "`+` aliased to primitive `_+`").
func aliasFn(st *SymbolTable, alias, canonical string) {
	cv, ok := st.LookupVariable(canonical)
	if !ok || cv.FunctionCell == nil {
		panic("evl: alias of unknown primitive: " + canonical)
	}
	av := st.Variable(alias).AsVariable()
	val := *cv.FunctionCell
	av.FunctionCell = &val
}
