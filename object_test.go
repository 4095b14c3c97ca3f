package evl

import "testing"

func TestSingletonsAreUnique(t *testing.T) {
	if Void != Void {
		t.Fatal("Void is not comparable to itself")
	}
	if True.Data.(bool) != true || False.Data.(bool) != false {
		t.Fatal("True/False singletons carry the wrong payload")
	}
	if EmptyList.Tag != TagEmptyList {
		t.Fatal("EmptyList has the wrong tag")
	}
}

func TestEqIdentityVsEqlContent(t *testing.T) {
	a := Number(1.0)
	b := Number(1.0)
	if Eq(a, b) {
		t.Fatal("two distinct Number boxings must not be eq?")
	}
	if !Eql(a, b) {
		t.Fatal("two Numbers with the same value must be eql?")
	}

	s1 := String("hi")
	s2 := String("hi")
	if !Eql(s1, s2) {
		t.Fatal("strings with equal content must be eql?")
	}

	st := NewSymbolTable()
	v1 := st.Variable("x")
	v2 := st.Variable("x")
	if !Eq(v1, v2) {
		t.Fatal("two interned reads of the same variable must be eq?")
	}

	c := NewCons(Number(1), EmptyList)
	if !Eq(c, c) {
		t.Fatal("a cons must be eq? to itself")
	}
	if Eq(c, NewCons(Number(1), EmptyList)) {
		t.Fatal("two distinct cons cells with equal content must not be eq?")
	}
}

func TestMultiValueProjection(t *testing.T) {
	bare := Number(3)
	if bare.PrimaryValue() != bare {
		t.Fatal("a bare value must project to itself")
	}
	if len(bare.AllValues()) != 1 || bare.AllValues()[0] != bare {
		t.Fatal("a bare value's AllValues must be a one-element slice of itself")
	}

	mv := MultiVal([]Value{Number(1), Number(2), Number(3)})
	if mv.Tag != TagMultiValue {
		t.Fatal("MultiVal of >1 elements must produce a MultiValue carrier")
	}
	if mv.PrimaryValue() != Number(1) {
		t.Fatal("PrimaryValue must project to the first element")
	}
	if len(mv.AllValues()) != 3 {
		t.Fatal("AllValues must return every wrapped element")
	}

	empty := MultiVal(nil)
	if empty.PrimaryValue() != Void {
		t.Fatal("an empty multi-value must project to Void")
	}

	single := MultiVal([]Value{Number(5)})
	if single.Tag == TagMultiValue {
		t.Fatal("MultiVal of exactly one value must not wrap at all")
	}
}

func TestListConversions(t *testing.T) {
	if !IsProperList(EmptyList) {
		t.Fatal("the empty list is a proper list")
	}
	proper := SliceToList([]Value{Number(1), Number(2), Number(3)}, EmptyList)
	if !IsProperList(proper) {
		t.Fatal("a cons chain ending in EmptyList is a proper list")
	}
	items, ok := ListToSlice(proper)
	if !ok || len(items) != 3 {
		t.Fatalf("ListToSlice round-trip failed: %v, %v", items, ok)
	}

	improper := SliceToList([]Value{Number(1)}, Number(2))
	if IsProperList(improper) {
		t.Fatal("a dotted list is not a proper list")
	}
	if _, ok := ListToSlice(improper); ok {
		t.Fatal("ListToSlice must report false on an improper list")
	}
}

func TestStringifyRoundTripSubset(t *testing.T) {
	st := NewSymbolTable()
	cases := []Value{
		Number(3), Number(-2.5), Void, True, False, EmptyList,
		String("hello\nworld"), st.Keyword("foo"), st.Variable("bar"),
		NewCons(Number(1), NewCons(Number(2), EmptyList)),
	}
	for _, v := range cases {
		printed := Stringify(v)
		reader := NewReader(printed, st, nil, nil)
		got, ok, err := reader.ReadForm()
		if err != nil {
			t.Fatalf("round-trip read of %q failed: %v", printed, err)
		}
		if !ok {
			t.Fatalf("round-trip read of %q produced no form", printed)
		}
		if v.Tag == TagCons {
			if Stringify(got) != printed {
				t.Fatalf("round-trip mismatch: printed %q, reread as %q", printed, Stringify(got))
			}
			continue
		}
		if !Eql(got, v) {
			t.Fatalf("round-trip mismatch: printed %q, reread as %q", printed, Stringify(got))
		}
	}
}

func TestFormatNumberIntegersHaveOneDecimal(t *testing.T) {
	if got := formatNumber(3); got != "3.0" {
		t.Fatalf("formatNumber(3) = %q, want 3.0", got)
	}
	if got := formatNumber(-2.5); got != "-2.5" {
		t.Fatalf("formatNumber(-2.5) = %q, want -2.5", got)
	}
}
