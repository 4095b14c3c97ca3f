// runtime.go — selects and constructs one of the six evaluator strategies
// (spec.md §4.8) against a fresh Session (spec.md §5's INITIALIZE contract).
//
// Grounded on the teacher's NewInterpreter/NewRuntime split (runtime.go):
// one function builds the shared, strategy-independent state, a second
// picks the concrete strategy. Here both collapse into NewRuntime because
// Session already holds everything strategy-independent (evaluator.go).
package evl

import "fmt"

// StrategyNames lists the six valid values for selectedEvaluator (spec.md
// §6), in the order spec.md §6's "default last" refers to.
var StrategyNames = []string{"plainrec", "cps", "oocps", "sboocps", "trampoline", "trampolinepp"}

// DefaultStrategy is "default last" per spec.md §6.
const DefaultStrategy = "trampolinepp"

// Runtime bundles a Session with the Evaluator strategy selected for it.
type Runtime struct {
	Session   *Session
	Evaluator Evaluator
}

// NewRuntime builds a fresh Session (spec.md §5: fresh symbol tables, fresh
// *features* list naming strategyName) and wires the requested evaluator
// strategy against it. An empty strategyName selects DefaultStrategy.
func NewRuntime(strategyName string) (*Runtime, error) {
	if strategyName == "" {
		strategyName = DefaultStrategy
	}
	s := NewSession(strategyName)
	ev, err := newEvaluator(strategyName, s)
	if err != nil {
		return nil, err
	}
	return &Runtime{Session: s, Evaluator: ev}, nil
}

func newEvaluator(name string, s *Session) (Evaluator, error) {
	switch name {
	case "plainrec":
		return NewPlainRecEvaluator(s), nil
	case "cps":
		return NewCPSEvaluator(s), nil
	case "oocps":
		return NewOOCPSEvaluator(s), nil
	case "sboocps":
		return NewSBOOCPSEvaluator(s), nil
	case "trampoline":
		return NewTrampolineEvaluator(s), nil
	case "trampolinepp":
		return NewTrampolinePPEvaluator(s), nil
	default:
		return nil, fmt.Errorf("unknown evaluator strategy %q (want one of %v)", name, StrategyNames)
	}
}

// NewReaderFor builds a Reader bound to rt's symbol table and *features*
// test, with onXMLForm wired so forms scripted inside XML documentation are
// delivered back to the caller as they are read (spec.md §4.2).
func (rt *Runtime) NewReaderFor(src string, onXMLForm func(Value)) *Reader {
	return NewReader(src, rt.Session.Symbols, rt.Session.FeatureTest, onXMLForm)
}
