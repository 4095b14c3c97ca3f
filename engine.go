// engine.go — the host↔core message protocol (spec.md §6).
//
// One Engine is a single-threaded conversation partner for a host: it
// accepts one request at a time, never yields to other logical tasks while
// servicing it (spec.md §5 "Scheduling"), and the host's only way to
// interrupt an in-flight request is the abort flag returned by AbortFlag.
// The core itself never touches a filesystem (spec.md's file-I/O Non-goal);
// evlFiles/source text are handed in already read, matching the teacher's
// split between Interpreter (pure evaluation) and cmd/msg (I/O).
package evl

// Status is one of the four response statuses named in spec.md §6.
type Status string

const (
	StatusSuccess     Status = "SUCCESS"
	StatusError       Status = "ERROR"
	StatusAborted     Status = "ABORTED"
	StatusFoundNoForm Status = "FOUND_NO_FORM"
)

// Response is the {id, status, output?} envelope of spec.md §6. Output
// carries the list-of-stringified-values success payload for INITIALIZE,
// EVALUATE_FIRST_FORM and EVALUATE_ALL_FORMS; XML carries CONVERT_EVL_TO_XML's
// success payload. ErrorKind/ErrorMessage are populated on StatusError so a
// host can render or route on the stable kind name (spec.md §7).
type Response struct {
	ID           string
	Status       Status
	Output       []string
	XML          string
	ErrorKind    string
	ErrorMessage string
}

// Engine owns the current Runtime across a sequence of requests. A fresh
// Engine has no Runtime until the first INITIALIZE; every subsequent
// INITIALIZE tears down the previous one by simply replacing it (spec.md §5:
// "INITIALIZE tears down any previous evaluator state... fresh *features*
// list").
type Engine struct {
	rt *Runtime
}

// NewEngine returns an Engine with no Runtime; call Initialize before any
// other request.
func NewEngine() *Engine { return &Engine{} }

// AbortFlag exposes the shared abort byte (spec.md §5) so a host running the
// Engine on its own goroutine can cancel an in-flight, possibly-diverging
// request. Returns nil before the first Initialize.
func (e *Engine) AbortFlag() *AbortFlag {
	if e.rt == nil {
		return nil
	}
	return e.rt.Session.Abort
}

// Initialize handles the INITIALIZE action: builds a fresh Runtime for
// selectedEvaluator and evaluates evlFiles (already-read source texts, in
// order) as a preload sequence, returning the stringified values of the
// last form evaluated across all of them.
func (e *Engine) Initialize(selectedEvaluator string, evlFiles []string) Response {
	rt, err := NewRuntime(selectedEvaluator)
	if err != nil {
		return Response{Status: StatusError, ErrorKind: "EvaluatorError", ErrorMessage: err.Error()}
	}
	e.rt = rt

	var lastVals []Value
	for _, src := range evlFiles {
		vals, _, err := e.evalAllForms(src)
		if err != nil {
			return e.errorResponse(err)
		}
		if vals != nil {
			lastVals = vals
		}
	}
	return Response{Status: StatusSuccess, Output: stringifyAll(lastVals)}
}

// isIncompleteInput reports whether err reflects input that simply ran out
// before a form was complete, rather than a genuine malformed-source error:
// either a token-level truncation (an unterminated string/hash-construct,
// spec.md §4.1) or a reader-level one (EOF reached inside an open list,
// vector, or XML element — spec.md §8 scenario 5's unclosed "( 1 2").
// Both mean "no complete form yet", not "this input is wrong".
func isIncompleteInput(err error) bool {
	if _, truncated := err.(*TruncatedToken); truncated {
		return true
	}
	if re, ok := err.(*ReaderError); ok && re.Sub == UnexpectedEndOfInput {
		return true
	}
	return false
}

// EvaluateFirstForm handles EVALUATE_FIRST_FORM: reads and evaluates exactly
// the first top-level form in src. FOUND_NO_FORM covers empty/whitespace
// input and truncated (incomplete) input alike (spec.md §6, §8 scenario 5).
func (e *Engine) EvaluateFirstForm(src string) Response {
	if aborted := e.checkAbort(); aborted != nil {
		return *aborted
	}
	reader := e.rt.NewReaderFor(src, nil)
	form, ok, err := reader.ReadForm()
	if err != nil {
		if isIncompleteInput(err) {
			return Response{Status: StatusFoundNoForm}
		}
		return e.errorResponse(err)
	}
	if !ok {
		return Response{Status: StatusFoundNoForm}
	}
	v, err := e.rt.Evaluator.Eval(form, nil, nil)
	if err != nil {
		return e.errorResponse(err)
	}
	return Response{Status: StatusSuccess, Output: stringifyAll(v.AllValues())}
}

// EvaluateAllForms handles EVALUATE_ALL_FORMS: reads and evaluates every
// top-level form in src in order, returning the stringified values of the
// last one.
func (e *Engine) EvaluateAllForms(src string) Response {
	if aborted := e.checkAbort(); aborted != nil {
		return *aborted
	}
	lastVals, hadForm, err := e.evalAllForms(src)
	if err != nil {
		if isIncompleteInput(err) && !hadForm {
			return Response{Status: StatusFoundNoForm}
		}
		return e.errorResponse(err)
	}
	if !hadForm {
		return Response{Status: StatusFoundNoForm}
	}
	return Response{Status: StatusSuccess, Output: stringifyAll(lastVals)}
}

// ConvertEVLToXML handles CONVERT_EVL_TO_XML (spec.md §4.9).
func (e *Engine) ConvertEVLToXML(src string) Response {
	if aborted := e.checkAbort(); aborted != nil {
		return *aborted
	}
	out, err := ConvertEVLToXML(src, e.rt.Session.Symbols)
	if err != nil {
		return e.errorResponse(err)
	}
	return Response{Status: StatusSuccess, XML: out}
}

func (e *Engine) checkAbort() *Response {
	if e.rt != nil && e.rt.Session.Abort.IsSet() {
		r := Response{Status: StatusAborted}
		return &r
	}
	return nil
}

// evalAllForms reads and evaluates every top-level form in src against e's
// current Runtime, returning the last form's full multi-value result.
// hadForm distinguishes "no forms present" from "zero values produced by
// the last form" (Void still counts as a produced value).
func (e *Engine) evalAllForms(src string) (lastVals []Value, hadForm bool, err error) {
	reader := e.rt.NewReaderFor(src, nil)
	for {
		form, ok, ferr := reader.ReadForm()
		if ferr != nil {
			return nil, hadForm, ferr
		}
		if !ok {
			return lastVals, hadForm, nil
		}
		v, everr := e.rt.Evaluator.Eval(form, nil, nil)
		if everr != nil {
			return nil, hadForm, everr
		}
		lastVals = v.AllValues()
		hadForm = true
	}
}

func (e *Engine) errorResponse(err error) Response {
	if _, aborted := err.(*Aborted); aborted {
		return Response{Status: StatusAborted}
	}
	kind := "CannotHappen"
	if ee, ok := err.(EVLError); ok {
		kind = ee.Kind()
	}
	return Response{Status: StatusError, ErrorKind: kind, ErrorMessage: err.Error()}
}

func stringifyAll(vs []Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = Stringify(v)
	}
	return out
}
