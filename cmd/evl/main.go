package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	evl "github.com/evl-lang/evl"
)

const (
	appName     = "evl"
	historyFile = ".evl_history"
	promptMain  = "==> "
	promptCont  = "... "
)

var banner = "EVL REPL (" + evl.DefaultStrategy + ")\nCtrl+C cancels input, Ctrl+D exits. Type :quit to exit."

func red(s string) string  { return "\x1b[31m" + s + "\x1b[0m" }
func blue(s string) string { return "\x1b[94m" + s + "\x1b[0m" }

func main() {
	strategy, rest := parseStrategyFlag(os.Args[1:])

	if len(rest) > 0 && rest[0] == "repl" {
		os.Exit(cmdRepl(strategy))
	}

	os.Exit(cmdOps(strategy, rest))
}

// parseStrategyFlag recognizes an evaluator-selection flag anywhere in args
// (spec.md §6: "one evaluator-selection flag... followed by a sequence of
// ... operations"); if several appear, the last one wins. Absent a flag, the
// default (last strategy, trampolinepp) is used.
func parseStrategyFlag(args []string) (strategy string, rest []string) {
	strategy = evl.DefaultStrategy
	for _, a := range args {
		if strings.HasPrefix(a, "--") {
			if name := strings.TrimPrefix(a, "--"); isStrategyName(name) {
				strategy = name
				continue
			}
		}
		rest = append(rest, a)
	}
	return strategy, rest
}

func isStrategyName(name string) bool {
	for _, s := range evl.StrategyNames {
		if s == name {
			return true
		}
	}
	return false
}

// cmdOps runs the ordered -l/-e/--convert operation sequence (spec.md §6).
// Exit code 0 on success; nonzero on the first error, with the message
// printed to standard output before exit, per spec.md §6.
func cmdOps(strategy string, args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	rt, err := evl.NewRuntime(strategy)
	if err != nil {
		fmt.Println(red(err.Error()))
		return 1
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-l":
			i++
			if i >= len(args) {
				fmt.Println(red(appName + ": -l requires a file argument"))
				return 2
			}
			if code := runFile(rt, args[i]); code != 0 {
				return code
			}
		case "-e":
			i++
			if i >= len(args) {
				fmt.Println(red(appName + ": -e requires a form argument"))
				return 2
			}
			if code := runForm(rt, args[i]); code != 0 {
				return code
			}
		case "--convert":
			i++
			if i >= len(args) {
				fmt.Println(red(appName + ": --convert requires a file argument"))
				return 2
			}
			if code := runConvert(rt, args[i]); code != 0 {
				return code
			}
		case "-h", "--help", "help":
			usage()
			return 0
		default:
			fmt.Println(red(appName + ": unknown operation " + args[i]))
			usage()
			return 2
		}
	}
	return 0
}

func runFile(rt *evl.Runtime, path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Println(red(fmt.Sprintf("%s: cannot read %s: %v", appName, path, err)))
		return 1
	}
	vals, code := evalAllForms(rt, string(src))
	if code != 0 {
		return code
	}
	printValues(vals)
	return 0
}

func runForm(rt *evl.Runtime, form string) int {
	vals, code := evalAllForms(rt, form)
	if code != 0 {
		return code
	}
	printValues(vals)
	return 0
}

func evalAllForms(rt *evl.Runtime, src string) ([]evl.Value, int) {
	reader := rt.NewReaderFor(src, nil)
	var last []evl.Value
	for {
		form, ok, err := reader.ReadForm()
		if err != nil {
			fmt.Println(red(evl.WrapErrorWithSource(err, src).Error()))
			return nil, 1
		}
		if !ok {
			break
		}
		v, err := rt.Evaluator.Eval(form, nil, nil)
		if err != nil {
			if _, aborted := err.(*evl.Aborted); aborted {
				fmt.Println(red(err.Error()))
				return nil, 1
			}
			fmt.Println(red(evl.WrapErrorWithSource(err, src).Error()))
			return nil, 1
		}
		last = v.AllValues()
	}
	return last, 0
}

func runConvert(rt *evl.Runtime, path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Println(red(fmt.Sprintf("%s: cannot read %s: %v", appName, path, err)))
		return 1
	}
	out, err := evl.ConvertEVLToXML(string(src), rt.Session.Symbols)
	if err != nil {
		fmt.Println(red(evl.WrapErrorWithSource(err, string(src)).Error()))
		return 1
	}
	fmt.Println(out)
	return 0
}

func printValues(vals []evl.Value) {
	for _, v := range vals {
		fmt.Println(blue(evl.Stringify(v)))
	}
}

func usage() {
	fmt.Printf(`EVL — six interchangeable evaluator strategies over one reader/form-analyzer core.

Usage:
  %s [--plainrec|--cps|--oocps|--sboocps|--trampoline|--trampolinepp] -l <file> | -e <form> | --convert <file> ...
  %s [--<strategy>] repl

Operations run in the order given. Default strategy: %s.
`, appName, appName, evl.DefaultStrategy)
}

// -----------------------------------------------------------------------------
// repl
// -----------------------------------------------------------------------------

func cmdRepl(strategy string) (ret int) {
	fmt.Println(banner)

	rt, err := evl.NewRuntime(strategy)
	if err != nil {
		fmt.Println(red(err.Error()))
		return 1
	}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		code, ok := readForm(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			break
		}

		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if trimmed == ":quit" {
			return 0
		}

		reader := rt.NewReaderFor(code, nil)
		form, found, err := reader.ReadForm()
		if err != nil {
			fmt.Println(red(evl.WrapErrorWithSource(err, code).Error()))
			continue
		}
		if !found {
			continue
		}
		v, err := rt.Evaluator.Eval(form, nil, nil)
		if err != nil {
			fmt.Println(red(evl.WrapErrorWithSource(err, code).Error()))
			continue
		}
		for _, rv := range v.AllValues() {
			fmt.Println(blue(evl.Stringify(rv)))
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}

	return 0
}

// readForm reads lines until the accumulated source no longer ends mid-token
// (a truncated string/hash-construct/XML tag), so multi-line input keeps
// prompting with promptCont instead of erroring on an incomplete form.
func readForm(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if isIncompleteSource(src) {
			continue
		}
		return src, true
	}
}

// isIncompleteSource probes src by lexing it fully; a TruncatedToken error
// (an unterminated string, hash-construct, or XML tag) means more input is
// needed. Any other error is left for ReadForm to report once the caller
// submits what it has.
func isIncompleteSource(src string) bool {
	lex := evl.NewLexer(src)
	for {
		tok, err := lex.Next()
		if err != nil {
			_, truncated := err.(*evl.TruncatedToken)
			return truncated
		}
		if tok.Type == evl.TokEOF {
			return false
		}
	}
}
