// Package engine provides the Lisp evaluation engine for papercut.
// It wraps zygomys in a sandboxed environment and produces a DesignGraph
// from user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/papercut/pkg/graph"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error, a runtime error in user code or a graph
// validation error.
type EvalError struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal warning produced during evaluation.
type EvalWarning struct {
	Line    int          `json:"line"`
	Col     int          `json:"col"`
	Message string       `json:"message"`
	NodeID  graph.NodeID `json:"node_id"`
}

// EvalResult bundles the full output of an evaluation.
type EvalResult struct {
	Graph    *graph.DesignGraph
	Errors   []EvalError
	Warnings []EvalWarning
}

// DefaultWrinkle supplies the wrinkle parameters a script leaves out.
var DefaultWrinkle = graph.WrinkleData{Iterations: 5}

// Engine wraps the zygomys interpreter for papercut evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	// Defaults fills in (wrinkle ...) keys that the script omits.
	Defaults graph.WrinkleData

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{Defaults: DefaultWrinkle}
}

// Evaluate takes Lisp source code and produces a new DesignGraph.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns graph + nil errors + nil error
//   - On parse/eval/validation failure: returns nil graph + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*graph.DesignGraph, []EvalError, error) {
	res, err := e.EvaluateResult(source)
	if err != nil {
		return nil, nil, err
	}
	return res.Graph, res.Errors, nil
}

// EvaluateResult is Evaluate plus the validation warnings.
func (e *Engine) EvaluateResult(source string) (EvalResult, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	defaults := e.Defaults
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		res, err := evaluate(source, defaults)
		ch <- evalResult{res: res, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox and
// validates the resulting graph.
func evaluate(source string, defaults graph.WrinkleData) (EvalResult, error) {
	// Empty source is a valid program that produces an empty graph.
	if strings.TrimSpace(source) == "" {
		return EvalResult{Graph: graph.New()}, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	g := graph.New()
	registerBuiltins(env, g, defaults)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return EvalResult{Errors: parseZygomysError(err)}, nil
	}
	if _, err := env.Run(); err != nil {
		return EvalResult{Errors: parseZygomysError(err)}, nil
	}

	return checkGraph(g), nil
}

// checkGraph runs graph validation. Any error discards the graph;
// warnings ride along with it.
func checkGraph(g *graph.DesignGraph) EvalResult {
	vr := graph.ValidateAll(g)

	var warnings []EvalWarning
	for _, w := range vr.Warnings {
		warnings = append(warnings, EvalWarning{
			Message: w.Message,
			NodeID:  w.NodeID,
		})
	}

	if len(vr.Errors) > 0 {
		errs := make([]EvalError, 0, len(vr.Errors))
		for _, ve := range vr.Errors {
			errs = append(errs, EvalError{Message: ve.Error()})
		}
		return EvalResult{Errors: errs, Warnings: warnings}
	}

	return EvalResult{Graph: g, Warnings: warnings}
}

// linePattern matches the "Error on line N:" marker in zygomys messages.
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*`)

// linePatternShort matches a leading "line N:" marker.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// The line marker is lifted into EvalError.Line; everything else in the
// message, including builtin error text on other lines, is kept.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if loc := re.FindStringSubmatchIndex(msg); loc != nil {
			line, _ := strconv.Atoi(msg[loc[2]:loc[3]])
			detail := strings.TrimSpace(msg[:loc[0]] + msg[loc[1]:])
			return []EvalError{{
				Line:    line,
				Message: detail,
			}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
