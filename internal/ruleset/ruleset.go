// Package ruleset compiles declarative sync rule files written in CUE
// into engine rules bound against a concept registry.
//
// Rule files declare syncs under a top-level "syncs" struct, in
// declaration order (which becomes evaluation order):
//
//	syncs: {
//		"create-herd": {
//			when: [{
//				action: "Requests.request"
//				input: {path: "/HerdGrouping/createHerd", token: "$token", name: "$name"}
//				output: {request: "$request"}
//			}]
//			where: [
//				{query: {adapter: "UserAuth._byToken", input: {token: "$token"}, output: {user: "$user", error: "$authError"}}},
//				{filter: {symbol: "$authError", isNone: true}},
//			]
//			then: [{action: "HerdGrouping.create", args: {user: "$user", name: "$name"}}]
//		}
//	}
//
// String values beginning with "$" are symbol references; "$$" escapes a
// literal leading dollar sign. Filter and map logic beyond the declarable
// forms (isNone, notNone, equals) stays in Go code.
package ruleset

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/loomworks/loom/internal/concept"
	"github.com/loomworks/loom/internal/engine"
	"github.com/loomworks/loom/internal/frame"
	"github.com/loomworks/loom/internal/ir"
	"github.com/loomworks/loom/internal/pattern"
	"github.com/loomworks/loom/internal/pipeline"
)

// CompileError reports a rule file defect with its position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileFile loads a CUE rule file and compiles its syncs against a
// registry. The registry supplies query adapters; pass nil to validate
// structure only (query stages then resolve to failing adapters).
func CompileFile(path string, reg *concept.Registry) ([]engine.Sync, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	return CompileString(string(src), reg)
}

// CompileString compiles CUE source text. See CompileFile.
func CompileString(src string, reg *concept.Registry) ([]engine.Sync, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	syncsVal := v.LookupPath(cue.ParsePath("syncs"))
	if !syncsVal.Exists() {
		return nil, &CompileError{Field: "syncs", Message: "top-level syncs struct is required", Pos: v.Pos()}
	}

	iter, err := syncsVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterate syncs: %w", err)
	}

	var syncs []engine.Sync
	for iter.Next() {
		name := strings.Trim(iter.Selector().String(), `"`)
		s, err := compileSync(name, iter.Value(), reg)
		if err != nil {
			return nil, err
		}
		syncs = append(syncs, s)
	}
	return syncs, nil
}

func compileSync(name string, v cue.Value, reg *concept.Registry) (engine.Sync, error) {
	s := engine.Sync{Name: name}

	whenVal := v.LookupPath(cue.ParsePath("when"))
	if !whenVal.Exists() {
		return s, &CompileError{Field: name + ".when", Message: "when list is required", Pos: v.Pos()}
	}
	when, err := compilePatterns(name, whenVal)
	if err != nil {
		return s, err
	}
	s.When = when

	whereVal := v.LookupPath(cue.ParsePath("where"))
	if whereVal.Exists() {
		where, err := compileStages(name, whereVal, reg)
		if err != nil {
			return s, err
		}
		s.Where = where
	}

	thenVal := v.LookupPath(cue.ParsePath("then"))
	if !thenVal.Exists() {
		return s, &CompileError{Field: name + ".then", Message: "then list is required", Pos: v.Pos()}
	}
	then, err := compileThen(name, thenVal)
	if err != nil {
		return s, err
	}
	s.Then = then

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func compilePatterns(sync string, v cue.Value) ([]pattern.Pattern, error) {
	list, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: sync + ".when", Message: "when must be a list", Pos: v.Pos()}
	}

	var patterns []pattern.Pattern
	for i := 0; list.Next(); i++ {
		pv := list.Value()
		field := fmt.Sprintf("%s.when[%d]", sync, i)

		actionVal := pv.LookupPath(cue.ParsePath("action"))
		if !actionVal.Exists() {
			return nil, &CompileError{Field: field, Message: "pattern requires an action", Pos: pv.Pos()}
		}
		action, err := actionVal.String()
		if err != nil {
			return nil, &CompileError{Field: field + ".action", Message: "action must be a string", Pos: actionVal.Pos()}
		}

		p := pattern.Pattern{Action: ir.ActionRef(action)}
		if p.Input, err = compileShape(field+".input", pv.LookupPath(cue.ParsePath("input"))); err != nil {
			return nil, err
		}
		if p.Output, err = compileShape(field+".output", pv.LookupPath(cue.ParsePath("output"))); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// compileShape parses an input/output shape struct into terms.
func compileShape(field string, v cue.Value) (map[string]pattern.Term, error) {
	if !v.Exists() {
		return nil, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "shape must be a struct", Pos: v.Pos()}
	}

	shape := make(map[string]pattern.Term)
	for iter.Next() {
		key := strings.Trim(iter.Selector().String(), `"`)
		term, err := compileTerm(fmt.Sprintf("%s.%s", field, key), iter.Value())
		if err != nil {
			return nil, err
		}
		shape[key] = term
	}
	return shape, nil
}

// compileTerm turns a CUE value into a pattern term: strings beginning
// with "$" are symbols, everything else is a literal.
func compileTerm(field string, v cue.Value) (pattern.Term, error) {
	if s, err := v.String(); err == nil {
		if strings.HasPrefix(s, "$$") {
			return pattern.Lit(ir.String(s[1:])), nil
		}
		if strings.HasPrefix(s, "$") {
			sym := s[1:]
			if sym == "" {
				return pattern.Term{}, &CompileError{Field: field, Message: "empty symbol name", Pos: v.Pos()}
			}
			return pattern.Sym(frame.Symbol(sym)), nil
		}
		return pattern.Lit(ir.String(s)), nil
	}
	if n, err := v.Int64(); err == nil {
		return pattern.Lit(ir.Int(n)), nil
	}
	if b, err := v.Bool(); err == nil {
		return pattern.Lit(ir.Bool(b)), nil
	}
	if v.Null() == nil {
		return pattern.Lit(ir.None{}), nil
	}
	return pattern.Term{}, &CompileError{Field: field, Message: "value must be a string, int, bool, or null", Pos: v.Pos()}
}

func compileStages(sync string, v cue.Value, reg *concept.Registry) ([]pipeline.Stage, error) {
	list, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: sync + ".where", Message: "where must be a list", Pos: v.Pos()}
	}

	var stages []pipeline.Stage
	for i := 0; list.Next(); i++ {
		sv := list.Value()
		field := fmt.Sprintf("%s.where[%d]", sync, i)

		if qv := sv.LookupPath(cue.ParsePath("query")); qv.Exists() {
			stage, err := compileQuery(field+".query", qv, reg)
			if err != nil {
				return nil, err
			}
			stages = append(stages, stage)
			continue
		}
		if fv := sv.LookupPath(cue.ParsePath("filter")); fv.Exists() {
			stage, err := compileFilter(field+".filter", fv)
			if err != nil {
				return nil, err
			}
			stages = append(stages, stage)
			continue
		}
		return nil, &CompileError{Field: field, Message: "stage must be a query or a filter", Pos: sv.Pos()}
	}
	return stages, nil
}

func compileQuery(field string, v cue.Value, reg *concept.Registry) (pipeline.Stage, error) {
	adapterVal := v.LookupPath(cue.ParsePath("adapter"))
	if !adapterVal.Exists() {
		return nil, &CompileError{Field: field, Message: "query requires an adapter action URI", Pos: v.Pos()}
	}
	uri, err := adapterVal.String()
	if err != nil {
		return nil, &CompileError{Field: field + ".adapter", Message: "adapter must be a string", Pos: adapterVal.Pos()}
	}

	input, err := compileShape(field+".input", v.LookupPath(cue.ParsePath("input")))
	if err != nil {
		return nil, err
	}

	outVal := v.LookupPath(cue.ParsePath("output"))
	if !outVal.Exists() {
		return nil, &CompileError{Field: field, Message: "query requires an output pattern", Pos: v.Pos()}
	}
	outIter, err := outVal.Fields()
	if err != nil {
		return nil, &CompileError{Field: field + ".output", Message: "output must be a struct", Pos: outVal.Pos()}
	}
	output := make(map[string]frame.Symbol)
	for outIter.Next() {
		key := strings.Trim(outIter.Selector().String(), `"`)
		s, err := outIter.Value().String()
		if err != nil || !strings.HasPrefix(s, "$") || len(s) < 2 {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s.output.%s", field, key),
				Message: "output fields must be symbol references ($name)",
				Pos:     outIter.Value().Pos(),
			}
		}
		output[key] = frame.Symbol(s[1:])
	}

	if reg == nil {
		// Structure-only validation: the stage would fault if evaluated.
		missing := uri
		return pipeline.Query(func(ctx context.Context, args ir.Object) ([]ir.Object, error) {
			return nil, fmt.Errorf("adapter %s compiled without a registry", missing)
		}, input, output), nil
	}
	return pipeline.Query(concept.QueryAdapter(reg, ir.ActionRef(uri)), input, output), nil
}

func compileFilter(field string, v cue.Value) (pipeline.Stage, error) {
	symVal := v.LookupPath(cue.ParsePath("symbol"))
	if !symVal.Exists() {
		return nil, &CompileError{Field: field, Message: "filter requires a symbol", Pos: v.Pos()}
	}
	s, err := symVal.String()
	if err != nil || !strings.HasPrefix(s, "$") || len(s) < 2 {
		return nil, &CompileError{Field: field + ".symbol", Message: "symbol must be a $name reference", Pos: symVal.Pos()}
	}
	sym := frame.Symbol(s[1:])

	if nv := v.LookupPath(cue.ParsePath("isNone")); nv.Exists() {
		isNone, err := nv.Bool()
		if err != nil {
			return nil, &CompileError{Field: field + ".isNone", Message: "isNone must be a bool", Pos: nv.Pos()}
		}
		if isNone {
			return pipeline.Filter(pipeline.BranchEmpty(sym)), nil
		}
		return pipeline.Filter(pipeline.BranchTaken(sym)), nil
	}
	if ev := v.LookupPath(cue.ParsePath("equals")); ev.Exists() {
		term, err := compileTerm(field+".equals", ev)
		if err != nil {
			return nil, err
		}
		if _, isSym := term.IsSymbol(); isSym {
			return nil, &CompileError{Field: field + ".equals", Message: "equals takes a literal, not a symbol", Pos: ev.Pos()}
		}
		return pipeline.Filter(pipeline.Equals(sym, term.Literal())), nil
	}
	return nil, &CompileError{Field: field, Message: "filter requires isNone or equals", Pos: v.Pos()}
}

func compileThen(sync string, v cue.Value) ([]engine.ThenClause, error) {
	list, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: sync + ".then", Message: "then must be a list", Pos: v.Pos()}
	}

	var clauses []engine.ThenClause
	for i := 0; list.Next(); i++ {
		tv := list.Value()
		field := fmt.Sprintf("%s.then[%d]", sync, i)

		actionVal := tv.LookupPath(cue.ParsePath("action"))
		if !actionVal.Exists() {
			return nil, &CompileError{Field: field, Message: "then clause requires an action", Pos: tv.Pos()}
		}
		action, err := actionVal.String()
		if err != nil {
			return nil, &CompileError{Field: field + ".action", Message: "action must be a string", Pos: actionVal.Pos()}
		}

		args, err := compileShape(field+".args", tv.LookupPath(cue.ParsePath("args")))
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, engine.ThenClause{Action: ir.ActionRef(action), Args: args})
	}
	return clauses, nil
}
