package engine

import (
	"fmt"

	"github.com/loomworks/loom/internal/ir"
	"github.com/loomworks/loom/internal/pattern"
	"github.com/loomworks/loom/internal/pipeline"
)

// ThenClause is one concrete action template fired per surviving frame.
// Args terms reference symbols bound upstream; an unbound reference at
// dispatch time is a rule defect, never a silent default.
type ThenClause struct {
	Action ir.ActionRef
	Args   map[string]pattern.Term
}

// Sync is a named declarative rule: a conjunction of action patterns to
// observe (when), a frame transform pipeline (where), and the actions to
// fire per surviving frame (then).
type Sync struct {
	Name  string
	When  []pattern.Pattern
	Where []pipeline.Stage
	Then  []ThenClause
}

// Validate checks structural requirements: a name, at least one when
// pattern, at least one then clause, and no symbol referenced by a then
// argument without appearing in some when pattern, where stages aside.
// Where-introduced symbols cannot be checked statically (filter, map and
// query bind dynamically); those fault at dispatch time instead.
func (s Sync) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("sync has no name")
	}
	if len(s.When) == 0 {
		return fmt.Errorf("sync %s: empty when-list", s.Name)
	}
	if len(s.Then) == 0 {
		return fmt.Errorf("sync %s: empty then-list", s.Name)
	}
	for i, p := range s.When {
		if p.Action == "" {
			return fmt.Errorf("sync %s: when[%d] has no action", s.Name, i)
		}
	}
	for i, t := range s.Then {
		if t.Action == "" {
			return fmt.Errorf("sync %s: then[%d] has no action", s.Name, i)
		}
	}
	return nil
}
