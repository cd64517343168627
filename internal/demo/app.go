package demo

import (
	"github.com/loomworks/loom/internal/concept"
	"github.com/loomworks/loom/internal/engine"
	"github.com/loomworks/loom/internal/frame"
	"github.com/loomworks/loom/internal/ir"
	"github.com/loomworks/loom/internal/pattern"
	"github.com/loomworks/loom/internal/pipeline"
	"github.com/loomworks/loom/internal/transport"
)

// App bundles the demo concepts, their registry, and the sync rules
// correlating them.
type App struct {
	Registry *concept.Registry
	Requests *transport.Requests
	Auth     *UserAuth
	Herds    *HerdGrouping
	Animals  *AnimalIdentity
}

// NewApp wires every demo concept into a fresh registry.
func NewApp() *App {
	return NewAppWith(transport.NewRequests())
}

// NewAppWith wires the demo concepts over a caller-supplied transport,
// letting tests inject deterministic request ids.
func NewAppWith(requests *transport.Requests) *App {
	app := &App{
		Registry: concept.NewRegistry(),
		Requests: requests,
		Auth:     NewUserAuth(),
		Herds:    NewHerdGrouping(),
		Animals:  NewAnimalIdentity(),
	}
	app.Requests.RegisterWith(app.Registry)
	app.Auth.RegisterWith(app.Registry)
	app.Herds.RegisterWith(app.Registry)
	app.Animals.RegisterWith(app.Registry)
	return app
}

// Engine builds an engine over the app's registry and rules.
func (a *App) Engine(gen engine.TokenGenerator, opts ...engine.Option) (*engine.Engine, error) {
	return engine.New(a.Registry, a.Syncs(), gen, opts...)
}

// Symbols used across the demo rules. Each rule's symbols are scoped to
// that rule; sharing the constants here just avoids typo drift.
const (
	symToken   = frame.Symbol("token")
	symName    = frame.Symbol("name")
	symRequest = frame.Symbol("request")
	symUser    = frame.Symbol("user")
	symAuthErr = frame.Symbol("authError")
	symHerd    = frame.Symbol("herd")
	symTag     = frame.Symbol("tag")
	symSpecies = frame.Symbol("species")
	symCount   = frame.Symbol("count")
	symError   = frame.Symbol("errorMessage")
)

// Syncs returns the demo rule set in declaration order.
func (a *App) Syncs() []engine.Sync {
	authQuery := concept.QueryAdapter(a.Registry, "UserAuth._byToken")

	createHerdRequest := pattern.Pattern{
		Action: transport.RequestAction,
		Input: map[string]pattern.Term{
			"path":  pattern.Lit(ir.String("/HerdGrouping/createHerd")),
			"token": pattern.Sym(symToken),
			"name":  pattern.Sym(symName),
		},
		Output: map[string]pattern.Term{
			transport.RequestField: pattern.Sym(symRequest),
		},
	}

	tagAnimalRequest := pattern.Pattern{
		Action: transport.RequestAction,
		Input: map[string]pattern.Term{
			"path":    pattern.Lit(ir.String("/AnimalIdentity/tag")),
			"token":   pattern.Sym(symToken),
			"tag":     pattern.Sym(symTag),
			"species": pattern.Sym(symSpecies),
		},
		Output: map[string]pattern.Term{
			transport.RequestField: pattern.Sym(symRequest),
		},
	}

	addAnimalRequest := pattern.Pattern{
		Action: transport.RequestAction,
		Input: map[string]pattern.Term{
			"path":  pattern.Lit(ir.String("/HerdGrouping/addAnimal")),
			"token": pattern.Sym(symToken),
			"herd":  pattern.Sym(symHerd),
			"tag":   pattern.Sym(symTag),
		},
		Output: map[string]pattern.Term{
			transport.RequestField: pattern.Sym(symRequest),
		},
	}

	authenticated := []pipeline.Stage{
		pipeline.Query(authQuery,
			map[string]pattern.Term{"token": pattern.Sym(symToken)},
			map[string]frame.Symbol{"user": symUser, ir.ErrorField: symAuthErr},
		),
		pipeline.Filter(pipeline.BranchEmpty(symAuthErr)),
	}

	authFailed := []pipeline.Stage{
		pipeline.Query(authQuery,
			map[string]pattern.Term{"token": pattern.Sym(symToken)},
			map[string]frame.Symbol{"user": symUser, ir.ErrorField: symAuthErr},
		),
		pipeline.Filter(pipeline.BranchTaken(symAuthErr)),
	}

	respond := func(extra map[string]pattern.Term) engine.ThenClause {
		args := map[string]pattern.Term{
			transport.RequestField: pattern.Sym(symRequest),
		}
		for k, v := range extra {
			args[k] = v
		}
		return engine.ThenClause{Action: transport.RespondAction, Args: args}
	}

	return []engine.Sync{
		{
			Name:  "create-herd",
			When:  []pattern.Pattern{createHerdRequest},
			Where: authenticated,
			Then: []engine.ThenClause{{
				Action: "HerdGrouping.create",
				Args: map[string]pattern.Term{
					"user": pattern.Sym(symUser),
					"name": pattern.Sym(symName),
				},
			}},
		},
		{
			Name: "create-herd-respond",
			When: []pattern.Pattern{
				createHerdRequest,
				{
					Action: "HerdGrouping.create",
					Input:  map[string]pattern.Term{"name": pattern.Sym(symName)},
					Output: map[string]pattern.Term{"herdName": pattern.Sym(symHerd)},
				},
			},
			Then: []engine.ThenClause{respond(map[string]pattern.Term{
				"herdName": pattern.Sym(symHerd),
			})},
		},
		{
			Name: "create-herd-failed",
			When: []pattern.Pattern{
				createHerdRequest,
				{
					Action: "HerdGrouping.create",
					Input:  map[string]pattern.Term{"name": pattern.Sym(symName)},
					Output: map[string]pattern.Term{ir.ErrorField: pattern.Sym(symError)},
				},
			},
			Then: []engine.ThenClause{respond(map[string]pattern.Term{
				ir.ErrorField: pattern.Sym(symError),
			})},
		},
		{
			Name:  "create-herd-auth-failed",
			When:  []pattern.Pattern{createHerdRequest},
			Where: authFailed,
			Then: []engine.ThenClause{respond(map[string]pattern.Term{
				ir.ErrorField: pattern.Sym(symAuthErr),
			})},
		},
		{
			Name:  "tag-animal",
			When:  []pattern.Pattern{tagAnimalRequest},
			Where: authenticated,
			Then: []engine.ThenClause{{
				Action: "AnimalIdentity.tag",
				Args: map[string]pattern.Term{
					"tag":     pattern.Sym(symTag),
					"species": pattern.Sym(symSpecies),
				},
			}},
		},
		{
			Name: "tag-animal-respond",
			When: []pattern.Pattern{
				tagAnimalRequest,
				{
					Action: "AnimalIdentity.tag",
					Input:  map[string]pattern.Term{"tag": pattern.Sym(symTag)},
					Output: map[string]pattern.Term{"tag": pattern.Sym(symTag)},
				},
			},
			Then: []engine.ThenClause{respond(map[string]pattern.Term{
				"tag": pattern.Sym(symTag),
			})},
		},
		{
			Name: "tag-animal-failed",
			When: []pattern.Pattern{
				tagAnimalRequest,
				{
					Action: "AnimalIdentity.tag",
					Input:  map[string]pattern.Term{"tag": pattern.Sym(symTag)},
					Output: map[string]pattern.Term{ir.ErrorField: pattern.Sym(symError)},
				},
			},
			Then: []engine.ThenClause{respond(map[string]pattern.Term{
				ir.ErrorField: pattern.Sym(symError),
			})},
		},
		{
			Name:  "tag-animal-auth-failed",
			When:  []pattern.Pattern{tagAnimalRequest},
			Where: authFailed,
			Then: []engine.ThenClause{respond(map[string]pattern.Term{
				ir.ErrorField: pattern.Sym(symAuthErr),
			})},
		},
		{
			Name:  "add-animal",
			When:  []pattern.Pattern{addAnimalRequest},
			Where: authenticated,
			Then: []engine.ThenClause{{
				Action: "HerdGrouping.addAnimal",
				Args: map[string]pattern.Term{
					"herd": pattern.Sym(symHerd),
					"tag":  pattern.Sym(symTag),
				},
			}},
		},
		{
			Name: "add-animal-respond",
			When: []pattern.Pattern{
				addAnimalRequest,
				{
					Action: "HerdGrouping.addAnimal",
					Input:  map[string]pattern.Term{"herd": pattern.Sym(symHerd), "tag": pattern.Sym(symTag)},
					Output: map[string]pattern.Term{"count": pattern.Sym(symCount)},
				},
			},
			Then: []engine.ThenClause{respond(map[string]pattern.Term{
				"herd":  pattern.Sym(symHerd),
				"count": pattern.Sym(symCount),
			})},
		},
		{
			Name: "add-animal-failed",
			When: []pattern.Pattern{
				addAnimalRequest,
				{
					Action: "HerdGrouping.addAnimal",
					Input:  map[string]pattern.Term{"herd": pattern.Sym(symHerd), "tag": pattern.Sym(symTag)},
					Output: map[string]pattern.Term{ir.ErrorField: pattern.Sym(symError)},
				},
			},
			Then: []engine.ThenClause{respond(map[string]pattern.Term{
				ir.ErrorField: pattern.Sym(symError),
			})},
		},
		{
			Name:  "add-animal-auth-failed",
			When:  []pattern.Pattern{addAnimalRequest},
			Where: authFailed,
			Then: []engine.ThenClause{respond(map[string]pattern.Term{
				ir.ErrorField: pattern.Sym(symAuthErr),
			})},
		},
	}
}
