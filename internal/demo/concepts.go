// Package demo wires a small herd-management application over the
// engine: user authentication, herd grouping, and animal identity
// concepts, plus the sync rules correlating them. The concepts keep
// their state in memory - they exist to exercise the engine end to end,
// not to model a real back office.
package demo

import (
	"context"
	"sync"

	"github.com/loomworks/loom/internal/concept"
	"github.com/loomworks/loom/internal/ir"
)

// UserAuth resolves API tokens to user names.
type UserAuth struct {
	mu     sync.Mutex
	tokens map[string]string // token -> user
}

// NewUserAuth creates the concept with no registered tokens.
func NewUserAuth() *UserAuth {
	return &UserAuth{tokens: make(map[string]string)}
}

// RegisterWith wires the concept's actions into a registry.
func (a *UserAuth) RegisterWith(reg *concept.Registry) {
	reg.MustRegister("UserAuth.register", a.Register)
	reg.MustRegister("UserAuth._byToken", a.ByToken)
}

// Register associates a token with a user.
func (a *UserAuth) Register(_ context.Context, args ir.Object) (ir.Object, error) {
	user, uok := args["user"].(ir.String)
	token, tok := args["token"].(ir.String)
	if !uok || !tok {
		return ir.Object{ir.ErrorField: ir.String("user and token are required")}, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens[string(token)] = string(user)

	return ir.Object{"user": user}, nil
}

// ByToken resolves a token. Both outcome branches are always present:
// success sets user and an error of None, failure sets an error message
// and a user of None. Omitting the inapplicable branch would leave
// downstream frames without the symbol entirely.
func (a *UserAuth) ByToken(_ context.Context, args ir.Object) (ir.Object, error) {
	token, ok := args["token"].(ir.String)
	if !ok {
		return ir.Object{
			"user":        ir.None{},
			ir.ErrorField: ir.String("token is required"),
		}, nil
	}

	a.mu.Lock()
	user, found := a.tokens[string(token)]
	a.mu.Unlock()

	if !found {
		return ir.Object{
			"user":        ir.None{},
			ir.ErrorField: ir.String("invalid token"),
		}, nil
	}
	return ir.Object{
		"user":        ir.String(user),
		ir.ErrorField: ir.None{},
	}, nil
}

// HerdGrouping manages named herds and their membership.
type HerdGrouping struct {
	mu    sync.Mutex
	herds map[string]*herd
}

type herd struct {
	owner   string
	animals []string
}

// NewHerdGrouping creates the concept with no herds.
func NewHerdGrouping() *HerdGrouping {
	return &HerdGrouping{herds: make(map[string]*herd)}
}

// RegisterWith wires the concept's actions into a registry.
func (h *HerdGrouping) RegisterWith(reg *concept.Registry) {
	reg.MustRegister("HerdGrouping.create", h.Create)
	reg.MustRegister("HerdGrouping.addAnimal", h.AddAnimal)
	reg.MustRegister("HerdGrouping._members", h.Members)
}

// Create makes a new herd owned by user. Creating an existing herd is a
// data-level failure, returned on the {error} channel.
func (h *HerdGrouping) Create(_ context.Context, args ir.Object) (ir.Object, error) {
	user, uok := args["user"].(ir.String)
	name, nok := args["name"].(ir.String)
	if !uok || !nok {
		return ir.Object{ir.ErrorField: ir.String("user and name are required")}, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.herds[string(name)]; exists {
		return ir.Object{ir.ErrorField: ir.String("herd already exists")}, nil
	}
	h.herds[string(name)] = &herd{owner: string(user)}

	return ir.Object{"herdName": name}, nil
}

// AddAnimal appends a tagged animal to an existing herd.
func (h *HerdGrouping) AddAnimal(_ context.Context, args ir.Object) (ir.Object, error) {
	name, nok := args["herd"].(ir.String)
	tag, tok := args["tag"].(ir.String)
	if !nok || !tok {
		return ir.Object{ir.ErrorField: ir.String("herd and tag are required")}, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	grp, exists := h.herds[string(name)]
	if !exists {
		return ir.Object{ir.ErrorField: ir.String("no such herd")}, nil
	}
	grp.animals = append(grp.animals, string(tag))

	return ir.Object{"herd": name, "count": ir.Int(int64(len(grp.animals)))}, nil
}

// Members lists a herd's animal tags.
func (h *HerdGrouping) Members(_ context.Context, args ir.Object) (ir.Object, error) {
	name, ok := args["herd"].(ir.String)
	if !ok {
		return ir.Object{ir.ErrorField: ir.String("herd is required")}, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	grp, exists := h.herds[string(name)]
	if !exists {
		return ir.Object{ir.ErrorField: ir.String("no such herd")}, nil
	}

	tags := make(ir.Array, len(grp.animals))
	for i, t := range grp.animals {
		tags[i] = ir.String(t)
	}
	return ir.Object{"members": tags}, nil
}

// AnimalIdentity records tagged animals.
type AnimalIdentity struct {
	mu      sync.Mutex
	animals map[string]string // tag -> species
}

// NewAnimalIdentity creates the concept with no registered animals.
func NewAnimalIdentity() *AnimalIdentity {
	return &AnimalIdentity{animals: make(map[string]string)}
}

// RegisterWith wires the concept's actions into a registry.
func (a *AnimalIdentity) RegisterWith(reg *concept.Registry) {
	reg.MustRegister("AnimalIdentity.tag", a.Tag)
}

// Tag registers an animal under a tag.
func (a *AnimalIdentity) Tag(_ context.Context, args ir.Object) (ir.Object, error) {
	tag, tok := args["tag"].(ir.String)
	species, sok := args["species"].(ir.String)
	if !tok || !sok {
		return ir.Object{ir.ErrorField: ir.String("tag and species are required")}, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.animals[string(tag)]; exists {
		return ir.Object{ir.ErrorField: ir.String("tag already assigned")}, nil
	}
	a.animals[string(tag)] = string(species)

	return ir.Object{"tag": tag}, nil
}
