// Package command maps a tokenized request onto the key space. Handlers are
// plain functions: they never block and never see the network.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loganszeto/respkv/internal/protocol"
	"github.com/loganszeto/respkv/internal/stats"
	"github.com/loganszeto/respkv/internal/store"
)

var (
	ErrSyntax                = errors.New("syntax error")
	ErrNotAvailable          = errors.New("command not available")
	ErrInternal              = errors.New("internal error")
	ErrStorageNotInitialised = errors.New("storage has not been initialised")
)

// Env is what a handler may touch. A nil Store means the server was started
// without storage; commands that need it fail with ErrStorageNotInitialised.
type Env struct {
	Store *store.Engine
	Stats *stats.Stats
}

// Handler receives the full token list; args[0] is the command name.
type Handler func(env *Env, args []string) (protocol.Value, error)

type Registry struct {
	commands map[string]Handler
}

func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]Handler),
	}
	r.registerConnectionCommands()
	r.registerStringCommands()
	r.registerKeyCommands()
	return r
}

// Register binds name, matched case-insensitively, to h.
func (r *Registry) Register(name string, h Handler) {
	r.commands[strings.ToLower(name)] = h
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.commands[strings.ToLower(name)]
	return h, ok
}

func (r *Registry) Execute(env *Env, args []string) (protocol.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrSyntax)
	}
	h, ok := r.Lookup(args[0])
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrNotAvailable, args[0])
	}
	return h(env, args)
}

func syntaxError(args []string) error {
	return fmt.Errorf("%w while processing '%s'", ErrSyntax, strings.Join(args, " "))
}

func internalError(args []string, err error) error {
	return fmt.Errorf("%w while processing '%s': %v", ErrInternal, strings.Join(args, " "), err)
}

func storageOf(env *Env) (*store.Engine, error) {
	if env == nil || env.Store == nil {
		return nil, ErrStorageNotInitialised
	}
	return env.Store, nil
}
