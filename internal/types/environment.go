package types

import (
	"sort"
	"strings"
)

// Environment is a snapshot of process variables. It is passed by value
// through the pipeline and rendered in key order.
type Environment map[string]string

func EnvironmentFromPairs(pairs []string) Environment {
	env := Environment{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			continue
		}
		env[name] = value
	}
	return env
}

func (e Environment) Lookup(name string) (string, bool) {
	value, ok := e[name]
	return value, ok
}

func (e Environment) Clone() Environment {
	out := make(Environment, len(e))
	for key, value := range e {
		out[key] = value
	}
	return out
}

func (e Environment) Keys() []string {
	keys := make([]string, 0, len(e))
	for key := range e {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Pairs renders NAME=value entries sorted by name, the form os/exec
// expects.
func (e Environment) Pairs() []string {
	keys := e.Keys()
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+e[key])
	}
	return pairs
}

type EnvModification struct {
	Name     string
	Value    string
	Behavior EnvBehavior
	Scope    EnvScope
	// Delimiter joins prepended values; defaults to the path list
	// separator.
	Delimiter string
}

type LayerContribution struct {
	Layer         LayerName
	Role          LayerRole
	Path          string
	Modifications []EnvModification
}
