// Package models registers the example simulation models by name.
package models

import (
	"sort"
	"strings"

	"imprint/adapters/models/binomial"
	"imprint/adapters/models/ztest"
	"imprint/domain/core"
	"imprint/ports"
)

var registry = map[string]ports.ModelFactory{
	ztest.Name:    ztest.New,
	binomial.Name: binomial.New,
}

// Get returns the factory registered under name.
func Get(name string) (ports.ModelFactory, error) {
	factory, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, core.NewUnknownModelError(name)
	}
	return factory, nil
}

// Names lists the registered models in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
