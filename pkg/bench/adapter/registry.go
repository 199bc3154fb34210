package adapter

import (
	"fmt"

	"github.com/forecastbench/forecastbench/pkg/bench/question"
)

// Registry dispatches a question's Source to its concrete Adapter,
// replacing the string-keyed branch a dynamically-typed
// implementation would use with a method-set lookup.
type Registry struct {
	byKind map[question.Source]Adapter
}

// NewDefaultRegistry wires one adapter per closed-class source named
// in the data model.
func NewDefaultRegistry() *Registry {
	r := &Registry{byKind: make(map[question.Source]Adapter)}
	for s := range question.MarketSources {
		r.Register(NewMarketAdapter(s))
	}
	r.Register(NewNumericAdapter(question.SourceDBNomics))
	r.Register(NewNumericAdapter(question.SourceFRED))
	r.Register(NewNumericAdapter(question.SourceYFinance))
	r.Register(NewEventCountAdapter(question.SourceACLED))
	r.Register(NewEncyclopedicAdapter(question.SourceWikipedia))
	return r
}

// Register binds a into the registry under a.Source().
func (r *Registry) Register(a Adapter) { r.byKind[a.Source()] = a }

// For returns the adapter bound to source, or an error if none is
// registered — an unregistered source at lookup time is a
// data-integrity defect, not an availability one.
func (r *Registry) For(source question.Source) (Adapter, error) {
	a, ok := r.byKind[source]
	if !ok {
		return nil, fmt.Errorf("adapter: no adapter registered for source %q", source)
	}
	return a, nil
}
