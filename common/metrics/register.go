// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set is a named collection of metrics backed by its own prometheus registry.
type Set struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	counters map[string]*counter
	gauges   map[string]*gauge
}

func NewSet() *Set {
	return &Set{
		registry: prometheus.NewRegistry(),
		counters: map[string]*counter{},
		gauges:   map[string]*gauge{},
	}
}

var defaultSet = NewSet()

// DefaultSet is the process-wide set the package level constructors use.
func DefaultSet() *Set { return defaultSet }

func (s *Set) GetOrCreateCounter(name string, help ...string) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[name]; ok {
		return c, nil
	}
	c := &counter{prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: helpOf(name, help)})}
	if err := s.registry.Register(c.Counter); err != nil {
		return nil, fmt.Errorf("register counter %s: %w", name, err)
	}
	s.counters[name] = c
	return c, nil
}

func (s *Set) GetOrCreateGauge(name string, help ...string) (Gauge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.gauges[name]; ok {
		return g, nil
	}
	g := &gauge{prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: helpOf(name, help)})}
	if err := s.registry.Register(g.Gauge); err != nil {
		return nil, fmt.Errorf("register gauge %s: %w", name, err)
	}
	s.gauges[name] = g
	return g, nil
}

// Handler serves the set in the prometheus text format.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *Set) Gatherer() prometheus.Gatherer { return s.registry }

func helpOf(name string, help []string) string {
	if len(help) > 0 {
		return help[0]
	}
	return name
}

func GetOrCreateCounter(name string, help ...string) Counter {
	c, err := defaultSet.GetOrCreateCounter(name, help...)
	if err != nil {
		panic(fmt.Errorf("could not get or create new counter: %w", err))
	}

	return c
}

func GetOrCreateGauge(name string, help ...string) Gauge {
	g, err := defaultSet.GetOrCreateGauge(name, help...)
	if err != nil {
		panic(fmt.Errorf("could not get or create new gauge: %w", err))
	}

	return g
}
