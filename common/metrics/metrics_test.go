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
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterAndGauge(t *testing.T) {
	t.Parallel()
	s := NewSet()
	c, err := s.GetOrCreateCounter("test_total")
	require.NoError(t, err)
	c.AddInt(3)
	c.AddUint64(2)
	c.Inc()
	require.Equal(t, uint64(6), c.GetValueUint64())

	again, err := s.GetOrCreateCounter("test_total")
	require.NoError(t, err)
	require.Equal(t, 6.0, again.GetValue())

	g, err := s.GetOrCreateGauge("test_gauge")
	require.NoError(t, err)
	g.SetInt(42)
	require.Equal(t, uint64(42), g.GetValueUint64())

	_, err = s.GetOrCreateGauge("test_total")
	require.Error(t, err)
}

func TestHandler(t *testing.T) {
	t.Parallel()
	s := NewSet()
	c, err := s.GetOrCreateCounter("served_total", "requests served")
	require.NoError(t, err)
	c.Inc()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "served_total 1")
	require.Contains(t, string(body), "# HELP served_total requests served")
}
