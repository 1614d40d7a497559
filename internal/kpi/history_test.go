package kpi

import (
	"testing"
	"time"

	"github.com/ethanolivertroy/kpi-checker/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dated(t *testing.T, name string, conform int, d time.Time) *KPI {
	t.Helper()
	return New(name, "computers", statusRecords(conform, 100), statusFilter(t), WithDate(d))
}

var (
	q1 = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	q2 = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	q3 = time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)
)

func TestHistoryIncreasing(t *testing.T) {
	h, err := NewHistory("patched hosts", dated(t, "patched hosts", 80, q1), dated(t, "patched hosts", 90, q2))
	require.NoError(t, err)
	require.NoError(t, h.Build())

	comps := h.Comparators()
	require.Len(t, comps, 1)
	assert.Equal(t, Increasing, comps[0].Tendency)
	assert.Equal(t, 80.0, comps[0].From)
	assert.Equal(t, 90.0, comps[0].To)
	assert.Equal(t, "+", comps[0].Tendency.Symbol())
}

func TestHistorySortsByDate(t *testing.T) {
	h, err := NewHistory("patched hosts")
	require.NoError(t, err)

	require.NoError(t, h.Add(dated(t, "patched hosts", 70, q3)))
	require.NoError(t, h.Add(dated(t, "patched hosts", 90, q1)))
	require.NoError(t, h.Add(dated(t, "patched hosts", 90, q2)))
	require.NoError(t, h.Build())

	sorted := h.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, q1, sorted[0].Date())
	assert.Equal(t, q3, sorted[2].Date())
	assert.Equal(t, q3, h.KPIs()[0].Date())

	comps := h.Comparators()
	require.Len(t, comps, 2)
	assert.Equal(t, Unchanged, comps[0].Tendency)
	assert.Equal(t, Decreasing, comps[1].Tendency)
	assert.Equal(t, "=", comps[0].Tendency.Symbol())
	assert.Equal(t, "-", comps[1].Tendency.Symbol())
}

func TestHistoryBuildIsIdempotent(t *testing.T) {
	h, err := NewHistory("patched hosts", dated(t, "patched hosts", 80, q1), dated(t, "patched hosts", 90, q2))
	require.NoError(t, err)

	require.NoError(t, h.Build())
	require.NoError(t, h.Build())
	assert.Len(t, h.Comparators(), 1)

	require.NoError(t, h.Add(dated(t, "patched hosts", 85, q3)))
	require.NoError(t, h.Build())
	assert.Len(t, h.Comparators(), 2)
}

func TestHistorySingleOrEmpty(t *testing.T) {
	h, err := NewHistory("patched hosts")
	require.NoError(t, err)
	require.NoError(t, h.Build())
	assert.Empty(t, h.Comparators())

	require.NoError(t, h.Add(dated(t, "patched hosts", 80, q1)))
	require.NoError(t, h.Build())
	assert.Empty(t, h.Comparators())
}

func TestHistoryNameMismatch(t *testing.T) {
	h, err := NewHistory("patched hosts")
	require.NoError(t, err)

	err = h.Add(dated(t, "enabled hosts", 80, q1))
	assert.ErrorIs(t, err, ErrNameMismatch)
	assert.Empty(t, h.KPIs())

	_, err = NewHistory("patched hosts", dated(t, "enabled hosts", 80, q1))
	assert.ErrorIs(t, err, ErrNameMismatch)
}

func TestCompareErrors(t *testing.T) {
	a := dated(t, "patched hosts", 80, q1)
	b := New("patched hosts", "users", statusRecords(1, 2), statusFilter(t), WithDate(q2))

	_, err := Compare(a, b)
	assert.ErrorIs(t, err, dataset.ErrPerimeterMismatch)

	empty := New("patched hosts", "computers", dataset.Records{}, statusFilter(t), WithDate(q2))
	h, err := NewHistory("patched hosts", a, empty)
	require.NoError(t, err)
	assert.ErrorIs(t, h.Build(), ErrEmptyScope)
}
