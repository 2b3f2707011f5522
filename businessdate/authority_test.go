package businessdate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayware/pms-engine/businessdate"
	"github.com/stayware/pms-engine/engine"
	"github.com/stayware/pms-engine/engine/store"
)

func TestAuthority_Get_LazilyInitializesToToday(t *testing.T) {
	// GIVEN: A store with no business date row
	// WHEN: Reading the business date
	// THEN: It initializes to the real-world date, and stays stable

	auth := businessdate.NewAuthority(store.NewMemory(), nil)
	ctx := context.Background()

	d, err := auth.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.Today(), d)

	// A second read returns the persisted value, not a fresh computation.
	again, err := auth.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, d, again)
}

func TestAuthority_Set_AcceptsPastDates(t *testing.T) {
	// The override is intentional: rewinding for reprocessing is allowed.
	auth := businessdate.NewAuthority(store.NewMemory(), nil)
	ctx := context.Background()

	past := engine.NewDate(2020, time.January, 15)
	set, err := auth.Set(ctx, past)
	require.NoError(t, err)
	assert.Equal(t, past, set)

	got, err := auth.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, past, got)
}

func TestAuthority_Advance_MovesExactlyOneDay(t *testing.T) {
	auth := businessdate.NewAuthority(store.NewMemory(), nil)
	ctx := context.Background()

	start := engine.NewDate(2024, time.June, 1)
	_, err := auth.Set(ctx, start)
	require.NoError(t, err)

	next, err := auth.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02", next.String())

	// Advancing across a month boundary works the same way.
	_, err = auth.Set(ctx, engine.NewDate(2024, time.June, 30))
	require.NoError(t, err)
	next, err = auth.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01", next.String())
}
