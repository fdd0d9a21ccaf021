package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	return NewCatalog("test", map[string]float64{
		PlanFree:   0,
		PlanBronze: 39,
		PlanPrata:  69,
		PlanOuro:   119,
	})
}

func TestCatalogLookup(t *testing.T) {
	c := testCatalog()

	price, err := c.PriceOf(" OURO ")
	require.NoError(t, err)
	require.Equal(t, 119.0, price)

	name, err := c.DisplayName(PlanFree)
	require.NoError(t, err)
	require.Equal(t, "Gratuito", name)

	require.Equal(t, "test", c.Version())
}

func TestCatalogUnknownPlanIsAnError(t *testing.T) {
	c := testCatalog()

	price, err := c.PriceOf("diamante")
	require.ErrorIs(t, err, ErrInvalidPlan)
	require.Zero(t, price)

	_, err = c.DisplayName("")
	require.ErrorIs(t, err, ErrInvalidPlan)
	require.False(t, c.IsValid("diamante"))
}

func TestCatalogPlansOrderedByPrice(t *testing.T) {
	plans := testCatalog().Plans()
	require.Len(t, plans, 4)
	require.Equal(t, []string{PlanFree, PlanBronze, PlanPrata, PlanOuro},
		[]string{plans[0].ID, plans[1].ID, plans[2].ID, plans[3].ID})
}

func TestCatalogUnknownKeyGetsTitleCaseName(t *testing.T) {
	c := NewCatalog("v", map[string]float64{"diamante": 199})
	name, err := c.DisplayName("diamante")
	require.NoError(t, err)
	require.Equal(t, "Diamante", name)
}
