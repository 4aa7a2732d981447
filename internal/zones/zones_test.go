package zones

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testTable = Table{
	{RouteID: "77", Boxes: []BBox{{MinLng: 144.98, MinLat: -37.88, MaxLng: 145.01, MaxLat: -37.85}}},
	{RouteID: "58", Boxes: []BBox{
		{MinLng: 144.93, MinLat: -37.79, MaxLng: 144.97, MaxLat: -37.74},
		// overlaps zone 77's box on purpose; 77 must win there
		{MinLng: 144.98, MinLat: -37.88, MaxLng: 145.01, MaxLat: -37.85},
	}},
}

func TestCorrectOverridesInsideZone(t *testing.T) {
	got := testTable.Correct(144.99, -37.86, "3", "v-1")
	assert.Equal(t, "77", got)
}

func TestCorrectKeepsMatchingRouteID(t *testing.T) {
	got := testTable.Correct(144.99, -37.86, "77", "v-1")
	assert.Equal(t, "77", got)
}

func TestCorrectOutsideAllZones(t *testing.T) {
	got := testTable.Correct(150.0, -30.0, "3", "v-1")
	assert.Equal(t, "3", got)
}

func TestCorrectEmptyRouteIDPassesThrough(t *testing.T) {
	got := testTable.Correct(144.99, -37.86, "", "v-1")
	assert.Equal(t, "", got)
}

func TestCorrectBoundaryIsInclusive(t *testing.T) {
	// exactly on each edge of zone 77's box
	assert.Equal(t, "77", testTable.Correct(144.98, -37.86, "3", "v-1"))
	assert.Equal(t, "77", testTable.Correct(145.01, -37.86, "3", "v-1"))
	assert.Equal(t, "77", testTable.Correct(144.99, -37.88, "3", "v-1"))
	assert.Equal(t, "77", testTable.Correct(144.99, -37.85, "3", "v-1"))
	// corner
	assert.Equal(t, "77", testTable.Correct(144.98, -37.88, "3", "v-1"))
}

func TestCorrectFirstMatchWins(t *testing.T) {
	// Point inside the box shared by zones 77 and 58; declaration order
	// makes 77 authoritative.
	got := testTable.Correct(145.0, -37.87, "12", "v-2")
	assert.Equal(t, "77", got)
}

func TestCorrectSecondBoxOfZone(t *testing.T) {
	got := testTable.Correct(144.95, -37.76, "96", "v-3")
	assert.Equal(t, "58", got)
}

func TestDefaultTableOrder(t *testing.T) {
	// Declaration order is priority order and must stay stable.
	assert.Equal(t, "77", Default[0].RouteID)
	for _, z := range Default {
		assert.NotEmpty(t, z.RouteID)
		assert.NotEmpty(t, z.Boxes)
		for _, b := range z.Boxes {
			assert.Less(t, b.MinLng, b.MaxLng)
			assert.Less(t, b.MinLat, b.MaxLat)
		}
	}
}
