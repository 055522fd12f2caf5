package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	// At the equator one degree of latitude is ~111195 m on a
	// 6371 km sphere, so these offsets land at ~79 m and ~81 m.
	const lat79 = 0.00071046
	const lat81 = 0.00072845

	d79 := Haversine(0, 0, lat79, 0)
	assert.InDelta(t, 79, d79, 0.1)

	d81 := Haversine(0, 0, lat81, 0)
	assert.InDelta(t, 81, d81, 0.1)

	assert.Zero(t, Haversine(22.7766, 86.1445, 22.7766, 86.1445))
}

func TestHaversineLongitudeScalesWithLatitude(t *testing.T) {
	// A longitude offset shrinks with cos(latitude).
	dEquator := Haversine(0, 0, 0, 0.001)
	dNorth := Haversine(60, 0, 60, 0.001)
	assert.Greater(t, dEquator, dNorth)
	assert.InDelta(t, dEquator/2, dNorth, dEquator*0.01)
}
