package geo

import (
	"testing"

	"securestop-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

var testStops = []models.Stop{
	{ID: "stop-1", Name: "8th Ave", Location: models.LatLng{Lat: 40.758, Lng: -73.9855}},
	{ID: "stop-2", Name: "Broadway", Location: models.LatLng{Lat: 40.7572, Lng: -73.98}},
	{ID: "stop-3", Name: "5th Ave", Location: models.LatLng{Lat: 40.7545, Lng: -73.977}},
	{ID: "stop-4", Name: "Terminal", Location: models.LatLng{Lat: 40.7503, Lng: -73.975}},
}

func TestDistanceMeters(t *testing.T) {
	a := models.LatLng{Lat: 40.758, Lng: -73.9855}

	assert.Equal(t, 0.0, DistanceMeters(a, a))

	// one thousandth of a degree of latitude is about 111 meters
	b := models.LatLng{Lat: 40.759, Lng: -73.9855}
	assert.InDelta(t, 111.2, DistanceMeters(a, b), 0.5)
	assert.InDelta(t, DistanceMeters(a, b), DistanceMeters(b, a), 1e-9)
}

func TestWithin(t *testing.T) {
	center := models.LatLng{Lat: 40.758, Lng: -73.9855}

	assert.True(t, Within(models.LatLng{Lat: 40.7585, Lng: -73.9855}, center, 90))
	assert.False(t, Within(models.LatLng{Lat: 40.7590, Lng: -73.9855}, center, 90))
}

func TestNearestStopIndex(t *testing.T) {
	assert.Equal(t, -1, NearestStopIndex(models.LatLng{}, nil))
	assert.Equal(t, 0, NearestStopIndex(models.LatLng{Lat: 40.7581, Lng: -73.9854}, testStops))
	assert.Equal(t, 2, NearestStopIndex(models.LatLng{Lat: 40.7546, Lng: -73.9772}, testStops))
	assert.Equal(t, 3, NearestStopIndex(models.LatLng{Lat: 40.70, Lng: -73.90}, testStops))
}

func TestEtaMinutes(t *testing.T) {
	p := models.LatLng{Lat: 40.758, Lng: -73.9855}

	t.Run("same point is at least one minute", func(t *testing.T) {
		assert.Equal(t, 1, EtaMinutes(p, p, nil))
	})

	t.Run("default speed", func(t *testing.T) {
		// 0.1 degree ~ 11.1 km at 25 kph ~ 26.6 minutes
		stop := models.LatLng{Lat: 40.858, Lng: -73.9855}
		assert.Equal(t, 27, EtaMinutes(p, stop, nil))
	})

	t.Run("speed floor", func(t *testing.T) {
		stop := models.LatLng{Lat: 40.858, Lng: -73.9855}
		zero := 0.0
		five := 5.0
		assert.Equal(t, EtaMinutes(p, stop, &five), EtaMinutes(p, stop, &zero))
		assert.Equal(t, 133, EtaMinutes(p, stop, &five))
	})
}
