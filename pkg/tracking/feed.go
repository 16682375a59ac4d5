// Package tracking drives a simulated vehicle and uploads its positions,
// buffering samples the server could not accept.
package tracking

import (
	"context"
	"time"

	"securestop-backend/internal/models"
)

const (
	DefaultFeedInterval = 1500 * time.Millisecond

	headingForward  = 90.0
	headingBackward = 270.0
)

// Feed walks a route back and forth, one stop per tick
type Feed struct {
	route    []models.LatLng
	interval time.Duration
	now      func() time.Time

	index   int
	forward bool
}

func NewFeed(route []models.LatLng, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = DefaultFeedInterval
	}
	return &Feed{
		route:    route,
		interval: interval,
		now:      time.Now,
		forward:  true,
	}
}

// RouteFromStops extracts the stop coordinates in order
func RouteFromStops(stops []models.Stop) []models.LatLng {
	route := make([]models.LatLng, 0, len(stops))
	for _, s := range stops {
		route = append(route, s.Location)
	}
	return route
}

// Next returns the current sample and advances, reversing at either end.
// ok is false when the route is empty.
func (f *Feed) Next() (models.VehicleLocation, bool) {
	if len(f.route) == 0 {
		return models.VehicleLocation{}, false
	}

	heading := headingForward
	if !f.forward {
		heading = headingBackward
	}
	p := f.route[f.index]
	loc := models.VehicleLocation{
		Lat:       p.Lat,
		Lng:       p.Lng,
		Heading:   &heading,
		UpdatedAt: f.now().UnixMilli(),
	}

	if len(f.route) == 1 {
		return loc, true
	}
	if f.forward {
		f.index++
		if f.index >= len(f.route)-1 {
			f.forward = false
		}
	} else {
		f.index--
		if f.index <= 0 {
			f.forward = true
		}
	}
	return loc, true
}

// Run emits a sample every interval until ctx is done
func (f *Feed) Run(ctx context.Context, onUpdate func(models.VehicleLocation)) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if loc, ok := f.Next(); ok {
				onUpdate(loc)
			}
		}
	}
}
