package models

// TripStatus of a vehicle's current trip
type TripStatus string

const (
	TripInDepot   TripStatus = "In Depot"
	TripDeparted  TripStatus = "Departed"
	TripOnRoute   TripStatus = "On Route"
	TripArriving  TripStatus = "Arriving"
	TripPaused    TripStatus = "Paused"
	TripCompleted TripStatus = "Completed"
)

func (s TripStatus) Valid() bool {
	switch s {
	case TripInDepot, TripDeparted, TripOnRoute, TripArriving, TripPaused, TripCompleted:
		return true
	}
	return false
}

type LatLng struct {
	Lat float64 `json:"lat" bson:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" bson:"lng" validate:"gte=-180,lte=180"`
}

type Stop struct {
	ID       string `json:"id" bson:"id" validate:"required"`
	Name     string `json:"name" bson:"name" validate:"required"`
	Location LatLng `json:"location" bson:"location"`
}

// VehicleLocation is a single position sample reported by a vehicle
type VehicleLocation struct {
	Lat       float64  `json:"lat" bson:"lat" validate:"gte=-90,lte=90"`
	Lng       float64  `json:"lng" bson:"lng" validate:"gte=-180,lte=180"`
	Heading   *float64 `json:"heading,omitempty" bson:"heading,omitempty"`
	SpeedKph  *float64 `json:"speedKph,omitempty" bson:"speed_kph,omitempty"`
	UpdatedAt int64    `json:"updatedAt" bson:"updated_at"`
}

func (l VehicleLocation) LatLng() LatLng {
	return LatLng{Lat: l.Lat, Lng: l.Lng}
}

// ScanCategory of a rider id scan
type ScanCategory string

const (
	ScanPublicTransit ScanCategory = "public-transit-passengers"
	ScanSchoolStudent ScanCategory = "school-student-ids"
	ScanPrivateMisc   ScanCategory = "private-misc"
)

func (c ScanCategory) Valid() bool {
	switch c {
	case ScanPublicTransit, ScanSchoolStudent, ScanPrivateMisc:
		return true
	}
	return false
}

type ScanEvent struct {
	ID         string       `json:"id" bson:"id"`
	ScannedAt  int64        `json:"scannedAt" bson:"scanned_at"`
	ScannedID  string       `json:"scannedId" bson:"scanned_id"`
	Category   ScanCategory `json:"category" bson:"category"`
	DriverName string       `json:"driverName,omitempty" bson:"driver_name,omitempty"`
	StopIndex  *int         `json:"stopIndex,omitempty" bson:"stop_index,omitempty"`
	Note       string       `json:"note,omitempty" bson:"note,omitempty"`
}

type Trip struct {
	VehicleID        string           `json:"vehicleId" bson:"vehicle_id"`
	RouteID          string           `json:"routeId" bson:"route_id"`
	DriverName       string           `json:"driverName,omitempty" bson:"driver_name,omitempty"`
	Status           TripStatus       `json:"status" bson:"status"`
	StartedAt        *int64           `json:"startedAt,omitempty" bson:"started_at,omitempty"`
	EndedAt          *int64           `json:"endedAt,omitempty" bson:"ended_at,omitempty"`
	CurrentStopIndex int              `json:"currentStopIndex" bson:"current_stop_index"`
	Stops            []Stop           `json:"stops" bson:"stops"`
	Location         *VehicleLocation `json:"location,omitempty" bson:"location,omitempty"`
	Scans            []ScanEvent      `json:"scans" bson:"scans"`
}

// Clone returns a deep copy of t
func (t *Trip) Clone() *Trip {
	if t == nil {
		return nil
	}
	c := *t
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.EndedAt != nil {
		v := *t.EndedAt
		c.EndedAt = &v
	}
	if t.Location != nil {
		v := *t.Location
		c.Location = &v
	}
	c.Stops = append([]Stop(nil), t.Stops...)
	c.Scans = append([]ScanEvent(nil), t.Scans...)
	return &c
}

// TripSnapshot is a trip together with derived next-stop information
type TripSnapshot struct {
	*Trip
	NextStop   *Stop `json:"nextStop,omitempty"`
	EtaMinutes *int  `json:"etaMinutes,omitempty"`
}
