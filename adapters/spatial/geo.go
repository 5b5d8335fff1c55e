package spatial

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point is a WGS84 coordinate
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Bounds is a lat/lon bounding box
type Bounds struct {
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
}

// Overpass renders the bounds in Overpass QL (south,west,north,east) order
func (b Bounds) Overpass() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.MinLat, b.MinLng, b.MaxLat, b.MaxLng)
}

// Haversine returns the great-circle distance in kilometres
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371 // Earth radius in km
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// nearest returns the distance in km from (lat, lng) to the closest reference point
func nearest(lat, lng float64, refs []Point) float64 {
	minDist := math.MaxFloat64
	for _, ref := range refs {
		if d := Haversine(lat, lng, ref.Lat, ref.Lng); d < minDist {
			minDist = d
		}
	}
	return minDist
}

// ParsePoints parses "lat:lng,lat:lng" lists used in configuration
func ParsePoints(s string) ([]Point, error) {
	var points []Point
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		latStr, lngStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("point %q must be lat:lng", part)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in %q: %w", part, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in %q: %w", part, err)
		}
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			return nil, fmt.Errorf("point %q out of range", part)
		}
		points = append(points, Point{Lat: lat, Lng: lng})
	}
	return points, nil
}

// ParseBounds parses "south,west,north,east"
func ParseBounds(s string) (Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}, fmt.Errorf("bounds %q must be south,west,north,east", s)
	}
	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("invalid bound %q: %w", part, err)
		}
		v[i] = f
	}
	b := Bounds{MinLat: v[0], MinLng: v[1], MaxLat: v[2], MaxLng: v[3]}
	if !(b.MinLat < b.MaxLat && b.MinLng < b.MaxLng) {
		return Bounds{}, fmt.Errorf("bounds %q are empty", s)
	}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLng < -180 || b.MaxLng > 180 {
		return Bounds{}, fmt.Errorf("bounds %q out of range", s)
	}
	return b, nil
}
