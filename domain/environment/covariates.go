package environment

import "sort"

// Covariate names understood by behavior equations
const (
	Depth                 = "depth"                    // metres below the surface
	Temperature           = "temperature"              // water temperature, °C
	TidalFlow             = "tidal_flow"               // signed, -1 ebb .. +1 flood
	PreyDensity           = "prey_density"             // normalised 0..1
	NoiseLevel            = "noise_level"              // dB re 1 µPa
	Visibility            = "visibility"               // km
	CurrentSpeed          = "current_speed"            // m/s
	Salinity              = "salinity"                 // PSU
	PodSize               = "pod_size"                 // animals
	DayOfYear             = "day_of_year"              // 1..366
	HourOfDay             = "hour_of_day"              // 0..23
	Daylight              = "daylight"                 // 0 night .. 1 noon
	DistanceToShore       = "distance_to_shore"        // km
	DistanceToFeedingZone = "distance_to_feeding_zone" // km
	SSTAnomaly            = "sst_anomaly_c"            // °C, no default
	Chlorophyll           = "chlorophyll"              // mg/m³, no default
)

// known maps every covariate to its default. A nil entry means the covariate has no
// default and must be supplied by the caller or an environmental model.
var known = map[string]*float64{
	Depth:                 ptr(50),
	Temperature:           ptr(11.5),
	TidalFlow:             ptr(0),
	PreyDensity:           ptr(0.6),
	NoiseLevel:            ptr(110),
	Visibility:            ptr(10),
	CurrentSpeed:          ptr(0.5),
	Salinity:              ptr(30),
	PodSize:               ptr(6),
	DayOfYear:             ptr(180),
	HourOfDay:             ptr(12),
	Daylight:              ptr(1),
	DistanceToShore:       ptr(5),
	DistanceToFeedingZone: ptr(10),
	SSTAnomaly:            nil,
	Chlorophyll:           nil,
}

func ptr(v float64) *float64 { return &v }

// IsKnown reports whether name is a recognised covariate
func IsKnown(name string) bool {
	_, ok := known[name]
	return ok
}

// Default returns the configured default for a covariate
func Default(name string) (float64, bool) {
	d, ok := known[name]
	if !ok || d == nil {
		return 0, false
	}
	return *d, true
}

// Known returns all covariate names, sorted
func Known() []string {
	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults returns a context holding every covariate that has a default
func Defaults() Context {
	ctx := make(Context, len(known))
	for name, d := range known {
		if d != nil {
			ctx[name] = *d
		}
	}
	return ctx
}
