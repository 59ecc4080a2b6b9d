// Package geo holds great-circle helpers shared by the ranker, the adapters and
// the fallback synthesizer.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by every distance computation.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Destination returns the point reached by travelling distanceKm from (lat, lon)
// along the given initial bearing (degrees clockwise from north).
func Destination(lat, lon, bearingDeg, distanceKm float64) (float64, float64) {
	delta := distanceKm / EarthRadiusKm
	theta := toRadians(bearingDeg)
	phi1 := toRadians(lat)
	lambda1 := toRadians(lon)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	lon2 := math.Mod(toDegrees(lambda2)+540, 360) - 180
	return toDegrees(phi2), lon2
}

// BoundingBox is an axis-aligned lat/lon rectangle.
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// BoundingBoxAround returns a box that contains every point within radiusKm of
// (lat, lon). The box is clamped at the poles and at the antimeridian rather than
// wrapping, so callers still need a distance check on the results.
func BoundingBoxAround(lat, lon, radiusKm float64) BoundingBox {
	dLat := toDegrees(radiusKm / EarthRadiusKm)
	cosLat := math.Cos(toRadians(lat))
	dLon := 180.0
	if cosLat > 1e-9 {
		dLon = math.Min(180, toDegrees(radiusKm/(EarthRadiusKm*cosLat)))
	}

	return BoundingBox{
		MinLat: math.Max(-90, lat-dLat),
		MaxLat: math.Min(90, lat+dLat),
		MinLon: math.Max(-180, lon-dLon),
		MaxLon: math.Min(180, lon+dLon),
	}
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if r == 0 {
		// avoid "-0" leaking into keys
		return 0
	}
	return r
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func toDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
