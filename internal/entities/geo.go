package entities

import "math"

const earthRadiusKM = 6371.0

// DistanceKM is the haversine great-circle distance to q.
func (p GeoPoint) DistanceKM(q GeoPoint) float64 {
	lat1 := p.Lat * math.Pi / 180.0
	lat2 := q.Lat * math.Pi / 180.0
	dlat := (q.Lat - p.Lat) * math.Pi / 180.0
	dlng := (q.Lng - p.Lng) * math.Pi / 180.0
	h := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}
