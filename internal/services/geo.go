package services

import "github.com/golang/geo/s2"

// MapCellLevel is the S2 level used to bucket pickups for map views
// (roughly 1km across).
const MapCellLevel = 13

func CellToken(lat, lng float64) string {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)).Parent(MapCellLevel).ToToken()
}

func validCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
