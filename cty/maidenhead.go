package cty

import "math"

// GridFromLatLon returns the Maidenhead locator for a lat/lon pair with 4 or 6
// characters of precision ("FN31" or "FN31pr"). It returns false when the
// coordinates are out of range or non-finite, or precision is not 4 or 6.
func GridFromLatLon(lat, lon float64, precision int) (string, bool) {
	if precision != 4 && precision != 6 {
		return "", false
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return "", false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", false
	}
	// The north pole and antimeridian belong to the last field.
	lat = math.Min(lat+90, 179.999999)
	lon = math.Min(lon+180, 359.999999)

	fieldLon, fieldLat := int(lon/20), int(lat/10)
	lon -= float64(fieldLon) * 20
	lat -= float64(fieldLat) * 10
	squareLon, squareLat := int(lon/2), int(lat)
	grid := []byte{
		byte('A' + fieldLon),
		byte('A' + fieldLat),
		byte('0' + squareLon),
		byte('0' + squareLat),
	}
	if precision == 6 {
		lon -= float64(squareLon) * 2
		lat -= float64(squareLat)
		grid = append(grid, byte('a'+int(lon*12)), byte('a'+int(lat*24)))
	}
	return string(grid), true
}
