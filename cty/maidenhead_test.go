package cty

import (
	"math"
	"testing"
)

func TestGridFromLatLon(t *testing.T) {
	tests := []struct {
		name      string
		lat       float64
		lon       float64
		precision int
		want      string
		wantOK    bool
	}{
		{name: "origin", lat: 0, lon: 0, precision: 4, want: "JJ00", wantOK: true},
		{name: "newington", lat: 41.714775, lon: -72.727260, precision: 6, want: "FN31pr", wantOK: true},
		{name: "newington_square", lat: 41.714775, lon: -72.727260, precision: 4, want: "FN31", wantOK: true},
		{name: "north_pole_clamp", lat: 90, lon: 180, precision: 4, want: "RR99", wantOK: true},
		{name: "invalid_nan", lat: math.NaN(), lon: 0, precision: 4, wantOK: false},
		{name: "invalid_out_of_range", lat: 95, lon: 0, precision: 4, wantOK: false},
		{name: "invalid_precision", lat: 0, lon: 0, precision: 8, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GridFromLatLon(tt.lat, tt.lon, tt.precision)
			if ok != tt.wantOK {
				t.Fatalf("ok=%v want %v (grid=%q)", ok, tt.wantOK, got)
			}
			if ok && got != tt.want {
				t.Fatalf("grid=%q want %q", got, tt.want)
			}
		})
	}
}
