package aggregate

import (
	"math"
	"sort"
)

// assumedEventHours spreads untimed contacts over a full Field Day when no
// contact carried a usable timestamp.
const assumedEventHours = 24

// BandRate is the average QSOs per active hour on one band.
type BandRate struct {
	Band string  `json:"band"`
	Rate float64 `json:"rate"`
}

// HourCount is one hourly bucket.
type HourCount struct {
	Hour string `json:"hour"`
	QSOs int    `json:"qsos"`
}

// RateStats is the rate section of a snapshot.
//
// Rate20Min and Rate60Min are a heuristic derived from contact counts, not
// arrival times: enough timed contacts pin the value at 60/hr, otherwise the
// average per active hour is shown.
type RateStats struct {
	BandRates    []BandRate  `json:"bandRates"`
	HourlyTotals []HourCount `json:"hourlyTotals"`
	BestHour     *HourCount  `json:"bestHour"`
	Rate20Min    int         `json:"rate20min"`
	Rate60Min    int         `json:"rate60min"`
	TotalHours   int         `json:"totalHours"`
}

func (a *Aggregator) ratesLocked() RateStats {
	st := &a.st
	out := RateStats{
		BandRates:    []BandRate{},
		HourlyTotals: make([]HourCount, 0, len(st.hourly)),
		TotalHours:   len(st.hourly),
	}

	for band, byHour := range st.bandHourly {
		if len(byHour) == 0 {
			continue
		}
		sum := 0
		for _, n := range byHour {
			sum += n
		}
		out.BandRates = append(out.BandRates, BandRate{Band: band, Rate: round1(float64(sum) / float64(len(byHour)))})
	}
	if len(out.BandRates) == 0 {
		for band, n := range st.contactsByBand {
			out.BandRates = append(out.BandRates, BandRate{Band: band, Rate: round1(float64(n) / assumedEventHours)})
		}
	}
	sort.Slice(out.BandRates, func(i, j int) bool {
		if out.BandRates[i].Rate != out.BandRates[j].Rate {
			return out.BandRates[i].Rate > out.BandRates[j].Rate
		}
		return out.BandRates[i].Band < out.BandRates[j].Band
	})

	for hour, n := range st.hourly {
		out.HourlyTotals = append(out.HourlyTotals, HourCount{Hour: hour, QSOs: n})
	}
	sort.Slice(out.HourlyTotals, func(i, j int) bool {
		return out.HourlyTotals[i].Hour < out.HourlyTotals[j].Hour
	})
	// Ascending order means the first maximum is the earliest hour.
	for i := range out.HourlyTotals {
		if out.BestHour == nil || out.HourlyTotals[i].QSOs > out.BestHour.QSOs {
			best := out.HourlyTotals[i]
			out.BestHour = &best
		}
	}

	timed := len(st.instants)
	if timed > 0 {
		hours := len(st.hourly)
		if hours < 1 {
			hours = 1
		}
		avg := int(math.RoundToEven(float64(timed) / float64(hours)))
		out.Rate20Min = avg
		if timed >= 20 {
			out.Rate20Min = 60
		}
		out.Rate60Min = avg
		if timed >= 60 {
			out.Rate60Min = 60
		}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
