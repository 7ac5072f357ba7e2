package lightfield

import (
	"fmt"
	"math"
)

// Arrival is one detected photon.
type Arrival struct {
	Channel   int
	TimeSlice int
}

// RawSensorResponse is the photon record of one exposure. Arrivals holds
// one entry per photon, ordered by channel; the multiplicity of a
// (channel, slice) pair is its photon count.
type RawSensorResponse struct {
	TimeSliceDuration float64
	NumberTimeSlices  int
	NumberChannels    int
	NumberPhotons     int
	Arrivals          []Arrival
}

// NewRawSensorResponseFromCounts builds a response from a dense count
// table indexed [channel][slice].
func NewRawSensorResponseFromCounts(timeSliceDuration float64, numberTimeSlices int, counts [][]int) (*RawSensorResponse, error) {
	r := &RawSensorResponse{
		TimeSliceDuration: timeSliceDuration,
		NumberTimeSlices:  numberTimeSlices,
		NumberChannels:    len(counts),
	}
	for ch, row := range counts {
		if len(row) != numberTimeSlices {
			return nil, fmt.Errorf("channel %d has %d slices, expected %d", ch, len(row), numberTimeSlices)
		}
		for slice, c := range row {
			if c < 0 {
				return nil, fmt.Errorf("negative count %d at channel %d slice %d", c, ch, slice)
			}
			for k := 0; k < c; k++ {
				r.Arrivals = append(r.Arrivals, Arrival{Channel: ch, TimeSlice: slice})
			}
		}
	}
	r.NumberPhotons = len(r.Arrivals)
	return r, nil
}

// Validate checks the header against the arrivals.
func (r *RawSensorResponse) Validate() error {
	if !(r.TimeSliceDuration > 0) || math.IsInf(r.TimeSliceDuration, 0) {
		return fmt.Errorf("time slice duration must be positive and finite, got %v", r.TimeSliceDuration)
	}
	if r.NumberTimeSlices < 1 {
		return fmt.Errorf("need at least one time slice, got %d", r.NumberTimeSlices)
	}
	if r.NumberChannels < 0 {
		return fmt.Errorf("negative channel count %d", r.NumberChannels)
	}
	if r.NumberPhotons != len(r.Arrivals) {
		return fmt.Errorf("header says %d photons, got %d arrivals", r.NumberPhotons, len(r.Arrivals))
	}
	for i, a := range r.Arrivals {
		if a.Channel < 0 || a.Channel >= r.NumberChannels {
			return fmt.Errorf("arrival %d on channel %d outside [0, %d)", i, a.Channel, r.NumberChannels)
		}
		if a.TimeSlice < 0 || a.TimeSlice >= r.NumberTimeSlices {
			return fmt.Errorf("arrival %d in slice %d outside [0, %d)", i, a.TimeSlice, r.NumberTimeSlices)
		}
	}
	return nil
}

// Channels returns the lixel id of every photon.
func (r *RawSensorResponse) Channels() []int {
	out := make([]int, len(r.Arrivals))
	for i, a := range r.Arrivals {
		out[i] = a.Channel
	}
	return out
}

// Counts returns the dense [channel][slice] count table. The response must
// pass Validate.
func (r *RawSensorResponse) Counts() [][]int {
	out := make([][]int, r.NumberChannels)
	for ch := range out {
		out[ch] = make([]int, r.NumberTimeSlices)
	}
	for _, a := range r.Arrivals {
		out[a.Channel][a.TimeSlice]++
	}
	return out
}
