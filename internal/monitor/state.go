// Package monitor holds the alert state machine. It is pure: the caller owns
// the State value and threads it through Step on every poll.
package monitor

import (
	"axewatch/internal/alerting"
	"axewatch/internal/difficulty"
	"axewatch/internal/fetcher"
)

const (
	DefaultLowHashrate       = 350.0
	DefaultRecoveredHashrate = 400.0
)

// Thresholds configure the hashrate hysteresis band in MH/s. A rate below
// Low raises an alert, a rate at or above Recovered clears it, anything in
// between keeps the current state.
type Thresholds struct {
	Low       float64
	Recovered float64
}

// DefaultThresholds returns the 350/400 MH/s band.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: DefaultLowHashrate, Recovered: DefaultRecoveredHashrate}
}

// State is the per-poller alert memory. The zero value is the startup state.
// Each *Announced flag is true while its condition holds and has already
// been reported.
type State struct {
	LastBest    float64
	HasLastBest bool

	FallbackAnnounced    bool
	UnreachableAnnounced bool
	LowHashrateAnnounced bool
}

// Step folds one snapshot into state and returns the events to dispatch, in
// order: reachability, best difficulty, fallback pool, hashrate.
func Step(state State, snap fetcher.Snapshot, th Thresholds) (State, []alerting.Event) {
	var events []alerting.Event
	at := snap.FetchedAt

	if !snap.Reachable {
		if !state.UnreachableAnnounced {
			state.UnreachableAnnounced = true
			events = append(events, alerting.Event{Kind: alerting.KindUnreachable, At: at})
		}
		return state, events
	}
	state.UnreachableAnnounced = false

	info := snap.Info

	if best, ok := difficulty.Parse(string(info.BestDiff)); ok {
		if state.HasLastBest && best != state.LastBest {
			events = append(events, alerting.Event{
				Kind:         alerting.KindNewBestDifficulty,
				At:           at,
				BestDiff:     string(info.BestDiff),
				BestValue:    best,
				PreviousBest: state.LastBest,
			})
		}
		state.LastBest = best
		state.HasLastBest = true
	}

	if bool(info.IsUsingFallbackStratum) {
		if !state.FallbackAnnounced {
			state.FallbackAnnounced = true
			events = append(events, alerting.Event{
				Kind: alerting.KindFallbackActivated,
				At:   at,
				Pool: info.FallbackStratumURL,
			})
		}
	} else {
		state.FallbackAnnounced = false
	}

	if info.HashRate.Valid {
		rate := info.HashRate.Value
		switch {
		case rate < th.Low && !state.LowHashrateAnnounced:
			state.LowHashrateAnnounced = true
			events = append(events, alerting.Event{
				Kind:      alerting.KindLowHashrate,
				At:        at,
				HashRate:  rate,
				Threshold: th.Low,
			})
		case rate >= th.Recovered && state.LowHashrateAnnounced:
			state.LowHashrateAnnounced = false
			events = append(events, alerting.Event{
				Kind:      alerting.KindHashrateRecovered,
				At:        at,
				HashRate:  rate,
				Threshold: th.Recovered,
			})
		}
	}

	return state, events
}
