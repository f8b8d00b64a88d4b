package app

import (
	"context"
	"errors"
	"time"

	"axewatch/internal/alerting"
	"axewatch/internal/difficulty"
)

// SimulateAlert pushes one synthetic event of the given kind through the
// configured notifiers.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	session, err := a.newSession()
	if err != nil {
		return err
	}
	notifier := a.newNotifier(session)

	event, err := a.syntheticEvent(opts, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := notifier.Notify(ctx, event); err != nil {
		return err
	}
	a.Logger.Info().Str("kind", string(event.Kind)).Msg("simulated alert dispatched")
	return nil
}

func (a *App) syntheticEvent(opts SimulateOptions, at time.Time) (alerting.Event, error) {
	event := alerting.Event{Kind: opts.Kind, At: at}
	th := a.thresholds()

	switch opts.Kind {
	case alerting.KindUnreachable:
	case alerting.KindNewBestDifficulty:
		if opts.Value <= 0 {
			return event, errors.New("--value must be a positive difficulty")
		}
		event.BestValue = opts.Value
		event.BestDiff = difficulty.Abbreviate(opts.Value)
	case alerting.KindFallbackActivated:
		event.Pool = opts.Pool
	case alerting.KindLowHashrate:
		event.HashRate = opts.Value
		event.Threshold = th.Low
	case alerting.KindHashrateRecovered:
		event.HashRate = opts.Value
		event.Threshold = th.Recovered
	default:
		return event, errors.New("unknown alert kind")
	}
	return event, nil
}
