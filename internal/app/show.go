package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"axewatch/internal/difficulty"
	"axewatch/internal/storage"
)

// ErrDeviceUnreachable is returned when a one-shot fetch gets no snapshot.
var ErrDeviceUnreachable = errors.New("no valid response from the Bitaxe API")

// Status fetches one snapshot and prints it.
func (a *App) Status(ctx context.Context) error {
	if err := a.requireDevice(); err != nil {
		return err
	}

	snap := a.newFetcher().Fetch(ctx)
	if !snap.Reachable {
		return ErrDeviceUnreachable
	}
	info := snap.Info

	writer := tabwriter.NewWriter(a.out(), 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Fetched (UTC)", snap.FetchedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Device", fmt.Sprintf("%s (%s)", orNA(info.DeviceModel), orNA(info.ASICModel))},
		{"Hostname", orNA(info.Hostname)},
		{"Hashrate", info.HashRate.Fixed(2) + " MH/s"},
		{"Temperature", info.Temp.Fixed(1) + " °C"},
		{"VRM temperature", info.VRTemp.Fixed(1) + " °C"},
		{"Uptime", info.Uptime()},
		{"Best difficulty", info.BestDiff.String()},
		{"Session best", info.BestSessionDiff.String()},
		{"Shares", fmt.Sprintf("%s accepted / %s rejected", info.SharesAccepted, info.SharesRejected)},
		{"Power", info.Power.Fixed(2) + " W"},
		{"Stratum", fmt.Sprintf("%s:%s", orNA(info.StratumURL), info.StratumPort)},
		{"Fallback active", fmt.Sprintf("%t", bool(info.IsUsingFallbackStratum))},
		{"Firmware", orNA(info.Version)},
	}
	for _, row := range rows {
		fmt.Fprintf(writer, "%s\t%s\n", row[0], row[1])
	}
	return writer.Flush()
}

// Best prints the ranked best-difficulty history, optionally recording the
// device's current best first.
func (a *App) Best(ctx context.Context, opts BestOptions) error {
	store := a.newHistory()

	var (
		history []storage.DifficultyRecord
		err     error
	)
	if opts.Record {
		history, err = a.recordCurrent(ctx, store)
	} else {
		history, err = store.Load(ctx)
	}
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintln(a.out(), "no best difficulty history found")
		return nil
	}

	ranked := storage.RankDescending(history)
	if opts.Limit > 0 && len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}

	loc := a.Config.Location()
	writer := tabwriter.NewWriter(a.out(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Rank\tTime\tBest\tShort")
	for i, rec := range ranked {
		ts := sanitizeInline(rec.RawTimestamp)
		if !rec.Timestamp.IsZero() {
			ts = rec.Timestamp.In(loc).Format("2006-01-02 15:04:05")
		}
		if ts == "" {
			ts = "unknown"
		}
		full, abbr := "N/A", "N/A"
		if rec.Valid {
			full, abbr = difficulty.Format(rec.Best)
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", i+1, ts, full, abbr)
	}
	return writer.Flush()
}

func (a *App) recordCurrent(ctx context.Context, store *storage.FileStore) ([]storage.DifficultyRecord, error) {
	if err := a.requireDevice(); err != nil {
		return nil, err
	}
	snap := a.newFetcher().Fetch(ctx)
	if !snap.Reachable {
		return nil, ErrDeviceUnreachable
	}
	value, ok := difficulty.Parse(string(snap.Info.BestDiff))
	if !ok {
		a.Logger.Warn().Str("best_diff", string(snap.Info.BestDiff)).Msg("best difficulty not parseable; nothing recorded")
		return store.Load(ctx)
	}
	history, appended, err := store.Record(ctx, value, snap.FetchedAt)
	if err != nil {
		return nil, err
	}
	if appended {
		a.Logger.Info().Str("best", string(snap.Info.BestDiff)).Msg("best difficulty recorded")
	}
	return history, nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
