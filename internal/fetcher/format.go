package fetcher

import (
	"strconv"
	"time"

	"github.com/hako/durafmt"
)

// Fixed renders the value with prec decimals or "N/A".
func (n Number) Fixed(prec int) string {
	if !n.Valid {
		return "N/A"
	}
	return strconv.FormatFloat(n.Value, 'f', prec, 64)
}

// Scaled divides the value by div before rendering, e.g. mV to V.
func (n Number) Scaled(div float64, prec int) string {
	if !n.Valid || div == 0 {
		return "N/A"
	}
	return strconv.FormatFloat(n.Value/div, 'f', prec, 64)
}

// Uptime renders UptimeSeconds as "1 day 10 hours 17 minutes".
func (i SystemInfo) Uptime() string {
	if !i.UptimeSeconds.Valid {
		return "N/A"
	}
	d := time.Duration(i.UptimeSeconds.Value) * time.Second
	if d < time.Second {
		return "0 seconds"
	}
	return durafmt.Parse(d).LimitFirstN(3).String()
}
