package fetcher

import (
	"bytes"
	"strconv"
	"strings"

	"axewatch/internal/jsonx"
)

// SystemInfo mirrors the AxeOS /api/system/info payload. Only the fields the
// monitor reasons about are typed strictly; the rest are passed through to
// the chat presentation.
type SystemInfo struct {
	Temp              Number    `json:"temp"`
	VRTemp            Number    `json:"vrTemp"`
	HashRate          Number    `json:"hashRate"`
	UptimeSeconds     Number    `json:"uptimeSeconds"`
	BestDiff          Magnitude `json:"bestDiff"`
	BestSessionDiff   Magnitude `json:"bestSessionDiff"`
	SharesAccepted    Number    `json:"sharesAccepted"`
	SharesRejected    Number    `json:"sharesRejected"`
	FreeHeap          Number    `json:"freeHeap"`
	Power             Number    `json:"power"`
	MinPower          Number    `json:"minPower"`
	MaxPower          Number    `json:"maxPower"`
	Voltage           Number    `json:"voltage"`
	Current           Number    `json:"current"`
	CoreVoltage       Number    `json:"coreVoltage"`
	CoreVoltageActual Number    `json:"coreVoltageActual"`
	Frequency         Number    `json:"frequency"`
	FanSpeed          Number    `json:"fanspeed"`
	FanRPM            Number    `json:"fanrpm"`
	AutoFanSpeed      Flag      `json:"autofanspeed"`

	ASICModel        string `json:"ASICModel"`
	DeviceModel      string `json:"deviceModel"`
	Hostname         string `json:"hostname"`
	HostIP           string `json:"hostip"`
	SSID             string `json:"ssid"`
	WifiStatus       string `json:"wifiStatus"`
	Version          string `json:"version"`
	RunningPartition string `json:"runningPartition"`
	LastResetReason  string `json:"lastResetReason"`

	StratumURL             string `json:"stratumURL"`
	StratumPort            Number `json:"stratumPort"`
	StratumUser            string `json:"stratumUser"`
	FallbackStratumURL     string `json:"fallbackStratumURL"`
	FallbackStratumPort    Number `json:"fallbackStratumPort"`
	FallbackStratumUser    string `json:"fallbackStratumUser"`
	IsUsingFallbackStratum Flag   `json:"isUsingFallbackStratum"`
}

// Number is a numeric field that may be absent, null, or sent as a string.
type Number struct {
	Value float64
	Valid bool
}

// Num builds a valid Number.
func Num(v float64) Number {
	return Number{Value: v, Valid: true}
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := jsonx.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*n = Number{}
			return nil
		}
		*n = Num(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*n = Num(v)
	return nil
}

// MarshalJSON writes null for an invalid Number.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, n.Value, 'f', -1, 64), nil
}

// String renders the value or "N/A".
func (n Number) String() string {
	if !n.Valid {
		return "N/A"
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// Magnitude is a human-formatted difficulty such as "568M". Newer firmware
// sends plain numbers, which are kept in their textual form.
type Magnitude string

// UnmarshalJSON accepts strings and numbers.
func (m *Magnitude) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := jsonx.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Magnitude(s)
		return nil
	}
	*m = Magnitude(string(data))
	return nil
}

// String returns the raw text or "N/A" when empty.
func (m Magnitude) String() string {
	if m == "" {
		return "N/A"
	}
	return string(m)
}

// Flag is a boolean that AxeOS sometimes encodes as 0/1.
type Flag bool

// UnmarshalJSON accepts booleans, numbers and "true"/"1" strings.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		*f = false
	case bytes.Equal(data, []byte("true")):
		*f = true
	case data[0] == '"':
		var s string
		if err := jsonx.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.ToLower(strings.TrimSpace(s))
		*f = Flag(s == "true" || s == "1" || s == "yes")
	default:
		v, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return err
		}
		*f = Flag(v != 0)
	}
	return nil
}
