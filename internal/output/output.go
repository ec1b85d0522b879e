// Package output renders command results as text, json or yaml.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/device"
)

// Format selects how results are written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ValidFormats lists the accepted --format values.
var ValidFormats = []Format{FormatText, FormatJSON, FormatYAML}

// ParseFormat validates a --format value.
func ParseFormat(value string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(value)))
	for _, valid := range ValidFormats {
		if f == valid {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid format %q: must be one of %v", value, ValidFormats)
}

// Renderer writes results to W in Format.
type Renderer struct {
	Format Format
	W      io.Writer
}

// New returns a Renderer.
func New(format Format, w io.Writer) *Renderer {
	return &Renderer{Format: format, W: w}
}

// DeviceList is the structured form of `byctl devices`.
type DeviceList struct {
	Devices   []api.Device   `json:"devices" yaml:"devices"`
	Providers []api.Provider `json:"providers,omitempty" yaml:"providers,omitempty"`
	CachedAt  *time.Time     `json:"cached_at,omitempty" yaml:"cached_at,omitempty"`
}

// PairingResult is the structured form of a finished pairing wait.
type PairingResult struct {
	device.Association `yaml:",inline"`
	Ambiguous          bool `json:"ambiguous" yaml:"ambiguous"`
}

// Devices renders a device table.
func (r *Renderer) Devices(list DeviceList) error {
	return r.render(list, func(w io.Writer) error {
		if list.CachedAt != nil {
			fmt.Fprintf(w, "Cached %s (offline)\n", humanize.Time(*list.CachedAt))
		}
		if len(list.Devices) == 0 {
			_, err := fmt.Fprintln(w, "No devices.")
			return err
		}
		tw := newTable(w)
		fmt.Fprintln(tw, "CLIENT ID\tNAME\tPROVIDE\tSTATUS\tUPTIME 24H")
		for _, d := range list.Devices {
			status := "offline"
			if d.Online() {
				status = "online"
			}
			uptime := "-"
			for _, p := range list.Providers {
				if p.ClientID == d.ClientID {
					uptime = fmt.Sprintf("%.1fh", p.UptimeLast24h)
					break
				}
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ClientID, d.Name(), d.ProvideMode.Label(), status, uptime)
		}
		return tw.Flush()
	})
}

// Device renders a single device after a provide change.
func (r *Renderer) Device(d api.Device) error {
	return r.render(d, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s (%s) provide mode: %s\n", d.Name(), d.ClientID, d.ProvideMode.Label())
		return err
	})
}

// Pairing renders the outcome of a pairing wait.
func (r *Renderer) Pairing(res PairingResult) error {
	return r.render(res, func(w io.Writer) error {
		if res.Ambiguous || res.NetworkName == "" {
			_, err := fmt.Fprintf(w, "%s code %s is no longer pending but no network was reported\n", res.CodeType, res.Code)
			return err
		}
		_, err := fmt.Fprintf(w, "%s code %s accepted by network %q\n", res.CodeType, res.Code, res.NetworkName)
		return err
	})
}

// AddDevice renders the result of entering a code.
func (r *Renderer) AddDevice(res api.AddDeviceResult) error {
	return r.render(res, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s code %s for network %q\n", res.CodeType, res.Code, res.NetworkName)
		return err
	})
}

// ShareCode renders a newly created share code.
func (r *Renderer) ShareCode(clientID, code string) error {
	v := struct {
		ClientID  string `json:"client_id" yaml:"client_id"`
		ShareCode string `json:"share_code" yaml:"share_code"`
	}{clientID, code}
	return r.render(v, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Share code for %s: %s\n", clientID, code)
		return err
	})
}

// ConfirmShare renders the result of confirming a share code.
func (r *Renderer) ConfirmShare(res api.ConfirmShareResult) error {
	return r.render(res, func(w io.Writer) error {
		if !res.Complete {
			_, err := fmt.Fprintln(w, "Share not complete yet.")
			return err
		}
		_, err := fmt.Fprintf(w, "Shared with network %q\n", res.AssociatedNetworkName)
		return err
	})
}

// Balance renders the subscription balance.
func (r *Renderer) Balance(b api.Balance) error {
	return r.render(b, func(w io.Writer) error {
		fmt.Fprintf(w, "Balance: %s\n", formatBytes(b.BalanceByteCount))
		if len(b.ActiveTransferBalances) == 0 {
			_, err := fmt.Fprintln(w, "No active transfer balances.")
			return err
		}
		fmt.Fprintln(w)
		tw := newTable(w)
		fmt.Fprintln(tw, "TRANSFER BALANCE ID\tBYTES\tSTART\tEND")
		for _, tb := range b.ActiveTransferBalances {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tb.TransferBalanceID, formatBytes(tb.BalanceByteCount), tb.StartTime, tb.EndTime)
		}
		return tw.Flush()
	})
}

// TransferBalance renders a redeemed balance.
func (r *Renderer) TransferBalance(tb api.TransferBalance) error {
	return r.render(tb, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Redeemed %s (%s), valid until %s\n", formatBytes(tb.BalanceByteCount), tb.TransferBalanceID, tb.EndTime)
		return err
	})
}

// LogLines renders the tail of a log file.
func (r *Renderer) LogLines(path string, lines []string) error {
	v := struct {
		Path  string   `json:"path" yaml:"path"`
		Lines []string `json:"lines" yaml:"lines"`
	}{path, lines}
	if v.Lines == nil {
		v.Lines = []string{}
	}
	return r.render(v, func(w io.Writer) error {
		if len(lines) == 0 {
			_, err := fmt.Fprintf(w, "No log entries in %s.\n", path)
			return err
		}
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	})
}

// Message renders a plain status line; structured formats get {"message": ...}.
func (r *Renderer) Message(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	v := struct {
		Message string `json:"message" yaml:"message"`
	}{msg}
	return r.render(v, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, msg)
		return err
	})
}

func (r *Renderer) render(v any, text func(io.Writer) error) error {
	switch r.Format {
	case FormatJSON:
		enc := json.NewEncoder(r.W)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(r.W)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(r.W)
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.Bytes(uint64(-n))
	}
	return humanize.Bytes(uint64(n))
}
