package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ProvideMode controls who may route traffic through a device.
type ProvideMode int

const (
	ProvideModeNone             ProvideMode = 0
	ProvideModeNetwork          ProvideMode = 1
	ProvideModeFriendsAndFamily ProvideMode = 2
	ProvideModePublic           ProvideMode = 3
)

var provideModeNames = map[ProvideMode]string{
	ProvideModeNone:             "none",
	ProvideModeNetwork:          "network",
	ProvideModeFriendsAndFamily: "friends_and_family",
	ProvideModePublic:           "public",
}

var titleCaser = cases.Title(language.English)

func (m ProvideMode) String() string {
	if name, ok := provideModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Label returns a human readable name ("Friends And Family").
func (m ProvideMode) Label() string {
	return titleCaser.String(strings.ReplaceAll(m.String(), "_", " "))
}

// Providing reports whether the device provides to the public network.
func (m ProvideMode) Providing() bool {
	return m == ProvideModePublic
}

// Toggled returns the mode the provide switch moves to: public devices go
// back to friends and family, everything else becomes public.
func (m ProvideMode) Toggled() ProvideMode {
	if m == ProvideModePublic {
		return ProvideModeFriendsAndFamily
	}
	return ProvideModePublic
}

// ParseProvideMode accepts a mode name, its number, or "on"/"off".
func ParseProvideMode(value string) (ProvideMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch normalized {
	case "on":
		return ProvideModePublic, nil
	case "off", "friends", "ff":
		return ProvideModeFriendsAndFamily, nil
	}
	for mode, name := range provideModeNames {
		if name == normalized {
			return mode, nil
		}
	}
	if n, err := strconv.Atoi(normalized); err == nil {
		if _, ok := provideModeNames[ProvideMode(n)]; ok {
			return ProvideMode(n), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown provide mode %q", ErrInvalidArgument, value)
}

// CodeType tells which status endpoint a pairing code is polled against.
type CodeType string

const (
	CodeTypeShare CodeType = "share"
	CodeTypeAdopt CodeType = "adopt"
)

// ParseCodeType validates a code type string.
func ParseCodeType(value string) (CodeType, error) {
	switch CodeType(strings.ToLower(strings.TrimSpace(value))) {
	case CodeTypeShare:
		return CodeTypeShare, nil
	case CodeTypeAdopt:
		return CodeTypeAdopt, nil
	}
	return "", fmt.Errorf("%w: unknown code type %q", ErrInvalidArgument, value)
}

// ValidateClientID rejects ids that are not UUIDs.
func ValidateClientID(id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return fmt.Errorf("%w: client id %q is not a uuid", ErrInvalidArgument, id)
	}
	return nil
}

// Connection is one live connection of a device.
type Connection struct {
	ConnectionID      string `json:"connection_id" yaml:"connection_id"`
	ConnectTime       string `json:"connect_time" yaml:"connect_time"`
	DisconnectTime    string `json:"disconnect_time,omitempty" yaml:"disconnect_time,omitempty"`
	ConnectionHost    string `json:"connection_host" yaml:"connection_host"`
	ConnectionService string `json:"connection_service" yaml:"connection_service"`
	ConnectionPort    int    `json:"connection_port" yaml:"connection_port"`
}

// Device is a client registered to the user's network.
type Device struct {
	ClientID    string       `json:"client_id" yaml:"client_id"`
	NetworkID   string       `json:"network_id" yaml:"network_id"`
	Description string       `json:"description" yaml:"description"`
	DeviceSpec  string       `json:"device_spec" yaml:"device_spec"`
	ProvideMode ProvideMode  `json:"provide_mode" yaml:"provide_mode"`
	Connections []Connection `json:"connections" yaml:"connections"`
}

// Name returns the description, falling back to the device spec and id.
func (d Device) Name() string {
	if name := strings.TrimSpace(d.Description); name != "" {
		return name
	}
	if spec := strings.TrimSpace(d.DeviceSpec); spec != "" {
		return spec
	}
	return d.ClientID
}

// Online reports whether the device has at least one connection.
func (d Device) Online() bool {
	return len(d.Connections) > 0
}

// Provider holds 24h stats for one providing device.
type Provider struct {
	ClientID              string  `json:"client_id" yaml:"client_id"`
	Connected             bool    `json:"connected" yaml:"connected"`
	UptimeLast24h         float64 `json:"uptime_last_24h" yaml:"uptime_last_24h"`
	TransferDataLast24h   float64 `json:"transfer_data_last_24h" yaml:"transfer_data_last_24h"`
	PayoutLast24h         float64 `json:"payout_last_24h" yaml:"payout_last_24h"`
	SearchInterestLast24h int     `json:"search_interest_last_24h" yaml:"search_interest_last_24h"`
	ContractsLast24h      int     `json:"contracts_last_24h" yaml:"contracts_last_24h"`
	ClientsLast24h        int     `json:"clients_last_24h" yaml:"clients_last_24h"`
}

// AddDeviceResult describes the code entered on the add-device screen.
type AddDeviceResult struct {
	CodeType    CodeType `json:"code_type" yaml:"code_type"`
	Code        string   `json:"code" yaml:"code"`
	NetworkName string   `json:"network_name" yaml:"network_name"`
	ClientID    string   `json:"client_id" yaml:"client_id"`
}

// AssociationStatus is returned by the share and adopt status endpoints.
type AssociationStatus struct {
	Pending               bool   `json:"pending" yaml:"pending"`
	AssociatedNetworkName string `json:"associated_network_name" yaml:"associated_network_name"`
}

// ConfirmShareResult is returned once a share code is accepted.
type ConfirmShareResult struct {
	Complete              bool   `json:"complete" yaml:"complete"`
	AssociatedNetworkName string `json:"associated_network_name" yaml:"associated_network_name"`
}

// TransferBalance is a purchased or redeemed block of transfer.
type TransferBalance struct {
	TransferBalanceID string `json:"transfer_balance_id" yaml:"transfer_balance_id"`
	NetworkID         string `json:"network_id" yaml:"network_id"`
	StartTime         string `json:"start_time" yaml:"start_time"`
	EndTime           string `json:"end_time" yaml:"end_time"`
	BalanceByteCount  int64  `json:"balance_byte_count" yaml:"balance_byte_count"`
}

// Balance is the subscription balance of the network.
type Balance struct {
	BalanceByteCount          int64             `json:"balance_byte_count" yaml:"balance_byte_count"`
	ActiveTransferBalances    []TransferBalance `json:"active_transfer_balances" yaml:"active_transfer_balances"`
	PendingPayoutUSDNanoCents int64             `json:"pending_payout_usd_nano_cents" yaml:"pending_payout_usd_nano_cents"`
	UpdateTime                string            `json:"update_time" yaml:"update_time"`
}

// HasTransferBalance reports whether id is among the active balances.
func (b Balance) HasTransferBalance(id string) bool {
	for _, tb := range b.ActiveTransferBalances {
		if tb.TransferBalanceID == id {
			return true
		}
	}
	return false
}

// BalanceCode is what a balance code is worth before redeeming it.
type BalanceCode struct {
	StartTime        string `json:"start_time" yaml:"start_time"`
	EndTime          string `json:"end_time" yaml:"end_time"`
	BalanceByteCount int64  `json:"balance_byte_count" yaml:"balance_byte_count"`
}

// PasswordLogin is the outcome of a password login. Exactly one of JWT or
// VerificationRequired is set.
type PasswordLogin struct {
	JWT                  string
	NetworkName          string
	VerificationRequired bool
}

// Wire payloads. Each embeds envelope so the optional error object is seen.

type codeLoginRequest struct {
	AuthCode string `json:"auth_code"`
}

type codeLoginResponse struct {
	envelope
	ByJWT string `json:"by_jwt"`
}

type passwordLoginRequest struct {
	UserAuth string `json:"user_auth"`
	Password string `json:"password"`
}

type passwordLoginResponse struct {
	envelope
	VerificationRequired *struct {
		UserAuth string `json:"user_auth"`
	} `json:"verification_required,omitempty"`
	Network *struct {
		ByJWT       string `json:"by_jwt"`
		NetworkName string `json:"name"`
	} `json:"network,omitempty"`
}

type clientsResponse struct {
	envelope
	Clients []Device `json:"clients"`
}

type providersResponse struct {
	envelope
	CreatedTime string     `json:"created_time"`
	Providers   []Provider `json:"providers"`
}

type setProvideRequest struct {
	ClientID    string      `json:"client_id"`
	ProvideMode ProvideMode `json:"provide_mode"`
}

type setProvideResponse struct {
	envelope
	ProvideMode ProvideMode `json:"provide_mode"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type addDeviceResponse struct {
	envelope
	AddDeviceResult
}

type createShareCodeRequest struct {
	ClientID   string `json:"client_id"`
	DeviceName string `json:"device_name,omitempty"`
}

type createShareCodeResponse struct {
	envelope
	ShareCode string `json:"share_code"`
}

type statusRequest struct {
	ShareCode string `json:"share_code"`
}

type associationStatusResponse struct {
	envelope
	AssociationStatus
}

type confirmShareRequest struct {
	ShareCode             string `json:"share_code"`
	AssociatedNetworkName string `json:"associated_network_name"`
}

type confirmShareResponse struct {
	envelope
	ConfirmShareResult
}

type balanceResponse struct {
	envelope
	Balance
}

type balanceCodeRequest struct {
	Secret string `json:"secret"`
}

type checkBalanceCodeResponse struct {
	envelope
	Balance *BalanceCode `json:"balance,omitempty"`
}

type redeemBalanceCodeResponse struct {
	envelope
	TransferBalance *TransferBalance `json:"transfer_balance,omitempty"`
}
