// Package apitest runs an in-process fake of the BringYour API for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/bringyour/byctl/internal/api"
)

// Token is the JWT the fake accepts by default.
const Token = "test-jwt"

type pairing struct {
	pendingChecks int
	networkName   string
}

type failure struct {
	status     int
	retryAfter string
	remote     string
}

type redemption struct {
	balance    api.TransferBalance
	visibleIn  int
	redeemed   bool
	checksSeen int
}

// Server is a scriptable fake API. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	token       string
	devices     []api.Device
	providers   []api.Provider
	addCodes    map[string]api.AddDeviceResult
	pairings    map[api.CodeType]map[string]*pairing
	shareCodes  map[string]string
	confirmed   map[string]string
	balance     api.Balance
	codes       map[string]*redemption
	provideWith map[string]api.ProvideMode
	failures    map[string][]failure
	calls       map[string]int
	passwords   map[string]string
	authCodes   map[string]string
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		token:       Token,
		addCodes:    make(map[string]api.AddDeviceResult),
		pairings:    map[api.CodeType]map[string]*pairing{api.CodeTypeShare: {}, api.CodeTypeAdopt: {}},
		shareCodes:  make(map[string]string),
		confirmed:   make(map[string]string),
		codes:       make(map[string]*redemption),
		provideWith: make(map[string]api.ProvideMode),
		failures:    make(map[string][]failure),
		calls:       make(map[string]int),
		passwords:   make(map[string]string),
		authCodes:   make(map[string]string),
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// Client returns an authenticated api.Client pointed at the fake.
func (s *Server) Client(t testing.TB, opts ...api.Option) *api.Client {
	t.Helper()
	opts = append([]api.Option{api.WithToken(s.token)}, opts...)
	c, err := api.NewClient(s.URL, opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.count, s.inject)

	r.HandleFunc("/auth/code-login", s.codeLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/login-with-password", s.passwordLogin).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.requireToken)
	authed.HandleFunc("/network/clients", s.listClients).Methods(http.MethodGet)
	authed.HandleFunc("/stats/providers", s.listProviders).Methods(http.MethodGet)
	authed.HandleFunc("/device/set-provide", s.setProvide).Methods(http.MethodPost)
	authed.HandleFunc("/device/add", s.addDevice).Methods(http.MethodPost)
	authed.HandleFunc("/device/create-share-code", s.createShareCode).Methods(http.MethodPost)
	authed.HandleFunc("/device/share-status", s.associationStatus(api.CodeTypeShare)).Methods(http.MethodPost)
	authed.HandleFunc("/device/adopt-status", s.associationStatus(api.CodeTypeAdopt)).Methods(http.MethodPost)
	authed.HandleFunc("/device/confirm-share", s.confirmShare).Methods(http.MethodPost)
	authed.HandleFunc("/subscription/balance", s.getBalance).Methods(http.MethodGet)
	authed.HandleFunc("/subscription/check-balance-code", s.checkBalanceCode).Methods(http.MethodPost)
	authed.HandleFunc("/subscription/redeem-balance-code", s.redeemBalanceCode).Methods(http.MethodPost)
	return r
}

// Seeding

// AddDevices appends devices to the network.
func (s *Server) AddDevices(devices ...api.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = append(s.devices, devices...)
}

// NewDevice appends a device with a random client id and returns it.
func (s *Server) NewDevice(description string, mode api.ProvideMode) api.Device {
	d := api.Device{
		ClientID:    uuid.NewString(),
		NetworkID:   "network-1",
		Description: description,
		DeviceSpec:  "linux/amd64",
		ProvideMode: mode,
	}
	s.AddDevices(d)
	return d
}

// Device returns the server's copy of a device.
func (s *Server) Device(clientID string) (api.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.ClientID == clientID {
			return d, true
		}
	}
	return api.Device{}, false
}

// SetProviders replaces the provider stats.
func (s *Server) SetProviders(providers ...api.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append([]api.Provider(nil), providers...)
}

// AcceptPassword registers a user/password pair for password login. An empty
// password makes the login ask for verification instead.
func (s *Server) AcceptPassword(userAuth, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords[userAuth] = password
}

// AcceptAuthCode registers an auth code that logs in as the fake's token.
func (s *Server) AcceptAuthCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authCodes[code] = s.token
}

// ScriptPairing makes code resolve to networkName after pendingChecks
// pending status responses. device/add reports it as codeType.
func (s *Server) ScriptPairing(codeType api.CodeType, code string, pendingChecks int, networkName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairings[codeType][code] = &pairing{pendingChecks: pendingChecks, networkName: networkName}
	s.addCodes[code] = api.AddDeviceResult{CodeType: codeType, Code: code, NetworkName: networkName}
}

// OverrideProvide makes set-provide for clientID record mode regardless of the request.
func (s *Server) OverrideProvide(clientID string, mode api.ProvideMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provideWith[clientID] = mode
}

// SetBalance replaces the subscription balance.
func (s *Server) SetBalance(b api.Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = b
}

// AddBalanceCode registers a redeemable code. Once redeemed, the transfer
// balance shows up in subscription/balance after visibleAfter more fetches.
func (s *Server) AddBalanceCode(secret string, byteCount int64, visibleAfter int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[secret] = &redemption{
		balance: api.TransferBalance{
			TransferBalanceID: uuid.NewString(),
			NetworkID:         "network-1",
			StartTime:         "2026-01-01T00:00:00Z",
			EndTime:           "2026-02-01T00:00:00Z",
			BalanceByteCount:  byteCount,
		},
		visibleIn: visibleAfter,
	}
}

// Failure injection

// FailNext makes the next request to path fail with status.
func (s *Server) FailNext(path string, status int) {
	s.queueFailure(path, failure{status: status})
}

// RateLimitNext makes the next request to path return 429 with Retry-After.
func (s *Server) RateLimitNext(path, retryAfter string) {
	s.queueFailure(path, failure{status: http.StatusTooManyRequests, retryAfter: retryAfter})
}

// RejectNext makes the next request to path return 200 with an error object.
func (s *Server) RejectNext(path, message string) {
	s.queueFailure(path, failure{remote: message})
}

func (s *Server) queueFailure(path string, f failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path = "/" + strings.TrimPrefix(path, "/")
	s.failures[path] = append(s.failures[path], f)
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls["/"+strings.TrimPrefix(path, "/")]
}

// Middleware

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		queued := s.failures[r.URL.Path]
		var f *failure
		if len(queued) > 0 {
			f = &queued[0]
			s.failures[r.URL.Path] = queued[1:]
		}
		s.mu.Unlock()

		switch {
		case f == nil:
			next.ServeHTTP(w, r)
		case f.remote != "":
			writeJSON(w, http.StatusOK, map[string]any{"error": api.RemoteError{Message: f.remote}})
		default:
			if f.retryAfter != "" {
				w.Header().Set("Retry-After", f.retryAfter)
			}
			http.Error(w, http.StatusText(f.status), f.status)
		}
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handlers

func (s *Server) codeLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthCode string `json:"auth_code"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	jwt, ok := s.authCodes[req.AuthCode]
	s.mu.Unlock()
	if !ok {
		writeRemoteError(w, "Invalid auth code.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"by_jwt": jwt})
}

func (s *Server) passwordLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserAuth string `json:"user_auth"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	want, ok := s.passwords[req.UserAuth]
	s.mu.Unlock()
	switch {
	case !ok:
		writeRemoteError(w, "Unknown user.")
	case want == "":
		writeJSON(w, http.StatusOK, map[string]any{"verification_required": map[string]string{"user_auth": req.UserAuth}})
	case want != req.Password:
		writeRemoteError(w, "Invalid password.")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"network": map[string]string{"by_jwt": s.token, "name": "testnet"}})
	}
}

func (s *Server) listClients(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	devices := append([]api.Device{}, s.devices...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"clients": devices})
}

func (s *Server) listProviders(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	providers := append([]api.Provider{}, s.providers...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"created_time": "2026-01-01T00:00:00Z", "providers": providers})
}

func (s *Server) setProvide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID    string          `json:"client_id"`
		ProvideMode api.ProvideMode `json:"provide_mode"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mode := req.ProvideMode
	if override, ok := s.provideWith[req.ClientID]; ok {
		mode = override
	}
	for i := range s.devices {
		if s.devices[i].ClientID == req.ClientID {
			s.devices[i].ProvideMode = mode
			writeJSON(w, http.StatusOK, map[string]any{"provide_mode": mode})
			return
		}
	}
	writeRemoteError(w, "Client not found.")
}

func (s *Server) addDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	result, ok := s.addCodes[req.Code]
	s.mu.Unlock()
	if !ok {
		writeRemoteError(w, "Invalid code.")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) createShareCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID   string `json:"client_id"`
		DeviceName string `json:"device_name"`
	}
	if !decode(w, r, &req) {
		return
	}
	code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	s.mu.Lock()
	s.shareCodes[code] = req.ClientID
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"share_code": code})
}

func (s *Server) associationStatus(codeType api.CodeType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ShareCode string `json:"share_code"`
		}
		if !decode(w, r, &req) {
			return
		}
		s.mu.Lock()
		p, ok := s.pairings[codeType][req.ShareCode]
		var status api.AssociationStatus
		if ok {
			if p.pendingChecks > 0 {
				p.pendingChecks--
				status.Pending = true
			} else {
				status.AssociatedNetworkName = p.networkName
			}
		}
		s.mu.Unlock()
		if !ok {
			writeRemoteError(w, "Invalid code.")
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func (s *Server) confirmShare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShareCode             string `json:"share_code"`
		AssociatedNetworkName string `json:"associated_network_name"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	_, known := s.pairings[api.CodeTypeShare][req.ShareCode]
	if known {
		s.confirmed[req.ShareCode] = req.AssociatedNetworkName
	}
	s.mu.Unlock()
	if !known {
		writeRemoteError(w, "Invalid code.")
		return
	}
	writeJSON(w, http.StatusOK, api.ConfirmShareResult{Complete: true, AssociatedNetworkName: req.AssociatedNetworkName})
}

func (s *Server) getBalance(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	b := s.balance
	b.ActiveTransferBalances = append([]api.TransferBalance{}, b.ActiveTransferBalances...)
	for _, red := range s.codes {
		if !red.redeemed {
			continue
		}
		if red.checksSeen < red.visibleIn {
			red.checksSeen++
			continue
		}
		b.ActiveTransferBalances = append(b.ActiveTransferBalances, red.balance)
		b.BalanceByteCount += red.balance.BalanceByteCount
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) checkBalanceCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	red, ok := s.codes[req.Secret]
	s.mu.Unlock()
	if !ok {
		writeRemoteError(w, "Invalid balance code.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": api.BalanceCode{
		StartTime:        red.balance.StartTime,
		EndTime:          red.balance.EndTime,
		BalanceByteCount: red.balance.BalanceByteCount,
	}})
}

func (s *Server) redeemBalanceCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	red, ok := s.codes[req.Secret]
	already := ok && red.redeemed
	if ok {
		red.redeemed = true
	}
	s.mu.Unlock()
	switch {
	case !ok:
		writeRemoteError(w, "Invalid balance code.")
	case already:
		writeRemoteError(w, "Balance code already redeemed.")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"transfer_balance": red.balance})
	}
}

func decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeRemoteError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]any{"error": api.RemoteError{Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
