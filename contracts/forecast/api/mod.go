// Package api exposes the read operations of the ledger and the
// re-encryption of the confidential engine over HTTP.
//
//	GET  /day
//	GET  /owner
//	GET  /engine
//	GET  /custody
//	GET  /price/{asset}/{day}
//	GET  /latest/{asset}
//	GET  /prediction/{asset}/{day}/{user}
//	GET  /points/{user}
//	GET  /balance/{account}
//	POST /reencrypt
package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"go.dedis.ch/forecast"
	"go.dedis.ch/forecast/confidential"
	"go.dedis.ch/forecast/confidential/client"
	ledger "go.dedis.ch/forecast/contracts/forecast"
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/proxy"
	phttp "go.dedis.ch/forecast/proxy/http"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"
)

// DefaultRate is the number of re-encryptions per second served by default.
const DefaultRate = 10

// Reader is the interface of the read operations of the ledger.
type Reader interface {
	CurrentDay() clock.Day
	Owner() (string, error)
	GetPrice(asset ledger.Asset, day clock.Day) (uint64, bool, error)
	GetLatestDay(asset ledger.Asset) (clock.Day, error)
	GetPrediction(user string, asset ledger.Asset, day clock.Day) (ledger.Prediction, error)
	GetPoints(user string) (confidential.Handle, error)
	Balance(account string) (*uint256.Int, error)
	Custody() (*uint256.Int, error)
}

// Engine is the interface of the public information of the engine.
type Engine interface {
	GetPublicKey() kyber.Point
	GetDomain() string
}

// Service serves the HTTP API.
type Service struct {
	reader  Reader
	engine  Engine
	relayer confidential.Relayer
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewService returns the API of the ledger. The re-encryptions are limited to
// the given number per second.
func NewService(reader Reader, engine Engine, relayer confidential.Relayer, perSecond int) *Service {
	return &Service{
		reader:  reader,
		engine:  engine,
		relayer: relayer,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
		logger:  forecast.Logger.With().Str("role", "api").Logger(),
	}
}

// Register registers the handlers of the API on the proxy.
func (s *Service) Register(p proxy.Proxy) {
	p.RegisterHandler("/day", s.get(s.handleDay))
	p.RegisterHandler("/owner", s.get(s.handleOwner))
	p.RegisterHandler("/engine", s.get(s.handleEngine))
	p.RegisterHandler("/custody", s.get(s.handleCustody))
	p.RegisterHandler("/price/{asset}/{day}", s.get(s.handlePrice))
	p.RegisterHandler("/latest/{asset}", s.get(s.handleLatest))
	p.RegisterHandler("/prediction/{asset}/{day}/{user}", s.get(s.handlePrediction))
	p.RegisterHandler("/points/{user}", s.get(s.handlePoints))
	p.RegisterHandler("/balance/{account}", s.get(s.handleBalance))
	p.RegisterHandler(client.ReencryptPath, s.handleReencrypt)
}

// DayResponse is the response of /day.
type DayResponse struct {
	Day uint64 `json:"day"`
}

// OwnerResponse is the response of /owner.
type OwnerResponse struct {
	Owner string `json:"owner"`
}

// EngineResponse is the response of /engine.
type EngineResponse struct {
	PublicKey string `json:"publicKey"`
	Domain    string `json:"domain"`
}

// PriceResponse is the response of /price.
type PriceResponse struct {
	Asset    string `json:"asset"`
	Day      uint64 `json:"day"`
	Price    uint64 `json:"price"`
	Recorded bool   `json:"recorded"`
}

// LatestResponse is the response of /latest.
type LatestResponse struct {
	Asset string `json:"asset"`
	Day   uint64 `json:"day"`
}

// PredictionResponse is the response of /prediction.
type PredictionResponse struct {
	User      string              `json:"user"`
	Asset     string              `json:"asset"`
	Day       uint64              `json:"day"`
	State     string              `json:"state"`
	Exists    bool                `json:"exists"`
	Price     confidential.Handle `json:"price"`
	Direction confidential.Handle `json:"direction"`
	Stake     string              `json:"stake"`
}

// PointsResponse is the response of /points.
type PointsResponse struct {
	User        string              `json:"user"`
	Handle      confidential.Handle `json:"handle"`
	Initialized bool                `json:"initialized"`
}

// AmountResponse is the response of /balance and /custody.
type AmountResponse struct {
	Account string `json:"account,omitempty"`
	Amount  string `json:"amount"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestID"`
}

func (s *Service) handleDay(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, DayResponse{Day: uint64(s.reader.CurrentDay())})
}

func (s *Service) handleOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := s.reader.Owner()
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	s.respond(w, r, http.StatusOK, OwnerResponse{Owner: owner})
}

func (s *Service) handleEngine(w http.ResponseWriter, r *http.Request) {
	pubkey, err := s.engine.GetPublicKey().MarshalBinary()
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	s.respond(w, r, http.StatusOK, EngineResponse{
		PublicKey: hex.EncodeToString(pubkey),
		Domain:    s.engine.GetDomain(),
	})
}

func (s *Service) handleCustody(w http.ResponseWriter, r *http.Request) {
	amount, err := s.reader.Custody()
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	s.respond(w, r, http.StatusOK, AmountResponse{Amount: amount.Dec()})
}

func (s *Service) handlePrice(w http.ResponseWriter, r *http.Request) {
	asset, day, err := assetAndDay(r)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}

	price, recorded, err := s.reader.GetPrice(asset, day)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	s.respond(w, r, http.StatusOK, PriceResponse{
		Asset:    asset.String(),
		Day:      uint64(day),
		Price:    price,
		Recorded: recorded,
	})
}

func (s *Service) handleLatest(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAsset(mux.Vars(r)["asset"])
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}

	day, err := s.reader.GetLatestDay(asset)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	s.respond(w, r, http.StatusOK, LatestResponse{Asset: asset.String(), Day: uint64(day)})
}

func (s *Service) handlePrediction(w http.ResponseWriter, r *http.Request) {
	asset, day, err := assetAndDay(r)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}

	user := mux.Vars(r)["user"]

	pred, err := s.reader.GetPrediction(user, asset, day)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	s.respond(w, r, http.StatusOK, PredictionResponse{
		User:      user,
		Asset:     asset.String(),
		Day:       uint64(day),
		State:     pred.State.String(),
		Exists:    pred.Exists(),
		Price:     pred.Price,
		Direction: pred.Direction,
		Stake:     pred.Stake.Dec(),
	})
}

func (s *Service) handlePoints(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]

	h, err := s.reader.GetPoints(user)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	s.respond(w, r, http.StatusOK, PointsResponse{
		User:        user,
		Handle:      h,
		Initialized: !h.IsZero(),
	})
}

func (s *Service) handleBalance(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	amount, err := s.reader.Balance(account)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	s.respond(w, r, http.StatusOK, AmountResponse{Account: account, Amount: amount.Dec()})
}

func (s *Service) handleReencrypt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.fail(w, r, http.StatusMethodNotAllowed, xerrors.Errorf("method %s not allowed", r.Method))
		return
	}

	if !s.limiter.Allow() {
		s.fail(w, r, http.StatusTooManyRequests, xerrors.New("rate limit exceeded"))
		return
	}

	var req confidential.ReencryptRequest

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, xerrors.Errorf("malformed request: %v", err))
		return
	}

	ct, err := s.relayer.Reencrypt(r.Context(), req)
	switch {
	case err == nil:
		s.respond(w, r, http.StatusOK, ct)
	case xerrors.Is(err, confidential.ErrNotAllowed):
		s.fail(w, r, http.StatusForbidden, err)
	case xerrors.Is(err, confidential.ErrUnknownHandle):
		s.fail(w, r, http.StatusNotFound, err)
	default:
		s.fail(w, r, http.StatusBadRequest, err)
	}
}

// get restricts the handler to the GET method.
func (s *Service) get(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			s.fail(w, r, http.StatusMethodNotAllowed, xerrors.Errorf("method %s not allowed", r.Method))
			return
		}

		fn(w, r)
	}
}

func (s *Service) respond(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("requestID", phttp.RequestID(r.Context())).
			Msg("failed to write response")
	}
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	requestID := phttp.RequestID(r.Context())

	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("requestID", requestID).Msg("request failed")
	}

	s.respond(w, r, status, ErrorResponse{Error: err.Error(), RequestID: requestID})
}

func parseAsset(text string) (ledger.Asset, error) {
	asset, err := ledger.ParseAsset(text)
	if err != nil {
		return 0, err
	}

	if !asset.Valid() {
		return 0, xerrors.Errorf("%w: %v", ledger.ErrInvalidAsset, asset)
	}

	return asset, nil
}

func assetAndDay(r *http.Request) (ledger.Asset, clock.Day, error) {
	vars := mux.Vars(r)

	asset, err := parseAsset(vars["asset"])
	if err != nil {
		return 0, 0, err
	}

	day, err := strconv.ParseUint(vars["day"], 10, 64)
	if err != nil {
		return 0, 0, xerrors.Errorf("invalid day '%s'", vars["day"])
	}

	return asset, clock.Day(day), nil
}
