package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/forecast/confidential"
	"go.dedis.ch/forecast/confidential/client"
	"go.dedis.ch/forecast/confidential/coproc"
	ledger "go.dedis.ch/forecast/contracts/forecast"
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/core/store"
	"go.dedis.ch/forecast/core/store/mem"
	"go.dedis.ch/forecast/crypto/ed25519"
)

func TestService_Reads(t *testing.T) {
	env := newEnv(t, DefaultRate)

	var day DayResponse
	env.get(t, "/day", http.StatusOK, &day)
	require.Equal(t, uint64(7), day.Day)

	var owner OwnerResponse
	env.get(t, "/owner", http.StatusOK, &owner)
	require.Equal(t, env.text(env.operator), owner.Owner)

	var engine EngineResponse
	env.get(t, "/engine", http.StatusOK, &engine)
	require.Equal(t, "api-test", engine.Domain)

	pubkey, err := env.engine.GetPublicKey().MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(pubkey), engine.PublicKey)

	var price PriceResponse
	env.get(t, "/price/eth/7", http.StatusOK, &price)
	require.Equal(t, PriceResponse{Asset: "ETH", Day: 7, Price: 2000, Recorded: true}, price)

	env.get(t, "/price/BTC/7", http.StatusOK, &price)
	require.False(t, price.Recorded)

	var latest LatestResponse
	env.get(t, "/latest/0", http.StatusOK, &latest)
	require.Equal(t, LatestResponse{Asset: "ETH", Day: 7}, latest)

	var pred PredictionResponse
	env.get(t, "/prediction/ETH/8/"+env.text(env.user), http.StatusOK, &pred)
	require.True(t, pred.Exists)
	require.Equal(t, "open", pred.State)
	require.Equal(t, "5", pred.Stake)
	require.Equal(t, confidential.Uint64, pred.Price.Type())

	env.get(t, "/prediction/ETH/9/"+env.text(env.user), http.StatusOK, &pred)
	require.False(t, pred.Exists)
	require.Equal(t, "absent", pred.State)

	var points PointsResponse
	env.get(t, "/points/"+env.text(env.user), http.StatusOK, &points)
	require.True(t, points.Initialized)

	env.get(t, "/points/"+env.text(env.operator), http.StatusOK, &points)
	require.False(t, points.Initialized)

	var amount AmountResponse
	env.get(t, "/balance/"+env.text(env.user), http.StatusOK, &amount)
	require.Equal(t, "95", amount.Amount)

	env.get(t, "/custody", http.StatusOK, &amount)
	require.Equal(t, "5", amount.Amount)

	var failure ErrorResponse
	env.get(t, "/price/DOGE/7", http.StatusBadRequest, &failure)
	require.Contains(t, failure.Error, "invalid asset")

	env.get(t, "/price/5/7", http.StatusBadRequest, &failure)
	require.Equal(t, "invalid asset: Asset(5)", failure.Error)

	env.get(t, "/price/ETH/abc", http.StatusBadRequest, &failure)
	require.Equal(t, "invalid day 'abc'", failure.Error)

	resp, err := http.Post(env.server.URL+"/day", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestService_Reencrypt(t *testing.T) {
	env := newEnv(t, DefaultRate)

	relayer := client.NewHTTPRelayer(env.server.URL)
	userClient := client.NewClient(env.user, env.engine.GetPublicKey(), "api-test", relayer)

	pred, err := env.reader.GetPrediction(env.text(env.user), ledger.ETH, 8)
	require.NoError(t, err)

	value, err := userClient.Decrypt(context.Background(), pred.Price)
	require.NoError(t, err)
	require.Equal(t, uint64(1900), value.Uint64())

	operatorClient := client.NewClient(env.operator, env.engine.GetPublicKey(), "api-test", relayer)

	_, err = operatorClient.Decrypt(context.Background(), pred.Price)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 403")

	_, err = userClient.Decrypt(context.Background(), confidential.Handle{1, 31: byte(confidential.Uint64)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 404")

	resp, err := http.Post(env.server.URL+client.ReencryptPath, "application/json",
		strings.NewReader("{"))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(env.server.URL + client.ReencryptPath)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestService_ReencryptRateLimit(t *testing.T) {
	env := newEnv(t, 1)

	resp, err := http.Post(env.server.URL+client.ReencryptPath, "application/json",
		strings.NewReader("{"))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(env.server.URL+client.ReencryptPath, "application/json",
		strings.NewReader("{"))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

// -----------------------------------------------------------------------------
// Utility functions

type testEnv struct {
	server   *httptest.Server
	engine   *coproc.Service
	reader   ledger.Reader
	operator ed25519.Signer
	user     ed25519.Signer
}

func newEnv(t *testing.T, perSecond int) *testEnv {
	repo := mem.NewStore()
	clk := clock.Fixed(7)

	env := &testEnv{
		engine:   coproc.NewService(coproc.GenerateKey(), "api-test"),
		operator: ed25519.NewSigner(),
		user:     ed25519.NewSigner(),
	}

	lg := ledger.NewLedger(env.engine, nil)
	env.reader = ledger.NewReader(lg, repo, clk)

	userClient := client.NewClient(env.user, env.engine.GetPublicKey(), "api-test", nil)

	inputs, proof, err := userClient.EncryptInputs(
		client.Plaintext{Type: confidential.Uint64, Value: uint256.NewInt(1900)},
		client.Plaintext{Type: confidential.Uint8, Value: uint256.NewInt(ledger.DirectionGreater)},
	)
	require.NoError(t, err)

	err = repo.Update(func(snap store.TxSnapshot) error {
		err := lg.Genesis(snap, env.operator.GetPublicKey(),
			map[string]*uint256.Int{env.text(env.user): uint256.NewInt(100)}, 7)
		if err != nil {
			return err
		}

		err = lg.RecordPrice(snap, env.operator.GetPublicKey(), ledger.ETH, uint256.NewInt(2000), 7)
		if err != nil {
			return err
		}

		return lg.PlacePrediction(snap, env.user.GetPublicKey(), ledger.ETH, inputs[0], inputs[1],
			proof, uint256.NewInt(5), 7)
	})
	require.NoError(t, err)

	router := &fakeProxy{router: mux.NewRouter()}

	srvc := NewService(env.reader, env.engine, coproc.NewRelayer(env.engine, repo), perSecond)
	srvc.Register(router)

	env.server = httptest.NewServer(router.router)
	t.Cleanup(env.server.Close)

	return env
}

func (env *testEnv) text(signer ed25519.Signer) string {
	text, err := signer.GetPublicKey().MarshalText()
	if err != nil {
		panic(err)
	}

	return string(text)
}

func (env *testEnv) get(t *testing.T, path string, status int, v interface{}) {
	resp, err := http.Get(env.server.URL + path)
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, status, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

type fakeProxy struct {
	router *mux.Router
}

func (p *fakeProxy) Listen() error {
	return nil
}

func (p *fakeProxy) Stop() error {
	return nil
}

func (p *fakeProxy) GetAddr() net.Addr {
	return nil
}

func (p *fakeProxy) RegisterHandler(path string, handler func(http.ResponseWriter, *http.Request)) {
	p.router.HandleFunc(path, handler)
}
