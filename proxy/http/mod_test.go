package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestHTTP_Listen(t *testing.T) {
	proxy := NewHTTP("127.0.0.1:0")
	proxy.RegisterHandler("/price/{asset}", fakeHandler)

	require.NoError(t, proxy.Listen())

	defer proxy.Stop()

	before := testutil.ToFloat64(promRequests.WithLabelValues("404"))

	res, err := http.Get(fmt.Sprintf("http://%s/price/ETH", proxy.GetAddr()))
	require.NoError(t, err)

	output, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())

	require.Equal(t, "price of ETH", string(output))
	require.Len(t, res.Header.Get(RequestIDHeader), 20)

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("http://%s/price/BTC", proxy.GetAddr()), nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc")

	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	require.Equal(t, "abc", res.Header.Get(RequestIDHeader))

	res, err = http.Get(fmt.Sprintf("http://%s/unknown", proxy.GetAddr()))
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Equal(t, before+1, testutil.ToFloat64(promRequests.WithLabelValues("404")))

	err = proxy.Listen()
	require.Error(t, err)
	require.Contains(t, err.Error(), "already listening on ")
}

func TestHTTP_Restart(t *testing.T) {
	proxy := NewHTTP("")
	require.Nil(t, proxy.GetAddr())
	require.NoError(t, proxy.Stop())

	for i := 0; i < 2; i++ {
		require.NoError(t, proxy.Listen())
		require.NotNil(t, proxy.GetAddr())

		require.NoError(t, proxy.Stop())
		require.Nil(t, proxy.GetAddr())
	}
}

func TestHTTP_ListenFailure(t *testing.T) {
	proxy := NewHTTP("bad://xx")

	err := proxy.Listen()
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to listen on 'bad://xx': ")
	require.Nil(t, proxy.GetAddr())
}

func TestHTTP_RequestLog(t *testing.T) {
	out := new(bytes.Buffer)

	proxy := NewHTTP("")
	proxy.logger = zerolog.New(out)
	proxy.RegisterHandler("/price/{asset}", fakeHandler)

	require.NoError(t, proxy.Listen())

	res, err := http.Get(fmt.Sprintf("http://%s/price/ETH", proxy.GetAddr()))
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())

	require.NoError(t, proxy.Stop())

	require.Contains(t, out.String(), `"url":"/price/ETH","status":200`)
	require.Contains(t, out.String(), `"requestID":"`+res.Header.Get(RequestIDHeader)+`"`)
}

func TestRequestID(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)

	require.Equal(t, "unknown", RequestID(req.Context()))
}

// -----------------------------------------------------------------------------
// Utility functions

func fakeHandler(w http.ResponseWriter, r *http.Request) {
	if RequestID(r.Context()) == "unknown" {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Write([]byte("price of " + mux.Vars(r)["asset"]))
}
