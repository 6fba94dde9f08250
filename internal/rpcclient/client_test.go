package rpcclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPCallSuccess(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotBody = make([]byte, r.ContentLength)
		r.Body.Read(gotBody)
		w.Write([]byte(`{"result":{"account_data":{"Account":"rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh","Balance":"100000000"},"status":"success"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	result, err := c.Call(context.Background(), "account_info", map[string]any{
		"account": "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
	})
	require.NoError(t, err)

	var req struct {
		Method string           `json:"method"`
		Params []map[string]any `json:"params"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &req))
	assert.Equal(t, "account_info", req.Method)
	require.Len(t, req.Params, 1)
	assert.Equal(t, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", req.Params[0]["account"])

	var decoded struct {
		AccountData struct {
			Balance string `json:"Balance"`
		} `json:"account_data"`
	}
	require.NoError(t, json.Unmarshal(result, &decoded))
	assert.Equal(t, "100000000", decoded.AccountData.Balance)
}

func TestHTTPCallProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"error":"actNotFound","error_code":19,"error_message":"Account not found.","status":"error"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.Call(context.Background(), "account_info", map[string]any{"account": "rNeverFunded"})
	require.Error(t, err)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, KindProtocol, rpcErr.Kind)
	assert.Equal(t, "actNotFound", rpcErr.Code)
	assert.Equal(t, "Account not found.", rpcErr.Message)
	assert.True(t, IsNotFound(err))
}

func TestHTTPCallTransportErrors(t *testing.T) {
	testcases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "internal error", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":`))
			},
		},
		{
			name: "missing result",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{}`))
			},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c := NewHTTPClient(srv.URL)
			_, err := c.Call(context.Background(), "server_info", nil)
			require.Error(t, err)

			var rpcErr *RPCError
			require.ErrorAs(t, err, &rpcErr)
			assert.Equal(t, KindTransport, rpcErr.Kind)
			assert.False(t, IsNotFound(err))
		})
	}
}

func TestHTTPCallUnreachable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1") // nothing listens here
	_, err := c.Call(context.Background(), "fee", nil)
	require.Error(t, err)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, KindTransport, rpcErr.Kind)
}

func TestHTTPCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithHTTPTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := c.Call(context.Background(), "account_tx", map[string]any{"account": "rSlow"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, KindTimeout, rpcErr.Kind)
	assert.True(t, IsTimeout(err))
}

func TestHTTPCallCallerDeadlineWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	// Client default is long; the caller-supplied deadline must apply.
	c := NewHTTPClient(srv.URL, WithHTTPTimeout(30*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Call(ctx, "account_info", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, IsTimeout(err))
}
