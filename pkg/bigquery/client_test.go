package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Hynox-org/aharraa-server/pkg/config"
)

func TestConfiguredTablesTrimsAndSkipsBlank(t *testing.T) {
	require.Equal(t, []string{"order_events"}, configuredTables(config.BigQueryConfig{OrderEventsTable: " order_events "}))
	require.Empty(t, configuredTables(config.BigQueryConfig{}))
}

func TestClientOptions(t *testing.T) {
	require.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds"}), 1)
	require.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/creds"}), 1)
	require.Empty(t, clientOptions(config.GCPConfig{}))
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.BigQueryConfig{Dataset: "d", OrderEventsTable: "t"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)
	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{OrderEventsTable: "t"}, nil)
	require.ErrorIs(t, err, errDatasetRequired)
	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "d"}, nil)
	require.ErrorIs(t, err, errTableNameRequired)
}

func TestUninitializedClient(t *testing.T) {
	var c *Client
	require.ErrorIs(t, c.InsertRows(context.Background(), "order_events", []any{1}), errClientNotInitialized)
	require.ErrorIs(t, c.Ping(context.Background()), errClientNotInitialized)
	require.NoError(t, c.Close())
}

func TestIsRetryable(t *testing.T) {
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	invalid := &googleapi.Error{Code: http.StatusBadRequest}

	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":              {nil, false},
		"503":              {unavailable, true},
		"wrapped 429":      {fmt.Errorf("insert: %w", &googleapi.Error{Code: http.StatusTooManyRequests}), true},
		"400":              {invalid, false},
		"grpc unavailable": {status.Error(codes.Unavailable, "try later"), true},
		"grpc invalid":     {status.Error(codes.InvalidArgument, "bad row"), false},
		"plain":            {errors.New("boom"), false},
		"all rows transient": {bigquery.PutMultiError{
			{RowIndex: 0, Errors: bigquery.MultiError{unavailable}},
		}, true},
		"one row invalid": {bigquery.PutMultiError{
			{RowIndex: 0, Errors: bigquery.MultiError{unavailable}},
			{RowIndex: 1, Errors: bigquery.MultiError{invalid}},
		}, false},
	}
	for name, tc := range cases {
		require.Equal(t, tc.want, IsRetryable(tc.err), name)
	}
}

func TestFailedRows(t *testing.T) {
	err := bigquery.PutMultiError{{RowIndex: 2}, {RowIndex: 0}}
	require.Equal(t, []int{2, 0}, FailedRows(fmt.Errorf("put: %w", err)))
	require.Nil(t, FailedRows(errors.New("boom")))
}

func TestIsNotFound(t *testing.T) {
	require.True(t, IsNotFound(&googleapi.Error{Code: http.StatusNotFound}))
	require.False(t, IsNotFound(errors.New("missing")))
}

func TestJSONValue(t *testing.T) {
	v, err := JSONValue(map[string]any{"orderId": "o-1"})
	require.NoError(t, err)
	require.True(t, v.Valid)
	require.JSONEq(t, `{"orderId":"o-1"}`, v.JSONVal)

	v, err = JSONValue(json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, v.JSONVal)

	for _, empty := range []any{nil, json.RawMessage(nil), []byte{}} {
		v, err = JSONValue(empty)
		require.NoError(t, err)
		require.False(t, v.Valid)
	}

	_, err = JSONValue(make(chan int))
	require.Error(t, err)
}
