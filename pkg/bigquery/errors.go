package bigquery

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	retryableHTTP = []int{
		http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
	retryableGRPC = []codes.Code{
		codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable,
	}
)

// IsNotFound reports a 404 from the BigQuery API.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// IsRetryable reports whether every failure inside err is transient. Errors
// it cannot classify are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var putErr bigquery.PutMultiError
	if errors.As(err, &putErr) {
		return len(putErr) > 0 && allRetryable(len(putErr), func(i int) error { return putErr[i].Errors })
	}
	var rowErr *bigquery.RowInsertionError
	if errors.As(err, &rowErr) {
		return len(rowErr.Errors) > 0 && allRetryable(len(rowErr.Errors), func(i int) error { return rowErr.Errors[i] })
	}
	var multi bigquery.MultiError
	if errors.As(err, &multi) {
		return len(multi) > 0 && allRetryable(len(multi), func(i int) error { return multi[i] })
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return slices.Contains(retryableHTTP, apiErr.Code)
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return slices.Contains(retryableGRPC, st.Code())
	}
	return false
}

func allRetryable(n int, at func(int) error) bool {
	for i := range n {
		if !IsRetryable(at(i)) {
			return false
		}
	}
	return true
}

// FailedRows returns the indexes of rows a partial insert rejected, or nil
// when err is not a per-row failure.
func FailedRows(err error) []int {
	var putErr bigquery.PutMultiError
	if !errors.As(err, &putErr) {
		return nil
	}
	idx := make([]int, 0, len(putErr))
	for _, rowErr := range putErr {
		idx = append(idx, rowErr.RowIndex)
	}
	return idx
}

// JSONValue converts payload into a JSON column value. Raw JSON passes
// through; nil and empty input become NULL.
func JSONValue(payload any) (bigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return bigquery.NullJSON{}, nil
	case bigquery.NullJSON:
		return v, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return bigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return bigquery.NullJSON{}, nil
	}
	return bigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
