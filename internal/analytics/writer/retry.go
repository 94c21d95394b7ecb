package writer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// insert streams rows, retrying while every failure in the response is
// transient and attempts remain.
func (w *BigQueryWriter) insert(ctx context.Context, rows []any) error {
	if len(rows) == 0 {
		return nil
	}
	wait := w.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !transient(err) {
			return fmt.Errorf("insert %d rows into %s (attempt %d): %w", len(rows), w.table, attempt, err)
		}
		if err := pause(ctx, wait); err != nil {
			return err
		}
		wait = min(wait*2, w.retry.MaximumBackoff)
	}
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// transient reports whether err is worth retrying. Batched insert errors
// are only transient when every row-level cause is.
func transient(err error) bool {
	causes := leafErrors(err)
	if len(causes) == 0 {
		return false
	}
	for _, cause := range causes {
		if !transientCause(cause) {
			return false
		}
	}
	return true
}

// leafErrors flattens the BigQuery multi-error shapes into their causes.
func leafErrors(err error) []error {
	if err == nil {
		return nil
	}
	var (
		multi   cbigquery.MultiError
		putErrs cbigquery.PutMultiError
		rowErr  *cbigquery.RowInsertionError
	)
	switch {
	case errors.As(err, &putErrs):
		var out []error
		for i := range putErrs {
			out = append(out, leafErrors(&putErrs[i])...)
		}
		return out
	case errors.As(err, &rowErr):
		return leafErrors(rowErr.Errors)
	case errors.As(err, &multi):
		var out []error
		for _, inner := range multi {
			out = append(out, leafErrors(inner)...)
		}
		return out
	}
	return []error{err}
}

func transientCause(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal,
			codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}
