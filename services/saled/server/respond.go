package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"crybsale/core"
	"crybsale/crypto"
	"crybsale/native/sale"
)

// errBadRequest marks request decoding failures raised before the runtime is
// called.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusForKind maps error kinds onto HTTP statuses.
func statusForKind(kind sale.Kind) int {
	switch kind {
	case sale.KindTiming:
		return http.StatusConflict
	case sale.KindCapacity:
		return http.StatusUnprocessableEntity
	case sale.KindAuthorization:
		return http.StatusForbidden
	case sale.KindInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := sale.KindInput
	if !errors.Is(err, errBadRequest) {
		kind = core.ErrorKind(err)
	}
	status := statusForKind(kind)
	if errors.Is(err, sale.ErrPositionNotFound) || errors.Is(err, sale.ErrUnknownPhase) {
		status = http.StatusNotFound
	}
	message := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("saled: request failed", "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	body := map[string]string{"error": message, "kind": kind.String()}
	if traceID := traceIDFromContext(r.Context()); traceID != "" {
		body["trace_id"] = traceID
	}
	writeJSON(w, status, body)
}

func traceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid payload: %v", err)
	}
	return nil
}

// parseAmount accepts a non-negative base-10 integer string.
func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, badRequest("%s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, badRequest("%s must be a base-10 integer", field)
	}
	if amount.Sign() < 0 {
		return nil, badRequest("%s must not be negative", field)
	}
	return amount, nil
}

func parseAccount(field, raw string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return [20]byte{}, badRequest("%s: %v", field, err)
	}
	return addr.Array(), nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func address(raw [20]byte) string {
	return crypto.FromArray(raw).String()
}
