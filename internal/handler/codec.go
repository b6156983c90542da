package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/money"
	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/reject"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed input.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return errors.Wrapf(errBadRequest, format, args...)
}

// conflictCodes are rejections caused by the resource's current state.
var conflictCodes = map[string]bool{
	"coupon_already_applied": true,
	"order_already_settled":  true,
	"payout_finalized":       true,
}

// rejectionStatus maps a rejection to its HTTP status.
func rejectionStatus(rej *reject.Error) int {
	switch {
	case strings.HasSuffix(rej.Code, "_not_found"):
		return http.StatusNotFound
	case conflictCodes[rej.Code]:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// fail writes err as the API error envelope. Rejections and bad input are
// returned to the caller; anything else is logged and hidden.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if rej, ok := reject.As(err); ok {
		zctx.From(r.Context()).Debug("Rejected", zap.String("code", rej.Code))
		writeError(w, rejectionStatus(rej), rej.Code, rej.Message)
		return
	}
	if errors.Is(err, errBadRequest) {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	h.internalError(w, r, err)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal", "temporary failure, try again")
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Str(code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// readBody returns a decoder over the request body. An empty body decodes
// as an empty object.
func readBody(r *http.Request) (*jx.Decoder, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, badRequest("read body: %v", err)
	}
	if len(data) > maxBodyBytes {
		return nil, badRequest("body exceeds %d bytes", maxBodyBytes)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		data = []byte("{}")
	}
	return jx.DecodeBytes(data), nil
}

// decodeDecimal accepts a JSON string or number.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, errors.New("expected decimal string or number")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse decimal %q", raw)
	}
	return v, nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func fieldMoney(e *jx.Encoder, name string, v decimal.Decimal) {
	e.Field(name, func(e *jx.Encoder) { e.Str(money.String(v)) })
}

func fieldStr(e *jx.Encoder, name, v string) {
	e.Field(name, func(e *jx.Encoder) { e.Str(v) })
}

func fieldInt(e *jx.Encoder, name string, v int) {
	e.Field(name, func(e *jx.Encoder) { e.Int(v) })
}

func fieldTime(e *jx.Encoder, name string, t time.Time) {
	e.Field(name, func(e *jx.Encoder) { e.Str(t.UTC().Format(time.RFC3339)) })
}
