package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/rate"
)

func (h *Handler) getRates(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Rates.Current(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRates(e, cfg) })
}

// putRates takes a flat object of setting key to value. Unknown keys are
// rejected by rate.Admin before anything is stored.
func (h *Handler) putRates(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	settings := make(map[rate.Key]decimal.Decimal)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		v, err := decodeDecimal(d)
		if err != nil {
			return err
		}
		settings[rate.Key(key)] = v
		return nil
	}); err != nil {
		h.fail(w, r, badRequest("decode rates: %v", err))
		return
	}

	cfg, err := h.Rates.Update(r.Context(), settings)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRates(e, cfg) })
}

func encodeRates(e *jx.Encoder, cfg rate.Config) {
	e.Obj(func(e *jx.Encoder) {
		for _, k := range rate.Keys {
			v, _ := cfg.Get(k)
			e.Field(string(k), func(e *jx.Encoder) { e.Str(v.String()) })
		}
	})
}
