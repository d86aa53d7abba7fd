package server

import (
	"context"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"crybsale/crypto"
	"crybsale/native/sale"
	"crybsale/services/saled/middleware"
)

const defaultHistoryLimit = 100

func (s *Server) handleSaleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.runtime.Status()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	meta := s.runtime.TokenMetadata()
	view := renderSale(status)
	writeJSON(w, http.StatusOK, map[string]any{
		"sale":  view,
		"token": map[string]any{"name": meta.Name, "symbol": meta.Symbol, "decimals": meta.Decimals, "taxBps": meta.TaxBps},
	})
}

func (s *Server) handlePhase(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, r, badRequest("phase index must be an integer"))
		return
	}
	phase, err := s.runtime.Phase(index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderPhase(*phase))
}

func (s *Server) handleVesting(w http.ResponseWriter, r *http.Request) {
	beneficiary, err := parseAccount("address", chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	positions, err := s.runtime.Positions(beneficiary)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	allocation, err := s.runtime.Allocation(beneficiary)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]positionView, 0, len(positions))
	releasable := new(big.Int)
	for _, pos := range positions {
		views = append(views, renderPosition(pos))
		if pos.Releasable != nil {
			releasable.Add(releasable, pos.Releasable)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"beneficiary": address(beneficiary),
		"count":       len(views),
		"allocation":  amountString(allocation),
		"releasable":  releasable.String(),
		"positions":   views,
	})
}

func (s *Server) handleVestingPosition(w http.ResponseWriter, r *http.Request) {
	beneficiary, err := parseAccount("address", chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		s.writeError(w, r, badRequest("position index must be an unsigned integer"))
		return
	}
	pos, err := s.runtime.Position(beneficiary, index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderPosition(*pos))
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount("address", chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.runtime.TokenBalance(account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	excluded, err := s.runtime.TokenExcluded(account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	currency, err := s.runtime.CurrencyBalance(account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":  address(account),
		"balance":  balance.String(),
		"excluded": excluded,
		"currency": amountString(currency),
	})
}

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "journal not configured"})
		return
	}
	query := r.URL.Query()
	beneficiary := ""
	if raw := strings.TrimSpace(query.Get("beneficiary")); raw != "" {
		account, err := parseAccount("beneficiary", raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		beneficiary = crypto.FromArray(account).String()
	}
	limit := defaultHistoryLimit
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, r, badRequest("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	records, err := s.journal.Purchases(r.Context(), beneficiary, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]any{
			"sequence":       rec.Sequence,
			"beneficiary":    rec.Beneficiary,
			"phase":          rec.Phase,
			"currencyAmount": rec.CurrencyAmount,
			"tokenAmount":    rec.TokenAmount,
			"vested":         rec.Vested,
			"committedAt":    rec.CommittedAt.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchases": out})
}

type purchaseFunc func(ctx context.Context, beneficiary [20]byte, amount *big.Int) (*sale.PurchaseResult, error)

func (s *Server) handlePurchase(fn purchaseFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := middleware.Subject(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		var req struct {
			Amount string `json:"amount"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		result, err := fn(r.Context(), caller, amount)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		body := map[string]any{
			"beneficiary": address(caller),
			"tokenAmount": amountString(result.TokenAmount),
			"vested":      result.Vested,
		}
		if result.Vested {
			body["index"] = result.Index
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.Subject(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	var req struct {
		Index *uint64 `json:"index"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Index == nil {
		s.writeError(w, r, badRequest("index required"))
		return
	}
	released, err := s.runtime.Release(r.Context(), caller, *req.Index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": *req.Index, "released": amountString(released)})
}

func (s *Server) handleReleaseAll(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.Subject(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	released, err := s.runtime.ReleaseAll(r.Context(), caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"released": amountString(released)})
}

func (s *Server) handleTokenTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.Subject(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	var req struct {
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.runtime.TokenTransfer(r.Context(), caller, to, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"from": address(caller), "to": address(to), "amount": amount.String()})
}
