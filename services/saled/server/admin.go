package server

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"crybsale/integrations/exports"
	"crybsale/services/saled/middleware"
)

// maxWhitelistEntries bounds one whitelist request.
const maxWhitelistEntries = 500

func (s *Server) adminCaller(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	caller, ok := middleware.Subject(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return [20]byte{}, false
	}
	return caller, true
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.adminCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Entries []struct {
			Beneficiary string `json:"beneficiary"`
			Amount      string `json:"amount"`
		} `json:"entries"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Entries) == 0 {
		s.writeError(w, r, badRequest("entries required"))
		return
	}
	if len(req.Entries) > maxWhitelistEntries {
		s.writeError(w, r, badRequest("at most %d entries per request", maxWhitelistEntries))
		return
	}
	beneficiaries := make([][20]byte, 0, len(req.Entries))
	amounts := make([]*big.Int, 0, len(req.Entries))
	for i, entry := range req.Entries {
		account, err := parseAccount(fmt.Sprintf("entries[%d].beneficiary", i), entry.Beneficiary)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		amount, err := parseAmount(fmt.Sprintf("entries[%d].amount", i), entry.Amount)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		beneficiaries = append(beneficiaries, account)
		amounts = append(amounts, amount)
	}
	indices, err := s.runtime.Whitelist(r.Context(), caller, beneficiaries, amounts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(indices), "indices": indices})
}

func (s *Server) handleWithdrawRemaining(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.adminCaller(w, r)
	if !ok {
		return
	}
	withdrawn, err := s.runtime.WithdrawRemaining(r.Context(), caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"withdrawn": amountString(withdrawn)})
}

func (s *Server) handleAvailableForSale(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.adminCaller(w, r)
	if !ok {
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
	if err := s.runtime.SetAvailableForSale(r.Context(), caller, amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"availableForSale": amount.String()})
}

func (s *Server) handleTokenExclude(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.adminCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Accounts []string `json:"accounts"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Accounts) == 0 {
		s.writeError(w, r, badRequest("accounts required"))
		return
	}
	accounts := make([][20]byte, 0, len(req.Accounts))
	for i, raw := range req.Accounts {
		account, err := parseAccount(fmt.Sprintf("accounts[%d]", i), raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		accounts = append(accounts, account)
	}
	if err := s.runtime.TokenExclude(r.Context(), caller, accounts); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"excluded": len(accounts)})
}

func (s *Server) handleTokenInclude(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.adminCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Account string `json:"account"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	account, err := parseAccount("account", req.Account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.runtime.TokenInclude(r.Context(), caller, account); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"included": address(account)})
}

func (s *Server) handleExportPositions(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "csv"
	}
	positions, err := s.runtime.AllPositions()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows := exports.Rows(positions, s.runtime.Now())
	stamp := time.Unix(s.runtime.Now(), 0).UTC().Format("20060102T150405Z")
	filename := fmt.Sprintf("positions-%s.%s", stamp, format)

	var (
		data        []byte
		checksum    string
		contentType string
	)
	switch format {
	case "csv":
		data, checksum, err = exports.PositionsCSV(rows)
		contentType = "text/csv"
	case "jsonl":
		data, checksum, err = exports.PositionsJSONL(rows)
		contentType = "application/x-ndjson"
	case "parquet":
		w.Header().Set("Content-Type", "application/vnd.apache.parquet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		if err := exports.WritePositionsParquet(w, rows); err != nil {
			s.logger.Error("saled: parquet export failed", "error", err)
		}
		return
	default:
		s.writeError(w, r, badRequest("unsupported format %q", format))
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Checksum-SHA256", checksum)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
