package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

func (s *Server) handleTokenByMint(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]

	detail, err := s.registry.GetByMint(mint)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if detail == nil {
		respondError(w, http.StatusNotFound, "token not found")
		return
	}
	respondOK(w, detail)
}

// handleTokensLatest covers the registry's remaining lookups
// (GET /api/tokens?...) by query switch: symbol, payer, slot range, or
// (the default) newest-first listing, matching spec.md's catch-all
// "GET /api/tokens/{...} — registry queries."
func (s *Server) handleTokensLatest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	_, pageSize := queryPage(r)
	limit := int(pageSize)

	switch {
	case q.Get("symbol") != "":
		tokens, err := s.registry.GetBySymbol(q.Get("symbol"), limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondOK(w, tokens)

	case q.Get("payer") != "":
		tokens, err := s.registry.GetByPayer(q.Get("payer"))
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondOK(w, tokens)

	case q.Get("from_slot") != "" || q.Get("to_slot") != "":
		fromSlot := queryUint32(r, "from_slot", 0)
		toSlot := queryUint32(r, "to_slot", ^uint32(0))
		tokens, err := s.registry.GetBySlotRange(uint64(fromSlot), uint64(toSlot))
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondOK(w, tokens)

	default:
		var before *int64
		if v := q.Get("before"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				before = &n
			}
		}
		tokens, err := s.registry.GetLatest(limit, before)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondOK(w, tokens)
	}
}
