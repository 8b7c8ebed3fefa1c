package api

import (
	"net/http"

	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
)

// reverseEvents flips a paginated page in place, used when sort=desc is
// requested: the archive's secondary indexes are built ascending by
// slot, so a descending view is produced by reversing the already-paged
// slice rather than re-walking the index backwards.
func reverseEvents(evs []events.Event) {
	for i, j := 0, len(evs)-1; i < j; i, j = i+1, j-1 {
		evs[i], evs[j] = evs[j], evs[i]
	}
}

func (s *Server) handleEventsByMint(w http.ResponseWriter, r *http.Request) {
	mint := r.URL.Query().Get("mint")
	if mint == "" {
		respondError(w, http.StatusBadRequest, "missing mint")
		return
	}
	page, pageSize := queryPage(r)

	result, err := s.archive.QueryByMintPaginated(mint, page, pageSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if descending(r) {
		reverseEvents(result.Events)
	}
	respondOK(w, result)
}

func (s *Server) handleEventsByUser(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		respondError(w, http.StatusBadRequest, "missing user")
		return
	}
	mintFilter := optionalQueryString(r, "mint")
	page, pageSize := queryPage(r)

	result, err := s.archive.QueryByUserPaginated(user, mintFilter, page, pageSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if descending(r) {
		reverseEvents(result.Events)
	}
	respondOK(w, result)
}

func (s *Server) handleEventsBySignature(w http.ResponseWriter, r *http.Request) {
	signature := r.URL.Query().Get("signature")
	if signature == "" {
		respondError(w, http.StatusBadRequest, "missing signature")
		return
	}

	evs, err := s.archive.QueryBySignature(signature)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, map[string]any{"signature": signature, "events": evs})
}
