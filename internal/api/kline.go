package api

import (
	"net/http"

	"github.com/uhyunpark/hyperlicked-indexer/internal/candles"
)

func (s *Server) handleKline(w http.ResponseWriter, r *http.Request) {
	mint := r.URL.Query().Get("mint")
	if mint == "" {
		respondError(w, http.StatusBadRequest, "missing mint")
		return
	}
	interval, err := candles.ParseInterval(r.URL.Query().Get("interval"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, pageSize := queryUint32(r, "page", 1), queryUint32(r, "limit", 100)

	if !descending(r) {
		result, err := s.candles.Query(mint, interval, page, pageSize)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondOK(w, result)
		return
	}

	// order=time_desc: pull every bucket, reverse, then slice the
	// requested page off the newest end.
	all, err := s.candles.Query(mint, interval, 1, 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	reversed := make([]candles.Candle, len(all.Candles))
	for i, c := range all.Candles {
		reversed[len(all.Candles)-1-i] = c
	}

	if pageSize == 0 {
		pageSize = uint32(len(reversed))
		if pageSize == 0 {
			pageSize = 1
		}
	}
	start := int((page - 1) * pageSize)
	if start > len(reversed) {
		start = len(reversed)
	}
	end := start + int(pageSize)
	if end > len(reversed) {
		end = len(reversed)
	}

	totalPages := uint32(0)
	if all.Total > 0 {
		totalPages = uint32((all.Total + uint64(pageSize) - 1) / uint64(pageSize))
	}

	respondOK(w, candles.QueryResult{
		Candles:    reversed[start:end],
		Total:      all.Total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Mint:       mint,
		Interval:   interval,
	})
}
