package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/uhyunpark/hyperlicked-indexer/internal/orderbook"
)

type orderbookSnapshot struct {
	Mint      string                   `json:"mint_account"`
	Direction orderbook.Direction      `json:"direction"`
	Orders    []orderbook.IndexedOrder `json:"orders"`
	Total     int                      `json:"total"`
	Page      uint32                   `json:"page"`
	PageSize  uint32                   `json:"page_size"`
}

func (s *Server) handleOrderbookSnapshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mint := vars["mint"]
	dir := orderbook.Direction(vars["dir"])
	if dir != orderbook.DirectionUp && dir != orderbook.DirectionDown {
		respondError(w, http.StatusBadRequest, "direction must be up or dn")
		return
	}

	store := orderbook.NewStore(s.db, mint, dir)
	all, err := store.GetAllActiveOrders()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	page, pageSize := queryPage(r)
	start := int((page - 1) * pageSize)
	if start > len(all) {
		start = len(all)
	}
	end := start + int(pageSize)
	if end > len(all) {
		end = len(all)
	}

	respondOK(w, orderbookSnapshot{
		Mint:      mint,
		Direction: dir,
		Orders:    all[start:end],
		Total:     len(all),
		Page:      page,
		PageSize:  pageSize,
	})
}

func (s *Server) handleUserActiveOrders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user := vars["user"]

	mintFilter := optionalQueryString(r, "mint")
	var dirFilter *string
	if d := r.URL.Query().Get("direction"); d != "" {
		dirFilter = &d
	}
	page, pageSize := queryPage(r)

	total, orders, err := orderbook.QueryUserActiveOrders(s.db, user, mintFilter, dirFilter, page, pageSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondOK(w, map[string]any{
		"user":      user,
		"orders":    orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (s *Server) handleUserOrderHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user := vars["user"]

	var fromTs, toTs uint32 = 0, ^uint32(0)
	if v := r.URL.Query().Get("start_time"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			fromTs = uint32(n)
		}
	}
	if v := r.URL.Query().Get("end_time"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			toTs = uint32(n)
		}
	}

	entries, err := orderbook.ListClosedOrdersByUserRange(s.db, user, fromTs, toTs)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	mintFilter := r.URL.Query().Get("mint")
	dirFilter := orderbook.Direction(r.URL.Query().Get("direction"))
	records := entries[:0]
	for _, entry := range entries {
		if mintFilter != "" && entry.Mint != mintFilter {
			continue
		}
		if dirFilter != "" && entry.Direction != dirFilter {
			continue
		}
		records = append(records, entry)
	}

	page, pageSize := queryPage(r)
	start := int((page - 1) * pageSize)
	if start > len(records) {
		start = len(records)
	}
	end := start + int(pageSize)
	if end > len(records) {
		end = len(records)
	}

	respondOK(w, map[string]any{
		"user":      user,
		"orders":    records[start:end],
		"total":     len(records),
		"page":      page,
		"page_size": pageSize,
	})
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user := vars["user"]

	stats, err := orderbook.CalculateUserStats(s.db, user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, stats)
}
