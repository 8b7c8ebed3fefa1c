package api

import (
	"net/http"
	"strconv"
)

func queryUint32(r *http.Request, name string, def uint32) uint32 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def
	}
	return uint32(n)
}

func queryPage(r *http.Request) (page, pageSize uint32) {
	return queryUint32(r, "page", 1), queryUint32(r, "page_size", 20)
}

// descending reports whether the request asked for a descending sort,
// covering both the event archive's sort=asc|desc and the kline
// endpoint's order=time_asc|time_desc spellings.
func descending(r *http.Request) bool {
	v := r.URL.Query().Get("sort")
	if v == "" {
		v = r.URL.Query().Get("order")
	}
	return v == "desc" || v == "time_desc"
}

func optionalQueryString(r *http.Request, name string) *string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	return &v
}
