package fakebackend

import (
	"net/http"
	"net/url"
	"strconv"
)

// PageSize matches the backend's PAGE_SIZE.
const PageSize = 20

type page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// paginate slices items by the ?page= query parameter. ok is false for a
// page number outside the result set.
func paginate[T any](r *http.Request, items []T) (page[T], bool) {
	n := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return page[T]{}, false
		}
		n = v
	}

	pages := max((len(items)+PageSize-1)/PageSize, 1)
	if n > pages {
		return page[T]{}, false
	}

	start := (n - 1) * PageSize
	end := min(start+PageSize, len(items))

	p := page[T]{
		Count:   len(items),
		Results: items[start:end],
	}
	if p.Results == nil {
		p.Results = []T{}
	}
	if n < pages {
		p.Next = pageURL(r, n+1)
	}
	if n > 1 {
		p.Previous = pageURL(r, n-1)
	}
	return p, true
}

func pageURL(r *http.Request, n int) *string {
	q := r.URL.Query()
	if n == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(n))
	}

	u := url.URL{
		Scheme:   "http",
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: q.Encode(),
	}
	if r.TLS != nil {
		u.Scheme = "https"
	}

	s := u.String()
	return &s
}
