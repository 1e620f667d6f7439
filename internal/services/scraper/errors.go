package scraper

import "errors"

var (
	ErrInvalidURL  = errors.New("invalid URL")
	ErrFetchFailed = errors.New("fetch failed")
	ErrNotHTML     = errors.New("response is not HTML")
	ErrNoContent   = errors.New("no readable content")
)
