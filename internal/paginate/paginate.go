// Package paginate walks a paged upstream resource until it is exhausted.
package paginate

import (
	"context"
	"iter"
	"time"

	"golang.org/x/time/rate"
)

// Policy decides when a walk is finished
type Policy int

const (
	// TotalPages stops once the page number reaches the total reported by the first response
	TotalPages Policy = iota
	// EmptyPage stops at the first page with no items
	EmptyPage
	// NextLink stops when a page carries no next-page affordance
	NextLink
)

// UnknownTotal is assumed when a TotalPages response does not report a total
const UnknownTotal = 999

// DefaultMaxPages caps walks that do not set MaxPages
const DefaultMaxPages = 500

// StopReason records why a walk ended
type StopReason string

const (
	StopNone      StopReason = ""
	StopExhausted StopReason = "total_reached"
	StopEmpty     StopReason = "empty_page"
	StopNoNext    StopReason = "no_next_link"
	StopPageCap   StopReason = "page_cap"
	StopError     StopReason = "fetch_error"
	StopCanceled  StopReason = "canceled"
	StopConsumer  StopReason = "consumer_stopped"
)

// Page is one fetched page
type Page[T any] struct {
	Items []T
	// TotalPages is read from the first page only, zero when unknown
	TotalPages int
	// HasNext reports a next-page affordance for NextLink walks
	HasNext bool
}

// FetchFunc fetches a 1-based page
type FetchFunc[T any] func(ctx context.Context, page int) (Page[T], error)

// Options configures a walk
type Options struct {
	Policy   Policy
	MaxPages int
	// Delay is the minimum spacing between page requests
	Delay time.Duration
}

// Walker drives one pagination run. A Walker is single use.
type Walker[T any] struct {
	fetch FetchFunc[T]
	opts  Options

	pages int
	total int
	stop  StopReason
	err   error
}

// New creates a Walker
func New[T any](fetch FetchFunc[T], opts Options) *Walker[T] {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	return &Walker[T]{fetch: fetch, opts: opts}
}

// Items returns a lazy sequence over every item on every page.
//
// A fetch error ends the sequence without surfacing to the consumer; items
// already yielded are kept. Err reports the error afterwards.
func (w *Walker[T]) Items(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		limit := rate.Inf
		if w.opts.Delay > 0 {
			limit = rate.Every(w.opts.Delay)
		}
		limiter := rate.NewLimiter(limit, 1)

		for page := 1; ; page++ {
			if page > w.opts.MaxPages {
				w.stop = StopPageCap
				return
			}
			if err := limiter.Wait(ctx); err != nil {
				w.stop, w.err = StopCanceled, err
				return
			}

			result, err := w.fetch(ctx, page)
			if err != nil {
				w.stop, w.err = StopError, err
				if ctx.Err() != nil {
					w.stop = StopCanceled
				}
				return
			}
			w.pages++

			if page == 1 {
				w.total = result.TotalPages
				if w.total <= 0 {
					w.total = UnknownTotal
				}
			}

			if len(result.Items) == 0 {
				w.stop = StopEmpty
				return
			}
			for _, item := range result.Items {
				if !yield(item) {
					w.stop = StopConsumer
					return
				}
			}

			switch w.opts.Policy {
			case TotalPages:
				if page >= w.total {
					w.stop = StopExhausted
					return
				}
			case NextLink:
				if !result.HasNext {
					w.stop = StopNoNext
					return
				}
			}
		}
	}
}

// Collect drains the walk into a slice
func (w *Walker[T]) Collect(ctx context.Context) []T {
	var out []T
	for item := range w.Items(ctx) {
		out = append(out, item)
	}
	return out
}

// Pages returns the number of pages fetched successfully
func (w *Walker[T]) Pages() int {
	return w.pages
}

// Stop returns why the walk ended
func (w *Walker[T]) Stop() StopReason {
	return w.stop
}

// Err returns the fetch error that ended the walk, if any
func (w *Walker[T]) Err() error {
	return w.err
}
