package cupid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	pkgerrs "github.com/artemisdev/go-cupid-api-wrapper/pkg/errors"
)

// Page is one page of a paginated listing.
type Page[T any] struct {
	// Number is the zero-based page index.
	Number int
	// PerPage is the requested page size. The final page may be shorter.
	PerPage int
	// TotalPages is the number of pages in the full listing.
	TotalPages int
	// TotalResults is the number of items in the full listing.
	TotalResults int
	// Items holds the page's items in server order.
	Items []T
}

// PageFetcher fetches one page of a listing.
type PageFetcher[T any] func(ctx context.Context, page int) (*Page[T], error)

// PagedList is a lazily fetched, cached view over a paginated listing. Pages
// are fetched at most once for the list's lifetime and never evicted;
// repeated iteration or flattening reuses the cache. Concurrent fetches of
// the same page are collapsed into one request.
type PagedList[T any] struct {
	fetch   PageFetcher[T]
	perPage int

	mu           sync.Mutex
	pages        map[int]*Page[T]
	totalPages   int
	totalResults int
	known        bool

	group singleflight.Group
}

// NewPagedList wraps a page-fetch function. Nothing is requested until the
// list is first used.
func NewPagedList[T any](perPage int, fetch PageFetcher[T]) *PagedList[T] {
	if perPage < 1 {
		perPage = 1
	}
	return &PagedList[T]{
		fetch:   fetch,
		perPage: perPage,
		pages:   make(map[int]*Page[T]),
	}
}

// GetPage returns page n, fetching it if it is not cached yet. Once the
// list's bounds are known, an out-of-range index fails before any network
// call. The first fetch is always permitted.
func (l *PagedList[T]) GetPage(ctx context.Context, n int) (*Page[T], error) {
	l.mu.Lock()
	if page, ok := l.pages[n]; ok {
		l.mu.Unlock()
		return page, nil
	}
	known, totalPages := l.known, l.totalPages
	l.mu.Unlock()

	if n < 0 || (known && n >= totalPages) {
		return nil, &pkgerrs.PageOutOfRangeError{Page: n, TotalPages: totalPages}
	}

	result, err, _ := l.group.Do(strconv.Itoa(n), func() (any, error) {
		l.mu.Lock()
		if page, ok := l.pages[n]; ok {
			l.mu.Unlock()
			return page, nil
		}
		l.mu.Unlock()

		page, err := l.fetch(ctx, n)
		if err != nil {
			return nil, err
		}
		if err := l.admit(n, page); err != nil {
			return nil, err
		}
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Page[T]), nil
}

// admit validates a fetched page against the list's invariants and caches it.
func (l *PagedList[T]) admit(n int, page *Page[T]) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.known && (page.TotalPages != l.totalPages || page.TotalResults != l.totalResults) {
		return &pkgerrs.DataIntegrityError{
			Message: fmt.Sprintf("listing totals changed between pages: had %d results in %d pages, page %d reports %d in %d",
				l.totalResults, l.totalPages, n, page.TotalResults, page.TotalPages),
		}
	}
	if len(page.Items) > l.perPage {
		return &pkgerrs.DataIntegrityError{
			Message: fmt.Sprintf("page %d has %d items, more than the page size %d", n, len(page.Items), l.perPage),
		}
	}
	// A short page must be the final page; anything else means the server's
	// totals disagree with its contents.
	if len(page.Items) < l.perPage && n < page.TotalPages-1 {
		return &pkgerrs.DataIntegrityError{
			Message: fmt.Sprintf("page %d of %d has only %d of %d items", n, page.TotalPages, len(page.Items), l.perPage),
		}
	}

	l.totalPages = page.TotalPages
	l.totalResults = page.TotalResults
	l.known = true
	l.pages[n] = page
	return nil
}

// ensureKnown fetches page 0 if no page has been fetched yet, so the list's
// bounds are available.
func (l *PagedList[T]) ensureKnown(ctx context.Context) error {
	l.mu.Lock()
	known := l.known
	l.mu.Unlock()
	if known {
		return nil
	}
	_, err := l.GetPage(ctx, 0)
	return err
}

// TotalResults returns the number of items in the full listing, fetching
// page 0 first if nothing is cached yet.
func (l *PagedList[T]) TotalResults(ctx context.Context) (int, error) {
	if err := l.ensureKnown(ctx); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalResults, nil
}

// TotalPages returns the number of pages in the full listing, fetching
// page 0 first if nothing is cached yet.
func (l *PagedList[T]) TotalPages(ctx context.Context) (int, error) {
	if err := l.ensureKnown(ctx); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalPages, nil
}

// Len is an alias for TotalResults.
func (l *PagedList[T]) Len(ctx context.Context) (int, error) {
	return l.TotalResults(ctx)
}

// Flatten returns the concatenation of all items across all pages, in server
// order. Missing pages are fetched sequentially in ascending order to bound
// concurrent load; already-cached pages are not re-fetched.
func (l *PagedList[T]) Flatten(ctx context.Context) ([]T, error) {
	first, err := l.GetPage(ctx, 0)
	if err != nil {
		return nil, err
	}

	items := make([]T, 0, first.TotalResults)
	items = append(items, first.Items...)
	for n := 1; n < first.TotalPages; n++ {
		page, err := l.GetPage(ctx, n)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// Iterator returns an iterator over all items, fetching pages on demand. A
// fresh iterator restarts from the first item but reuses the list's page
// cache, never re-fetching.
func (l *PagedList[T]) Iterator(ctx context.Context) *ListIterator[T] {
	return &ListIterator[T]{ctx: ctx, list: l, hasMore: true}
}

// ErrNoMoreItems is returned by Next when the iteration is exhausted.
var ErrNoMoreItems = errors.New("no more items available")

// ListIterator iterates over every item of a PagedList in order.
type ListIterator[T any] struct {
	ctx       context.Context
	list      *PagedList[T]
	page      int
	buffer    []T
	bufferIdx int
	hasMore   bool
	err       error
}

// HasNext returns true if there may be more items to iterate through.
func (it *ListIterator[T]) HasNext() bool {
	if it.err != nil {
		return false
	}
	return it.bufferIdx < len(it.buffer) || it.hasMore
}

// Next returns the next item in the iteration.
func (it *ListIterator[T]) Next() (T, error) {
	var zero T
	if it.err != nil {
		return zero, it.err
	}

	for it.bufferIdx >= len(it.buffer) {
		if !it.hasMore {
			return zero, ErrNoMoreItems
		}

		page, err := it.list.GetPage(it.ctx, it.page)
		if err != nil {
			it.err = err
			return zero, err
		}

		it.buffer = page.Items
		it.bufferIdx = 0
		it.page++
		it.hasMore = it.page < page.TotalPages
	}

	item := it.buffer[it.bufferIdx]
	it.bufferIdx++
	return item, nil
}

// Error returns any error encountered during iteration.
func (it *ListIterator[T]) Error() error {
	return it.err
}

// Reset restarts the iteration from the first item. Cached pages are reused.
func (it *ListIterator[T]) Reset() {
	it.page = 0
	it.buffer = nil
	it.bufferIdx = 0
	it.hasMore = true
	it.err = nil
}

// Collect fetches all remaining items up to a maximum count. maxItems <= 0
// means no limit.
func (it *ListIterator[T]) Collect(maxItems int) ([]T, error) {
	var items []T
	for it.HasNext() && (maxItems <= 0 || len(items) < maxItems) {
		item, err := it.Next()
		if errors.Is(err, ErrNoMoreItems) {
			break
		}
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}
