package cupid

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgerrs "github.com/artemisdev/go-cupid-api-wrapper/pkg/errors"
)

// newCountingList builds a PagedList over a fixed item count, counting
// fetches per page index.
func newCountingList(total, perPage int, fetches *atomic.Int32) *PagedList[int] {
	totalPages := (total + perPage - 1) / perPage
	fetch := func(ctx context.Context, page int) (*Page[int], error) {
		fetches.Add(1)
		start := page * perPage
		end := start + perPage
		if end > total {
			end = total
		}
		items := make([]int, 0, perPage)
		for i := start; i < end; i++ {
			items = append(items, i)
		}
		return &Page[int]{
			Number:       page,
			PerPage:      perPage,
			TotalPages:   totalPages,
			TotalResults: total,
			Items:        items,
		}, nil
	}
	return NewPagedList(perPage, fetch)
}

func TestPagedListGetPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("returns a partial final page", func(t *testing.T) {
		var fetches atomic.Int32
		list := newCountingList(25, 10, &fetches)

		page, err := list.GetPage(ctx, 2)
		require.NoError(t, err)
		require.Len(t, page.Items, 5)
		require.Equal(t, []int{20, 21, 22, 23, 24}, page.Items)
		require.Equal(t, 3, page.TotalPages)
		require.Equal(t, 25, page.TotalResults)
	})

	t.Run("caches pages", func(t *testing.T) {
		var fetches atomic.Int32
		list := newCountingList(25, 10, &fetches)

		first, err := list.GetPage(ctx, 1)
		require.NoError(t, err)
		again, err := list.GetPage(ctx, 1)
		require.NoError(t, err)
		require.Same(t, first, again)
		require.Equal(t, int32(1), fetches.Load())
	})

	t.Run("rejects out-of-range pages without a fetch once bounds are known", func(t *testing.T) {
		var fetches atomic.Int32
		list := newCountingList(25, 10, &fetches)

		_, err := list.GetPage(ctx, 0)
		require.NoError(t, err)
		before := fetches.Load()

		_, err = list.GetPage(ctx, 3)
		var rangeErr *pkgerrs.PageOutOfRangeError
		require.ErrorAs(t, err, &rangeErr)
		require.Equal(t, 3, rangeErr.Page)
		require.Equal(t, 3, rangeErr.TotalPages)
		require.Equal(t, before, fetches.Load())
	})

	t.Run("rejects negative pages", func(t *testing.T) {
		var fetches atomic.Int32
		list := newCountingList(25, 10, &fetches)

		_, err := list.GetPage(ctx, -1)
		var rangeErr *pkgerrs.PageOutOfRangeError
		require.ErrorAs(t, err, &rangeErr)
		require.Equal(t, int32(0), fetches.Load())
	})

	t.Run("first fetch is always permitted", func(t *testing.T) {
		var fetches atomic.Int32
		list := newCountingList(25, 10, &fetches)

		page, err := list.GetPage(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, 2, page.Number)
	})
}

func TestPagedListFlatten(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("returns all items in order with one fetch per page", func(t *testing.T) {
		var fetches atomic.Int32
		list := newCountingList(25, 10, &fetches)

		items, err := list.Flatten(ctx)
		require.NoError(t, err)
		require.Len(t, items, 25)
		for i, item := range items {
			require.Equal(t, i, item)
		}
		require.Equal(t, int32(3), fetches.Load())
	})

	t.Run("repeated flatten reuses the cache", func(t *testing.T) {
		var fetches atomic.Int32
		list := newCountingList(25, 10, &fetches)

		first, err := list.Flatten(ctx)
		require.NoError(t, err)
		second, err := list.Flatten(ctx)
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.Equal(t, int32(3), fetches.Load())
	})

	t.Run("empty listing needs a single fetch", func(t *testing.T) {
		var fetches atomic.Int32
		list := newCountingList(0, 10, &fetches)

		items, err := list.Flatten(ctx)
		require.NoError(t, err)
		require.Empty(t, items)
		require.Equal(t, int32(1), fetches.Load())
	})
}

func TestPagedListTotals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var fetches atomic.Int32
	list := newCountingList(25, 10, &fetches)

	// Totals trigger a fetch of page 0 when nothing is cached yet.
	total, err := list.TotalResults(ctx)
	require.NoError(t, err)
	require.Equal(t, 25, total)
	require.Equal(t, int32(1), fetches.Load())

	pages, err := list.TotalPages(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, pages)

	length, err := list.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 25, length)

	require.Equal(t, int32(1), fetches.Load())
}

func TestPagedListIterator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("yields the same sequence as flatten", func(t *testing.T) {
		var fetches atomic.Int32
		list := newCountingList(25, 10, &fetches)

		flattened, err := list.Flatten(ctx)
		require.NoError(t, err)

		it := list.Iterator(ctx)
		var iterated []int
		for it.HasNext() {
			item, err := it.Next()
			if err == ErrNoMoreItems {
				break
			}
			require.NoError(t, err)
			iterated = append(iterated, item)
		}
		require.Equal(t, flattened, iterated)
		require.Equal(t, int32(3), fetches.Load())
	})

	t.Run("restarted iteration reuses cached pages", func(t *testing.T) {
		var fetches atomic.Int32
		list := newCountingList(25, 10, &fetches)

		it := list.Iterator(ctx)
		first, err := it.Collect(0)
		require.NoError(t, err)
		require.Len(t, first, 25)

		it.Reset()
		second, err := it.Collect(0)
		require.NoError(t, err)
		require.Equal(t, first, second)

		fresh, err := list.Iterator(ctx).Collect(0)
		require.NoError(t, err)
		require.Equal(t, first, fresh)

		require.Equal(t, int32(3), fetches.Load())
	})

	t.Run("collect honours the limit", func(t *testing.T) {
		var fetches atomic.Int32
		list := newCountingList(25, 10, &fetches)

		items, err := list.Iterator(ctx).Collect(12)
		require.NoError(t, err)
		require.Len(t, items, 12)
		require.Equal(t, int32(2), fetches.Load())
	})

	t.Run("empty listing yields nothing", func(t *testing.T) {
		var fetches atomic.Int32
		list := newCountingList(0, 10, &fetches)

		items, err := list.Iterator(ctx).Collect(0)
		require.NoError(t, err)
		require.Empty(t, items)
		require.Equal(t, int32(1), fetches.Load())
	})

	t.Run("exhausted iterator reports no more items", func(t *testing.T) {
		var fetches atomic.Int32
		list := newCountingList(5, 10, &fetches)

		it := list.Iterator(ctx)
		_, err := it.Collect(0)
		require.NoError(t, err)
		_, err = it.Next()
		require.ErrorIs(t, err, ErrNoMoreItems)
	})
}

func TestPagedListIntegrityChecks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("short page that is not final", func(t *testing.T) {
		fetch := func(ctx context.Context, page int) (*Page[int], error) {
			return &Page[int]{
				Number:       page,
				PerPage:      10,
				TotalPages:   3,
				TotalResults: 25,
				Items:        []int{1, 2, 3},
			}, nil
		}
		list := NewPagedList(10, fetch)

		_, err := list.GetPage(ctx, 0)
		var integrityErr *pkgerrs.DataIntegrityError
		require.ErrorAs(t, err, &integrityErr)
	})

	t.Run("oversized page", func(t *testing.T) {
		fetch := func(ctx context.Context, page int) (*Page[int], error) {
			items := make([]int, 11)
			return &Page[int]{Number: page, PerPage: 10, TotalPages: 1, TotalResults: 11, Items: items}, nil
		}
		list := NewPagedList(10, fetch)

		_, err := list.GetPage(ctx, 0)
		var integrityErr *pkgerrs.DataIntegrityError
		require.ErrorAs(t, err, &integrityErr)
	})

	t.Run("totals changing between pages", func(t *testing.T) {
		fetch := func(ctx context.Context, page int) (*Page[int], error) {
			total := 25
			if page == 1 {
				total = 30
			}
			items := make([]int, 10)
			return &Page[int]{Number: page, PerPage: 10, TotalPages: 3, TotalResults: total, Items: items}, nil
		}
		list := NewPagedList(10, fetch)

		_, err := list.GetPage(ctx, 0)
		require.NoError(t, err)
		_, err = list.GetPage(ctx, 1)
		var integrityErr *pkgerrs.DataIntegrityError
		require.ErrorAs(t, err, &integrityErr)
	})

	t.Run("failed fetch is not cached", func(t *testing.T) {
		var fetches atomic.Int32
		fetch := func(ctx context.Context, page int) (*Page[int], error) {
			if fetches.Add(1) == 1 {
				return nil, fmt.Errorf("transient failure")
			}
			return &Page[int]{Number: page, PerPage: 10, TotalPages: 1, TotalResults: 2, Items: []int{1, 2}}, nil
		}
		list := NewPagedList(10, fetch)

		_, err := list.GetPage(ctx, 0)
		require.Error(t, err)

		page, err := list.GetPage(ctx, 0)
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
	})
}

func TestPagedListConcurrentFetchSingleFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var fetches atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context, page int) (*Page[int], error) {
		fetches.Add(1)
		<-release
		return &Page[int]{Number: page, PerPage: 10, TotalPages: 1, TotalResults: 2, Items: []int{1, 2}}, nil
	}
	list := NewPagedList(10, fetch)

	const workers = 10
	var wg sync.WaitGroup
	pages := make([]*Page[int], workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pages[i], errs[i] = list.GetPage(ctx, 0)
		}(i)
	}

	// Let every worker reach the in-flight fetch before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), fetches.Load())
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Same(t, pages[0], pages[i])
	}
}
