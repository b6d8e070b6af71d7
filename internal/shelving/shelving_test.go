package shelving

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-server/internal/domain"
)

var discard = slog.New(slog.DiscardHandler)

// memSet is an in-memory ShelfSet and Assigner over one user's records.
type memSet struct {
	shelves map[string]*domain.Shelf
	books   map[string]*domain.Book
	assigns int
	failOn  string
}

func newMemSet(shelves []*domain.Shelf, books []*domain.Book) *memSet {
	m := &memSet{shelves: map[string]*domain.Shelf{}, books: map[string]*domain.Book{}}
	for _, s := range shelves {
		m.shelves[s.ID] = s
	}
	for _, b := range books {
		m.books[b.ID] = b
	}
	return m
}

func (m *memSet) FindShelves(context.Context) ([]*domain.Shelf, error) {
	out := make([]*domain.Shelf, 0, len(m.shelves))
	for _, s := range m.shelves {
		out = append(out, s)
	}
	SortShelves(out)
	return out, nil
}

func (m *memSet) CreateShelf(_ context.Context, s *domain.Shelf) error {
	m.shelves[s.ID] = s
	return nil
}

func (m *memSet) UpdateShelf(_ context.Context, s *domain.Shelf) error {
	m.shelves[s.ID] = s
	return nil
}

func (m *memSet) DeleteShelf(_ context.Context, id string) error {
	delete(m.shelves, id)
	return nil
}

func (m *memSet) UnassignShelf(_ context.Context, shelfID string) (int, error) {
	n := 0
	for _, b := range m.books {
		if b.OnShelf(shelfID) {
			b.Shelf = domain.Unassigned()
			n++
		}
	}
	return n, nil
}

func (m *memSet) AssignBook(_ context.Context, bookID string, ref domain.ShelfRef) error {
	if bookID == m.failOn {
		return errors.New("write failed")
	}
	m.assigns++
	m.books[bookID].Shelf = ref
	return nil
}

func (m *memSet) bookList() []*domain.Book {
	out := make([]*domain.Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, b)
	}
	SortBooks(out)
	return out
}

func shelf(id string, index, capacity int) *domain.Shelf {
	return &domain.Shelf{ID: id, UserID: "user-1", Name: domain.DefaultShelfName(index + 1), Capacity: capacity, Index: index}
}

func book(id, title string, pages int, shelfID string) *domain.Book {
	return &domain.Book{ID: id, UserID: "user-1", Title: title, Pages: pages, Shelf: domain.OnShelf(shelfID)}
}

func titles(books []*domain.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Title
	}
	return out
}

func TestFits(t *testing.T) {
	tests := []struct {
		used, capacity, pages int
		want                  bool
	}{
		{0, 10, 10, true},
		{0, 10, 11, false},
		{4, 10, 6, true},
		{5, 10, 6, false},
		{8, 5, 0, false},
		{5, 5, 0, true},
		{5, 10, math.MaxInt, false},
		{math.MaxInt, 10, 1, false},
		{0, 10, -1, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d+%d<=%d", tt.used, tt.pages, tt.capacity), func(t *testing.T) {
			assert.Equal(t, tt.want, Fits(tt.used, tt.capacity, tt.pages))
		})
	}
}

func TestCanResize(t *testing.T) {
	assert.False(t, CanResize(8, 5))
	assert.True(t, CanResize(8, 8))
	assert.False(t, CanResize(0, 0))
	assert.True(t, CanResize(0, 1))
}

func TestUsedPagesAndUsage(t *testing.T) {
	books := []*domain.Book{
		book("b1", "a", 3, "s1"),
		book("b2", "b", 4, "s1"),
		book("b3", "c", 5, "s2"),
		book("b4", "d", 6, ""),
	}
	assert.Equal(t, 7, UsedPages(books, "s1", ""))
	assert.Equal(t, 4, UsedPages(books, "s1", "b1"))
	assert.Equal(t, 0, UsedPages(books, "s3", ""))
	assert.Equal(t, map[string]int{"s1": 7, "s2": 5}, Usage(books))
}

func TestFirstFit(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s1", 0, 5), shelf("s2", 1, 10)}
	got, ok := FirstFit(shelves, map[string]int{"s1": 3}, 3)
	require.True(t, ok)
	assert.Equal(t, "s2", got.ID)

	_, ok = FirstFit(shelves, map[string]int{"s1": 3, "s2": 9}, 3)
	assert.False(t, ok)
}

func TestSortBooks_CyrillicCollation(t *testing.T) {
	books := []*domain.Book{
		book("1", "Яма", 1, ""),
		book("2", "азбука", 1, ""),
		book("3", "Жук", 1, ""),
		book("4", "вода", 1, ""),
		book("5", "Бор", 1, ""),
	}
	SortBooks(books)
	// Byte order would give Бор, Жук, Яма, азбука, вода.
	assert.Equal(t, []string{"азбука", "Бор", "вода", "Жук", "Яма"}, titles(books))
	assert.Negative(t, CompareTitles("Азбука", "Яма"))
}

func TestSortBooks_TiesBrokenByID(t *testing.T) {
	books := []*domain.Book{book("b", "Дюна", 1, ""), book("a", "Дюна", 1, "")}
	SortBooks(books)
	assert.Equal(t, "a", books[0].ID)
}

func TestFirstFit_HugeBookDoesNotWrap(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s1", 0, 10)}
	_, ok := FirstFit(shelves, map[string]int{"s1": 5}, math.MaxInt)
	assert.False(t, ok)
}

func TestDistribute_FirstFit(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s1", 0, 10), shelf("s2", 1, 5)}
	books := []*domain.Book{book("b1", "Новая книга", 7, "")}
	set := newMemSet(shelves, books)

	dist, err := NewDistributor(discard).Distribute(context.Background(), shelves, books, set)
	require.NoError(t, err)

	require.Len(t, dist.Placements, 1)
	assert.Equal(t, Placement{BookID: "b1", ShelfID: "s1"}, dist.Placements[0])
	assert.Equal(t, 7, dist.Shelves[0].UsedPages)
	assert.Equal(t, 0, dist.Shelves[1].UsedPages)
	assert.True(t, set.books["b1"].OnShelf("s1"))
}

func TestDistribute_FirstFitFollowsIndexNotInputOrder(t *testing.T) {
	shelves := []*domain.Shelf{shelf("late", 5, 100), shelf("early", 2, 100)}
	books := []*domain.Book{book("b1", "Книга", 1, "")}
	set := newMemSet(shelves, books)

	dist, err := NewDistributor(discard).Distribute(context.Background(), shelves, books, set)
	require.NoError(t, err)

	assert.Equal(t, "early", dist.Placements[0].ShelfID)
	assert.Equal(t, "early", dist.Shelves[0].ID)
	assert.Equal(t, "late", dist.Shelves[1].ID)
}

func TestDistribute_OverflowToLeastUsed(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s1", 0, 5), shelf("s2", 1, 5)}
	books := []*domain.Book{
		book("full", "Полная", 5, "s1"),
		book("most", "Почти", 4, "s2"),
		book("new", "Новая", 3, ""),
	}
	set := newMemSet(shelves, books)

	dist, err := NewDistributor(discard).Distribute(context.Background(), shelves, books, set)
	require.NoError(t, err)

	require.Len(t, dist.Placements, 1)
	assert.Equal(t, Placement{BookID: "new", ShelfID: "s2", Overflow: true}, dist.Placements[0])
	assert.Equal(t, 7, dist.Shelves[1].UsedPages)
	assert.True(t, dist.Shelves[1].Overflowing())
	assert.Equal(t, 1, dist.Overflows())
}

func TestDistribute_OverflowTieGoesToLowestIndex(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s2", 1, 2), shelf("s1", 0, 2)}
	books := []*domain.Book{book("big", "Том", 9, "")}
	set := newMemSet(shelves, books)

	dist, err := NewDistributor(discard).Distribute(context.Background(), shelves, books, set)
	require.NoError(t, err)
	assert.Equal(t, Placement{BookID: "big", ShelfID: "s1", Overflow: true}, dist.Placements[0])
}

func TestDistribute_PreassignedBooksAreTrusted(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s1", 0, 5)}
	books := []*domain.Book{book("b1", "Тяжёлая", 50, "s1")}
	set := newMemSet(shelves, books)

	dist, err := NewDistributor(discard).Distribute(context.Background(), shelves, books, set)
	require.NoError(t, err)
	assert.Empty(t, dist.Placements)
	assert.Equal(t, 50, dist.Shelves[0].UsedPages)
	assert.Zero(t, set.assigns)
}

func TestDistribute_DanglingReferenceIsReplaced(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s1", 0, 10)}
	books := []*domain.Book{book("b1", "Сирота", 2, "gone")}
	set := newMemSet(shelves, books)

	dist, err := NewDistributor(discard).Distribute(context.Background(), shelves, books, set)
	require.NoError(t, err)
	assert.Equal(t, "s1", dist.Placements[0].ShelfID)
	assert.True(t, set.books["b1"].OnShelf("s1"))
}

func TestDistribute_PlacesInTitleOrder(t *testing.T) {
	// Only one of the two books fits; the alphabetically first one wins.
	shelves := []*domain.Shelf{shelf("s1", 0, 5), shelf("s2", 1, 100)}
	books := []*domain.Book{book("b1", "Яблоко", 5, ""), book("b2", "арбуз", 5, "")}
	set := newMemSet(shelves, books)

	dist, err := NewDistributor(discard).Distribute(context.Background(), shelves, books, set)
	require.NoError(t, err)

	require.Len(t, dist.Placements, 2)
	assert.Equal(t, Placement{BookID: "b2", ShelfID: "s1"}, dist.Placements[0])
	assert.Equal(t, Placement{BookID: "b1", ShelfID: "s2"}, dist.Placements[1])
}

func TestDistribute_BucketsSortedByTitle(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s1", 0, 100)}
	books := []*domain.Book{
		book("b1", "Яма", 1, "s1"),
		book("b2", "Азбука", 1, ""),
		book("b3", "Мир", 1, "s1"),
	}
	set := newMemSet(shelves, books)

	dist, err := NewDistributor(discard).Distribute(context.Background(), shelves, books, set)
	require.NoError(t, err)
	assert.Equal(t, []string{"Азбука", "Мир", "Яма"}, titles(dist.Shelves[0].Books))
}

func TestDistribute_Idempotent(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s1", 0, 10), shelf("s2", 1, 10), shelf("s3", 2, 10)}
	books := []*domain.Book{
		book("b1", "Война и мир", 8, ""),
		book("b2", "Анна Каренина", 6, ""),
		book("b3", "Идиот", 5, ""),
		book("b4", "Бесы", 9, ""),
		book("b5", "Обломов", 12, ""),
	}
	set := newMemSet(shelves, books)
	d := NewDistributor(discard)

	first, err := d.Distribute(context.Background(), shelves, set.bookList(), set)
	require.NoError(t, err)
	assignsAfterFirst := set.assigns

	second, err := d.Distribute(context.Background(), shelves, set.bookList(), set)
	require.NoError(t, err)

	assert.Empty(t, second.Placements)
	assert.Equal(t, assignsAfterFirst, set.assigns)
	for i := range first.Shelves {
		assert.Equal(t, titles(first.Shelves[i].Books), titles(second.Shelves[i].Books))
		assert.Equal(t, first.Shelves[i].UsedPages, second.Shelves[i].UsedPages)
	}
}

func TestDistribute_UsedPagesMatchBooks(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s1", 0, 7), shelf("s2", 1, 7)}
	books := []*domain.Book{
		book("b1", "а", 3, ""), book("b2", "б", 4, ""), book("b3", "в", 5, ""),
		book("b4", "г", 6, ""), book("b5", "д", 2, "s2"),
	}
	set := newMemSet(shelves, books)

	dist, err := NewDistributor(discard).Distribute(context.Background(), shelves, books, set)
	require.NoError(t, err)

	all := set.bookList()
	for _, v := range dist.Shelves {
		assert.Equal(t, UsedPages(all, v.ID, ""), v.UsedPages, v.ID)
	}
}

func TestDistribute_NoShelves(t *testing.T) {
	books := []*domain.Book{book("b1", "Книга", 3, "")}
	set := newMemSet(nil, books)

	dist, err := NewDistributor(discard).Distribute(context.Background(), nil, books, set)
	require.NoError(t, err)
	assert.Empty(t, dist.Shelves)
	assert.Len(t, dist.Unplaced, 1)
	assert.Zero(t, set.assigns)
}

func TestDistribute_AssignError(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s1", 0, 10)}
	books := []*domain.Book{book("b1", "Книга", 3, "")}
	set := newMemSet(shelves, books)
	set.failOn = "b1"

	_, err := NewDistributor(discard).Distribute(context.Background(), shelves, books, set)
	assert.ErrorContains(t, err, "write failed")
}

func TestDistribute_ContextCanceled(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s1", 0, 10)}
	books := []*domain.Book{book("b1", "Книга", 3, "")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDistributor(discard).Distribute(ctx, shelves, books, newMemSet(shelves, books))
	assert.ErrorIs(t, err, context.Canceled)
}

func newTestInitializer(clock clockwork.Clock) *Initializer {
	in := NewInitializer(clock, discard)
	n := 0
	in.newID = func() (string, error) {
		n++
		return fmt.Sprintf("shelf-new-%d", n), nil
	}
	return in
}

func TestReconcile_CreatesMissingShelves(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	set := newMemSet(nil, nil)

	report, err := newTestInitializer(clock).Reconcile(context.Background(), set, "user-1", 3, 10)
	require.NoError(t, err)
	require.Len(t, report.Created, 3)

	shelves, _ := set.FindShelves(context.Background())
	require.Len(t, shelves, 3)
	for i, s := range shelves {
		assert.Equal(t, fmt.Sprintf("Shelf %d", i+1), s.Name)
		assert.Equal(t, i, s.Index)
		assert.Equal(t, 10, s.Capacity)
		assert.Equal(t, "user-1", s.UserID)
		assert.Equal(t, clock.Now(), s.CreatedAt)
	}
}

func TestReconcile_RemovesExcessFromTailAndUnassigns(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s1", 0, 10), shelf("s2", 1, 10), shelf("s3", 2, 10), shelf("s4", 3, 10)}
	books := []*domain.Book{book("b1", "а", 1, "s3"), book("b2", "б", 1, "s4"), book("b3", "в", 1, "s1")}
	set := newMemSet(shelves, books)

	report, err := newTestInitializer(clockwork.NewFakeClock()).Reconcile(context.Background(), set, "user-1", 2, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"s4", "s3"}, report.Removed)
	assert.Equal(t, 2, report.Unassigned)
	assert.Len(t, set.shelves, 2)
	assert.Len(t, set.books, 3, "books must not be deleted")
	assert.False(t, set.books["b1"].Shelf.IsAssigned())
	assert.False(t, set.books["b2"].Shelf.IsAssigned())
	assert.True(t, set.books["b3"].OnShelf("s1"))
}

func TestReconcile_FillsGapAfterMaxIndexAndResizes(t *testing.T) {
	shelves := []*domain.Shelf{shelf("s1", 0, 25), shelf("s5", 4, 10)}
	set := newMemSet(shelves, nil)

	report, err := newTestInitializer(clockwork.NewFakeClock()).Reconcile(context.Background(), set, "user-1", 4, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Resized)
	require.Len(t, report.Created, 2)
	assert.Equal(t, "Shelf 3", report.Created[0].Name)
	assert.Equal(t, 5, report.Created[0].Index)
	assert.Equal(t, "Shelf 4", report.Created[1].Name)
	assert.Equal(t, 6, report.Created[1].Index)
	assert.Equal(t, 10, set.shelves["s1"].Capacity)
}

func TestReconcile_ZeroCount(t *testing.T) {
	set := newMemSet([]*domain.Shelf{shelf("s1", 0, 10)}, nil)
	report, err := newTestInitializer(clockwork.NewFakeClock()).Reconcile(context.Background(), set, "user-1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, report.Removed)
	assert.Empty(t, set.shelves)
}

func TestReconcile_NoChange(t *testing.T) {
	set := newMemSet([]*domain.Shelf{shelf("s1", 0, 10)}, nil)
	report, err := newTestInitializer(clockwork.NewFakeClock()).Reconcile(context.Background(), set, "user-1", 1, 10)
	require.NoError(t, err)
	assert.False(t, report.Changed())
}

func TestReconcile_RejectsBadInput(t *testing.T) {
	in := newTestInitializer(clockwork.NewFakeClock())
	_, err := in.Reconcile(context.Background(), newMemSet(nil, nil), "user-1", -1, 10)
	assert.Error(t, err)
	_, err = in.Reconcile(context.Background(), newMemSet(nil, nil), "user-1", 1, 0)
	assert.Error(t, err)
}
