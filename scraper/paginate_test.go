package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/use-agent/lmstrack/models"
)

// fakeList is a ListView over a fixed number of pages. faults maps a call
// number of NextDisabled (1-based) to the error it returns.
type fakeList struct {
	pages        int
	current      int
	nextCalls    int
	disabledCall int
	faults       map[int]error
	neverDisable bool
}

func (f *fakeList) CourseTableHTML(context.Context) (string, error) {
	return fmt.Sprintf(`<table><tr data-id="p%d"><td></td><td>Course %d</td><td>t</td><td>d</td><td>1</td><td>0</td></tr></table>`,
		f.current+1, f.current+1), nil
}

func (f *fakeList) NextDisabled(context.Context) (bool, error) {
	f.disabledCall++
	if err, ok := f.faults[f.disabledCall]; ok {
		return false, err
	}
	return !f.neverDisable && f.current == f.pages-1, nil
}

func (f *fakeList) Next(context.Context) error {
	f.nextCalls++
	f.current++
	return nil
}

func collect(visited *[]int, titles *[]string) VisitFunc {
	return func(_ context.Context, page int, rows []models.CourseRow) error {
		*visited = append(*visited, page)
		for _, r := range rows {
			*titles = append(*titles, r.Title)
		}
		return nil
	}
}

func TestPaginate_StopsWhenNextDisabled(t *testing.T) {
	view := &fakeList{pages: 3}
	var visited []int
	var titles []string

	res, err := Paginate(context.Background(), view, 50, collect(&visited, &titles))
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}

	if res.Advances != 2 || view.nextCalls != 2 {
		t.Errorf("advances = %d (next calls %d), want 2", res.Advances, view.nextCalls)
	}
	if res.Pages != 3 {
		t.Errorf("pages = %d, want 3", res.Pages)
	}
	if !res.Exhausted {
		t.Error("expected Exhausted")
	}
	want := []string{"Course 1", "Course 2", "Course 3"}
	if fmt.Sprint(titles) != fmt.Sprint(want) {
		t.Errorf("titles = %v, want %v", titles, want)
	}
}

func TestPaginate_SinglePage(t *testing.T) {
	view := &fakeList{pages: 1}
	var visited []int
	var titles []string

	res, err := Paginate(context.Background(), view, 50, collect(&visited, &titles))
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	if res.Advances != 0 || res.Attempts != 0 || res.Pages != 1 || !res.Exhausted {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPaginate_StaleFaultConsumesAttempt(t *testing.T) {
	stale := models.NewScrapeError(models.ErrCodeStale, "node detached", nil)
	view := &fakeList{pages: 3, faults: map[int]error{2: stale}}
	var visited []int
	var titles []string

	res, err := Paginate(context.Background(), view, 50, collect(&visited, &titles))
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}

	// Page 2 is read twice: once before the fault and once on the retry.
	if res.Pages != 4 {
		t.Errorf("pages = %d, want 4", res.Pages)
	}
	if res.Advances != 2 {
		t.Errorf("advances = %d, want 2", res.Advances)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
	if !res.Exhausted {
		t.Error("expected Exhausted")
	}
}

func TestPaginate_BudgetExhausted(t *testing.T) {
	view := &fakeList{pages: 100, neverDisable: true}
	var visited []int
	var titles []string

	res, err := Paginate(context.Background(), view, 5, collect(&visited, &titles))
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	if res.Exhausted {
		t.Error("budget exhaustion reported as last page")
	}
	if res.Attempts != 5 || res.Advances != 5 || res.Pages != 5 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPaginate_GenericFaultsShareBudget(t *testing.T) {
	boom := errors.New("boom")
	view := &fakeList{pages: 10, faults: map[int]error{1: boom, 2: boom, 3: boom}}
	var visited []int
	var titles []string

	res, err := Paginate(context.Background(), view, 3, collect(&visited, &titles))
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	if res.Advances != 0 || res.Attempts != 3 || res.Pages != 3 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPaginate_VisitErrorCountsAsFault(t *testing.T) {
	view := &fakeList{pages: 2}
	calls := 0
	visit := func(context.Context, int, []models.CourseRow) error {
		calls++
		if calls == 1 {
			return errors.New("merge failed")
		}
		return nil
	}

	res, err := Paginate(context.Background(), view, 50, visit)
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	if res.Attempts != 2 || res.Advances != 1 || !res.Exhausted {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPaginate_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	view := &fakeList{pages: 10}
	visit := func(_ context.Context, page int, _ []models.CourseRow) error {
		if page == 2 {
			cancel()
		}
		return nil
	}

	res, err := Paginate(ctx, view, 50, visit)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Pages != 2 {
		t.Errorf("pages = %d, want 2", res.Pages)
	}
}
