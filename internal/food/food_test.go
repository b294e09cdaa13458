package food

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/models"
)

type fakeSuggester struct {
	name string
	err  error
}

func (f fakeSuggester) SuggestFoodName(ctx context.Context, name string) (string, error) {
	return f.name, f.err
}

func TestLookupFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cgi/search.pl" || r.URL.Query().Get("search_terms") != "banana" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Write([]byte(`{"count":1,"products":[{"product_name":" Banana ","nutriments":{"energy-kcal_100g":89}}]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	p, err := c.Lookup(context.Background(), "banana")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Name != "Banana" || p.CaloriesPer100g != 89 {
		t.Errorf("unexpected product %+v", p)
	}
}

func TestLookupFallsBackToQueryName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"products":[{"nutriments":{"energy-kcal_100g":52.5}}]}`))
	}))
	defer srv.Close()

	p, err := NewClient(WithBaseURL(srv.URL)).Lookup(context.Background(), "apple")
	if err != nil || p.Name != "apple" || p.CaloriesPer100g != 52.5 {
		t.Errorf("Lookup = %+v, %v", p, err)
	}
}

func TestLookupNotFound(t *testing.T) {
	bodies := map[string]string{
		"no products":     `{"products":[]}`,
		"zero calories":   `{"products":[{"product_name":"Water","nutriments":{"energy-kcal_100g":0}}]}`,
		"string calories": `{"products":[{"product_name":"X","nutriments":{"energy-kcal_100g":"n/a"}}]}`,
		"no nutriments":   `{"products":[{"product_name":"X"}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := NewClient(WithBaseURL(srv.URL)).Lookup(context.Background(), "thing")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			var lerr *LookupError
			if !errors.As(err, &lerr) || lerr.Name != "thing" {
				t.Errorf("expected *LookupError for thing, got %v", err)
			}
		})
	}
}

func TestLookupUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL), WithSuggester(fakeSuggester{name: "x"})).Lookup(context.Background(), "rice")
	if !errors.Is(err, models.ErrLookupUnavailable) {
		t.Fatalf("expected ErrLookupUnavailable, got %v", err)
	}
	var lerr *LookupError
	if errors.As(err, &lerr) && lerr.Suggestion != "" {
		t.Errorf("suggestions are only for not-found products, got %q", lerr.Suggestion)
	}
}

func TestLookupSuggestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"products":[]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithSuggester(fakeSuggester{name: "buckwheat"}))
	_, err := c.Lookup(context.Background(), "grechka")
	var lerr *LookupError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *LookupError, got %v", err)
	}
	if lerr.Suggestion != "buckwheat" {
		t.Errorf("Suggestion = %q, want buckwheat", lerr.Suggestion)
	}

	c = NewClient(WithBaseURL(srv.URL), WithSuggester(fakeSuggester{err: errors.New("quota")}))
	_, err = c.Lookup(context.Background(), "grechka")
	if errors.As(err, &lerr) && lerr.Suggestion != "" {
		t.Errorf("failed suggester should leave Suggestion empty, got %q", lerr.Suggestion)
	}
}

func TestLookupCoalescesConcurrentRequests(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Write([]byte(`{"products":[{"product_name":"Oats","nutriments":{"energy-kcal_100g":389}}]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Lookup(context.Background(), "Oats"); err != nil {
				t.Errorf("Lookup: %v", err)
			}
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("expected 1 upstream request, got %d", n)
	}
}

func TestLookupSurvivesFirstCallerCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{"products":[{"product_name":"Rice","nutriments":{"energy-kcal_100g":130}}]}`))
	}))
	defer srv.Close()
	defer func() {
		select {
		case <-release:
		default:
			close(release)
		}
	}()

	c := NewClient(WithBaseURL(srv.URL))
	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Lookup(firstCtx, "rice")
		firstErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	second := make(chan error, 1)
	var got Product
	go func() {
		p, err := c.Lookup(context.Background(), "rice")
		got = p
		second <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, models.ErrLookupUnavailable) {
		t.Errorf("cancelled caller: err = %v, want ErrLookupUnavailable", err)
	}

	close(release)
	if err := <-second; err != nil {
		t.Fatalf("second caller failed after first cancelled: %v", err)
	}
	if got.Name != "Rice" || got.CaloriesPer100g != 130 {
		t.Errorf("unexpected product %+v", got)
	}
}
