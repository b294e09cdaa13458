// Package food looks up calorie density of food products on OpenFoodFacts.
package food

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/httpkit"
	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the OpenFoodFacts site root.
const DefaultBaseURL = "https://world.openfoodfacts.org"

// lookupTimeout bounds a shared search, which outlives any single caller's context.
const lookupTimeout = 20 * time.Second

// ErrNotFound is returned when no product with positive calories matches.
var ErrNotFound = errors.New("food product not found")

// Product is a resolved food with its calories per 100 g.
type Product struct {
	Name            string
	CaloriesPer100g float64
}

// LookupError describes a failed lookup. Suggestion, when set, is a product
// name more likely to be found.
type LookupError struct {
	Name       string
	Suggestion string
	Err        error
}

func (e *LookupError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("lookup %q: %v (try %q)", e.Name, e.Err, e.Suggestion)
	}
	return fmt.Sprintf("lookup %q: %v", e.Name, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Suggester proposes a better search term for a product that was not found.
type Suggester interface {
	SuggestFoodName(ctx context.Context, name string) (string, error)
}

// Opts holds configuration options for the food client.
type Opts struct {
	BaseURL    string
	HTTPClient *http.Client
	Suggester  Suggester
}

// Option defines a configuration option for the food client.
type Option func(*Opts)

// WithBaseURL overrides the site root, mainly for tests.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithSuggester enables name suggestions for products that are not found.
func WithSuggester(s Suggester) Option {
	return func(o *Opts) { o.Suggester = s }
}

// Client searches OpenFoodFacts. Concurrent lookups of the same name share one request.
type Client struct {
	baseURL   string
	http      *http.Client
	suggester Suggester
	group     singleflight.Group
}

// NewClient creates a food client.
func NewClient(opts ...Option) *Client {
	cfg := Opts{BaseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpkit.NewClient()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      cfg.HTTPClient,
		suggester: cfg.Suggester,
	}
}

// Lookup resolves name to the first matching product with positive calories.
// Errors are *LookupError wrapping ErrNotFound or models.ErrLookupUnavailable.
func (c *Client) Lookup(ctx context.Context, name string) (Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Product{}, &LookupError{Name: name, Err: ErrNotFound}
	}
	key := strings.ToLower(name)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return c.search(sctx, name)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return Product{}, &LookupError{Name: name, Err: fmt.Errorf("%w: %v", models.ErrLookupUnavailable, ctx.Err())}
	}
	if res.Shared {
		slog.Debug("Food.Lookup: coalesced request", "name", name)
	}
	err := res.Err
	if err == nil {
		return res.Val.(Product), nil
	}

	lerr := &LookupError{Name: name, Err: err}
	if errors.Is(err, ErrNotFound) && c.suggester != nil {
		if s, serr := c.suggester.SuggestFoodName(ctx, name); serr == nil && !strings.EqualFold(s, name) {
			lerr.Suggestion = s
		} else if serr != nil {
			slog.Debug("Food.Lookup: suggestion failed", "name", name, "error", serr)
		}
	}
	return Product{}, lerr
}

func (c *Client) search(ctx context.Context, name string) (Product, error) {
	q := url.Values{}
	q.Set("search_terms", name)
	q.Set("search_simple", "1")
	q.Set("action", "process")
	q.Set("fields", "product_name,nutriments")
	q.Set("json", "1")
	q.Set("page_size", "1")

	body, err := httpkit.GetBody(ctx, c.http, c.baseURL+"/cgi/search.pl?"+q.Encode())
	if err != nil {
		slog.Warn("Food.search: request failed", "name", name, "error", err)
		return Product{}, fmt.Errorf("%w: food request: %v", models.ErrLookupUnavailable, err)
	}

	product := gjson.GetBytes(body, "products.0")
	if !product.Exists() {
		return Product{}, ErrNotFound
	}
	kcal := product.Get(`nutriments.energy-kcal_100g`)
	if kcal.Type != gjson.Number || kcal.Float() <= 0 {
		return Product{}, ErrNotFound
	}
	display := strings.TrimSpace(product.Get("product_name").String())
	if display == "" {
		display = name
	}
	slog.Debug("Food.search: product found", "name", name, "product", display, "kcal", kcal.Float())
	return Product{Name: display, CaloriesPer100g: kcal.Float()}, nil
}
