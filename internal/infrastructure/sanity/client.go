package sanity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/storefront/internal/domain/catalog"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const projection = `{_id, title, price, description, discountPercentage, "imageUrl": productImage.asset->url, tags, "slug": slug.current}`

const (
	queryBySlug = `*[_type == "product" && slug.current == $slug][0]` + projection
	queryByID   = `*[_type == "product" && _id == $id][0]` + projection
	// GROQ slices take literal bounds; %d is the limit.
	queryList = `*[_type == "product"][0...%d]` + projection
)

const maxResponseBody = 4 << 20

var ErrNotConfigured = errors.New("sanity project id and dataset are required")

type Config struct {
	ProjectID  string
	Dataset    string
	APIVersion string
	Token      string
	UseCDN     bool
	// BaseURL overrides the project host, e.g. for tests.
	BaseURL          string
	CurrencyExponent int32
	Timeout          time.Duration
}

// Client reads products from the Sanity HTTP query API.
type Client struct {
	endpoint string
	token    string
	exponent int32
	http     *http.Client
	logger   zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Dataset == "" || (cfg.ProjectID == "" && cfg.BaseURL == "") {
		return nil, ErrNotConfigured
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2023-05-03"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CurrencyExponent == 0 {
		cfg.CurrencyExponent = catalog.DefaultCurrencyExponent
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		host := "api.sanity.io"
		if cfg.UseCDN {
			host = "apicdn.sanity.io"
		}
		base = fmt.Sprintf("https://%s.%s", cfg.ProjectID, host)
	}

	return &Client{
		endpoint: fmt.Sprintf("%s/v%s/data/query/%s", base, strings.TrimPrefix(cfg.APIVersion, "v"), url.PathEscape(cfg.Dataset)),
		token:    cfg.Token,
		exponent: cfg.CurrencyExponent,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}, nil
}

type productDoc struct {
	ID          string      `json:"_id"`
	Slug        string      `json:"slug"`
	Title       string      `json:"title"`
	Price       json.Number `json:"price"`
	Description string      `json:"description"`
	ImageURL    string      `json:"imageUrl"`
	Discount    json.Number `json:"discountPercentage"`
	Tags        []string    `json:"tags"`
}

func (c *Client) ProductBySlug(ctx context.Context, slug string) (catalog.ProductSnapshot, error) {
	return c.one(ctx, queryBySlug, map[string]string{"slug": slug})
}

func (c *Client) ProductByID(ctx context.Context, id string) (catalog.ProductSnapshot, error) {
	return c.one(ctx, queryByID, map[string]string{"id": id})
}

// ListProducts returns up to limit products in dataset order. Products whose
// price cannot be represented are left out.
func (c *Client) ListProducts(ctx context.Context, limit int) ([]catalog.ProductSnapshot, error) {
	if limit <= 0 {
		return []catalog.ProductSnapshot{}, nil
	}

	var docs []productDoc
	if err := c.query(ctx, fmt.Sprintf(queryList, limit), nil, &docs); err != nil {
		return nil, err
	}

	out := make([]catalog.ProductSnapshot, 0, len(docs))
	for _, doc := range docs {
		p, err := c.toSnapshot(doc)
		if err != nil {
			c.logger.Warn().Err(err).Str("product_id", doc.ID).Msg("skipping product")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Client) one(ctx context.Context, groq string, params map[string]string) (catalog.ProductSnapshot, error) {
	var doc *productDoc
	if err := c.query(ctx, groq, params, &doc); err != nil {
		return catalog.ProductSnapshot{}, err
	}
	if doc == nil {
		return catalog.ProductSnapshot{}, catalog.ErrProductNotFound
	}
	return c.toSnapshot(*doc)
}

func (c *Client) toSnapshot(doc productDoc) (catalog.ProductSnapshot, error) {
	if doc.ID == "" {
		return catalog.ProductSnapshot{}, fmt.Errorf("%w: document without _id", catalog.ErrProductNotFound)
	}
	price, err := decimal.NewFromString(doc.Price.String())
	if err != nil {
		return catalog.ProductSnapshot{}, fmt.Errorf("%w: %q", catalog.ErrInvalidPrice, doc.Price)
	}
	minor, err := catalog.ToMinorUnits(price, c.exponent)
	if err != nil {
		return catalog.ProductSnapshot{}, err
	}
	return catalog.ProductSnapshot{
		ID:              doc.ID,
		Slug:            doc.Slug,
		Title:           doc.Title,
		UnitPrice:       minor,
		Description:     doc.Description,
		ImageRef:        doc.ImageURL,
		DiscountPercent: discountPercent(doc.Discount),
		Tags:            doc.Tags,
	}, nil
}

// discountPercent reads discountPercentage as whole percent. Missing or
// out-of-range values count as no discount.
func discountPercent(n json.Number) int {
	if n == "" {
		return 0
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil || d.LessThanOrEqual(decimal.Zero) || d.GreaterThan(decimal.NewFromInt(100)) {
		return 0
	}
	return int(d.Round(0).IntPart())
}

func (c *Client) query(ctx context.Context, groq string, params map[string]string, result any) error {
	q := url.Values{}
	q.Set("query", groq)
	for k, v := range params {
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		q.Set("$"+k, string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sanity query: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("sanity query: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("sanity query failed status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("sanity response: %w", err)
	}
	if len(envelope.Result) == 0 {
		envelope.Result = json.RawMessage("null")
	}

	dec := json.NewDecoder(bytes.NewReader(envelope.Result))
	dec.UseNumber()
	if err := dec.Decode(result); err != nil {
		return fmt.Errorf("sanity result: %w", err)
	}
	return nil
}
