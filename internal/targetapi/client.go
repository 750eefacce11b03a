// Package targetapi is the administrative client for the target commerce
// platform. The pipeline authenticates as a privileged admin client and only
// ever creates or looks up records; it never deletes.
package targetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/cartbridge/cartbridge/internal/errors"
	"github.com/cartbridge/cartbridge/internal/logging"
)

// Package-level logger specific to the target API client
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "targetapi.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "targetapi", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize targetapi file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "targetapi")
		closeLogger = func() error { return nil }
	}
}

// Config holds the connection settings for the admin API.
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// DefaultConfig returns client defaults; BaseURL and APIToken must be provided.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
	}
}

// Client talks to the target platform's admin API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates an admin API client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.Newf("target API base URL is required").
			Category(errors.CategoryConfiguration).
			Component("targetapi").
			Build()
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	client := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}

	logger.Info("target API client initialized",
		"base_url", config.BaseURL,
		"timeout", config.Timeout,
		"token_configured", config.APIToken != "")

	return client, nil
}

// Close releases client resources.
func (c *Client) Close() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing targetapi logger: %v", err)
		}
	}
}

// SetHTTPClient replaces the underlying HTTP client, used by tests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// do performs one JSON request against the admin API.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.New(err).
				Category(errors.CategoryValidation).
				Component("targetapi").
				Context("path", path).
				Build()
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryTargetAPI).
			Component("targetapi").
			Build()
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryTargetAPI).
			Component("targetapi").
			Context("path", path).
			Timing(method+" "+path, time.Since(start)).
			Build()
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		logger.Warn("admin API call failed",
			"method", method, "path", path,
			"status", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds())
		return errors.Newf("admin API %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail))).
			Category(errors.CategoryTargetAPI).
			Component("targetapi").
			Context("status", resp.StatusCode).
			Build()
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New(err).
			Category(errors.CategoryTargetAPI).
			Component("targetapi").
			Context("path", path).
			Build()
	}
	return nil
}

// --- Stock locations ---

// ListStockLocations returns locations whose name matches the query, or all
// when query is empty.
func (c *Client) ListStockLocations(ctx context.Context, query string) ([]StockLocation, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	var out struct {
		StockLocations []StockLocation `json:"stock_locations"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/stock-locations", q, nil, &out); err != nil {
		return nil, err
	}
	return out.StockLocations, nil
}

// CreateStockLocation creates a stock location.
func (c *Client) CreateStockLocation(ctx context.Context, name string) (*StockLocation, error) {
	var out struct {
		StockLocation StockLocation `json:"stock_location"`
	}
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/admin/stock-locations", nil, body, &out); err != nil {
		return nil, err
	}
	return &out.StockLocation, nil
}

// --- Sales channels ---

// ListSalesChannels returns channels matching the query.
func (c *Client) ListSalesChannels(ctx context.Context, query string) ([]SalesChannel, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	var out struct {
		SalesChannels []SalesChannel `json:"sales_channels"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/sales-channels", q, nil, &out); err != nil {
		return nil, err
	}
	return out.SalesChannels, nil
}

// CreateSalesChannel creates a sales channel.
func (c *Client) CreateSalesChannel(ctx context.Context, name string) (*SalesChannel, error) {
	var out struct {
		SalesChannel SalesChannel `json:"sales_channel"`
	}
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/admin/sales-channels", nil, body, &out); err != nil {
		return nil, err
	}
	return &out.SalesChannel, nil
}

// --- Categories ---

// FindCategoryByHandle returns the category with the given handle, or nil.
func (c *Client) FindCategoryByHandle(ctx context.Context, handle string) (*Category, error) {
	q := url.Values{}
	q.Set("handle", handle)
	var out struct {
		ProductCategories []Category `json:"product_categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/product-categories", q, nil, &out); err != nil {
		return nil, err
	}
	for i := range out.ProductCategories {
		if strings.EqualFold(out.ProductCategories[i].Handle, handle) {
			return &out.ProductCategories[i], nil
		}
	}
	return nil, nil
}

// CreateCategory creates a category, optionally under a parent.
func (c *Client) CreateCategory(ctx context.Context, name, handle, parentID string) (*Category, error) {
	body := map[string]any{
		"name":      name,
		"handle":    handle,
		"is_active": true,
	}
	if parentID != "" {
		body["parent_category_id"] = parentID
	}
	var out struct {
		ProductCategory Category `json:"product_category"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/product-categories", nil, body, &out); err != nil {
		return nil, err
	}
	return &out.ProductCategory, nil
}

// --- Collections ---

// FindCollectionByTitle returns the collection with a case-insensitive title
// match, or nil.
func (c *Client) FindCollectionByTitle(ctx context.Context, title string) (*Collection, error) {
	q := url.Values{}
	q.Set("title", title)
	var out struct {
		Collections []Collection `json:"collections"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/collections", q, nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Collections {
		if strings.EqualFold(out.Collections[i].Title, title) {
			return &out.Collections[i], nil
		}
	}
	return nil, nil
}

// CreateCollection creates a collection.
func (c *Client) CreateCollection(ctx context.Context, title, handle string) (*Collection, error) {
	body := map[string]string{"title": title, "handle": handle}
	var out struct {
		Collection Collection `json:"collection"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/collections", nil, body, &out); err != nil {
		return nil, err
	}
	return &out.Collection, nil
}

// --- Product types ---

// FindProductTypeByValue returns the type with a case-insensitive value
// match, or nil.
func (c *Client) FindProductTypeByValue(ctx context.Context, value string) (*ProductType, error) {
	q := url.Values{}
	q.Set("q", value)
	var out struct {
		ProductTypes []ProductType `json:"product_types"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/product-types", q, nil, &out); err != nil {
		return nil, err
	}
	for i := range out.ProductTypes {
		if strings.EqualFold(out.ProductTypes[i].Value, value) {
			return &out.ProductTypes[i], nil
		}
	}
	return nil, nil
}

// CreateProductType creates a product type.
func (c *Client) CreateProductType(ctx context.Context, value string) (*ProductType, error) {
	body := map[string]string{"value": value}
	var out struct {
		ProductType ProductType `json:"product_type"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/product-types", nil, body, &out); err != nil {
		return nil, err
	}
	return &out.ProductType, nil
}

// --- Tags ---

// FindTagByValue returns the tag with a case-insensitive value match, or nil.
func (c *Client) FindTagByValue(ctx context.Context, value string) (*Tag, error) {
	q := url.Values{}
	q.Set("q", value)
	var out struct {
		ProductTags []Tag `json:"product_tags"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/product-tags", q, nil, &out); err != nil {
		return nil, err
	}
	for i := range out.ProductTags {
		if strings.EqualFold(out.ProductTags[i].Value, value) {
			return &out.ProductTags[i], nil
		}
	}
	return nil, nil
}

// CreateTag creates a product tag.
func (c *Client) CreateTag(ctx context.Context, value string) (*Tag, error) {
	body := map[string]string{"value": value}
	var out struct {
		ProductTag Tag `json:"product_tag"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/product-tags", nil, body, &out); err != nil {
		return nil, err
	}
	return &out.ProductTag, nil
}

// --- Products / inventory ---

// CreateProduct validates and creates a product with its nested variants.
func (c *Client) CreateProduct(ctx context.Context, payload *ProductPayload) (*Product, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	var out struct {
		Product Product `json:"product"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/products", nil, payload, &out); err != nil {
		return nil, err
	}
	logger.Info("product created", "product_id", out.Product.ID, "title", payload.Title)
	return &out.Product, nil
}

// FindInventoryItemBySKU returns the inventory item for a SKU, or nil.
func (c *Client) FindInventoryItemBySKU(ctx context.Context, sku string) (*InventoryItem, error) {
	q := url.Values{}
	q.Set("sku", sku)
	var out struct {
		InventoryItems []InventoryItem `json:"inventory_items"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/inventory-items", q, nil, &out); err != nil {
		return nil, err
	}
	for i := range out.InventoryItems {
		if strings.EqualFold(out.InventoryItems[i].SKU, sku) {
			return &out.InventoryItems[i], nil
		}
	}
	return nil, nil
}

// SetInventoryLevel sets the stocked quantity of an inventory item at a location.
func (c *Client) SetInventoryLevel(ctx context.Context, inventoryItemID, locationID string, quantity int) error {
	body := map[string]any{
		"location_id":      locationID,
		"stocked_quantity": quantity,
	}
	path := fmt.Sprintf("/admin/inventory-items/%s/location-levels", inventoryItemID)
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}
