package targetapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartbridge/cartbridge/internal/errors"
)

const testBaseURL = "https://admin.example.com"

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(Config{
		BaseURL:  testBaseURL,
		APIToken: "test-token",
	})
	require.NoError(t, err)

	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)
	client.SetHTTPClient(hc)
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestFindCategoryByHandle(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/admin/product-categories",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"product_categories": []map[string]any{
				{"id": "pcat_1", "name": "Phones", "handle": "phones"},
			},
		}))

	got, err := client.FindCategoryByHandle(context.Background(), "Phones")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "pcat_1", got.ID)

	missing, err := client.FindCategoryByHandle(context.Background(), "garden")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateCategorySendsParentAndAuth(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/admin/product-categories",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "Phones", body["name"])
			assert.Equal(t, "phones", body["handle"])
			assert.Equal(t, "pcat_root", body["parent_category_id"])

			return httpmock.NewJsonResponse(200, map[string]any{
				"product_category": map[string]any{"id": "pcat_2", "name": "Phones", "handle": "phones"},
			})
		})

	got, err := client.CreateCategory(context.Background(), "Phones", "phones", "pcat_root")
	require.NoError(t, err)
	assert.Equal(t, "pcat_2", got.ID)
}

func TestFindCollectionCaseInsensitive(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/admin/collections",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"collections": []map[string]any{
				{"id": "pcol_1", "title": "Acme", "handle": "acme"},
			},
		}))

	got, err := client.FindCollectionByTitle(context.Background(), "ACME")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "pcol_1", got.ID)
}

func TestCreateProduct(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/admin/products",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"product": map[string]any{
				"id":    "prod_1",
				"title": "Product 1",
				"variants": []map[string]any{
					{"id": "variant_1", "sku": "SKU-001"},
				},
			},
		}))

	payload := &ProductPayload{
		Title: "Product 1",
		Variants: []VariantPayload{{
			Title:  "Default",
			SKU:    "SKU-001",
			Prices: []PricePayload{{Amount: 100, CurrencyCode: "eur"}},
		}},
	}
	got, err := client.CreateProduct(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "prod_1", got.ID)
	require.Len(t, got.Variants, 1)
	assert.Equal(t, "SKU-001", got.Variants[0].SKU)
}

func TestCreateProductValidationFailsBeforeRequest(t *testing.T) {
	client := newTestClient(t)
	// No responder registered: a request would fail loudly

	payload := &ProductPayload{
		Title: "Bad Product",
		Variants: []VariantPayload{{
			Title:   "Default",
			Prices:  []PricePayload{{Amount: 100, CurrencyCode: "eur"}},
			Options: map[string]any{"Size": 42},
		}},
	}
	_, err := client.CreateProduct(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload ProductPayload
		wantErr string
	}{
		{"empty title", ProductPayload{}, "title"},
		{"no variants", ProductPayload{Title: "X"}, "variant"},
		{"no prices", ProductPayload{Title: "X", Variants: []VariantPayload{{Title: "D"}}}, "price"},
		{"negative price", ProductPayload{Title: "X", Variants: []VariantPayload{
			{Title: "D", Prices: []PricePayload{{Amount: -1, CurrencyCode: "eur"}}},
		}}, "negative"},
		{"missing currency", ProductPayload{Title: "X", Variants: []VariantPayload{
			{Title: "D", Prices: []PricePayload{{Amount: 1}}},
		}}, "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	valid := ProductPayload{Title: "X", Variants: []VariantPayload{
		{Title: "D", Prices: []PricePayload{{Amount: 1, CurrencyCode: "eur"}}, Options: map[string]any{"Size": "M"}},
	}}
	assert.NoError(t, valid.Validate())
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/admin/products",
		httpmock.NewStringResponder(422, `{"message":"Handle already exists"}`))

	payload := &ProductPayload{
		Title: "Dup",
		Variants: []VariantPayload{{
			Title:  "Default",
			Prices: []PricePayload{{Amount: 100, CurrencyCode: "eur"}},
		}},
	}
	_, err := client.CreateProduct(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTargetAPI))
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "Handle already exists")
}

func TestStockLocationAndChannelRoundTrip(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/admin/stock-locations",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{"stock_locations": []any{}}))
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/admin/stock-locations",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"stock_location": map[string]any{"id": "sloc_1", "name": "Main Warehouse"},
		}))
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/admin/sales-channels",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"sales_channels": []map[string]any{{"id": "sc_1", "name": "Webshop"}},
		}))

	locations, err := client.ListStockLocations(context.Background(), "Main Warehouse")
	require.NoError(t, err)
	assert.Empty(t, locations)

	created, err := client.CreateStockLocation(context.Background(), "Main Warehouse")
	require.NoError(t, err)
	assert.Equal(t, "sloc_1", created.ID)

	channels, err := client.ListSalesChannels(context.Background(), "Webshop")
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "sc_1", channels[0].ID)
}

func TestInventoryLevel(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/admin/inventory-items",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"inventory_items": []map[string]any{{"id": "iitem_1", "sku": "SKU-001"}},
		}))
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/admin/inventory-items/iitem_1/location-levels",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{}))

	item, err := client.FindInventoryItemBySKU(context.Background(), "sku-001")
	require.NoError(t, err)
	require.NotNil(t, item)

	err = client.SetInventoryLevel(context.Background(), item.ID, "sloc_1", 25)
	require.NoError(t, err)
}
