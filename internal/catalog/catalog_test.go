package catalog

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAdapterTypeNormalize(t *testing.T) {
	cases := map[string]AdapterType{
		"custom":        AdapterHTML,
		"woocommerce":   AdapterStoreAPI,
		"store-api":     AdapterStoreAPI,
		" Shopify ":     AdapterCommerceJSON,
		"commerce-json": AdapterCommerceJSON,
	}
	for in, want := range cases {
		got, ok := AdapterType(in).Normalize()
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := AdapterType("magento").Normalize()
	assert.False(t, ok)
}

func TestCountPriced(t *testing.T) {
	price := decimal.RequireFromString("12.50")
	products := []Product{
		{Name: "Trowel", Price: &price, PriceDisplay: "$12.50"},
		{Name: "Roller", PriceDisplay: "Contact for Price"},
		{Name: "Knife", Price: &price, PriceDisplay: "$12.50"},
	}
	assert.Equal(t, 2, CountPriced(products))
	assert.Equal(t, 0, CountPriced(nil))
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, "error: timeout", ErrorStatus(errors.New("timeout")))
	assert.Equal(t, "error: unknown", ErrorStatus(nil))
	assert.True(t, RunOutcome{Status: StatusSuccess}.Succeeded())
	assert.False(t, RunOutcome{Status: "error: x"}.Succeeded())
}
