//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != seededProducts {
		t.Fatalf("expected %d products, got %d", seededProducts, len(products))
	}

	for _, p := range products {
		if p.ID == "" || p.Name == "" {
			t.Errorf("product missing id or name: %+v", p)
		}
		if p.Price <= 0 {
			t.Errorf("product %s price: got %v, want > 0", p.ID, p.Price)
		}
	}
}

func TestGetProduct_WithSizes(t *testing.T) {
	p := getProduct(t, "airmax-90")

	if p.Name != "Nike Air Max 90" {
		t.Errorf("name: got %q", p.Name)
	}
	if p.Price != 120 {
		t.Errorf("price: got %v, want 120", p.Price)
	}
	if len(p.Sizes) != 3 {
		t.Fatalf("expected 3 sizes, got %d", len(p.Sizes))
	}

	// The aggregate stock of a sized product is the sum of its size rows.
	var sum int
	for _, s := range p.Sizes {
		sum += s.Stock
	}
	if p.Stock != sum {
		t.Errorf("aggregate stock: got %d, want %d", p.Stock, sum)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/ghost", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Code != http.StatusNotFound {
		t.Errorf("error code: got %d, want 404", errResp.Code)
	}
}
