package shopify

import (
	"context"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
)

// Admin API limits for the nodes and productVariants queries.
const (
	maxNodeIDs     = 250
	searchPageSize = 25
	maxParallel    = 4
)

const variantNodesQuery = `query VariantNodes($ids: [ID!]!) {
  nodes(ids: $ids) {
    ... on ProductVariant {
      id title sku price
      product { title }
    }
  }
}`

const variantSearchQuery = `query VariantSearch($query: String!, $first: Int!) {
  productVariants(first: $first, query: $query) {
    nodes {
      id title sku price
      product { title }
    }
  }
}`

// Variant summarizes a product variant for the configuration screen.
type Variant struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	SKU          string `json:"sku,omitempty"`
	Price        string `json:"price,omitempty"`
	ProductTitle string `json:"productTitle"`
}

type variantNode struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	SKU     *string `json:"sku"`
	Price   *string `json:"price"`
	Product struct {
		Title string `json:"title"`
	} `json:"product"`
}

func (n variantNode) variant() Variant {
	v := Variant{ID: n.ID, Title: n.Title, ProductTitle: n.Product.Title}
	if n.SKU != nil {
		v.SKU = *n.SKU
	}
	if n.Price != nil {
		v.Price = *n.Price
	}
	return v
}

// VariantsByIDs resolves variant ids in order. Ids that no longer resolve to a
// variant are dropped.
func (c *Client) VariantsByIDs(ctx context.Context, ids []string) ([]Variant, error) {
	if len(ids) == 0 {
		return []Variant{}, nil
	}

	var chunks [][]string
	for start := 0; start < len(ids); start += maxNodeIDs {
		chunks = append(chunks, ids[start:min(start+maxNodeIDs, len(ids))])
	}

	results := make([][]Variant, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, chunk := range chunks {
		g.Go(func() error {
			var data struct {
				Nodes []*variantNode `json:"nodes"`
			}
			if err := c.do(ctx, variantNodesQuery, map[string]any{"ids": chunk}, &data); err != nil {
				return errors.Wrapf(err, "fetch variants chunk %d", i)
			}
			out := make([]Variant, 0, len(data.Nodes))
			for _, n := range data.Nodes {
				// Non-variant nodes decode to an empty object.
				if n == nil || n.ID == "" {
					continue
				}
				out = append(out, n.variant())
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	variants := make([]Variant, 0, len(ids))
	for _, r := range results {
		variants = append(variants, r...)
	}
	return variants, nil
}

// SearchVariants returns the first page of variants matching query.
func (c *Client) SearchVariants(ctx context.Context, query string) ([]Variant, error) {
	var data struct {
		ProductVariants struct {
			Nodes []variantNode `json:"nodes"`
		} `json:"productVariants"`
	}
	vars := map[string]any{"query": query, "first": searchPageSize}
	if err := c.do(ctx, variantSearchQuery, vars, &data); err != nil {
		return nil, errors.Wrap(err, "search variants")
	}

	variants := make([]Variant, len(data.ProductVariants.Nodes))
	for i, n := range data.ProductVariants.Nodes {
		variants[i] = n.variant()
	}
	return variants, nil
}
