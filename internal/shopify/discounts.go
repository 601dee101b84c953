package shopify

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/bundle-discount/internal/domain/shopconfig"
	"github.com/xenking/bundle-discount/internal/function"
)

// FunctionTitle is the title the bundle discount function is deployed with.
const FunctionTitle = "X for Y Discount Function"

// ErrFunctionNotFound is returned when the discount function is not deployed.
var ErrFunctionNotFound = errors.New("could not find the X for Y discount function, make sure it is deployed")

var _ shopconfig.Registrar = (*Client)(nil)

const functionsQuery = `query Functions {
  app {
    functions(first: 50) {
      nodes { id title apiType }
    }
  }
}`

const createDiscountMutation = `mutation CreateDiscount($automaticAppDiscount: DiscountAutomaticAppInput!) {
  discountAutomaticAppCreate(automaticAppDiscount: $automaticAppDiscount) {
    automaticAppDiscount { id discountId title }
    userErrors { field message }
  }
}`

const updateDiscountMutation = `mutation UpdateDiscount($id: ID!, $automaticAppDiscount: DiscountAutomaticAppInput!) {
  discountAutomaticAppUpdate(id: $id, automaticAppDiscount: $automaticAppDiscount) {
    automaticAppDiscount { id discountId title }
    userErrors { field message }
  }
}`

type functionNode struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	APIType string `json:"apiType"`
}

type automaticAppDiscount struct {
	ID         string `json:"id"`
	DiscountID string `json:"discountId"`
	Title      string `json:"title"`
}

type discountPayload struct {
	AutomaticAppDiscount *automaticAppDiscount `json:"automaticAppDiscount"`
	UserErrors           []UserError           `json:"userErrors"`
}

// FunctionID returns the id of the deployed bundle discount function.
func (c *Client) FunctionID(ctx context.Context) (string, error) {
	var data struct {
		App struct {
			Functions struct {
				Nodes []functionNode `json:"nodes"`
			} `json:"functions"`
		} `json:"app"`
	}
	if err := c.do(ctx, functionsQuery, nil, &data); err != nil {
		return "", errors.Wrap(err, "list functions")
	}

	for _, n := range data.App.Functions.Nodes {
		if n.Title == FunctionTitle || (n.APIType == "PRODUCT_DISCOUNT" && strings.Contains(n.Title, "X for Y")) {
			return n.ID, nil
		}
	}
	return "", ErrFunctionNotFound
}

// CreateDiscount registers a new automatic discount backed by the function.
func (c *Client) CreateDiscount(ctx context.Context, functionID string, doc function.ConfigurationDocument) (*shopconfig.RegisteredDiscount, error) {
	input := discountInput(functionID, doc)
	input["startsAt"] = c.now().UTC().Format(time.RFC3339)

	var data struct {
		Payload discountPayload `json:"discountAutomaticAppCreate"`
	}
	if err := c.do(ctx, createDiscountMutation, map[string]any{"automaticAppDiscount": input}, &data); err != nil {
		return nil, errors.Wrap(err, "create discount")
	}
	return registered(data.Payload, "discount id")
}

// UpdateDiscount replaces the settings of an existing automatic discount.
func (c *Client) UpdateDiscount(ctx context.Context, discountID, functionID string, doc function.ConfigurationDocument) (*shopconfig.RegisteredDiscount, error) {
	vars := map[string]any{
		"id":                   discountID,
		"automaticAppDiscount": discountInput(functionID, doc),
	}

	var data struct {
		Payload discountPayload `json:"discountAutomaticAppUpdate"`
	}
	if err := c.do(ctx, updateDiscountMutation, vars, &data); err != nil {
		return nil, errors.Wrap(err, "update discount")
	}
	return registered(data.Payload, "updated discount id")
}

func discountInput(functionID string, doc function.ConfigurationDocument) map[string]any {
	return map[string]any{
		"title":      doc.Label,
		"functionId": functionID,
		"combinesWith": map[string]bool{
			"productDiscounts":  true,
			"orderDiscounts":    true,
			"shippingDiscounts": true,
		},
		"metafield": map[string]string{
			"namespace": function.MetafieldNamespace,
			"key":       function.MetafieldKey,
			"type":      function.MetafieldType,
			"value":     function.EncodeConfiguration(doc),
		},
	}
}

func registered(p discountPayload, what string) (*shopconfig.RegisteredDiscount, error) {
	if err := userErrors(p.UserErrors); err != nil {
		return nil, err
	}
	if p.AutomaticAppDiscount == nil {
		return nil, errors.Errorf("platform did not return a %s", what)
	}
	return &shopconfig.RegisteredDiscount{
		ID:         p.AutomaticAppDiscount.ID,
		DiscountID: p.AutomaticAppDiscount.DiscountID,
		Title:      p.AutomaticAppDiscount.Title,
	}, nil
}
