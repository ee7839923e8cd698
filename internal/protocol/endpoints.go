package protocol

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/studioforge/studiorpc/internal/interfaces"
)

// Typed wrappers over Call for the studio method catalogue. Each one validates
// its params before anything is sent and uses the default request timeout
// unless ctx expires first.

// Ping checks liveness of the peer. It never dials: a client that is not
// connected fails with ErrConnectionLost.
func (c *Client) Ping(ctx context.Context) (*interfaces.PingResult, error) {
	raw, err := c.correlator.CallConnected(ctx, interfaces.MethodPing, nil, 0)
	return decodeInto[interfaces.PingResult](interfaces.MethodPing, raw, err)
}

// ListMethods returns the method names the peer serves
func (c *Client) ListMethods(ctx context.Context) ([]string, error) {
	methods, err := callInto[[]string](ctx, c, interfaces.MethodListMethods, nil)
	if err != nil {
		return nil, err
	}
	return *methods, nil
}

// CreateDesign stores a new design
func (c *Client) CreateDesign(ctx context.Context, params interfaces.CreateDesignParams) (*interfaces.Design, error) {
	if err := c.validator.ValidateCreateDesign(&params); err != nil {
		return nil, fmt.Errorf("design validation failed: %w", err)
	}
	return callInto[interfaces.Design](ctx, c, interfaces.MethodCreateDesign, params)
}

// GetDesign fetches a design by id; unknown ids fail with a 404 RPC error
func (c *Client) GetDesign(ctx context.Context, id string) (*interfaces.Design, error) {
	if err := c.validator.ValidateID("id", id); err != nil {
		return nil, err
	}
	return callInto[interfaces.Design](ctx, c, interfaces.MethodGetDesign, interfaces.GetDesignParams{ID: id})
}

// ListDesigns pages through stored designs
func (c *Client) ListDesigns(ctx context.Context, params interfaces.ListDesignsParams) (*interfaces.DesignList, error) {
	if params.Limit < 0 || params.Offset < 0 {
		return nil, &ValidationError{Field: "limit", Message: "paging values cannot be negative"}
	}
	return callInto[interfaces.DesignList](ctx, c, interfaces.MethodListDesigns, params)
}

// SearchTemplates queries the template catalogue
func (c *Client) SearchTemplates(ctx context.Context, query interfaces.TemplateQuery) (*interfaces.TemplateResults, error) {
	if err := c.validator.ValidateTemplateQuery(&query); err != nil {
		return nil, fmt.Errorf("template query validation failed: %w", err)
	}
	return callInto[interfaces.TemplateResults](ctx, c, interfaces.MethodSearchTemplates, query)
}

// GenerateDesign asks the peer to generate a design from a prompt. Generation
// is slow on the peer side; callers usually pass a ctx with a generous deadline.
func (c *Client) GenerateDesign(ctx context.Context, params interfaces.GenerateDesignParams) (*interfaces.Design, error) {
	if err := c.validator.ValidateGenerate(&params); err != nil {
		return nil, fmt.Errorf("generate validation failed: %w", err)
	}
	return callInto[interfaces.Design](ctx, c, interfaces.MethodGenerateDesign, params)
}

// CreateDesignFromTemplate instantiates a design from a catalogue template
func (c *Client) CreateDesignFromTemplate(ctx context.Context, params interfaces.CreateFromTemplateParams) (*interfaces.Design, error) {
	if err := c.validator.ValidateID("templateId", params.TemplateID); err != nil {
		return nil, err
	}
	return callInto[interfaces.Design](ctx, c, interfaces.MethodCreateFromTemplate, params)
}

func callInto[T any](ctx context.Context, c *Client, method string, params interface{}) (*T, error) {
	raw, err := c.Call(ctx, method, params, 0)
	return decodeInto[T](method, raw, err)
}

func decodeInto[T any](method string, raw json.RawMessage, err error) (*T, error) {
	if err != nil {
		return nil, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}
	return &out, nil
}
