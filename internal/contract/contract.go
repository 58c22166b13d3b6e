package contract

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"go.uber.org/zap"
)

//go:embed openapi.yaml
var document []byte

// Document returns the embedded OpenAPI description of the consumed backend endpoints
func Document() []byte {
	return document
}

// Validator checks backend responses against the embedded contract
type Validator struct {
	router routers.Router
	logger *zap.Logger
}

// NewValidator loads and validates the embedded contract
func NewValidator(logger *zap.Logger) (*Validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("failed to load backend contract: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid backend contract: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build contract router: %w", err)
	}

	return &Validator{router: router, logger: logger}, nil
}

// ValidateResponse checks one backend response. Requests to undocumented
// endpoints are rejected so new calls cannot slip past the contract.
func (v *Validator) ValidateResponse(ctx context.Context, req *http.Request, status int, header http.Header, body []byte) error {
	route, pathParams, err := v.router.FindRoute(req)
	if err != nil {
		return fmt.Errorf("no contract for %s %s: %w", req.Method, req.URL.Path, err)
	}

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status: status,
		Header: header,
	}
	input.SetBodyBytes(body)

	if err := openapi3filter.ValidateResponse(ctx, input); err != nil {
		v.logger.Warn("backend response does not match contract",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status_code", status),
			zap.Error(err),
		)
		return fmt.Errorf("response for %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
