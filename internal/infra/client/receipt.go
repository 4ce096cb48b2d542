package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// ReceiptClient uploads receipt images to the OCR service.
type ReceiptClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewReceiptClient creates a new ReceiptClient.
func NewReceiptClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *ReceiptClient {
	return &ReceiptClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
	}
}

func receiptBody(image []byte, contentType string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="receipt"; filename="receipt"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// Scan sends the image and returns what the service recognised.
func (c *ReceiptClient) Scan(ctx context.Context, image []byte, contentType string) (*domain.ReceiptData, error) {
	ctx, span := tracer.Start(ctx, "ReceiptClient.Scan")
	defer span.End()
	span.SetAttributes(attribute.Int("receipt.bytes", len(image)))

	var data domain.ReceiptData

	err := resilience.Call(ctx, c.cb, c.cfg, "receipt", func() error {
		body, formType, err := receiptBody(image, contentType)
		if err != nil {
			return resilience.Permanent(err)
		}

		url := fmt.Sprintf("%s/v1/receipts/scan", c.baseURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
		if err != nil {
			return resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", formType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		return decodeResponse(resp, "receipt", &data)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "receipt", Err: err}
	}
	return &data, nil
}
