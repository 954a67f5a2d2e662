
package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"covid19-tracker/internal/parser"
	"covid19-tracker/internal/telemetry"
)

var tracer = otel.Tracer("covid19-tracker/internal/crawler")

const (
	acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptJSON = "application/json"
)

var (
	ErrInvalidURL = errors.New("invalid url")
	ErrStatus     = errors.New("unexpected http status")
	ErrTooLarge   = errors.New("response body exceeds size cap")
)

type HTTPClient struct {
	client  *resty.Client
	sizeCap int64
	parser  *parser.Parser
	tel     telemetry.API
}

func NewHTTPClient(timeout, dialTimeout time.Duration, sizeCap int64, tel telemetry.API) *HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	client := resty.NewWithClient(&http.Client{Transport: transport}).
		SetTimeout(timeout).
		SetHeader("User-Agent", "covid19-tracker/1.0")

	return &HTTPClient{
		client:  client,
		sizeCap: sizeCap,
		parser:  parser.New(),
		tel:     telemetry.NewScopedAPI("crawler", tel),
	}
}

// SetUserAgent overrides the User-Agent header sent with every request.
func (h *HTTPClient) SetUserAgent(ua string) *HTTPClient {
	if ua != "" {
		h.client.SetHeader("User-Agent", ua)
	}
	return h
}

type Response struct {
	Body        []byte
	FinalURL    string
	ContentType string
	StatusCode  int
	Elapsed     time.Duration
}

// Fetch issues one GET and reads the body. Any status code is returned
// as-is; transport failures and bodies larger than sizeCap are errors.
func (h *HTTPClient) Fetch(ctx context.Context, rawURL, accept string) (Response, error) {
	start := time.Now()
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Response{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	res, err := h.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", accept).
		Get(u.String())
	if err != nil {
		return Response{}, fmt.Errorf("get %s: %w", u, err)
	}
	raw := res.RawBody()
	defer raw.Close()

	body, err := io.ReadAll(io.LimitReader(raw, h.sizeCap+1))
	if err != nil {
		return Response{}, fmt.Errorf("read %s: %w", u, err)
	}
	if int64(len(body)) > h.sizeCap {
		return Response{}, fmt.Errorf("%w: %s is over %d bytes", ErrTooLarge, u, h.sizeCap)
	}

	finalURL := u.String()
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalURL = res.RawResponse.Request.URL.String()
	}

	return Response{
		Body:        body,
		FinalURL:    finalURL,
		ContentType: res.Header().Get("Content-Type"),
		StatusCode:  res.StatusCode(),
		Elapsed:     time.Since(start),
	}, nil
}

// LoadPage fetches rawURL and parses the body into a document. A non-200
// status is reported but the body is still parsed, so callers may get a
// degenerate document.
func (h *HTTPClient) LoadPage(ctx context.Context, rawURL string) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "LoadPage", trace.WithAttributes(attribute.String("url", rawURL)))
	defer span.End()

	res, err := h.Fetch(ctx, rawURL, acceptHTML)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))

	if res.StatusCode != http.StatusOK {
		h.tel.ReportWarning("load-page", fmt.Sprintf("unexpected status %d", res.StatusCode), rawURL)
	}
	mediaType, _, _ := mime.ParseMediaType(res.ContentType)
	if mediaType != "" && !strings.Contains(mediaType, "html") {
		h.tel.ReportWarning("load-page", fmt.Sprintf("unexpected content type %q", mediaType), rawURL)
	}
	h.tel.ReportDebug("page loaded", rawURL, res.StatusCode, len(res.Body), res.Elapsed)

	doc, err := h.parser.Document(bytes.NewReader(res.Body), res.ContentType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

// FetchJSON fetches rawURL and decodes the body into out. Unlike LoadPage a
// non-2xx status is an error, since there is nothing useful to decode.
func (h *HTTPClient) FetchJSON(ctx context.Context, rawURL string, out any) error {
	ctx, span := tracer.Start(ctx, "FetchJSON", trace.WithAttributes(attribute.String("url", rawURL)))
	defer span.End()

	res, err := h.Fetch(ctx, rawURL, acceptJSON)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return err
	}
	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		err := fmt.Errorf("%w %d from %s", ErrStatus, res.StatusCode, rawURL)
		span.SetStatus(codes.Error, "bad status")
		return err
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}
