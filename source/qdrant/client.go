// Package qdrant reads reference documents from the payloads of a Qdrant
// collection.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/creastat/chatcore/source"
)

const defaultContentField = "content"

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant server address (e.g., "https://example.qdrant.io:6334").
	URL string

	// CollectionName is the name of the collection to read.
	CollectionName string

	// APIKey is optional API key for authentication.
	APIKey string

	// ContentField is the payload field holding document text. Default: "content".
	ContentField string

	// SkipCompatibilityCheck skips the server version check made on connect.
	SkipCompatibilityCheck bool

	// Filter restricts the points read to those whose payload matches
	// every key-value pair (e.g. {"source_id": "site"}).
	Filter map[string]any
}

// points is the subset of the Qdrant client the source needs.
type points interface {
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Close() error
}

// Collection implements source.Source over a Qdrant collection. Points are
// listed in scroll (point id) order; keys are point ids.
type Collection struct {
	client         points
	collectionName string
	contentField   string
	filter         *qdrant.Filter
}

// New creates a new Qdrant-backed source.
func New(cfg Config) (*Collection, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}

	parsedURL := cfg.URL
	if !strings.HasPrefix(parsedURL, "http://") && !strings.HasPrefix(parsedURL, "https://") {
		parsedURL = "https://" + parsedURL
	}

	u, err := url.Parse(parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	host := u.Hostname()
	port := 6334 // gRPC port
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid port: %w", err)
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",

		SkipCompatibilityCheck: cfg.SkipCompatibilityCheck,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return newCollection(client, cfg), nil
}

func newCollection(client points, cfg Config) *Collection {
	field := cfg.ContentField
	if field == "" {
		field = defaultContentField
	}
	return &Collection{
		client:         client,
		collectionName: cfg.CollectionName,
		contentField:   field,
		filter:         buildFilter(cfg.Filter),
	}
}

// List implements source.Source.
func (c *Collection) List(ctx context.Context, limit int) ([]string, error) {
	req := &qdrant.ScrollPoints{
		CollectionName: c.collectionName,
		Filter:         c.filter,
		WithPayload:    qdrant.NewWithPayload(false),
	}
	if limit > 0 {
		l := uint32(limit)
		req.Limit = &l
	}

	pts, err := c.client.Scroll(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant scroll failed: %w", err)
	}

	keys := make([]string, 0, len(pts))
	for _, p := range pts {
		if id := formatID(p.GetId()); id != "" {
			keys = append(keys, id)
		}
	}
	return keys, nil
}

// Fetch implements source.Source.
func (c *Collection) Fetch(ctx context.Context, key string) (string, error) {
	pts, err := c.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: c.collectionName,
		Ids:            []*qdrant.PointId{parseID(key)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return "", fmt.Errorf("qdrant get failed: %w", err)
	}
	if len(pts) == 0 {
		return "", source.ErrNotFound
	}
	return pts[0].GetPayload()[c.contentField].GetStringValue(), nil
}

// Close releases the gRPC connection.
func (c *Collection) Close() error {
	return c.client.Close()
}

// formatID renders a point id as a source key.
func formatID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// parseID is the inverse of formatID.
func parseID(key string) *qdrant.PointId {
	if n, err := strconv.ParseUint(key, 10, 64); err == nil {
		return qdrant.NewIDNum(n)
	}
	return qdrant.NewIDUUID(key)
}

// buildFilter converts payload matches to a Qdrant filter.
func buildFilter(match map[string]any) *qdrant.Filter {
	if len(match) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(match))
	for key, value := range match {
		conditions = append(conditions, buildMatchCondition(key, value))
	}
	return &qdrant.Filter{Must: conditions}
}

// buildMatchCondition creates a match condition for a key-value pair.
func buildMatchCondition(key string, value any) *qdrant.Condition {
	var match *qdrant.Match

	switch v := value.(type) {
	case string:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}}
	case int:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(v)}}
	case int64:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: v}}
	case bool:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: v}}
	default:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: fmt.Sprintf("%v", v)}}
	}

	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: match,
			},
		},
	}
}

// Compile-time check that Collection implements Source.
var _ source.Source = (*Collection)(nil)
