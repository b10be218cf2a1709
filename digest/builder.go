// Package digest builds the bounded text summary of reference documents
// that primes new conversations.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/creastat/chatcore/htmltext"
	"github.com/creastat/chatcore/source"
)

const (
	DefaultMaxDocuments = 5
	DefaultMaxChars     = 300
	DefaultScanLimit    = 50
	DefaultSuffix       = ".html"
	DefaultTitle        = "Nội dung website:"
)

// Config bounds the digest.
type Config struct {
	// MaxDocuments is K, the number of documents included.
	MaxDocuments int
	// MaxChars is the per-document character budget.
	MaxChars int
	// ScanLimit caps how many keys are listed before filtering.
	ScanLimit int
	// Suffix filters listed keys. Empty accepts every key.
	Suffix string
	// Title heads the digest.
	Title string
}

// DefaultConfig returns the bounds used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxDocuments: DefaultMaxDocuments,
		MaxChars:     DefaultMaxChars,
		ScanLimit:    DefaultScanLimit,
		Suffix:       DefaultSuffix,
		Title:        DefaultTitle,
	}
}

// withDefaults fills zero numeric bounds and the title. Suffix is left
// as given since empty is meaningful.
func (c Config) withDefaults() Config {
	if c.MaxDocuments <= 0 {
		c.MaxDocuments = DefaultMaxDocuments
	}
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultMaxChars
	}
	if c.ScanLimit <= 0 {
		c.ScanLimit = DefaultScanLimit
	}
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	return c
}

// Builder produces digests from a Source. Documents are taken in the
// source's listing order, not ranked by relevance.
type Builder struct {
	src    source.Source
	cfg    Config
	logger *slog.Logger
}

// NewBuilder creates a Builder. A nil src yields digests holding only
// the title. A nil logger uses slog.Default().
func NewBuilder(src source.Source, cfg Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{src: src, cfg: cfg.withDefaults(), logger: logger}
}

// Build lists the source, keeps the first K keys with the configured
// suffix, and concatenates each document's normalized, truncated text
// under a "[key]: " header. Documents that vanish between list and fetch
// are skipped and do not count toward K.
func (b *Builder) Build(ctx context.Context) (string, error) {
	var sb strings.Builder
	sb.WriteString(b.cfg.Title)
	sb.WriteString("\n\n")
	if b.src == nil {
		return sb.String(), nil
	}

	keys, err := b.src.List(ctx, b.cfg.ScanLimit)
	if err != nil {
		return "", fmt.Errorf("failed to list documents: %w", err)
	}

	included := 0
	for _, key := range keys {
		if included == b.cfg.MaxDocuments {
			break
		}
		if !strings.HasSuffix(key, b.cfg.Suffix) {
			continue
		}

		raw, err := b.src.Fetch(ctx, key)
		if errors.Is(err, source.ErrNotFound) {
			b.logger.Warn("document listed but missing", "key", key)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to fetch %s: %w", key, err)
		}
		included++

		text := htmltext.Truncate(htmltext.Normalize(raw), b.cfg.MaxChars)
		fmt.Fprintf(&sb, "[%s]: %s\n\n", key, text)
	}

	return sb.String(), nil
}
