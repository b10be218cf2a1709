// Package analytics appends one immutable record per completed turn and
// keeps a running total.
//
// Record keys start with the zero-padded creation time in milliseconds,
// so listing the collection returns records oldest first. The total is a
// read-modify-write on the store and may under-count under concurrency.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/creastat/chatcore"
	"github.com/creastat/chatcore/identity"
	"github.com/creastat/chatcore/kv"
)

const (
	recordsCollection = "analytics"
	statsCollection   = "stats"
	totalID           = "total_requests"

	// DefaultTTL is how long a record is kept.
	DefaultTTL = 30 * 24 * time.Hour
	// DefaultListLimit is the page size when none is given.
	DefaultListLimit = 50
	// MaxListLimit caps the page size.
	MaxListLimit = 1000

	maxListOffset = math.MaxInt - MaxListLimit
)

// Record describes one completed turn.
type Record struct {
	UserID         string            `json:"userId"`
	UserInfo       identity.UserInfo `json:"userInfo"`
	ConversationID string            `json:"conversationId"`
	Message        string            `json:"message"`
	Response       string            `json:"response"`
	TokenCount     int               `json:"tokenCount"`
	ResponseTimeMs int64             `json:"responseTime"`
	Timestamp      string            `json:"timestamp"`
}

// Page is one slice of the record listing.
type Page struct {
	Records []Record `json:"analytics"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Recorder writes and lists analytics records.
type Recorder struct {
	records *kv.Collection
	stats   *kv.Collection
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithTTL sets the record lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(r *Recorder) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for record keys.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger for skipped records.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRecorder creates a Recorder over store.
func NewRecorder(store kv.Store, opts ...Option) *Recorder {
	r := &Recorder{
		records: kv.NewCollection(store, recordsCollection),
		stats:   kv.NewCollection(store, statsCollection),
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stores rec and bumps the running total. The total is only
// touched once the record itself is written.
func (r *Recorder) Record(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode analytics record: %w", err)
	}

	id := fmt.Sprintf("%013d:%s", r.now().UnixMilli(), chatcore.RandomSuffix())
	if err := r.records.Put(ctx, id, string(raw), r.ttl); err != nil {
		return fmt.Errorf("failed to write analytics record: %w", err)
	}

	total, err := r.Total(ctx)
	if err != nil {
		return err
	}
	if err := r.stats.Put(ctx, totalID, strconv.Itoa(total+1), 0); err != nil {
		return fmt.Errorf("failed to write request total: %w", err)
	}
	return nil
}

// Total returns the running request total. A missing or unparsable
// counter reads as zero.
func (r *Recorder) Total(ctx context.Context) (int, error) {
	raw, found, err := r.stats.Get(ctx, totalID)
	if err != nil {
		return 0, fmt.Errorf("failed to read request total: %w", err)
	}
	if !found {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

// List returns records [offset, offset+limit) in key order together
// with the running total. Records that expired between listing and
// reading, or that fail to decode, are skipped. limit is capped at
// MaxListLimit.
func (r *Recorder) List(ctx context.Context, limit, offset int) (Page, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	offset = max(min(offset, maxListOffset), 0)
	page := Page{Records: []Record{}, Limit: limit, Offset: offset}

	ids, err := r.records.List(ctx, limit+offset)
	if err != nil {
		return Page{}, fmt.Errorf("failed to list analytics records: %w", err)
	}
	if offset < len(ids) {
		ids = ids[offset:min(offset+limit, len(ids))]
	} else {
		ids = nil
	}

	for _, id := range ids {
		raw, found, err := r.records.Get(ctx, id)
		if err != nil {
			return Page{}, fmt.Errorf("failed to read analytics record: %w", err)
		}
		if !found {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			r.logger.Warn("skipping undecodable analytics record", "id", id, "error", err)
			continue
		}
		page.Records = append(page.Records, rec)
	}

	if page.Total, err = r.Total(ctx); err != nil {
		return Page{}, err
	}
	return page, nil
}
