// Package supabase reads reference documents from a Supabase project,
// either from a Storage bucket or from a documents table.
package supabase

import (
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// Config holds Supabase connection configuration
type Config struct {
	URL    string
	APIKey string

	// Bucket and Prefix select the Storage objects read by NewBucket.
	Bucket string
	Prefix string

	// Table is the table read by NewTable. Default: "documents".
	Table string
}

func newClient(cfg Config) (*supabase.Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return client, nil
}
