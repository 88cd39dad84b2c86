// Package tool hosts the builtin implementations of the three retrieval
// tools. Each one satisfies the black-box tool contract, so any of them can
// be swapped for a remote backend without touching the orchestration loop.
package tool

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
)

// entityRef is one record inside the opaque FullOutput blob that search
// produces and the downstream tools consume. Downstream tools must treat the
// blob as addressed by this package only.
type entityRef struct {
	contractx.BasicInfo
	Reviews        []string `json:"reviews,omitempty"`
	WebsiteContent string   `json:"website_content,omitempty"`
}

type refsPayload struct {
	Entities []entityRef `json:"entities"`
}

func decodeRefs(raw json.RawMessage) (*refsPayload, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("entity refs blob is empty")
	}
	var payload refsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode entity refs: %w", err)
	}
	if len(payload.Entities) == 0 {
		return nil, fmt.Errorf("entity refs blob has no entities")
	}
	return &payload, nil
}

// Set bundles the three builtin tools.
type Set struct {
	search    contractx.Tool
	details   contractx.Tool
	sentiment contractx.Tool
}

var _ contractx.Toolset = (*Set)(nil)

func (s *Set) Search() contractx.Tool    { return s.search }
func (s *Set) Details() contractx.Tool   { return s.details }
func (s *Set) Sentiment() contractx.Tool { return s.sentiment }

type Option func(*options)

type options struct {
	records    []DirectoryRecord
	httpClient *http.Client
}

// WithRecords replaces the builtin directory data.
func WithRecords(records []DirectoryRecord) Option {
	return func(o *options) {
		if len(records) > 0 {
			o.records = records
		}
	}
}

// WithHTTPClient sets the client the detail tool fetches websites with.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

func NewBuiltinSet(opts ...Option) *Set {
	o := &options{
		records:    builtinDirectory,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	return &Set{
		search:    &directoryTool{records: o.records},
		details:   &websiteTool{httpClient: o.httpClient},
		sentiment: &sentimentTool{},
	}
}
