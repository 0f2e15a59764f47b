// Package sources holds the per-source fetch adapters. Each adapter
// translates its source-native format into core.RawRecord; dedup and
// tagging belong to the ingest gate, never to an adapter.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"parkintel/internal/core"
)

const userAgent = "parkintel/1.0"

// Adapter is the capability every source implements.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]core.RawRecord, error)
}

// Registry maps adapter names to implementations; sources are selected by
// name rather than by type.
type Registry struct {
	adapters map[string]Adapter
	names    []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	if _, ok := r.adapters[a.Name()]; !ok {
		r.names = append(r.names, a.Name())
		sort.Strings(r.names)
	}
	r.adapters[a.Name()] = a
}

// Resolve returns the adapter registered under name.
func (r *Registry) Resolve(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("source %q is not registered", name)
	}
	return a, nil
}

// Names lists registered adapter names, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// htmlToText strips markup from a fragment and collapses whitespace.
// Feed entries and Xueqiu posts arrive as HTML; storage keeps plain text.
func htmlToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	doc.Find("script, style, iframe, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
