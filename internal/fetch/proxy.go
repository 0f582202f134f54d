package fetch

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync/atomic"
)

// ProxyScheme types a pool entry by its transport.
type ProxyScheme string

const (
	SchemeHTTP   ProxyScheme = "http"
	SchemeHTTPS  ProxyScheme = "https"
	SchemeSOCKS4 ProxyScheme = "socks4"
	SchemeSOCKS5 ProxyScheme = "socks5"
)

// ProxyEntry is one pool member.
type ProxyEntry struct {
	URL    *url.URL
	Scheme ProxyScheme
}

// ProxyPool is a fixed set of outbound proxies with round-robin and random
// selection. The round-robin cursor is a single atomic counter; occasional
// same-proxy repeats under contention are acceptable.
type ProxyPool struct {
	entries []ProxyEntry
	cursor  atomic.Uint64
}

// NewProxyPool parses a comma-separated proxy list. Entries without a scheme
// default to http. Malformed entries are dropped with an error only when the
// whole pool ends up empty despite non-empty input.
func NewProxyPool(urls []string) (*ProxyPool, error) {
	pool := &ProxyPool{}
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		scheme := ProxyScheme(strings.ToLower(u.Scheme))
		switch scheme {
		case SchemeHTTP, SchemeHTTPS, SchemeSOCKS4, SchemeSOCKS5:
		default:
			continue
		}
		pool.entries = append(pool.entries, ProxyEntry{URL: u, Scheme: scheme})
	}
	if len(urls) > 0 && len(pool.entries) == 0 {
		return nil, fmt.Errorf("no usable proxies in %d configured entries", len(urls))
	}
	return pool, nil
}

// Size returns the number of pool entries.
func (p *ProxyPool) Size() int {
	return len(p.entries)
}

// Next returns the next proxy in round-robin order, or nil for an empty pool.
func (p *ProxyPool) Next() *ProxyEntry {
	if len(p.entries) == 0 {
		return nil
	}
	idx := p.cursor.Add(1) - 1
	return &p.entries[idx%uint64(len(p.entries))]
}

// Random returns a uniformly random pool entry, or nil for an empty pool.
func (p *ProxyPool) Random(rng *rand.Rand) *ProxyEntry {
	if len(p.entries) == 0 {
		return nil
	}
	return &p.entries[rng.Intn(len(p.entries))]
}
