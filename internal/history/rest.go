package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltmark/hwpricer/internal/domain"
)

// RESTStore talks to a hosted Postgres exposed through a PostgREST-style
// interface (Supabase). Filters are encoded as column=op.value query params.
type RESTStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewRESTStore creates the remote store client.
func NewRESTStore(baseURL, apiKey string, log zerolog.Logger) *RESTStore {
	return &RESTStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log.With().Str("component", "history_rest").Logger(),
	}
}

type hardwareRow struct {
	AssetID     string  `json:"asset_id"`
	Timestamp   int64   `json:"timestamp"`
	Price       float64 `json:"price"`
	TWAP        float64 `json:"twap"`
	SourceCount int     `json:"source_count"`
}

type rentalRow struct {
	GPUType          string  `json:"gpu_type"`
	Timestamp        int64   `json:"timestamp"`
	AvgPrice         float64 `json:"avg_price"`
	MinPrice         float64 `json:"min_price"`
	MaxPrice         float64 `json:"max_price"`
	OfferCount       int     `json:"offer_count"`
	InterruptibleAvg float64 `json:"interruptible_avg"`
	OnDemandAvg      float64 `json:"on_demand_avg"`
}

func (r *RESTStore) tableURL(table string) string {
	return r.baseURL + "/rest/v1/" + table
}

func (r *RESTStore) setHeaders(req *http.Request) {
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// insert POSTs one row to a table.
func (r *RESTStore) insert(ctx context.Context, table string, row interface{}) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal %s row: %w", table, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tableURL(table), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build insert request: %w", err)
	}
	r.setHeaders(req)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("insert request failed for %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("insert into %s returned status %d: %s", table, resp.StatusCode, string(body))
	}
	return nil
}

// InsertHardware implements Store.
func (r *RESTStore) InsertHardware(ctx context.Context, rec domain.HardwareHistoryRecord) error {
	return r.insert(ctx, "hardware_prices", hardwareRow{
		AssetID:     rec.AssetID,
		Timestamp:   rec.Timestamp,
		Price:       rec.Price,
		TWAP:        rec.TWAP,
		SourceCount: rec.SourceCount,
	})
}

// InsertRental implements Store.
func (r *RESTStore) InsertRental(ctx context.Context, rec domain.RentalHistoryRecord) error {
	return r.insert(ctx, "rental_prices", rentalRow{
		GPUType:          rec.GPUType,
		Timestamp:        rec.Timestamp,
		AvgPrice:         rec.AvgPrice,
		MinPrice:         rec.MinPrice,
		MaxPrice:         rec.MaxPrice,
		OfferCount:       rec.OfferCount,
		InterruptibleAvg: rec.InterruptibleAvg,
		OnDemandAvg:      rec.OnDemandAvg,
	})
}

// rangeParams encodes a Query as PostgREST filter parameters.
func rangeParams(keyColumn string, q Query) url.Values {
	params := url.Values{}
	if q.SeriesKey != "" {
		params.Set(keyColumn, "eq."+q.SeriesKey)
	}
	if q.StartTime > 0 {
		params.Add("timestamp", "gte."+strconv.FormatInt(q.StartTime, 10))
	}
	if q.EndTime > 0 {
		params.Add("timestamp", "lte."+strconv.FormatInt(q.EndTime, 10))
	}
	params.Set("order", "timestamp.desc")
	params.Set("limit", strconv.Itoa(q.Limit))
	return params
}

// get runs a GET against a table and decodes the JSON array into out.
func (r *RESTStore) get(ctx context.Context, table string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.tableURL(table)+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build query request: %w", err)
	}
	r.setHeaders(req)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("query request failed for %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query against %s returned status %d", table, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s rows: %w", table, err)
	}
	return nil
}

// QueryHardware implements Store.
func (r *RESTStore) QueryHardware(ctx context.Context, q Query) ([]domain.HardwareHistoryRecord, error) {
	q = q.normalized()
	var rows []hardwareRow
	if err := r.get(ctx, "hardware_prices", rangeParams("asset_id", q), &rows); err != nil {
		return nil, err
	}
	out := make([]domain.HardwareHistoryRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.HardwareHistoryRecord{
			AssetID:     row.AssetID,
			Timestamp:   row.Timestamp,
			Price:       row.Price,
			TWAP:        row.TWAP,
			SourceCount: row.SourceCount,
		})
	}
	return out, nil
}

// QueryRental implements Store.
func (r *RESTStore) QueryRental(ctx context.Context, q Query) ([]domain.RentalHistoryRecord, error) {
	q = q.normalized()
	var rows []rentalRow
	if err := r.get(ctx, "rental_prices", rangeParams("gpu_type", q), &rows); err != nil {
		return nil, err
	}
	out := make([]domain.RentalHistoryRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.RentalHistoryRecord{
			GPUType:          row.GPUType,
			Timestamp:        row.Timestamp,
			AvgPrice:         row.AvgPrice,
			MinPrice:         row.MinPrice,
			MaxPrice:         row.MaxPrice,
			OfferCount:       row.OfferCount,
			InterruptibleAvg: row.InterruptibleAvg,
			OnDemandAvg:      row.OnDemandAvg,
		})
	}
	return out, nil
}

// count reads an exact row count from the Content-Range header.
func (r *RESTStore) count(ctx context.Context, table string, params url.Values) (int64, error) {
	params.Set("select", "timestamp")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.tableURL(table)+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build count request: %w", err)
	}
	r.setHeaders(req)
	req.Header.Set("Prefer", "count=exact")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("count request failed for %s: %w", table, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("count against %s returned status %d", table, resp.StatusCode)
	}
	return parseContentRangeTotal(resp.Header.Get("Content-Range"))
}

// parseContentRangeTotal extracts the total from a "0-0/123" style header.
func parseContentRangeTotal(header string) (int64, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, fmt.Errorf("malformed Content-Range header: %q", header)
	}
	total := header[idx+1:]
	if total == "*" {
		return 0, nil
	}
	return strconv.ParseInt(total, 10, 64)
}

// edgeTimestamp fetches the oldest or newest timestamp in a table.
func (r *RESTStore) edgeTimestamp(ctx context.Context, table, direction string) (int64, error) {
	params := url.Values{}
	params.Set("select", "timestamp")
	params.Set("order", "timestamp."+direction)
	params.Set("limit", "1")

	var rows []struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := r.get(ctx, table, params, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Timestamp, nil
}

func (r *RESTStore) seriesStats(ctx context.Context, table, keyColumn string, keys []string) (*SeriesStats, error) {
	stats := &SeriesStats{PerKey: make(map[string]int64)}

	total, err := r.count(ctx, table, url.Values{})
	if err != nil {
		return nil, err
	}
	stats.TotalRecords = total
	if total == 0 {
		return stats, nil
	}

	if stats.OldestTimestamp, err = r.edgeTimestamp(ctx, table, "asc"); err != nil {
		return nil, err
	}
	if stats.NewestTimestamp, err = r.edgeTimestamp(ctx, table, "desc"); err != nil {
		return nil, err
	}

	for _, key := range keys {
		params := url.Values{}
		params.Set(keyColumn, "eq."+key)
		n, err := r.count(ctx, table, params)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			stats.PerKey[key] = n
		}
	}
	return stats, nil
}

// HardwareStats implements Store.
func (r *RESTStore) HardwareStats(ctx context.Context) (*SeriesStats, error) {
	return r.seriesStats(ctx, "hardware_prices", "asset_id", hardwareKeys())
}

// RentalStats implements Store.
func (r *RESTStore) RentalStats(ctx context.Context) (*SeriesStats, error) {
	return r.seriesStats(ctx, "rental_prices", "gpu_type", rentalKeys())
}

// Cleanup implements Store.
func (r *RESTStore) Cleanup(ctx context.Context, cutoff int64) (int64, error) {
	var removed int64
	for _, table := range []string{"hardware_prices", "rental_prices"} {
		params := url.Values{}
		params.Set("timestamp", "lt."+strconv.FormatInt(cutoff, 10))

		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.tableURL(table)+"?"+params.Encode(), nil)
		if err != nil {
			return removed, fmt.Errorf("failed to build cleanup request: %w", err)
		}
		r.setHeaders(req)
		req.Header.Set("Prefer", "count=exact")

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return removed, fmt.Errorf("cleanup request failed for %s: %w", table, err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 300 {
			return removed, fmt.Errorf("cleanup against %s returned status %d", table, resp.StatusCode)
		}
		if n, err := parseContentRangeTotal(resp.Header.Get("Content-Range")); err == nil {
			removed += n
		}
	}
	return removed, nil
}

// Close implements Store. The REST store holds no local resources.
func (r *RESTStore) Close() error { return nil }
