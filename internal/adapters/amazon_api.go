package adapters

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltmark/hwpricer/internal/domain"
)

const (
	paapiHost    = "webservices.amazon.com"
	paapiPath    = "/paapi5/searchitems"
	paapiRegion  = "us-east-1"
	paapiService = "ProductAdvertisingAPI"
	paapiTarget  = "com.amazon.paapi5.v1.ProductAdvertisingAPIv1.SearchItems"
)

// AmazonAPIAdapter reads listings from the Product Advertising API. PA-API
// requests are signed with AWS Signature V4.
type AmazonAPIAdapter struct {
	accessKey  string
	secretKey  string
	partnerTag string
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
}

// NewAmazonAPIAdapter creates the adapter; unavailable until all three
// credentials are configured.
func NewAmazonAPIAdapter(accessKey, secretKey, partnerTag string, log zerolog.Logger) *AmazonAPIAdapter {
	return &AmazonAPIAdapter{
		accessKey:  accessKey,
		secretKey:  secretKey,
		partnerTag: partnerTag,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log.With().Str("adapter", "amazon").Logger(),
		now:        time.Now,
	}
}

// Name implements domain.SourceAdapter.
func (a *AmazonAPIAdapter) Name() string { return "amazon" }

// Available implements domain.SourceAdapter.
func (a *AmazonAPIAdapter) Available() bool {
	return a.accessKey != "" && a.secretKey != "" && a.partnerTag != ""
}

type paapiSearchRequest struct {
	Keywords    string   `json:"Keywords"`
	Resources   []string `json:"Resources"`
	PartnerTag  string   `json:"PartnerTag"`
	PartnerType string   `json:"PartnerType"`
	Marketplace string   `json:"Marketplace"`
	ItemCount   int      `json:"ItemCount"`
}

type paapiSearchResponse struct {
	SearchResult struct {
		Items []struct {
			DetailPageURL string `json:"DetailPageURL"`
			ItemInfo      struct {
				Title struct {
					DisplayValue string `json:"DisplayValue"`
				} `json:"Title"`
			} `json:"ItemInfo"`
			Offers struct {
				Listings []struct {
					Price struct {
						Amount   float64 `json:"Amount"`
						Currency string  `json:"Currency"`
					} `json:"Price"`
				} `json:"Listings"`
			} `json:"Offers"`
		} `json:"Items"`
	} `json:"SearchResult"`
}

// FetchPrices implements domain.SourceAdapter.
func (a *AmazonAPIAdapter) FetchPrices(ctx context.Context, assetID string) ([]domain.Observation, error) {
	if !a.Available() {
		return nil, domain.NewAdapterError(a.Name(), domain.ErrAuthMissing, "PA-API credentials not configured")
	}
	term := primarySearchTerm(assetID)
	if term == "" {
		return nil, nil
	}

	payload, err := json.Marshal(paapiSearchRequest{
		Keywords: term,
		Resources: []string{
			"ItemInfo.Title",
			"Offers.Listings.Price",
		},
		PartnerTag:  a.partnerTag,
		PartnerType: "Associates",
		Marketplace: "www.amazon.com",
		ItemCount:   10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://"+paapiHost+paapiPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	a.sign(req, payload)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapAdapterError(a.Name(), domain.ErrFetchFailed, "search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &domain.AdapterError{
			Adapter: a.Name(),
			Code:    domain.ErrAuthFailed,
			Status:  resp.StatusCode,
			Message: "PA-API rejected the signature",
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.AdapterError{
			Adapter: a.Name(),
			Code:    domain.ErrHTTPError,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("PA-API returned status %d", resp.StatusCode),
		}
	}

	var search paapiSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, domain.WrapAdapterError(a.Name(), domain.ErrFetchFailed, "failed to decode search response", err)
	}

	now := a.now().UnixMilli()
	var obs []domain.Observation
	for _, item := range search.SearchResult.Items {
		title := item.ItemInfo.Title.DisplayValue
		if len(item.Offers.Listings) == 0 {
			continue
		}
		listing := item.Offers.Listings[0]
		if listing.Price.Currency != "" && listing.Price.Currency != "USD" {
			continue
		}
		price := listing.Price.Amount
		if !AcceptablePrice(price) || !RelevantListing(assetID, title) {
			continue
		}
		obs = append(obs, domain.Observation{
			AssetID:   assetID,
			Price:     price,
			Source:    a.Name(),
			Timestamp: now,
			Metadata: &domain.ObservationMetadata{
				ProductName: title,
				Seller:      "Amazon",
				Condition:   domain.ConditionNew,
				URL:         item.DetailPageURL,
			},
		})
	}

	a.log.Debug().Str("asset", assetID).Int("listings", len(obs)).Msg("Fetched PA-API listings")
	return obs, nil
}

// sign applies AWS Signature V4 to a PA-API request.
func (a *AmazonAPIAdapter) sign(req *http.Request, payload []byte) {
	t := a.now().UTC()
	amzDate := t.Format("20060102T150405Z")
	dateStamp := t.Format("20060102")

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("X-Amz-Target", paapiTarget)
	req.Host = paapiHost

	payloadHash := sha256.Sum256(payload)
	canonicalHeaders := "content-type:application/json; charset=utf-8\n" +
		"host:" + paapiHost + "\n" +
		"x-amz-date:" + amzDate + "\n" +
		"x-amz-target:" + paapiTarget + "\n"
	signedHeaders := "content-type;host;x-amz-date;x-amz-target"

	canonicalRequest := "POST\n" + paapiPath + "\n\n" +
		canonicalHeaders + "\n" +
		signedHeaders + "\n" +
		hex.EncodeToString(payloadHash[:])

	scope := dateStamp + "/" + paapiRegion + "/" + paapiService + "/aws4_request"
	reqHash := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := "AWS4-HMAC-SHA256\n" + amzDate + "\n" + scope + "\n" + hex.EncodeToString(reqHash[:])

	key := hmacSHA256([]byte("AWS4"+a.secretKey), dateStamp)
	key = hmacSHA256(key, paapiRegion)
	key = hmacSHA256(key, paapiService)
	key = hmacSHA256(key, "aws4_request")
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		a.accessKey, scope, signedHeaders, signature,
	))
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
