// Package fetch provides the hardened HTTP substrate used by the scraping
// adapters: browser-fingerprint headers, proxy rotation, retry with backoff,
// per-host rate limiting, circuit breaking and the third-party fetch proxy.
package fetch

import (
	"math/rand"
	"net/http"
)

// fingerprint is one plausible browser identity.
type fingerprint struct {
	userAgent      string
	secChUA        string
	secChUAMobile  string
	secChUAPlat    string
	acceptLanguage string
}

// fingerprints covers current Chrome, Firefox, Safari and Edge builds on the
// platforms those browsers actually ship on.
var fingerprints = []fingerprint{
	{
		userAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		secChUA:        `"Not/A)Brand";v="8", "Chromium";v="126", "Google Chrome";v="126"`,
		secChUAMobile:  "?0",
		secChUAPlat:    `"Windows"`,
		acceptLanguage: "en-US,en;q=0.9",
	},
	{
		userAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
		secChUA:        `"Chromium";v="125", "Google Chrome";v="125", "Not.A/Brand";v="24"`,
		secChUAMobile:  "?0",
		secChUAPlat:    `"macOS"`,
		acceptLanguage: "en-US,en;q=0.8",
	},
	{
		userAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
		acceptLanguage: "en-US,en;q=0.5",
	},
	{
		userAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		acceptLanguage: "en-US,en;q=0.9",
	},
	{
		userAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.0.0",
		secChUA:        `"Not/A)Brand";v="8", "Chromium";v="126", "Microsoft Edge";v="126"`,
		secChUAMobile:  "?0",
		secChUAPlat:    `"Windows"`,
		acceptLanguage: "en-US,en;q=0.9",
	},
	{
		userAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		secChUA:        `"Not/A)Brand";v="8", "Chromium";v="126", "Google Chrome";v="126"`,
		secChUAMobile:  "?0",
		secChUAPlat:    `"Linux"`,
		acceptLanguage: "en-US,en;q=0.7",
	},
}

// ApplyBrowserHeaders sets a randomized browser header set on req.
// The referer is wired from the caller; empty means no Referer header.
func ApplyBrowserHeaders(req *http.Request, rng *rand.Rand, referer string) {
	fp := fingerprints[rng.Intn(len(fingerprints))]

	req.Header.Set("User-Agent", fp.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", fp.acceptLanguage)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-User", "?1")

	if referer != "" {
		req.Header.Set("Referer", referer)
		req.Header.Set("Sec-Fetch-Site", "same-origin")
	} else {
		req.Header.Set("Sec-Fetch-Site", "none")
	}

	// Client hints only exist on Chromium-family fingerprints.
	if fp.secChUA != "" {
		req.Header.Set("Sec-CH-UA", fp.secChUA)
		req.Header.Set("Sec-CH-UA-Mobile", fp.secChUAMobile)
		req.Header.Set("Sec-CH-UA-Platform", fp.secChUAPlat)
	}
}

// SynthesizeSessionCookie builds a plausible per-vendor session cookie value.
// Stable within a burst (same seed), randomized across bursts.
func SynthesizeSessionCookie(rng *rand.Rand, vendor string) *http.Cookie {
	id := make([]byte, 16)
	for i := range id {
		id[i] = "abcdef0123456789"[rng.Intn(16)]
	}
	name := "session-id"
	switch vendor {
	case "newegg":
		name = "NV%5FW57"
	case "bestbuy":
		name = "CTT"
	case "bhphoto":
		name = "sessionKey"
	}
	return &http.Cookie{Name: name, Value: string(id)}
}
