// Package identity derives the caller identity and descriptive metadata
// from request headers. Resolution never fails: missing headers yield
// sentinel values.
package identity

import (
	"net/http"
	"strings"
	"time"
)

const (
	// Unknown is the sentinel for an absent identity, browser or OS.
	Unknown = "Unknown"
	// Desktop is the device class when no mobile or tablet token matches.
	Desktop = "Desktop"
)

// UserInfo describes the caller of one request.
type UserInfo struct {
	IP        string `json:"ip"`
	Country   string `json:"country,omitempty"`
	City      string `json:"city,omitempty"`
	Region    string `json:"region,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`
	ASN       string `json:"asn,omitempty"`
	UserAgent string `json:"userAgent"`
	Referer   string `json:"referer,omitempty"`
	Language  string `json:"language,omitempty"`
	Device    string `json:"device"`
	Browser   string `json:"browser"`
	OS        string `json:"os"`
	Timestamp string `json:"timestamp"`
}

// Identity returns the rate-limit partition key.
func (u UserInfo) Identity() string { return u.IP }

type rule struct {
	tokens []string
	label  string
}

// First match wins, so order matters: every Edge UA also says Chrome and
// every Chrome UA also says Safari.
var (
	deviceRules = []rule{
		{[]string{"mobile"}, "Mobile"},
		{[]string{"tablet", "ipad"}, "Tablet"},
	}
	browserRules = []rule{
		{[]string{"edg"}, "Edge"},
		{[]string{"chrome"}, "Chrome"},
		{[]string{"firefox"}, "Firefox"},
		{[]string{"safari"}, "Safari"},
		{[]string{"opera", "opr"}, "Opera"},
	}
	osRules = []rule{
		{[]string{"windows"}, "Windows"},
		{[]string{"macintosh", "mac os x"}, "macOS"},
		{[]string{"linux"}, "Linux"},
		{[]string{"android"}, "Android"},
		{[]string{"iphone", "ipad", "ipod"}, "iOS"},
	}
)

// Resolve builds the UserInfo for a request with headers h received at now.
func Resolve(h http.Header, now time.Time) UserInfo {
	ua := strings.TrimSpace(h.Get("User-Agent"))
	if ua == "" {
		ua = Unknown
	}
	lower := strings.ToLower(ua)

	return UserInfo{
		IP:        clientIP(h),
		Country:   h.Get("CF-IPCountry"),
		City:      h.Get("CF-IPCity"),
		Region:    h.Get("CF-Region"),
		Timezone:  h.Get("CF-Timezone"),
		Latitude:  h.Get("CF-IPLat"),
		Longitude: h.Get("CF-IPLon"),
		ASN:       h.Get("CF-ASN"),
		UserAgent: ua,
		Referer:   h.Get("Referer"),
		Language:  primaryLanguage(h.Get("Accept-Language")),
		Device:    match(lower, deviceRules, Desktop),
		Browser:   match(lower, browserRules, Unknown),
		OS:        match(lower, osRules, Unknown),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

func clientIP(h http.Header) string {
	if ip := strings.TrimSpace(h.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(h.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := h.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return Unknown
}

func primaryLanguage(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

func match(ua string, rules []rule, fallback string) string {
	for _, r := range rules {
		for _, tok := range r.tokens {
			if strings.Contains(ua, tok) {
				return r.label
			}
		}
	}
	return fallback
}
