package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cppla/aiblog/config"
)

var httpClient = &http.Client{Timeout: 3 * time.Second}

type ipAPIResp struct {
	IP       string `json:"ip"`
	Location string `json:"location"`
}

type geoEntry struct {
	country   string
	city      string
	expiresAt time.Time
}

const (
	geoCacheTTL        = 24 * time.Hour
	geoCacheSweepEvery = time.Minute
)

// GeoLocator resolves viewer IPs to country and city. It prefers a local
// GeoLite2 City database and falls back to the remote IP location API.
type GeoLocator struct {
	reader    *geoip2.Reader
	remote    bool
	remoteURL string
	countries *gountries.Query

	mu        sync.RWMutex
	cache     map[string]geoEntry
	lastSweep time.Time
}

// NewGeoLocator builds a locator from configuration. A missing or unreadable
// database only disables local lookups.
func NewGeoLocator(cfg config.AppConfig) *GeoLocator {
	g := &GeoLocator{
		remote:    cfg.GeoRemoteAPI && cfg.GeoRemoteAPIURL != "",
		remoteURL: cfg.GeoRemoteAPIURL,
		countries: gountries.New(),
		cache:     make(map[string]geoEntry),
	}
	if cfg.GeoIPDBPath != "" {
		reader, err := geoip2.Open(cfg.GeoIPDBPath)
		if err != nil {
			if Sugar != nil {
				Sugar.Warnf("geoip database unavailable path=%s err=%v", cfg.GeoIPDBPath, err)
			}
		} else {
			g.reader = reader
		}
	}
	return g
}

// Enabled reports whether any lookup source is configured.
func (g *GeoLocator) Enabled() bool {
	return g.reader != nil || g.remote
}

// Close releases the GeoLite2 reader.
func (g *GeoLocator) Close() error {
	if g.reader == nil {
		return nil
	}
	return g.reader.Close()
}

// Lookup returns the country and city of ip. Private, loopback and
// unparsable addresses resolve to empty strings without error.
func (g *GeoLocator) Lookup(ctx context.Context, ip string) (string, string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil || IsPrivateIP(ip) {
		return "", "", nil
	}
	if e, ok := g.cacheGet(ip); ok {
		return e.country, e.city, nil
	}

	var country, city string
	var err error
	switch {
	case g.reader != nil:
		country, city, err = g.lookupLocal(parsed)
	case g.remote:
		country, city, err = g.lookupRemote(ctx, ip)
	default:
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	g.cacheSet(ip, country, city)
	return country, city, nil
}

func (g *GeoLocator) lookupLocal(ip net.IP) (string, string, error) {
	record, err := g.reader.City(ip)
	if err != nil {
		return "", "", fmt.Errorf("geoip city lookup: %w", err)
	}
	country := record.Country.Names["en"]
	if country == "" {
		country = g.countryName(record.Country.IsoCode)
	}
	return country, record.City.Names["en"], nil
}

// countryName expands an ISO alpha code, falling back to the upper-cased code.
func (g *GeoLocator) countryName(iso string) string {
	if iso == "" {
		return ""
	}
	if c, err := g.countries.FindCountryByAlpha(iso); err == nil && c.Name.Common != "" {
		return c.Name.Common
	}
	return cases.Upper(language.AmericanEnglish).String(iso)
}

// lookupRemote queries the IP location API, whose location field reads like
// "Country–Province–City ISP". Results are shared through Redis when enabled.
func (g *GeoLocator) lookupRemote(ctx context.Context, ip string) (string, string, error) {
	if country, city, ok := geoRedisGet(ctx, ip); ok {
		return country, city, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.remoteURL+ip, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", "AIBlog/1.0 (compatible; AIBlogClient/1.0)")
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", errors.New("ip api non-200")
	}
	var body ipAPIResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", err
	}
	country, city := SplitLocation(body.Location)
	if country != "" {
		geoRedisSet(ctx, ip, country, city)
	}
	return country, city, nil
}

func (g *GeoLocator) cacheGet(ip string) (geoEntry, bool) {
	g.mu.RLock()
	e, ok := g.cache[ip]
	g.mu.RUnlock()
	if !ok {
		return geoEntry{}, false
	}
	if time.Now().After(e.expiresAt) {
		g.mu.Lock()
		if cur, ok := g.cache[ip]; ok && time.Now().After(cur.expiresAt) {
			delete(g.cache, ip)
		}
		g.mu.Unlock()
		return geoEntry{}, false
	}
	return e, true
}

func (g *GeoLocator) cacheSet(ip, country, city string) {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if now.Sub(g.lastSweep) >= geoCacheSweepEvery {
		for k, e := range g.cache {
			if now.After(e.expiresAt) {
				delete(g.cache, k)
			}
		}
		g.lastSweep = now
	}
	g.cache[ip] = geoEntry{country: country, city: city, expiresAt: now.Add(geoCacheTTL)}
}

// SplitLocation splits a location like "中国–四川–成都 联通" into country and city.
// Any dash variant separates segments; the carrier suffix is dropped.
func SplitLocation(loc string) (country, city string) {
	s := strings.TrimSpace(loc)
	if s == "" {
		return "", ""
	}
	dashMapped := strings.Map(func(r rune) rune {
		switch r {
		case '-', '–', '—', '‑', '‒', '﹣', '－':
			return '-'
		default:
			return r
		}
	}, s)
	var segments []string
	for _, seg := range strings.Split(dashMapped, "-") {
		if f := strings.Fields(seg); len(f) > 0 {
			segments = append(segments, f[0])
		}
	}
	if len(segments) == 0 {
		return "", ""
	}
	country = segments[0]
	if len(segments) > 1 {
		city = segments[len(segments)-1]
	}
	return country, city
}

// IsPrivateIP returns true for RFC1918 and loopback ranges.
func IsPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified()
}

func geoRedisKey(ip string) string { return "aiblog:geo:" + ip }

func geoRedisGet(ctx context.Context, ip string) (string, string, bool) {
	cli := GetRedis()
	if cli == nil {
		return "", "", false
	}
	ctx2, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	val, err := cli.Get(ctx2, geoRedisKey(ip)).Result()
	if err != nil || val == "" {
		return "", "", false
	}
	country, city, _ := strings.Cut(val, "|")
	return country, city, true
}

func geoRedisSet(ctx context.Context, ip, country, city string) {
	cli := GetRedis()
	if cli == nil {
		return
	}
	ctx2, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_ = cli.Set(ctx2, geoRedisKey(ip), country+"|"+city, geoCacheTTL).Err()
}
