package social

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
)

// Proxy describes one entry of the rotation list.
type Proxy struct {
	IP             string   `json:"ip"`
	Port           string   `json:"port"`
	Protocols      []string `json:"protocols"`
	AnonymityLevel string   `json:"anonymityLevel"`
	Country        string   `json:"country"`
	UpTime         float64  `json:"upTime"`
}

// URL renders the proxy for the given protocol.
func (p Proxy) URL(protocol string) string {
	return fmt.Sprintf("%s://%s:%s", protocol, p.IP, p.Port)
}

// LoadProxies reads the rotation list from a JSON file. A missing path
// yields an empty list, which disables proxying rather than failing.
func LoadProxies(path string) ([]Proxy, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read proxy file: %w", err)
	}
	var proxies []Proxy
	if err := json.Unmarshal(raw, &proxies); err != nil {
		return nil, fmt.Errorf("parse proxy file: %w", err)
	}
	return proxies, nil
}

// filterProxies keeps entries speaking the protocol with at least the given
// uptime percentage.
func filterProxies(proxies []Proxy, protocol string, minUptime float64) []Proxy {
	var out []Proxy
	for _, p := range proxies {
		if p.UpTime < minUptime {
			continue
		}
		for _, proto := range p.Protocols {
			if proto == protocol {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// pickProxies selects candidates for one fetch: prefer high-uptime entries,
// fall back to the configured floor when too few qualify, random order.
func pickProxies(proxies []Proxy, protocol string, minUptime float64, max int) []Proxy {
	filtered := filterProxies(proxies, protocol, 70)
	if len(filtered) < 5 {
		filtered = filterProxies(proxies, protocol, minUptime)
	}
	if len(filtered) == 0 {
		return nil
	}

	rand.Shuffle(len(filtered), func(i, j int) {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	})
	if len(filtered) > max {
		filtered = filtered[:max]
	}
	return filtered
}
