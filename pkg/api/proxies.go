package api

import (
	"net"
	"net/http"
	"strings"

	"go-loginguard/pkg/logger"
)

// TrustedProxies lists the peers whose X-Forwarded-For header is believed.
type TrustedProxies struct {
	nets []*net.IPNet
}

func NewTrustedProxies(cidrs []string) *TrustedProxies {
	p := &TrustedProxies{nets: make([]*net.IPNet, 0, len(cidrs))}
	for _, c := range cidrs {
		if !strings.Contains(c, "/") {
			if strings.Contains(c, ":") {
				c += "/128"
			} else {
				c += "/32"
			}
		}
		_, ipnet, err := net.ParseCIDR(c)
		if err != nil {
			logger.Log.Errorf("invalid trusted proxy %q: %v", c, err)
			continue
		}
		p.nets = append(p.nets, ipnet)
	}
	return p
}

func (p *TrustedProxies) Contains(ipStr string) bool {
	if p == nil || len(p.nets) == 0 {
		return false
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, ipnet := range p.nets {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the first X-Forwarded-For hop when the peer is trusted,
// otherwise the peer address.
func (p *TrustedProxies) ClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" && p.Contains(peer) {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return peer
}
