// Package resolve provides best-effort reverse DNS resolution for scan
// results. Lookups are bounded and every failure mode yields an empty
// hostname; reverse resolution never produces an error.
package resolve

import (
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	defaultTimeout = 2 * time.Second
	resolvConfPath = "/etc/resolv.conf"
	fallbackServer = "127.0.0.1:53"
)

// Resolver performs PTR lookups against the system's configured
// nameservers.
type Resolver struct {
	client  *dns.Client
	servers []string
}

// New creates a resolver using the nameservers from /etc/resolv.conf,
// falling back to localhost when the file is missing or empty. A
// non-positive timeout selects the default.
func New(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	servers := []string{fallbackServer}
	if cfg, err := dns.ClientConfigFromFile(resolvConfPath); err == nil && len(cfg.Servers) > 0 {
		servers = make([]string, 0, len(cfg.Servers))
		for _, s := range cfg.Servers {
			servers = append(servers, net.JoinHostPort(s, cfg.Port))
		}
	}

	return &Resolver{
		client:  &dns.Client{Timeout: timeout},
		servers: servers,
	}
}

// Reverse returns the PTR name for address, or the empty string when the
// address has no PTR record, the lookup fails, or the lookup times out.
func (r *Resolver) Reverse(address string) string {
	arpa, err := dns.ReverseAddr(address)
	if err != nil {
		return ""
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)

	for _, server := range r.servers {
		in, _, err := r.client.Exchange(msg, server)
		if err != nil || in == nil {
			continue
		}
		for _, answer := range in.Answer {
			if ptr, ok := answer.(*dns.PTR); ok {
				return strings.TrimSuffix(ptr.Ptr, ".")
			}
		}
		// The server answered; an empty answer section means no PTR record.
		return ""
	}
	return ""
}
