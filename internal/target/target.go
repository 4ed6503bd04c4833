// Package target expands user-supplied target specifications into the
// concrete address and port sequences a scan operates on. Expansion is
// deterministic: the same specification always yields the same sequence.
package target

import (
	"encoding/binary"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/akmust/portsweep/internal/errors"
)

const (
	minPort = 1
	maxPort = 65535
)

// ExpandPorts parses a port specification string and returns a sorted,
// deduplicated slice of ports. Supported forms:
//   - single: "22"
//   - list: "22,80,443"
//   - range: "1-1024" (bounds swapped when reversed, clamped to 1..65535)
//   - mixed: "22,80,8000-8100"
func ExpandPorts(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.ErrInvalidPortSpec(spec)
	}

	seen := make(map[int]struct{})
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if strings.Contains(token, "-") {
			lo, hi, err := parseRangeToken(token)
			if err != nil {
				return nil, err
			}
			for p := lo; p <= hi; p++ {
				seen[p] = struct{}{}
			}
		} else {
			p, err := strconv.Atoi(token)
			if err != nil {
				return nil, errors.WrapConfigError(errors.CodeInvalidSpec,
					"port token is not an integer: "+token, err)
			}
			// Out-of-range singles are dropped, not fatal.
			if p >= minPort && p <= maxPort {
				seen[p] = struct{}{}
			}
		}
	}

	if len(seen) == 0 {
		return nil, errors.ErrInvalidPortSpec(spec)
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

// parseRangeToken parses an "a-b" token, swapping reversed bounds and
// clamping the result to the valid port interval.
func parseRangeToken(token string) (lo, hi int, err error) {
	bounds := strings.SplitN(token, "-", 2)
	a, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
	if err != nil {
		return 0, 0, errors.WrapConfigError(errors.CodeInvalidSpec,
			"invalid range token: "+token, err)
	}
	b, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
	if err != nil {
		return 0, 0, errors.WrapConfigError(errors.CodeInvalidSpec,
			"invalid range token: "+token, err)
	}
	if a > b {
		a, b = b, a
	}
	if a < minPort {
		a = minPort
	}
	if b > maxPort {
		b = maxPort
	}
	return a, b, nil
}

// ExpandAddresses returns the address sequence for a scan. When host is
// non-empty it wins and the sequence is just [host]; hostnames are allowed
// and left for the dialer to resolve. Otherwise start and end must both be
// IPv4 literals with start <= end, and the result is every address of the
// inclusive range in ascending order.
func ExpandAddresses(host, start, end string) ([]string, error) {
	if host != "" {
		return []string{host}, nil
	}
	if start == "" || end == "" {
		return nil, errors.NewConfigError(errors.CodeInvalidRange,
			"either a host or both start and end addresses must be provided")
	}

	lo, err := parseIPv4(start)
	if err != nil {
		return nil, err
	}
	hi, err := parseIPv4(end)
	if err != nil {
		return nil, err
	}
	if lo > hi {
		return nil, errors.ErrInvalidAddressRange(start, end)
	}

	addrs := make([]string, 0, hi-lo+1)
	for v := lo; ; v++ {
		var quad [4]byte
		binary.BigEndian.PutUint32(quad[:], v)
		addrs = append(addrs, net.IP(quad[:]).String())
		if v == hi {
			break
		}
	}
	return addrs, nil
}

// parseIPv4 parses a dotted-quad IPv4 literal into its numeric value.
func parseIPv4(s string) (uint32, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return 0, errors.ErrInvalidAddressLiteral(s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, errors.ErrInvalidAddressLiteral(s)
	}
	return binary.BigEndian.Uint32(v4), nil
}
