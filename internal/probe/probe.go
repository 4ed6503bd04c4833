// Package probe performs single TCP connection attempts against one
// (address, port) pair, classifying the outcome and optionally capturing
// an application banner. The Probe contract is total: every failure mode
// is mapped into the result record, never returned as an error.
package probe

import (
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Status classifies the outcome of a single probe.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
	StatusError  Status = "error"
)

// Banner reads never wait longer than this, regardless of the connect timeout.
const maxBannerWait = time.Second

// ScanTask identifies one (address, port) pair to probe. Tasks are immutable
// values produced by the cross-product of expanded addresses and ports.
type ScanTask struct {
	Address string
	Port    int
}

// Addr returns the task's dialable "host:port" form.
func (t ScanTask) Addr() string {
	return net.JoinHostPort(t.Address, strconv.Itoa(t.Port))
}

// Result is the immutable record produced by exactly one probe execution.
// RTT is set only when the connect attempt completed with a definitive
// accept or refuse; timeouts and transport failures leave it nil.
type Result struct {
	Address     string
	Port        int
	Status      Status
	RTT         *time.Duration
	Banner      string
	Hostname    string
	ErrorDetail string
	Timestamp   time.Time
}

// Options configures a probe attempt.
type Options struct {
	Timeout        time.Duration
	BannerEnabled  bool
	BannerMaxBytes int
}

// Probe attempts a TCP connection to the task's endpoint within
// opts.Timeout. It never blocks beyond the timeout budget and never
// returns an error: refusals, timeouts, and transport failures all become
// data in the returned Result.
func Probe(task ScanTask, opts Options) Result {
	start := time.Now()
	res := Result{
		Address:   task.Address,
		Port:      task.Port,
		Timestamp: start,
	}

	conn, err := net.DialTimeout("tcp", task.Addr(), opts.Timeout)
	elapsed := time.Since(start)

	if err == nil {
		defer conn.Close()
		res.Status = StatusOpen
		res.RTT = &elapsed
		if opts.BannerEnabled {
			banner, bannerErr := readBanner(conn, opts.Timeout, opts.BannerMaxBytes)
			res.Banner = banner
			if bannerErr != nil {
				// Non-fatal: the port is open even if the greeting read failed.
				res.ErrorDetail = "banner_err: " + bannerErr.Error()
			}
		}
		return res
	}

	if isRefused(err) {
		res.Status = StatusClosed
		res.RTT = &elapsed
		res.ErrorDetail = err.Error()
		return res
	}

	// Connect timeout, unreachable network, failed resolution, and every
	// other transport failure: the attempt never completed, so no RTT.
	res.Status = StatusError
	res.ErrorDetail = err.Error()
	return res
}

// isRefused reports whether the dial error is a definitive refusal, meaning
// the remote host answered and rejected the connection.
func isRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	// Some platforms surface refusals without a syscall errno in the chain.
	return strings.Contains(err.Error(), "connection refused")
}

// readBanner performs a single bounded read of the connection's greeting.
// The read deadline never exceeds the connect timeout. A timed-out read is
// not an error: services that wait for the client to speak first simply
// have no banner. Bytes are decoded leniently and trimmed.
func readBanner(conn net.Conn, timeout time.Duration, maxBytes int) (string, error) {
	wait := timeout
	if wait > maxBannerWait {
		wait = maxBannerWait
	}
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return "", err
	}

	buf := make([]byte, maxBytes)
	n, err := conn.Read(buf)
	if n > 0 {
		return strings.TrimSpace(strings.ToValidUTF8(string(buf[:n]), "�")), nil
	}
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return "", nil
		}
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", err
	}
	return "", nil
}
