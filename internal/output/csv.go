// Package output contains the result sinks: CSV persistence and the
// console summary. Sinks consume the coordinator's finished result list;
// they never feed back into the scan.
package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/akmust/portsweep/internal/errors"
	"github.com/akmust/portsweep/internal/probe"
)

// CSVHeader is the fixed column order of the CSV sink.
var CSVHeader = []string{"ip", "hostname", "port", "status", "rtt", "banner", "error"}

// WriteCSV writes one row per result to w, header first. Banners are
// truncated to bannerTruncate bytes; RTT is rendered in seconds with four
// decimals and left empty when the attempt never completed.
func WriteCSV(w io.Writer, results []probe.Result, bannerTruncate int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return errors.WrapScanError(errors.CodeOutputWrite, "failed to write CSV header", err)
	}
	for i := range results {
		if err := cw.Write(csvRow(&results[i], bannerTruncate)); err != nil {
			return errors.WrapScanError(errors.CodeOutputWrite, "failed to write CSV row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.WrapScanError(errors.CodeOutputWrite, "failed to flush CSV", err)
	}
	return nil
}

// WriteCSVFile renders the results and writes them to path atomically:
// temp file in the same directory, then rename into place.
func WriteCSVFile(path string, results []probe.Result, bannerTruncate int) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, results, bannerTruncate); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapScanError(errors.CodeOutputWrite, "mkdir "+dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "portsweep-*.tmp")
	if err != nil {
		return errors.WrapScanError(errors.CodeOutputWrite, "create temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.WrapScanError(errors.CodeOutputWrite, "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.WrapScanError(errors.CodeOutputWrite, "close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.WrapScanError(errors.CodeOutputWrite, "rename temp file", err)
	}
	return nil
}

// DefaultFilename returns the timestamped CSV filename used when no
// explicit path is given.
func DefaultFilename(t time.Time) string {
	return fmt.Sprintf("scan_results_%s.csv", t.Format("20060102_150405"))
}

func csvRow(r *probe.Result, bannerTruncate int) []string {
	banner := truncateBanner(r.Banner, bannerTruncate)
	return []string{
		r.Address,
		r.Hostname,
		strconv.Itoa(r.Port),
		string(r.Status),
		FormatRTT(r.RTT),
		banner,
		r.ErrorDetail,
	}
}

// truncateBanner cuts s to at most max bytes without splitting a
// multi-byte rune, so truncated banners stay valid UTF-8.
func truncateBanner(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// FormatRTT renders a round-trip time in seconds with four decimals, or
// the empty string when the attempt never completed.
func FormatRTT(rtt *time.Duration) string {
	if rtt == nil {
		return ""
	}
	return strconv.FormatFloat(rtt.Seconds(), 'f', 4, 64)
}
