package media

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// RunSummary accumulates outcomes across folders. Safe for concurrent use.
type RunSummary struct {
	converted  atomic.Int64
	skipped    atomic.Int64
	renamed    atomic.Int64
	errors     atomic.Int64
	scanDenied atomic.Int64
	bytesIn    atomic.Int64
	bytesOut   atomic.Int64
}

// Summary is a point-in-time copy of a RunSummary.
type Summary struct {
	Converted  int
	Skipped    int
	Renamed    int
	Errors     int
	ScanDenied int
	BytesIn    int64
	BytesOut   int64
	Duration   time.Duration
	DryRun     bool
}

// Record adds one entry's outcome. renamed marks a skipped entry that moved to a new name;
// sizes are only counted for conversions.
func (s *RunSummary) Record(outcome ConversionOutcome, renamed bool, inBytes, outBytes int64) {
	switch outcome.Kind {
	case OutcomeConverted:
		s.converted.Add(1)
		s.bytesIn.Add(inBytes)
		s.bytesOut.Add(outBytes)
	case OutcomeSkipped:
		s.skipped.Add(1)
		if renamed {
			s.renamed.Add(1)
		}
	case OutcomeFailed:
		s.errors.Add(1)
	}
}

// RecordScanDenied counts an entry the scanner could not read.
func (s *RunSummary) RecordScanDenied() {
	s.scanDenied.Add(1)
}

// Snapshot returns the current totals.
func (s *RunSummary) Snapshot() Summary {
	return Summary{
		Converted:  int(s.converted.Load()),
		Skipped:    int(s.skipped.Load()),
		Renamed:    int(s.renamed.Load()),
		Errors:     int(s.errors.Load()),
		ScanDenied: int(s.scanDenied.Load()),
		BytesIn:    s.bytesIn.Load(),
		BytesOut:   s.bytesOut.Load(),
	}
}

// BytesSaved is the size reduction over converted entries. Negative when outputs grew.
func (s Summary) BytesSaved() int64 {
	return s.BytesIn - s.BytesOut
}

// Total is the number of entries that reached an outcome.
func (s Summary) Total() int {
	return s.Converted + s.Skipped + s.Errors
}

func (s Summary) String() string {
	saved := s.BytesSaved()
	savedStr := humanize.Bytes(uint64(max(saved, 0)))
	if saved < 0 {
		savedStr = "-" + humanize.Bytes(uint64(-saved))
	}
	prefix := ""
	if s.DryRun {
		prefix = "[dry-run] "
	}
	return fmt.Sprintf("%sconverted=%d skipped=%d renamed=%d errors=%d in=%s out=%s saved=%s elapsed=%s",
		prefix, s.Converted, s.Skipped, s.Renamed, s.Errors,
		humanize.Bytes(uint64(s.BytesIn)), humanize.Bytes(uint64(s.BytesOut)), savedStr,
		s.Duration.Round(time.Millisecond))
}
