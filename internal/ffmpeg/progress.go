package ffmpeg

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// readProgress consumes `-progress pipe:1` key=value lines and reports the
// completed fraction of durationSeconds. It returns when r is exhausted.
func readProgress(r io.Reader, durationSeconds float64, report func(float64)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || report == nil {
			continue
		}

		switch key {
		case "out_time_us", "out_time_ms":
			// Both keys carry microseconds.
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 || durationSeconds <= 0 {
				continue
			}
			report(min(1.0, float64(us)/1e6/durationSeconds))
		case "progress":
			if value == "end" {
				report(1.0)
			}
		}
	}
}
