package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeResult is the part of ffprobe's report the transcoder needs.
type ProbeResult struct {
	DurationSeconds float64
	// Width and Height are display dimensions: swapped when the stream is rotated by 90 degrees.
	Width      int
	Height     int
	Rotation   int
	HasVideo   bool
	HasAudio   bool
	VideoCodec string
}

// Probe runs a single ffprobe JSON call against path.
func Probe(ctx context.Context, ffprobePath, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %q: %w %s", path, err, strings.TrimSpace(stderr.String()))
	}

	return ParseJSON(out)
}

// ParseJSON converts raw ffprobe JSON output into a ProbeResult.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	pr := &ProbeResult{
		DurationSeconds: parseFloat(raw.Format.Duration),
	}
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if s.Disposition["attached_pic"] == 1 || pr.HasVideo {
				continue
			}
			pr.HasVideo = true
			pr.VideoCodec = s.CodecName
			pr.Width, pr.Height = s.Width, s.Height
			pr.Rotation = s.rotation()
			if pr.Rotation%180 != 0 {
				pr.Width, pr.Height = pr.Height, pr.Width
			}
			if pr.DurationSeconds == 0 {
				pr.DurationSeconds = parseFloat(s.Duration)
			}
		case "audio":
			pr.HasAudio = true
		}
	}
	return pr, nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

type ffprobeStream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Duration     string            `json:"duration"`
	Disposition  map[string]int    `json:"disposition"`
	Tags         map[string]string `json:"tags"`
	SideDataList []ffprobeSideData `json:"side_data_list"`
}

type ffprobeSideData struct {
	SideDataType string  `json:"side_data_type"`
	Rotation     float64 `json:"rotation"`
}

// rotation reads the display matrix first and the legacy rotate tag second,
// normalised to 0, 90, 180 or 270.
func (s *ffprobeStream) rotation() int {
	deg := 0.0
	found := false
	for _, sd := range s.SideDataList {
		if sd.SideDataType == "Display Matrix" {
			deg, found = sd.Rotation, true
			break
		}
	}
	if !found {
		if v, ok := s.Tags["rotate"]; ok {
			deg = parseFloat(v)
		}
	}
	r := int(math.Round(deg)) % 360
	if r < 0 {
		r += 360
	}
	return r
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
