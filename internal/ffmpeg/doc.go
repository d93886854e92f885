// Package ffmpeg probes videos with ffprobe and re-encodes them to H.264/AAC
// MP4 with ffmpeg. Both binaries are looked up on PATH unless configured.
package ffmpeg
