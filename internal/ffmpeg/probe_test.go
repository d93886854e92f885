package ffmpeg

import "testing"

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name           string
		json           string
		expectWidth    int
		expectHeight   int
		expectRotation int
		expectDuration float64
		expectVideo    bool
		expectAudio    bool
	}{
		{
			name: "plain h264 with audio",
			json: `{
				"format": {"duration": "12.500000"},
				"streams": [
					{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080},
					{"codec_type": "audio", "codec_name": "aac"}
				]
			}`,
			expectWidth: 1920, expectHeight: 1080, expectDuration: 12.5,
			expectVideo: true, expectAudio: true,
		},
		{
			name: "display matrix rotation swaps dimensions",
			json: `{
				"format": {"duration": "3.0"},
				"streams": [
					{"codec_type": "video", "codec_name": "hevc", "width": 1920, "height": 1080,
					 "side_data_list": [{"side_data_type": "Display Matrix", "rotation": -90}]}
				]
			}`,
			expectWidth: 1080, expectHeight: 1920, expectRotation: 270, expectDuration: 3,
			expectVideo: true,
		},
		{
			name: "legacy rotate tag",
			json: `{
				"format": {},
				"streams": [
					{"codec_type": "video", "width": 1280, "height": 720, "duration": "4.2", "tags": {"rotate": "90"}}
				]
			}`,
			expectWidth: 720, expectHeight: 1280, expectRotation: 90, expectDuration: 4.2,
			expectVideo: true,
		},
		{
			name: "upside down keeps dimensions",
			json: `{
				"format": {"duration": "1"},
				"streams": [{"codec_type": "video", "width": 640, "height": 480, "tags": {"rotate": "180"}}]
			}`,
			expectWidth: 640, expectHeight: 480, expectRotation: 180, expectDuration: 1,
			expectVideo: true,
		},
		{
			name: "cover art is not a video stream",
			json: `{
				"format": {"duration": "200"},
				"streams": [
					{"codec_type": "audio", "codec_name": "mp3"},
					{"codec_type": "video", "codec_name": "mjpeg", "width": 500, "height": 500, "disposition": {"attached_pic": 1}}
				]
			}`,
			expectDuration: 200, expectAudio: true,
		},
		{
			name: "bad duration ignored",
			json: `{"format": {"duration": "N/A"}, "streams": [{"codec_type": "video", "width": 2, "height": 2}]}`,
			expectWidth: 2, expectHeight: 2, expectVideo: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr, err := ParseJSON([]byte(tt.json))
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if pr.Width != tt.expectWidth || pr.Height != tt.expectHeight {
				t.Errorf("Expected %dx%d, got %dx%d", tt.expectWidth, tt.expectHeight, pr.Width, pr.Height)
			}
			if pr.Rotation != tt.expectRotation {
				t.Errorf("Expected rotation %d, got %d", tt.expectRotation, pr.Rotation)
			}
			if pr.DurationSeconds != tt.expectDuration {
				t.Errorf("Expected duration %v, got %v", tt.expectDuration, pr.DurationSeconds)
			}
			if pr.HasVideo != tt.expectVideo || pr.HasAudio != tt.expectAudio {
				t.Errorf("Expected video=%v audio=%v, got video=%v audio=%v", tt.expectVideo, tt.expectAudio, pr.HasVideo, pr.HasAudio)
			}
		})
	}
}

func TestParseJSON_Invalid(t *testing.T) {
	if _, err := ParseJSON([]byte("not json")); err == nil {
		t.Error("Expected error for invalid JSON, got nil")
	}
}
