package media

import "testing"

func TestBaseType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"video/webm", "video/webm"},
		{"video/webm;codecs=vp8", "video/webm"},
		{"Audio/WAV; rate=16000", "audio/wav"},
		{"  video/mp4 ", "video/mp4"},
		{"video/webm;codecs=\"vp8", "video/webm"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := BaseType(tt.in); got != tt.want {
				t.Errorf("BaseType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
