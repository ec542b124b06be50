package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"event", topics.Event("camera-01", "camera"), "huntsman/event/camera-01/camera"},
		{"event sanitised", topics.Event("PYRO:cam@10.0.0.2/x+#", "focuser"), "huntsman/event/PYRO:cam@10.0.0.2_x__/focuser"},
		{"all events", topics.AllEvents(), "huntsman/event/+/+"},
		{"core state", topics.CoreState(), "huntsman/core/state"},
		{"core say", topics.CoreSay(), "huntsman/core/say"},
		{"system status", topics.SystemStatus(), "huntsman/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseEventTopic(t *testing.T) {
	tests := []struct {
		topic    string
		wantURI  string
		wantType string
		wantOK   bool
	}{
		{"huntsman/event/camera-01/camera", "camera-01", "camera", true},
		{"huntsman/event/camera-01", "", "", false},
		{"huntsman/event/a/b/c", "", "", false},
		{"huntsman/core/state", "", "", false},
		{"huntsman/event//camera", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			uri, typ, ok := ParseEventTopic(tt.topic)
			if ok != tt.wantOK || uri != tt.wantURI || typ != tt.wantType {
				t.Errorf("ParseEventTopic(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.topic, uri, typ, ok, tt.wantURI, tt.wantType, tt.wantOK)
			}
		})
	}
}
