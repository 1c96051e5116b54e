package library

import "testing"

func TestClassifyKinds(t *testing.T) {
	c := NewClassifier(nil, nil)

	cases := []struct {
		name string
		kind Kind
	}{
		{"movie.mp4", KindVideo},
		{"MOVIE.MKV", KindVideo},
		{"clip.webm", KindVideo},
		{"photo.jpg", KindImage},
		{"photo.JPEG", KindImage},
		{"song.flac", KindAudio},
		{"notes.pdf", KindDocument},
		{"subs.srt", KindDocument},
		{"backup.tar", KindArchive},
		{"main.go", KindCode},
		{"unknown.xyz", KindFile},
		{"noextension", KindFile},
		{".hidden", KindFile},
	}
	for _, tc := range cases {
		got := c.Classify(tc.name)
		if got.Kind != tc.kind {
			t.Errorf("Classify(%q).Kind = %q, want %q", tc.name, got.Kind, tc.kind)
		}
		if got.MIME == "" {
			t.Errorf("Classify(%q): empty MIME", tc.name)
		}
	}
}

func TestClassifyVideoMIME(t *testing.T) {
	c := NewClassifier(nil, nil)

	if got := c.Classify("a.mkv").MIME; got != "video/x-matroska" {
		t.Errorf("mkv MIME = %q", got)
	}
	if got := c.Classify("a.webm").MIME; got != "video/webm" {
		t.Errorf("webm MIME = %q", got)
	}
}

func TestClassifyCustomAllowList(t *testing.T) {
	// A custom allow-list replaces the defaults entirely.
	c := NewClassifier([]string{"OGV", ".vidx"}, []string{"pcx"})

	if got := c.Classify("old.ogv"); got.Kind != KindVideo {
		t.Errorf("ogv kind = %q", got.Kind)
	}
	// vidx has no MIME table entry anywhere: generic video fallback.
	if got := c.Classify("clip.vidx"); got.Kind != KindVideo || got.MIME != "video/mp4" {
		t.Errorf("vidx = %+v, want video with generic fallback MIME", got)
	}
	if got := c.Classify("img.pcx"); got.Kind != KindImage {
		t.Errorf("pcx kind = %q", got.Kind)
	}
	// mp4 is video by default but not in this custom list.
	if got := c.Classify("movie.mp4"); got.Kind == KindVideo {
		t.Error("mp4 should not be video under the custom allow-list")
	}
}
