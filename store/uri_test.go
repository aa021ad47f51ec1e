package store

import "testing"

func TestPathToURI(t *testing.T) {
	tests := []struct {
		path string
		uri  string
	}{
		{"/data/my array.zarr", "file:///data/my%20array.zarr"},
		{"/data/plain", "file:///data/plain"},
		{"relative/dir", "file:relative/dir"},
		{`C:\Users\data`, "file:///C:/Users/data"},
		{"C:/Users/data", "file:///C:/Users/data"},
		{`\\server\share\data`, "file://server/share/data"},
		{"/tmp/東京", "file:///tmp/%E6%9D%B1%E4%BA%AC"},
	}
	for _, tt := range tests {
		if got := PathToURI(tt.path); got != tt.uri {
			t.Errorf("PathToURI(%q) = %q, want %q", tt.path, got, tt.uri)
		}
	}
}

func TestURIToPath(t *testing.T) {
	tests := []struct {
		uri  string
		path string
	}{
		{"file:///data/my%20array.zarr", "/data/my array.zarr"},
		{"file:relative/dir", "relative/dir"},
		{"file:///C:/Users/data", "C:/Users/data"},
		{"file://server/share/data", "//server/share/data"},
		{"file://localhost/data", "/data"},
		{"file:///tmp/%E6%9D%B1%E4%BA%AC", "/tmp/東京"},
	}
	for _, tt := range tests {
		got, err := URIToPath(tt.uri)
		if err != nil {
			t.Fatalf("URIToPath(%q): %v", tt.uri, err)
		}
		if got != tt.path {
			t.Errorf("URIToPath(%q) = %q, want %q", tt.uri, got, tt.path)
		}
	}

	if _, err := URIToPath("http://example.com/x"); err == nil {
		t.Error("expected error for non-file URI")
	}
}

func TestURIRoundTrip(t *testing.T) {
	paths := []string{
		"/data/simple",
		"/data/with space/and#hash",
		"relative/µs/Đà_Lạt",
		"C:/Users/東京/data.zarr",
		"//server/share/deep/tree",
	}
	for _, p := range paths {
		back, err := URIToPath(PathToURI(p))
		if err != nil {
			t.Fatalf("round trip of %q: %v", p, err)
		}
		if back != p {
			t.Errorf("round trip of %q yielded %q", p, back)
		}
	}
}
