package storage

import "testing"

func TestMinioURL(t *testing.T) {
	p, err := NewMinioProvider(MinioOptions{Endpoint: "localhost:9000", Bucket: "pictures"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if got := p.URL("qcm/trail-1/img.png"); got != "http://localhost:9000/pictures/qcm/trail-1/img.png" {
		t.Fatalf("unexpected url %q", got)
	}

	p, _ = NewMinioProvider(MinioOptions{Endpoint: "minio:9000", Bucket: "pictures", UseSSL: true, PublicURL: "https://cdn.example/"})
	if got := p.URL("rewards/entrée libre.png"); got != "https://cdn.example/pictures/rewards/entr%C3%A9e%20libre.png" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestMinioRequiresBucket(t *testing.T) {
	if _, err := NewMinioProvider(MinioOptions{Endpoint: "localhost:9000"}); err == nil {
		t.Fatalf("expected error without bucket")
	}
}

func TestLocalURL(t *testing.T) {
	p := LocalProvider{BaseURL: "/static/"}
	if got := p.URL("/rewards/r1.png"); got != "/static/rewards/r1.png" {
		t.Fatalf("unexpected url %q", got)
	}
}
