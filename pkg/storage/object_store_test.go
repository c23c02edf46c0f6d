package storage

import "testing"

func TestNewMinioStoreRequiresEndpointAndBucket(t *testing.T) {
	if _, err := NewMinioStore(MinioConfig{}); err == nil {
		t.Fatal("expected error without endpoint")
	}
	if _, err := NewMinioStore(MinioConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestMinioConfigEnabled(t *testing.T) {
	if (MinioConfig{}).Enabled() {
		t.Fatal("empty config should be disabled")
	}
	if !(MinioConfig{Endpoint: "minio:9000"}).Enabled() {
		t.Fatal("config with endpoint should be enabled")
	}
}
