package etcd

import (
	"path"
	"strings"
	"testing"
)

func TestRegistrationKeyCarriesDiscoveryPrefix(t *testing.T) {
	key := serviceKey("worker_service", "host-ab12cd34")
	prefix := servicePrefix("worker_service")

	if !strings.HasPrefix(key, prefix) {
		t.Fatalf("key %q does not start with discovery prefix %q", key, prefix)
	}
	if key != "/worker_service/host-ab12cd34" {
		t.Fatalf("key = %q, want /worker_service/host-ab12cd34", key)
	}
}

func TestServicePrefixIsolatesServiceNames(t *testing.T) {
	// Without the trailing slash, "worker_service" would also match keys
	// under "worker_service_v2".
	other := serviceKey("worker_service_v2", "host-1")
	if strings.HasPrefix(other, servicePrefix("worker_service")) {
		t.Fatalf("prefix %q must not match %q", servicePrefix("worker_service"), other)
	}
}

func TestDiscoveryKeysMapToInstanceIDs(t *testing.T) {
	key := serviceKey("worker_service", "host-ab12cd34")
	if got := path.Base(key); got != "host-ab12cd34" {
		t.Fatalf("path.Base(%q) = %q, want host-ab12cd34", key, got)
	}
}
