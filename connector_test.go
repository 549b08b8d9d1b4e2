package signet

import (
	"context"
	"errors"
	"testing"

	"southwinds.dev/signet/persist"
)

var testCtx = context.Background()

// newTestConnector builds a connector over in-memory stores with audit
// logging disabled.
func newTestConnector(t *testing.T) *Connector {
	t.Helper()

	keyStore, secretStore, err := persist.NewStores(persist.StoreConfig{Type: persist.StoreTypeMemory})
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	t.Cleanup(func() { keyStore.Close() })

	connector, err := New(Options{}, keyStore, secretStore)
	if err != nil {
		t.Fatalf("Failed to create connector: %v", err)
	}
	t.Cleanup(func() { connector.Close() })

	return connector
}

func testRequestContext() RequestContext {
	return RequestContext{TenantID: "test-tenant", Identity: "test-identity"}
}

func TestNewRequiresStores(t *testing.T) {
	keyStore, secretStore, err := persist.NewStores(persist.StoreConfig{Type: persist.StoreTypeMemory})
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer keyStore.Close()

	if _, err = New(Options{}, nil, secretStore); err == nil {
		t.Error("Expected error for nil key store")
	}
	if _, err = New(Options{}, keyStore, nil); err == nil {
		t.Error("Expected error for nil secret store")
	}
}

func TestRequestContextValidation(t *testing.T) {
	connector := newTestConnector(t)

	// Missing tenant is reported before missing identity
	_, err := connector.CreateKey(testCtx, RequestContext{}, "k", KeyTypeEd25519)
	if !IsValidation(err) {
		t.Fatalf("Expected validation error, got: %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "tenantId" {
		t.Errorf("Expected tenantId field, got: %v", err)
	}

	_, err = connector.CreateKey(testCtx, RequestContext{TenantID: "t"}, "k", KeyTypeEd25519)
	if !errors.As(err, &verr) || verr.Field != "identity" {
		t.Errorf("Expected identity field, got: %v", err)
	}
}

func TestCompositeID(t *testing.T) {
	rc := RequestContext{TenantID: "t", Identity: "billing"}
	if got := rc.CompositeID("api-key"); got != "billing/api-key" {
		t.Errorf("Expected billing/api-key, got %s", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	keyStore, secretStore, err := persist.NewStores(persist.StoreConfig{Type: persist.StoreTypeMemory})
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer keyStore.Close()

	connector, err := New(Options{}, keyStore, secretStore)
	if err != nil {
		t.Fatalf("Failed to create connector: %v", err)
	}

	if err = connector.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err = connector.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}
}
