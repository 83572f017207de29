package attestd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"attestd/internal/domain"
)

func TestClient_RevokeSendsAdminHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/revocations" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Admin-Key") != "k" || r.Header.Get("X-Actor") != "ops" {
			t.Errorf("missing admin headers")
		}
		var in RevokeInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.RevocationEntry{CredentialID: in.CredentialID, Reason: in.Reason})
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", WithAdminKey("k"), WithActor("ops"))
	entry, err := client.Revoke(context.Background(), RevokeInput{CredentialID: "urn:uuid:1", Reason: domain.ReasonSuperseded})
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if entry.CredentialID != "urn:uuid:1" || entry.Reason != domain.ReasonSuperseded {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestClient_DecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"ALREADY_REVOKED","message":"already revoked"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Revoke(context.Background(), RevokeInput{CredentialID: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict || apiErr.Code != "ALREADY_REVOKED" {
		t.Fatalf("expected decoded API error, got %v", err)
	}
}

func TestClient_CheckRevocationsAndChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/revocations:check":
			_, _ = w.Write([]byte(`{"results":{"a":true,"b":false}}`))
		case "/v1/issuers/did:example:leaf/chain":
			if r.URL.Query().Get("credential_id") != "urn:uuid:9" {
				t.Errorf("missing credential_id")
			}
			_, _ = w.Write([]byte(`{"credential_id":"urn:uuid:9","issuers":[],"valid":false,"error":"issuer not found"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	results, err := client.CheckRevocations(context.Background(), []string{"a", "b"})
	if err != nil || !results["a"] || results["b"] {
		t.Fatalf("unexpected results %v %v", results, err)
	}
	chain, err := client.TrustChain(context.Background(), "did:example:leaf", "urn:uuid:9")
	if err != nil || chain.Valid || chain.Error == "" {
		t.Fatalf("unexpected chain %+v %v", chain, err)
	}
}
