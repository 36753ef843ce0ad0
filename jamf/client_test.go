package jamf

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func checkHeaders(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization header: got %q", got)
	}
	if got := r.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept header: got %q", got)
	}
	if !strings.HasPrefix(r.Header.Get("User-Agent"), "MacForge/") {
		t.Errorf("User-Agent header: got %q", r.Header.Get("User-Agent"))
	}
}

func decodeEnvelope(t *testing.T, r *http.Request) profileEnvelope {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatal(err)
	}
	var env profileEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		t.Fatalf("request body is not a profile envelope: %v", err)
	}
	return env
}

func newClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(server.URL, "test-token")
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestPublishCreate(t *testing.T) {
	payload := []byte("<plist>fake</plist>")
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Method+" "+r.URL.Path)
		checkHeaders(t, r)
		env := decodeEnvelope(t, r)
		if env.General.Name != "Acme Baseline" {
			t.Errorf("envelope name: got %q", env.General.Name)
		}
		if env.General.DistributionMethod != "Install Automatically" {
			t.Errorf("distribution method: got %q", env.General.DistributionMethod)
		}
		decoded, err := base64.StdEncoding.DecodeString(env.General.Payloads)
		if err != nil || string(decoded) != string(payload) {
			t.Errorf("payloads blob: got %q (%v)", env.General.Payloads, err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	receipt, err := newClient(t, server).Publish(context.Background(), "Acme Baseline", payload)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Updated {
		t.Error("first publish should not report an update")
	}
	if receipt.Requests != 1 {
		t.Errorf("requests: got %d, want 1", receipt.Requests)
	}
	want := []string{"POST /JSSResource/osxconfigurationprofiles/id/0"}
	if len(requests) != 1 || requests[0] != want[0] {
		t.Errorf("requests: got %v, want %v", requests, want)
	}
}

func TestPublishConflictThenUpdate(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Method+" "+r.URL.EscapedPath())
		checkHeaders(t, r)
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusConflict)
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			decodeEnvelope(t, r)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	receipt, err := newClient(t, server).Publish(context.Background(), "Acme Baseline", []byte("plist"))
	if err != nil {
		t.Fatal(err)
	}
	if !receipt.Updated {
		t.Error("conflict path should report an update")
	}
	want := []string{
		"POST /JSSResource/osxconfigurationprofiles/id/0",
		"GET /JSSResource/osxconfigurationprofiles/name/Acme%20Baseline",
		"PUT /JSSResource/osxconfigurationprofiles/name/Acme%20Baseline",
	}
	if len(requests) != len(want) {
		t.Fatalf("requests: got %v, want %v", requests, want)
	}
	for i := range want {
		if requests[i] != want[i] {
			t.Errorf("request %d: got %q, want %q", i, requests[i], want[i])
		}
	}
	if receipt.Requests != 3 {
		t.Errorf("receipt requests: got %d, want 3", receipt.Requests)
	}
}

func TestPublishRetriesCreateOnceAfterVanishedConflict(t *testing.T) {
	var posts, gets int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			posts++
			if posts == 1 {
				w.WriteHeader(http.StatusConflict)
				return
			}
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			gets++
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected %s request", r.Method)
		}
	}))
	defer server.Close()

	receipt, err := newClient(t, server).Publish(context.Background(), "Ghost", []byte("plist"))
	if err != nil {
		t.Fatal(err)
	}
	if posts != 2 || gets != 1 {
		t.Errorf("requests: %d creates and %d lookups, want 2 and 1", posts, gets)
	}
	if receipt.Updated {
		t.Error("re-create after vanished conflict is not an update")
	}
	if receipt.Requests != 3 {
		t.Errorf("receipt requests: got %d, want 3", receipt.Requests)
	}
}

func TestPublishDoesNotRetryTwice(t *testing.T) {
	var posts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			posts++
			w.WriteHeader(http.StatusConflict)
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	_, err := newClient(t, server).Publish(context.Background(), "Flapping", []byte("plist"))
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("got %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("status: got %d, want 409", apiErr.StatusCode)
	}
	if posts != 2 {
		t.Errorf("creates: got %d, want exactly 2", posts)
	}
}

func TestPublishSurfacesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, "payload blob is not valid base64")
	}))
	defer server.Close()

	_, err := newClient(t, server).Publish(context.Background(), "Broken", []byte("plist"))
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("got %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Message, "not valid base64") {
		t.Errorf("server message lost: %q", apiErr.Message)
	}
}

// fakeJamf stores profiles by name and enforces the server side
// uniqueness constraint, for end to end idempotence tests.
type fakeJamf struct {
	profiles map[string][]byte
	log      []string
}

func (f *fakeJamf) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.log = append(f.log, r.Method)
	switch {
	case r.Method == http.MethodPost:
		var env profileEnvelope
		body, _ := io.ReadAll(r.Body)
		xml.Unmarshal(body, &env)
		if _, exists := f.profiles[env.General.Name]; exists {
			w.WriteHeader(http.StatusConflict)
			return
		}
		f.profiles[env.General.Name] = []byte(env.General.Payloads)
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet:
		name := strings.TrimPrefix(r.URL.Path, "/JSSResource/osxconfigurationprofiles/name/")
		if _, exists := f.profiles[name]; !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		var env profileEnvelope
		body, _ := io.ReadAll(r.Body)
		xml.Unmarshal(body, &env)
		f.profiles[env.General.Name] = []byte(env.General.Payloads)
		w.WriteHeader(http.StatusOK)
	}
}

func TestPublishIsIdempotent(t *testing.T) {
	fake := &fakeJamf{profiles: make(map[string][]byte)}
	server := httptest.NewServer(fake)
	defer server.Close()

	client := newClient(t, server)
	payload := []byte("plist bytes")

	first, err := client.Publish(context.Background(), "Acme Baseline", payload)
	if err != nil {
		t.Fatal(err)
	}
	second, err := client.Publish(context.Background(), "Acme Baseline", payload)
	if err != nil {
		t.Fatal(err)
	}

	if first.Updated || !second.Updated {
		t.Errorf("updated flags: first=%v second=%v", first.Updated, second.Updated)
	}
	if len(fake.profiles) != 1 {
		t.Errorf("server resources: got %d, want 1", len(fake.profiles))
	}
	want := []string{"POST", "POST", "GET", "PUT"}
	if len(fake.log) != len(want) {
		t.Fatalf("request log: got %v, want %v", fake.log, want)
	}
	for i := range want {
		if fake.log[i] != want[i] {
			t.Errorf("request %d: got %s, want %s", i, fake.log[i], want[i])
		}
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkHeaders(t, r)
		if r.URL.Path != "/JSSCheckConnection" {
			t.Errorf("ping path: got %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newClient(t, server).Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestPingUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	err := newClient(t, server).Ping(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("got %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", apiErr.StatusCode)
	}
}

func TestNewClientRejectsEmptyToken(t *testing.T) {
	if _, err := NewClient("https://jamf.acme.com", ""); err == nil {
		t.Error("expected an error for an empty token")
	}
}
