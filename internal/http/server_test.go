package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledgerhub/pkg/cluster"
	"ledgerhub/pkg/ownership"
	"ledgerhub/pkg/placement"
)

func newTestServer(t *testing.T) (*httptest.Server, *placement.RandomPolicy, *cluster.View) {
	t.Helper()

	owners := ownership.NewManager(ownership.NewMemStore(), "hub-a:4080")
	t.Cleanup(owners.Stop)

	policy := placement.NewRandomPolicy()
	view := cluster.NewView()

	s := NewServer(owners, policy, view, "0")
	ts := httptest.NewServer(s.createRouter())
	t.Cleanup(ts.Close)
	return ts, policy, view
}

func decode(t *testing.T, resp *http.Response) Response {
	t.Helper()
	defer resp.Body.Close()
	var r Response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return r
}

func TestHandleHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if r := decode(t, resp); r.Status != StatusOK {
		t.Fatalf("expected OK status, got %q", r.Status)
	}
}

func TestHandleGetOwner_ClaimFlow(t *testing.T) {
	ts, _, _ := newTestServer(t)

	// Unowned topic without claiming.
	resp, err := http.Get(ts.URL + "/api/topics/owner?topic=t1")
	if err != nil {
		t.Fatalf("GET owner failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unowned topic, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Claim it.
	resp, err = http.Get(ts.URL + "/api/topics/owner?topic=t1&claim=true")
	if err != nil {
		t.Fatalf("GET owner claim failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on claim, got %d", resp.StatusCode)
	}
	if r := decode(t, resp); r.Owner != "hub-a:4080" {
		t.Fatalf("expected owner hub-a:4080, got %q", r.Owner)
	}

	// Owned-topic listing reflects the claim.
	resp, err = http.Get(ts.URL + "/api/topics")
	if err != nil {
		t.Fatalf("GET topics failed: %v", err)
	}
	r := decode(t, resp)
	if r.Topics != 1 || len(r.Owned) != 1 || r.Owned[0] != "t1" {
		t.Fatalf("unexpected topic listing: %+v", r)
	}
}

func TestHandleRelease(t *testing.T) {
	ts, _, _ := newTestServer(t)

	mustClaim := func(topic string) {
		resp, err := http.Get(ts.URL + "/api/topics/owner?topic=" + topic + "&claim=true")
		if err != nil {
			t.Fatalf("claim %s failed: %v", topic, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("claim %s: expected 200, got %d", topic, resp.StatusCode)
		}
		resp.Body.Close()
	}
	mustClaim("t1")
	mustClaim("t2")
	mustClaim("t3")

	// Single release.
	resp, err := http.Post(ts.URL+"/api/topics/release?topic=t1", contentTypeJSON, nil)
	if err != nil {
		t.Fatalf("POST release failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Bulk release asking for more than held.
	resp, err = http.Post(ts.URL+"/api/topics/release?count=5", contentTypeJSON, nil)
	if err != nil {
		t.Fatalf("POST bulk release failed: %v", err)
	}
	if r := decode(t, resp); r.Released != 2 {
		t.Fatalf("expected 2 released, got %d", r.Released)
	}
}

func TestHandleNewEnsemble(t *testing.T) {
	ts, policy, view := newTestServer(t)

	nodes := []cluster.NodeAddress{"bookie1:3181", "bookie2:3181", "bookie3:3181"}
	view.Apply(nodes, nil)
	policy.OnClusterChanged(cluster.NewNodeSet(nodes...), cluster.NewNodeSet())

	body := `{"ensembleSize":3,"writeQuorum":2,"ackQuorum":2}`
	resp, err := http.Post(ts.URL+"/api/ensembles", contentTypeJSON, strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST ensembles failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if r := decode(t, resp); len(r.Ensemble) != 3 {
		t.Fatalf("expected 3 ensemble nodes, got %v", r.Ensemble)
	}

	// Not enough capacity.
	body = `{"ensembleSize":4,"writeQuorum":2,"ackQuorum":2}`
	resp, err = http.Post(ts.URL+"/api/ensembles", contentTypeJSON, strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST ensembles failed: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHandleRegions(t *testing.T) {
	ts, _, _ := newTestServer(t)
	base := ts.URL + "/api/topics/regions?topic=t1&region=us-west"
	client := &http.Client{}

	get := func() int {
		resp, err := http.Get(base)
		if err != nil {
			t.Fatalf("GET regions failed: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	do := func(method string) int {
		req, err := http.NewRequest(method, base, nil)
		if err != nil {
			t.Fatalf("build %s request: %v", method, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("%s regions failed: %v", method, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := get(); code != http.StatusNotFound {
		t.Fatalf("expected 404 before subscribe, got %d", code)
	}
	if code := do(http.MethodPut); code != http.StatusOK {
		t.Fatalf("expected 200 on subscribe, got %d", code)
	}
	if code := get(); code != http.StatusOK {
		t.Fatalf("expected 200 after subscribe, got %d", code)
	}
	if code := do(http.MethodDelete); code != http.StatusOK {
		t.Fatalf("expected 200 on unsubscribe, got %d", code)
	}
	if code := get(); code != http.StatusNotFound {
		t.Fatalf("expected 404 after unsubscribe, got %d", code)
	}
}
