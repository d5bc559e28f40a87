package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/bandmask/internal/mask"
	"github.com/samcharles93/bandmask/internal/tensor"
)

func newTestEcho(t *testing.T, maxCapacity int) *echo.Echo {
	t.Helper()
	provider := NewProvider(ProviderConfig{MaxCapacity: maxCapacity, Workers: 2})
	t.Cleanup(func() { _ = provider.Close() })
	e := echo.New()
	NewServer(provider).Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := doJSON(t, newTestEcho(t, 0), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("health: got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGetMask(t *testing.T) {
	t.Parallel()

	rec := doJSON(t, newTestEcho(t, 0), http.MethodGet, "/v1/masks?capacity=5&window=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[MaskResponse](t, rec)
	if !strings.HasPrefix(resp.ID, "mask_") {
		t.Fatalf("unexpected id %q", resp.ID)
	}
	wantRows := []string{"1....", "11...", ".11..", "..11.", "...11"}
	if strings.Join(resp.Rows, ",") != strings.Join(wantRows, ",") {
		t.Fatalf("rows: got %v, want %v", resp.Rows, wantRows)
	}
	if resp.Count != 9 {
		t.Fatalf("count: got %d, want 9", resp.Count)
	}
	if resp.RowSums[4] != 2 || resp.ColSums[4] != 1 {
		t.Fatalf("sums: rows=%v cols=%v", resp.RowSums, resp.ColSums)
	}
}

func TestGetMaskClampedWindowWithoutRows(t *testing.T) {
	t.Parallel()

	rec := doJSON(t, newTestEcho(t, 0), http.MethodGet, "/v1/masks?capacity=5&window=6&rows=false", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[MaskResponse](t, rec)
	if resp.Window != 5 || resp.RequestedWindow != 6 {
		t.Fatalf("window: got %d (requested %d)", resp.Window, resp.RequestedWindow)
	}
	if resp.Count != 15 {
		t.Fatalf("count: got %d, want 15", resp.Count)
	}
	if resp.Rows != nil {
		t.Fatalf("rows should be omitted, got %v", resp.Rows)
	}
}

func TestGetMaskErrors(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, 64)
	cases := []struct {
		path string
		code string
	}{
		{"/v1/masks?capacity=5&window=0", "invalid_parameter"},
		{"/v1/masks?capacity=5&window=-1", "invalid_parameter"},
		{"/v1/masks?capacity=0&window=2", "invalid_parameter"},
		{"/v1/masks?capacity=5", ""},
		{"/v1/masks?capacity=x&window=2", ""},
		{"/v1/masks?capacity=65&window=2", ""},
	}
	for _, tc := range cases {
		rec := doJSON(t, e, http.MethodGet, tc.path, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d body=%s", tc.path, rec.Code, rec.Body.String())
		}
		body := decodeBody[ErrorBody](t, rec)
		if body.Error.Code != tc.code {
			t.Fatalf("%s: code %q, want %q", tc.path, body.Error.Code, tc.code)
		}
	}
}

func TestAttentionForward(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, 0)
	// One head, three positions, capacity five, window two.
	body := `{
		"capacity": 5, "window": 2, "probabilities": true,
		"query": [[[[1,0],[0,1],[1,1]]]],
		"key":   [[[[1,0],[0,1],[1,1]]]],
		"value": [[[[1,2],[3,4],[5,6]]]]
	}`
	rec := doJSON(t, e, http.MethodPost, "/v1/attention", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[AttentionResponse](t, rec)
	if resp.Shape != [4]int{1, 1, 3, 2} {
		t.Fatalf("shape: got %v", resp.Shape)
	}
	out := resp.Output[0][0]
	if out[0][0] != 1 || out[0][1] != 2 {
		t.Fatalf("position 0 must equal value 0, got %v", out[0])
	}
	probs := resp.Probabilities[0][0]
	if probs[2][0] != 0 {
		t.Fatalf("position 2 must not see key 0: %v", probs[2])
	}
	if probs[2][1] <= 0 || probs[2][2] <= 0 {
		t.Fatalf("position 2 must see keys 1 and 2: %v", probs[2])
	}
	want := probs[2][1]*3 + probs[2][2]*5
	if math.Abs(float64(out[2][0]-want)) > 1e-5 {
		t.Fatalf("position 2 output %v, want %v", out[2][0], want)
	}
}

func TestAttentionErrors(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, 16)
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"too_long", `{"capacity":2,"window":1,"query":[[[[1],[1],[1]]]],"key":[[[[1],[1],[1]]]],"value":[[[[1],[1],[1]]]]}`, http.StatusUnprocessableEntity, "sequence_too_long"},
		{"bad_window", `{"capacity":4,"window":0,"query":[[[[1]]]],"key":[[[[1]]]],"value":[[[[1]]]]}`, http.StatusBadRequest, "invalid_parameter"},
		{"shape", `{"capacity":4,"window":2,"query":[[[[1,2]]]],"key":[[[[1]]]],"value":[[[[1]]]]}`, http.StatusBadRequest, "shape_mismatch"},
		{"ragged", `{"capacity":4,"window":2,"query":[[[[1,2],[3]]]],"key":[[[[1]]]],"value":[[[[1]]]]}`, http.StatusBadRequest, ""},
		{"unknown_field", `{"capacity":4,"window":2,"bogus":1}`, http.StatusBadRequest, ""},
		{"over_limit", `{"capacity":17,"window":2,"query":[[[[1]]]],"key":[[[[1]]]],"value":[[[[1]]]]}`, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		rec := doJSON(t, e, http.MethodPost, "/v1/attention", tc.body)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d body=%s", tc.name, tc.status, rec.Code, rec.Body.String())
		}
		body := decodeBody[ErrorBody](t, rec)
		if body.Error.Code != tc.code {
			t.Fatalf("%s: code %q, want %q", tc.name, body.Error.Code, tc.code)
		}
	}
}

func TestProviderReusesInstances(t *testing.T) {
	t.Parallel()

	p := NewProvider(ProviderConfig{})
	t.Cleanup(func() { _ = p.Close() })

	a, err := p.Attention(8, 3)
	if err != nil {
		t.Fatalf("attention: %v", err)
	}
	b, err := p.Attention(8, 3)
	if err != nil {
		t.Fatalf("attention: %v", err)
	}
	if a != b {
		t.Fatal("expected the same instance for the same capacity and window")
	}
	full1, _ := p.Attention(4, 4)
	full2, _ := p.Attention(4, 40)
	if full1 != full2 {
		t.Fatal("clamped windows should share an instance")
	}
	m, err := p.Mask(8, 3)
	if err != nil {
		t.Fatalf("mask: %v", err)
	}
	if m != a.Mask() {
		t.Fatal("provider masks and instance masks should be shared")
	}
}

func TestProviderBoundsInstances(t *testing.T) {
	t.Parallel()

	masks := mask.NewCacheSize(4)
	p := NewProvider(ProviderConfig{Masks: masks, MaxInstances: 4, Workers: 4})
	t.Cleanup(func() { _ = p.Close() })

	first, err := p.Attention(64, 1)
	if err != nil {
		t.Fatalf("attention: %v", err)
	}
	for window := 2; window <= 40; window++ {
		if _, err := p.Attention(64, window); err != nil {
			t.Fatalf("attention window %d: %v", window, err)
		}
		if p.Len() > 4 {
			t.Fatalf("window %d: %d live instances, limit 4", window, p.Len())
		}
		if masks.Len() > 4 {
			t.Fatalf("window %d: %d cached masks, limit 4", window, masks.Len())
		}
	}

	// An evicted instance still answers callers that hold it.
	q := tensor.New(1, 1, 3, 2)
	q.FillRand(3, 1)
	v := tensor.New(1, 1, 3, 2)
	v.FillRand(4, 1)
	out, err := first.Forward(q, q, v)
	if err != nil {
		t.Fatalf("forward on evicted instance: %v", err)
	}
	for i, x := range out.Data {
		if x != v.Data[i] {
			t.Fatalf("window 1 should copy values: out[%d]=%v want %v", i, x, v.Data[i])
		}
	}

	again, err := p.Attention(64, 1)
	if err != nil {
		t.Fatalf("attention: %v", err)
	}
	if again == first {
		t.Fatal("expected a fresh instance after eviction")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if p.Len() != 0 {
		t.Fatalf("close left %d instances", p.Len())
	}
}
