package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"

	"portfolio-api-go/internal/config"
	"portfolio-api-go/internal/metrics"
	"portfolio-api-go/internal/model"
	"portfolio-api-go/internal/storetest"
)

func newTestClient(t *testing.T, srv *storetest.Server, m *metrics.Metrics) *StoreClient {
	t.Helper()
	cfg := &config.Config{
		Store: config.StoreConfig{
			URL:             srv.URL,
			Key:             srv.Key,
			RestPath:        srv.RestPath,
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStoreClient(cfg, logger, m)
}

func TestEncodeQuery(t *testing.T) {
	tests := []struct {
		name string
		spec model.QuerySpec
		want url.Values
	}{
		{
			name: "all columns ordered",
			spec: model.QuerySpec{
				Filters: []model.Filter{model.Eq("display", "true")},
				Order:   &model.Order{Column: "id", Ascending: true},
			},
			want: url.Values{"select": {"*"}, "display": {"eq.true"}, "order": {"id.asc"}},
		},
		{
			name: "projection descending",
			spec: model.QuerySpec{
				Columns: []string{"path", "title"},
				Order:   &model.Order{Column: "id"},
			},
			want: url.Values{"select": {"path,title"}, "order": {"id.desc"}},
		},
		{
			name: "neq with limit",
			spec: model.QuerySpec{
				Filters: []model.Filter{model.Eq("display", "true"), model.Neq("path", "foo")},
				Limit:   5,
			},
			want: url.Values{"select": {"*"}, "display": {"eq.true"}, "path": {"neq.foo"}, "limit": {"5"}},
		},
		{
			name: "in list quotes reserved characters",
			spec: model.QuerySpec{
				Filters: []model.Filter{model.In("name", []string{"go", "c(pp)", "docker"})},
			},
			want: url.Values{"select": {"*"}, "name": {`in.(go,"c(pp)",docker)`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := url.ParseQuery(EncodeQuery(&tt.spec))
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Errorf("query = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got.Get(k) != v[0] {
					t.Errorf("%s = %q, want %q", k, got.Get(k), v[0])
				}
			}
		})
	}
}

func TestStoreClient_Select(t *testing.T) {
	srv := storetest.NewServer(t, map[string][]storetest.Row{
		"space": {
			{"id": 2, "path": "b", "viewbox": "0 0 2 2", "display": true},
			{"id": 1, "path": "a", "viewbox": "0 0 1 1", "display": true},
			{"id": 3, "path": "c", "viewbox": "0 0 3 3", "display": false},
		},
	})
	c := newTestClient(t, srv, nil)

	res, err := c.Select(context.Background(), &model.QuerySpec{
		Table:   "space",
		Columns: []string{"path", "viewbox"},
		Filters: []model.Filter{model.Eq("display", "true")},
		Order:   &model.Order{Column: "id", Ascending: true},
	})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if res.Status != http.StatusOK {
		t.Errorf("Status = %d, want %d", res.Status, http.StatusOK)
	}
	want := `[{"path":"a","viewbox":"0 0 1 1"},{"path":"b","viewbox":"0 0 2 2"}]`
	if string(res.Data) != want {
		t.Errorf("Data = %s, want %s", res.Data, want)
	}

	reqs := srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	h := reqs[0].Header
	if h.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q, want application/json", h.Get("Accept"))
	}
	if h.Get("User-Agent") != userAgent {
		t.Errorf("User-Agent = %q, want %q", h.Get("User-Agent"), userAgent)
	}
}

func TestStoreClient_SelectSingle(t *testing.T) {
	srv := storetest.NewServer(t, map[string][]storetest.Row{
		"projects": {
			{"id": 1, "path": "alpha", "title": "Alpha", "display": true},
			{"id": 2, "path": "beta", "title": "Beta", "display": true},
		},
	})
	c := newTestClient(t, srv, nil)

	spec := func(path string) *model.QuerySpec {
		return &model.QuerySpec{
			Table:   "projects",
			Columns: []string{"title"},
			Filters: []model.Filter{model.Eq("path", path), model.Eq("display", "true")},
			Single:  true,
		}
	}

	res, err := c.Select(context.Background(), spec("beta"))
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if string(res.Data) != `{"title":"Beta"}` {
		t.Errorf("Data = %s, want single object", res.Data)
	}
	if got := srv.Requests()[0].Header.Get("Accept"); got != acceptJSONObject {
		t.Errorf("Accept = %q, want %q", got, acceptJSONObject)
	}

	_, err = c.Select(context.Background(), spec("missing"))
	var se *model.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("Select() error = %v, want *model.StoreError", err)
	}
	if se.Status != http.StatusNotAcceptable {
		t.Errorf("Status = %d, want %d", se.Status, http.StatusNotAcceptable)
	}
	if se.Code != "PGRST116" {
		t.Errorf("Code = %q, want PGRST116", se.Code)
	}
	if se.Message == "" {
		t.Error("expected non-empty message")
	}
}

func TestStoreClient_Insert(t *testing.T) {
	srv := storetest.NewServer(t, map[string][]storetest.Row{"message": {}})
	c := newTestClient(t, srv, nil)

	res, err := c.Insert(context.Background(), "message", map[string]string{"message": "hi", "sender": "x"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if res.Status != http.StatusCreated {
		t.Errorf("Status = %d, want %d", res.Status, http.StatusCreated)
	}
	if res.StatusText != "Created" {
		t.Errorf("StatusText = %q, want %q", res.StatusText, "Created")
	}

	req := srv.Requests()[0]
	if req.Method != http.MethodPost {
		t.Errorf("Method = %q, want POST", req.Method)
	}
	if req.Header.Get("Prefer") != "return=minimal" {
		t.Errorf("Prefer = %q, want return=minimal", req.Header.Get("Prefer"))
	}
	if rows := srv.Rows("message"); len(rows) != 1 || rows[0]["message"] != "hi" {
		t.Errorf("rows = %v, want one inserted message", rows)
	}
}

func TestStoreClient_ErrorShapes(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantCode    string
	}{
		{"postgrest json", http.StatusBadRequest, `{"code":"22P02","message":"invalid input syntax","details":null,"hint":null}`, "invalid input syntax", "22P02"},
		{"plain text", http.StatusBadGateway, "upstream down", "upstream down", ""},
		{"empty body", http.StatusServiceUnavailable, "", "Service Unavailable", ""},
		{"json without message", http.StatusInternalServerError, `{"foo":1}`, `{"foo":1}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := storetest.NewServer(t, map[string][]storetest.Row{"tools": {}})
			srv.Fail("tools", tt.status, tt.body)
			c := newTestClient(t, srv, nil)

			res, err := c.Select(context.Background(), &model.QuerySpec{Table: "tools"})
			if res != nil {
				t.Errorf("Select() result = %+v, want nil alongside error", res)
			}
			var se *model.StoreError
			if !errors.As(err, &se) {
				t.Fatalf("Select() error = %v, want *model.StoreError", err)
			}
			if se.Status != tt.status {
				t.Errorf("Status = %d, want %d", se.Status, tt.status)
			}
			if se.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", se.Message, tt.wantMessage)
			}
			if se.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", se.Code, tt.wantCode)
			}
		})
	}
}

func TestStoreClient_WrongKey(t *testing.T) {
	srv := storetest.NewServer(t, map[string][]storetest.Row{"tools": {}})
	c := newTestClient(t, srv, nil)
	c.key = "wrong"

	_, err := c.Select(context.Background(), &model.QuerySpec{Table: "tools"})
	var se *model.StoreError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("Select() error = %v, want 401 StoreError", err)
	}
}

func TestStoreClient_TransportError(t *testing.T) {
	cfg := &config.Config{
		Store: config.StoreConfig{
			URL:             "http://127.0.0.1:1",
			RestPath:        "/rest/v1",
			TimeoutSeconds:  1,
			IdleConnections: 10,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewStoreClient(cfg, logger, nil)

	_, err := c.Select(context.Background(), &model.QuerySpec{Table: "tools"})
	if err == nil {
		t.Fatal("Select() expected error for unreachable host, got nil")
	}
	var se *model.StoreError
	if errors.As(err, &se) {
		t.Errorf("transport failure should not be a StoreError, got %v", se)
	}
}

func TestStoreClient_CanceledContext(t *testing.T) {
	srv := storetest.NewServer(t, map[string][]storetest.Row{"tools": {}})
	c := newTestClient(t, srv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Select(ctx, &model.QuerySpec{Table: "tools"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Select() error = %v, want context.Canceled", err)
	}
}

func TestStoreClient_RecordsMetrics(t *testing.T) {
	srv := storetest.NewServer(t, map[string][]storetest.Row{"tools": {}})
	m := metrics.New()
	c := newTestClient(t, srv, m)

	if _, err := c.Select(context.Background(), &model.QuerySpec{Table: "tools"}); err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "portfolio_api_store_responses_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["table"] == "tools" && labels["operation"] == "select" && labels["status_code"] == "200" {
				if v := metric.GetCounter().GetValue(); v != 1 {
					t.Errorf("counter value = %v, want 1", v)
				}
				return
			}
		}
	}
	t.Error("expected portfolio_api_store_responses_total{table=tools,operation=select,status_code=200}")
}
