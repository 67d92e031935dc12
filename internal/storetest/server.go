// Package storetest runs an in-process imitation of a PostgREST endpoint for tests.
//
// It understands the subset of the protocol the gateway speaks: column
// selection, eq/neq/in filters, order, limit, single-object responses and
// inserts. Rows are rendered with keys in select order so the output is stable.
package storetest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Row is one table record.
type Row map[string]any

// Request records what the server received.
type Request struct {
	Method string
	Table  string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Server is a fake PostgREST server.
type Server struct {
	*httptest.Server

	Key      string
	RestPath string

	mu       sync.Mutex
	tables   map[string][]Row
	requests []Request
	failures map[string]failure
}

type failure struct {
	status int
	body   string
}

// NewServer starts a fake store seeded with tables and registers cleanup on t.
func NewServer(t testing.TB, tables map[string][]Row) *Server {
	t.Helper()
	s := &Server{
		Key:      "test-key",
		RestPath: "/rest/v1",
		tables:   make(map[string][]Row, len(tables)),
		failures: make(map[string]failure),
	}
	for name, rows := range tables {
		s.tables[name] = append([]Row(nil), rows...)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Fail makes every request for table return status with the raw body.
func (s *Server) Fail(table string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[table] = failure{status: status, body: body}
}

// Rows returns a copy of the current rows of table.
func (s *Server) Rows(table string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Row(nil), s.tables[table]...)
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := readAll(r)
	table, ok := strings.CutPrefix(r.URL.Path, s.RestPath+"/")
	if !ok || table == "" || strings.Contains(table, "/") {
		writeError(w, http.StatusNotFound, "PGRST125", "Invalid path specified in request URL")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Table:  table,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})

	if r.Header.Get("apikey") != s.Key || r.Header.Get("Authorization") != "Bearer "+s.Key {
		writeError(w, http.StatusUnauthorized, "", "Invalid API key")
		return
	}
	if f, ok := s.failures[table]; ok {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
		return
	}
	rows, ok := s.tables[table]
	if !ok {
		writeError(w, http.StatusNotFound, "42P01", fmt.Sprintf("relation \"public.%s\" does not exist", table))
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.selectRows(w, r, rows)
	case http.MethodPost:
		s.insertRow(w, table, body)
	default:
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
	}
}

func (s *Server) selectRows(w http.ResponseWriter, r *http.Request, rows []Row) {
	q := r.URL.Query()

	var matched []Row
	for _, row := range rows {
		keep := true
		for col, vals := range q {
			if col == "select" || col == "order" || col == "limit" {
				continue
			}
			for _, v := range vals {
				if !match(row, col, v) {
					keep = false
				}
			}
		}
		if keep {
			matched = append(matched, row)
		}
	}

	if ord := q.Get("order"); ord != "" {
		col, dir, _ := strings.Cut(ord, ".")
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := number(matched[i][col]), number(matched[j][col])
			if dir == "desc" {
				return a > b
			}
			return a < b
		})
	}
	if lim := q.Get("limit"); lim != "" {
		if n, err := strconv.Atoi(lim); err == nil && n < len(matched) {
			matched = matched[:n]
		}
	}

	columns := parseSelect(q.Get("select"))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if r.Header.Get("Accept") == "application/vnd.pgrst.object+json" {
		if len(matched) != 1 {
			w.WriteHeader(http.StatusNotAcceptable)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code":    "PGRST116",
				"details": fmt.Sprintf("The result contains %d rows", len(matched)),
				"hint":    nil,
				"message": "JSON object requested, multiple (or no) rows returned",
			})
			return
		}
		_, _ = w.Write(render(matched[0], columns))
		return
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range matched {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(render(row, columns))
	}
	buf.WriteByte(']')
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) insertRow(w http.ResponseWriter, table string, body []byte) {
	var row Row
	if err := json.Unmarshal(body, &row); err != nil {
		writeError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
		return
	}
	for col, v := range row {
		if v == nil {
			writeError(w, http.StatusBadRequest, "23502",
				fmt.Sprintf("null value in column \"%s\" of relation \"%s\" violates not-null constraint", col, table))
			return
		}
	}
	row["id"] = len(s.tables[table]) + 1
	s.tables[table] = append(s.tables[table], row)
	w.WriteHeader(http.StatusCreated)
}

// match evaluates one PostgREST filter of the form op.value against row.
func match(row Row, col, expr string) bool {
	op, val, ok := strings.Cut(expr, ".")
	if !ok {
		return false
	}
	got := fmt.Sprint(row[col])
	switch op {
	case "eq":
		return got == val
	case "neq":
		return got != val
	case "in":
		inner := strings.TrimSuffix(strings.TrimPrefix(val, "("), ")")
		for _, item := range splitList(inner) {
			if got == item {
				return true
			}
		}
		return false
	}
	return false
}

// splitList splits a PostgREST in-list, honouring double-quoted items.
func splitList(s string) []string {
	var out []string
	var cur strings.Builder
	quoted := false
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(out, cur.String())
}

func parseSelect(s string) []string {
	if s == "" || s == "*" {
		return nil
	}
	return strings.Split(s, ",")
}

// render encodes row with keys in column order; nil columns means every key, sorted.
func render(row Row, columns []string) []byte {
	if columns == nil {
		for k := range row {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(col)
		v, _ := json.Marshal(row[col])
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func number(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"details": nil,
		"hint":    nil,
		"message": message,
	})
}

func readAll(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer func() { _ = r.Body.Close() }()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	return buf.Bytes(), err
}
