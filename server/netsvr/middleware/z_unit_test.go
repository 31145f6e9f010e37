// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func TestNegotiate(t *testing.T) {
	codecs := newCodecs(DefaultCompressConfig)
	cases := []struct {
		accept string
		want   string
	}{
		{"", ""},
		{"gzip", "gzip"},
		{"gzip, zstd", "zstd"},
		{"zstd;q=0, gzip", "gzip"},
		{"br", ""},
		{"*", "zstd"},
		{"zstd;q=0, *", "gzip"},
		{"GZIP;q=0.5", "gzip"},
	}
	for _, c := range cases {
		got := ""
		if cd := negotiate(codecs, c.accept); cd != nil {
			got = cd.name
		}
		if got != c.want {
			t.Fatalf("negotiate(%q) = %q, want %q", c.accept, got, c.want)
		}
	}
}

func body(n int) string {
	return strings.Repeat(`{"kind":"path_step","data":{"t":1}}`, n)
}

func TestCompressionGzipAndZstd(t *testing.T) {
	payload := body(64)
	h := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, payload)
	}))

	// gzip
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("encoding = %q", rec.Header().Get("Content-Encoding"))
	}
	gr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	raw, err := io.ReadAll(gr)
	if err != nil || string(raw) != payload {
		t.Fatalf("gzip body mismatch: %v", err)
	}

	// zstd，連續兩次確保 pool 重用正確
	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip, zstd")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get("Content-Encoding") != "zstd" {
			t.Fatalf("encoding = %q", rec.Header().Get("Content-Encoding"))
		}
		zr, err := zstd.NewReader(bytes.NewReader(rec.Body.Bytes()))
		if err != nil {
			t.Fatalf("zstd reader: %v", err)
		}
		raw, err = io.ReadAll(zr)
		zr.Close()
		if err != nil || string(raw) != payload {
			t.Fatalf("zstd body mismatch (round %d): %v", i, err)
		}
	}
}

func TestCompressionSkips(t *testing.T) {
	noContent := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	noContent.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Content-Encoding") != "" || rec.Body.Len() != 0 {
		t.Fatalf("204 should pass through: %d %q %d", rec.Code, rec.Header().Get("Content-Encoding"), rec.Body.Len())
	}

	plain := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	plain.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Encoding") != "" || rec.Body.String() != "ok" {
		t.Fatalf("upgrade should pass through")
	}
}

func TestRequestIDAndAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestID(AccessLog(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions/x/start", nil))

	id := rec.Header().Get(RequestIDHeader)
	if id == "" {
		t.Fatalf("missing request id header")
	}
	out := buf.String()
	if !strings.Contains(out, `"status":409`) || !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, id) {
		t.Fatalf("access log: %s", out)
	}
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	h := Recover(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Fatalf("panic value leaked to client: %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("panic not logged: %s", buf.String())
	}
}
