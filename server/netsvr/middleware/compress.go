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
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CompressConfig 壓縮等級
type CompressConfig struct {
	GzipLevel int
	ZstdLevel zstd.EncoderLevel
}

var DefaultCompressConfig = CompressConfig{
	GzipLevel: gzip.DefaultCompression,
	ZstdLevel: zstd.SpeedFastest,
}

// encoder gzip.Writer 與 zstd.Encoder 的共同行為
type encoder interface {
	io.Writer
	Flush() error
	Close() error
	Reset(w io.Writer)
}

// codec 一種 Content-Encoding 與它的 encoder pool
type codec struct {
	name string
	pool sync.Pool
}

func (c *codec) get(w io.Writer) encoder {
	e := c.pool.Get().(encoder)
	e.Reset(w)
	return e
}

func (c *codec) put(e encoder) {
	e.Reset(io.Discard) // 不持有已結束的 response
	c.pool.Put(e)
}

// newCodecs 依偏好順序回傳：zstd 優先，其次 gzip。
func newCodecs(cfg CompressConfig) []*codec {
	zc := &codec{name: "zstd"}
	zc.pool.New = func() any {
		zw, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(cfg.ZstdLevel),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			panic(err)
		}
		return zw
	}
	gc := &codec{name: "gzip"}
	gc.pool.New = func() any {
		gw, err := gzip.NewWriterLevel(nil, cfg.GzipLevel)
		if err != nil {
			gw = gzip.NewWriter(nil)
		}
		return gw
	}
	return []*codec{zc, gc}
}

// negotiate 解析 Accept-Encoding（含 q 值），q=0 視為拒絕。
func negotiate(codecs []*codec, accept string) *codec {
	if accept == "" {
		return nil
	}
	ok := make(map[string]bool, 4)
	for _, part := range strings.Split(accept, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		q := 1.0
		if v, found := strings.CutPrefix(strings.TrimSpace(params), "q="); found {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				q = f
			}
		}
		ok[name] = q > 0
	}
	for _, c := range codecs {
		if accepted, listed := ok[c.name]; listed {
			if accepted {
				return c
			}
			continue
		}
		if ok["*"] {
			return c
		}
	}
	return nil
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") ||
		r.Header.Get("Upgrade") != ""
}

func isNoBodyStatus(code int) bool {
	// 1xx / 204 / 304
	return (code >= 100 && code < 200) || code == http.StatusNoContent || code == http.StatusNotModified
}

// compressWriter 在第一次寫出標頭時才決定是否壓縮。
type compressWriter struct {
	http.ResponseWriter
	c           *codec
	enc         encoder
	wroteHeader bool
	passthrough bool
}

func (cw *compressWriter) WriteHeader(code int) {
	if cw.wroteHeader {
		return
	}
	cw.wroteHeader = true
	h := cw.Header()
	if isNoBodyStatus(code) || h.Get("Content-Encoding") != "" {
		cw.passthrough = true
	} else {
		h.Del("Content-Length")
		h.Set("Content-Encoding", cw.c.name)
		h.Add("Vary", "Accept-Encoding")
		cw.enc = cw.c.get(cw.ResponseWriter)
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *compressWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		// 壓縮後無法再嗅探，先補上 Content-Type
		if cw.Header().Get("Content-Type") == "" {
			cw.Header().Set("Content-Type", http.DetectContentType(b))
		}
		cw.WriteHeader(http.StatusOK)
	}
	if cw.passthrough {
		return cw.ResponseWriter.Write(b)
	}
	return cw.enc.Write(b)
}

func (cw *compressWriter) Flush() {
	if cw.enc != nil {
		_ = cw.enc.Flush()
	}
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (cw *compressWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := cw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying response writer does not support Hijacker")
	}
	return hj.Hijack()
}

// Unwrap 讓 http.ResponseController 能找到底層 writer。
func (cw *compressWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

// finish 寫出壓縮尾端並歸還 encoder；沒有 body 的回應不會碰到 encoder。
func (cw *compressWriter) finish() {
	if cw.enc == nil {
		return
	}
	_ = cw.enc.Close()
	cw.c.put(cw.enc)
	cw.enc = nil
}

// Compress 依 Accept-Encoding 以 zstd 或 gzip 壓縮回應。
//
// HEAD、websocket upgrade、已設定 Content-Encoding 的回應不處理。
func Compress(cfg CompressConfig) func(http.Handler) http.Handler {
	codecs := newCodecs(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || isWebSocketUpgrade(r) || w.Header().Get("Content-Encoding") != "" {
				next.ServeHTTP(w, r)
				return
			}
			c := negotiate(codecs, r.Header.Get("Accept-Encoding"))
			if c == nil {
				next.ServeHTTP(w, r)
				return
			}
			cw := &compressWriter{ResponseWriter: w, c: c}
			defer cw.finish()
			next.ServeHTTP(cw, r)
		})
	}
}

var defaultCompress = Compress(DefaultCompressConfig)

// Compression 使用 DefaultCompressConfig 的 Compress。
func Compression(next http.Handler) http.Handler {
	return defaultCompress(next)
}
