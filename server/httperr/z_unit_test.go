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

package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zintix-labs/gridlab/errs"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errs.Wrap(context.Canceled, "sim"), http.StatusRequestTimeout},
		{errs.ErrInsufficientCredits, http.StatusPaymentRequired},
		{errs.Wrap(errs.ErrInvalidPhase, "start"), http.StatusConflict},
		{errs.ErrNoBetsPlaced, http.StatusConflict},
		{errs.ErrNotFound, http.StatusNotFound},
		{errs.ErrInvalidCell, http.StatusBadRequest},
		{errs.NewWarn("bad input"), http.StatusBadRequest},
		{errs.NewFatal("broken"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := StatusCode(c.err); got != c.want {
			t.Fatalf("StatusCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestErrsBody(t *testing.T) {
	rec := httptest.NewRecorder()
	Errs(rec, errs.Codef(errs.InvalidVolatility, "volatility must be in [1,10], got %d", 11))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var b Body
	if err := json.NewDecoder(rec.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Code != "invalid_volatility" || b.Error == "" {
		t.Fatalf("body = %+v", b)
	}

	rec = httptest.NewRecorder()
	Errs(rec, nil)
	if rec.Body.Len() != 0 {
		t.Fatalf("nil error should write nothing")
	}
}
