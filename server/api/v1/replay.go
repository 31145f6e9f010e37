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

package v1

import (
	"net/http"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/server/httperr"
)

type ReplayHandler struct {
	lab *gridlab.Lab
}

func NewReplayHandler(lab *gridlab.Lab) (*ReplayHandler, error) {
	if lab == nil {
		return nil, errs.NewFatal("lab is required")
	}
	return &ReplayHandler{lab: lab}, nil
}

// Replay POST /v1/replay
//
// body 可以是 {"token": "..."}，或直接給 {"bundle": {...}}；token 優先。
func (rh *ReplayHandler) Replay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token  string                `json:"token"`
		Bundle *gridlab.ReplayBundle `json:"bundle"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		httperr.Errs(w, err)
		return
	}
	var b gridlab.ReplayBundle
	switch {
	case req.Token != "":
		var err error
		if b, err = gridlab.ParseReplayToken(req.Token); err != nil {
			httperr.Errs(w, err)
			return
		}
	case req.Bundle != nil:
		b = *req.Bundle
	default:
		httperr.Errs(w, errs.NewWarn("token or bundle is required"))
		return
	}
	rep, err := rh.lab.Replay(b)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
