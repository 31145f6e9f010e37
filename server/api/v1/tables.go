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
	"strconv"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/server/httperr"
	"github.com/zintix-labs/gridlab/server/netsvr"
	"github.com/zintix-labs/gridlab/spec"
)

// TableHandler 桌台目錄（唯讀）。
type TableHandler struct {
	lab *gridlab.Lab
}

func NewTableHandler(lab *gridlab.Lab) (*TableHandler, error) {
	if lab == nil {
		return nil, errs.NewFatal("lab is required")
	}
	return &TableHandler{lab: lab}, nil
}

// List GET /v1/tables
func (th *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	sum, err := th.lab.Summary()
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Get GET /v1/tables/{ref}，ref 可為 id 或名稱。
func (th *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref := netsvr.Param(r, "ref")
	var (
		id  spec.TID
		err error
	)
	if u, perr := strconv.ParseUint(ref, 10, 64); perr == nil {
		id, err = th.lab.Resolve(spec.TID(u), "")
	} else {
		id, err = th.lab.Resolve(0, ref)
	}
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	sum, err := th.lab.Summary()
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	for _, s := range sum {
		if s.TID == id {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	httperr.Errs(w, errs.Codef(errs.NotFound, "table id not found: %d", id))
}
