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

package errs

import (
	"errors"
	"fmt"
)

// ErrLevel : Error 分級，使最上層理解問題嚴重程度
type ErrLevel uint8

const (
	None ErrLevel = iota
	Fatal
	Warn
	Log
)

var errLvMap = map[ErrLevel]string{
	None:  "",
	Fatal: "fatal",
	Warn:  "warn",
	Log:   "log",
}

func ErrLv(errlv ErrLevel) string {
	if str, ok := errLvMap[errlv]; ok {
		return str
	}
	return ""
}

// Code 為可預期的下注/回合錯誤分類，讓呼叫端不用比對字串就能分辨拒絕原因。
//
// Code 只描述「使用者輸入」層級的問題；系統錯誤一律為 NoCode。
type Code uint8

const (
	NoCode Code = iota
	InsufficientCredits
	InvalidPhase
	NoBetsPlaced
	InvalidCell
	InvalidAmount
	InvalidVolatility
	NotFound
)

var codeMap = map[Code]string{
	NoCode:              "",
	InsufficientCredits: "insufficient_credits",
	InvalidPhase:        "invalid_phase",
	NoBetsPlaced:        "no_bets_placed",
	InvalidCell:         "invalid_cell",
	InvalidAmount:       "invalid_amount",
	InvalidVolatility:   "invalid_volatility",
	NotFound:            "not_found",
}

// String 回傳穩定的 snake_case 名稱（也用於 API 與事件）。
func (c Code) String() string {
	if str, ok := codeMap[c]; ok {
		return str
	}
	return "unknown"
}

// E 是統一的錯誤型別。
// Message 為主訊息；Extra 為呼叫端可追加的額外上下文；
// Cause 可串接下層錯誤（wrap）；ErrLv 表示嚴重度；Code 為可預期錯誤的分類。
type E struct {
	Message string
	Extra   string
	Cause   error
	ErrLv   ErrLevel
	Code    Code
}

// Error 實作 error 介面並回傳格式化後的錯誤訊息。
func (e *E) Error() string {
	base := fmt.Sprintf("errlv=%s %s", ErrLv(e.ErrLv), e.Message)
	if e.Code != NoCode {
		base = fmt.Sprintf("errlv=%s code=%s %s", ErrLv(e.ErrLv), e.Code, e.Message)
	}
	if e.Extra != "" {
		base += " | extra: " + e.Extra
	}
	if e.Cause != nil {
		base += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return base
}

// Unwrap 讓 errors.Is / errors.As 能夠向下展開。
func (e *E) Unwrap() error { return e.Cause }

// Is 讓 errors.Is(err, errs.ErrNoBetsPlaced) 這類比對以 Code 為準，而不是指標相等。
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok || t.Code == NoCode {
		return false
	}
	return e.Code == t.Code
}

// 可預期錯誤的哨兵值，只用於 errors.Is 比對，請勿直接回傳（訊息缺少上下文）。
var (
	ErrInsufficientCredits = &E{Message: "insufficient credits", ErrLv: Warn, Code: InsufficientCredits}
	ErrInvalidPhase        = &E{Message: "invalid phase", ErrLv: Warn, Code: InvalidPhase}
	ErrNoBetsPlaced        = &E{Message: "no bets placed", ErrLv: Warn, Code: NoBetsPlaced}
	ErrInvalidCell         = &E{Message: "invalid cell", ErrLv: Warn, Code: InvalidCell}
	ErrInvalidAmount       = &E{Message: "invalid amount", ErrLv: Warn, Code: InvalidAmount}
	ErrInvalidVolatility   = &E{Message: "invalid volatility", ErrLv: Warn, Code: InvalidVolatility}
	ErrNotFound            = &E{Message: "not found", ErrLv: Warn, Code: NotFound}
)

// New 依錯誤等級與訊息建立錯誤
func New(errLv ErrLevel, msg string) *E {
	return &E{Message: msg, ErrLv: errLv}
}

func NewFatal(msg string) *E {
	return &E{Message: msg, ErrLv: Fatal}
}

func NewWarn(msg string) *E {
	return &E{Message: msg, ErrLv: Warn}
}

func NewLog(msg string) *E {
	return &E{Message: msg, ErrLv: Log}
}

// NewCode 建立帶有分類碼的 Warn 錯誤（可預期、可恢復）。
func NewCode(code Code, msg string) *E {
	return &E{Message: msg, ErrLv: Warn, Code: code}
}

func Fatalf(format string, a ...any) *E {
	return NewFatal(fmt.Sprintf(format, a...))
}

func Warnf(format string, a ...any) *E {
	return NewWarn(fmt.Sprintf(format, a...))
}

func Logf(format string, a ...any) *E {
	return NewLog(fmt.Sprintf(format, a...))
}

// Codef 與 NewCode 相同，但支援格式化訊息。
func Codef(code Code, format string, a ...any) *E {
	return NewCode(code, fmt.Sprintf(format, a...))
}

// NewWithExtra 與 New 相同，但可附加額外上下文字串（不影響主訊息）。
func NewWithExtra(errLv ErrLevel, msg string, extra string) *E {
	e := New(errLv, msg)
	e.Extra = extra
	return e
}

// Wrap 使用給定的訊息包裝底層錯誤，建立一個 *E。
//
// ErrLevel / Code 規則：
//   - 若 cause 已經是 *E，則沿用其 ErrLv 與 Code（保持原本嚴重度與分類）。
//   - 若 cause 不是本包定義的 *E（多半是標準庫或三方依賴錯誤），則 ErrLv 一律視為 Fatal。
//
// 建議使用方式：
//   - 若你已判斷該錯誤是「可預期且可處理」的情境，請直接建立一個 *E
//     （使用 New / NewCode 並自行指定），而不要對其呼叫 Wrap。
func Wrap(cause error, msg string) *E {
	var e *E
	errLv := Fatal
	code := NoCode
	if errors.As(cause, &e) {
		errLv = e.ErrLv
		code = e.Code
	}
	r := New(errLv, msg)
	r.Code = code
	r.Cause = cause
	return r
}

// WrapWithExtra 與 Wrap 相同，另外附加上下文。
func WrapWithExtra(cause error, msg string, extra string) *E {
	r := Wrap(cause, msg)
	r.Extra = extra
	return r
}

func AsErr(err error) (*E, bool) {
	var e *E
	if errors.As(err, &e) {
		return e, true
	}
	return e, false
}

// CodeOf 回傳錯誤鏈中第一個非 NoCode 的分類碼。
func CodeOf(err error) Code {
	for err != nil {
		if e, ok := err.(*E); ok && e.Code != NoCode {
			return e.Code
		}
		err = errors.Unwrap(err)
	}
	return NoCode
}

// HasCode 判斷錯誤鏈中是否帶有指定分類碼。
func HasCode(err error, code Code) bool {
	return code != NoCode && CodeOf(err) == code
}
