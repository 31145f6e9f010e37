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

// Package corefmt 處理 RNG 快照與回放包的文字/二進位表示。
//
// 快照本身是 PRNG 的原始位元組；對外（JSON / URL）一律使用 base64url（無 padding）。
// 回放包（Bundle）是 JSON 經 zstd 壓縮後再 base64url，方便整包貼到網址或聊天訊息中。
package corefmt

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/gridlab/errs"
)

// maxBundleBytes 解壓後的上限，防止惡意輸入放大
const maxBundleBytes = 1 << 20

func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeBase64URL(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(errs.NewWarn(err.Error()), "decode base64url failed")
	}
	return b, nil
}

// EncodeHex 用於日誌，方便人工比對
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(errs.NewWarn(err.Error()), "decode hex failed")
	}
	return b, nil
}

// EncodeBundle 把 v 以 JSON 編碼後用 zstd 壓縮。
func EncodeBundle(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(err, "marshal bundle failed")
	}
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, errs.Wrap(err, "create zstd writer failed")
	}
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return nil, errs.Wrap(err, "zstd write failed")
	}
	if err := zw.Close(); err != nil {
		return nil, errs.Wrap(err, "zstd close failed")
	}
	return buf.Bytes(), nil
}

// DecodeBundle 是 EncodeBundle 的反向操作；格式錯誤視為使用者輸入錯誤（Warn）。
func DecodeBundle(b []byte, v any) error {
	zr, err := zstd.NewReader(bytes.NewReader(b))
	if err != nil {
		return errs.Wrap(errs.NewWarn(err.Error()), "create zstd reader failed")
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, maxBundleBytes+1))
	if err != nil {
		return errs.Wrap(errs.NewWarn(err.Error()), "read bundle failed")
	}
	if len(raw) > maxBundleBytes {
		return errs.NewWarn("bundle exceeds size limit")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errs.Wrap(errs.NewWarn(err.Error()), "unmarshal bundle failed")
	}
	return nil
}

// EncodeToken = base64url(EncodeBundle(v))
func EncodeToken(v any) (string, error) {
	b, err := EncodeBundle(v)
	if err != nil {
		return "", err
	}
	return EncodeBase64URL(b), nil
}

func DecodeToken(s string, v any) error {
	b, err := DecodeBase64URL(s)
	if err != nil {
		return err
	}
	return DecodeBundle(b, v)
}
