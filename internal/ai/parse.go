package ai

import (
	"encoding/base64"
	"errors"
	"strings"
)

// stripCodeFence はMarkdownのコードブロック記法を取り除く。
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractJSON は応答テキストから最初のopenから最後のcloseまでを切り出す。
// 説明文が前後に付いた応答でもJSON部分だけを取り出せる。
func extractJSON(s string, open, close byte) (string, bool) {
	s = stripCodeFence(s)
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// ErrInvalidImage は画像データがbase64として解釈できない場合のエラー。
var ErrInvalidImage = errors.New("画像データが不正です")

// decodeImage はdata URLまたは素のbase64文字列を画像形式とバイト列に変換する。
// 形式が判別できない場合はjpegとみなす。
func decodeImage(raw string) (format string, data []byte, err error) {
	format = "jpeg"
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		comma := strings.IndexByte(raw, ',')
		if comma < 0 {
			return "", nil, ErrInvalidImage
		}
		header := raw[len("data:"):comma]
		if mime, _, ok := strings.Cut(header, ";"); ok && strings.HasPrefix(mime, "image/") {
			format = strings.TrimPrefix(mime, "image/")
		}
		raw = raw[comma+1:]
	}

	clean := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, raw)
	if clean == "" {
		return "", nil, ErrInvalidImage
	}

	data, err = base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return "", nil, errors.Join(ErrInvalidImage, err)
	}
	if format == "jpg" {
		format = "jpeg"
	}
	return format, data, nil
}
