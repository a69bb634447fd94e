package repository

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// ErrInvalidCursor はカーソル文字列を解釈できない場合のエラー。
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor は一覧のページ位置。直前のページで最後に返した行の(created_at, id)を保持する。
// 一覧は(created_at DESC, id DESC)で並ぶため、同じcreated_atの行もidで一意に区切れる。
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorAt はページ末尾の行からCursorを生成する。
func CursorAt(createdAt time.Time, id string) Cursor {
	return Cursor{CreatedAt: createdAt.UTC(), ID: id}
}

// IsZero は先頭ページ（カーソル指定なし）かどうかを返す。
func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}

// Admits は(createdAt, id)の行がカーソルより後ろ、つまり次ページ側にあるかを返す。
func (c Cursor) Admits(createdAt time.Time, id string) bool {
	if c.IsZero() {
		return true
	}
	if createdAt.Equal(c.CreatedAt) {
		return id < c.ID
	}
	return createdAt.Before(c.CreatedAt)
}

// Encode はAPIで受け渡す不透明な文字列に変換する。
func (c Cursor) Encode() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor はEncodeの出力を復元する。
func ParseCursor(s string) (Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	ts, id, ok := strings.Cut(string(b), "|")
	if !ok || id == "" {
		return Cursor{}, ErrInvalidCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{CreatedAt: createdAt.UTC(), ID: id}, nil
}
