// Package cacheaside defines domain types for the cache-aside demo service.
// This package has no project imports -- it is the dependency root.
package cacheaside

import (
	"context"
	"encoding/json"
	"strings"
)

// --- Key naming ---

// Key prefixes and the single leaderboard key. The escape hatch in
// DELETE /cache/{key} takes raw keys, so these spellings are part of the
// external contract.
const (
	MoviePrefix    = "movie:"
	UserPrefix     = "user:"
	LeaderboardKey = "lb:global"
)

// MovieKey returns the string-cache key for a movie.
func MovieKey(id string) string { return MoviePrefix + id }

// UserKey returns the profile hash key, which doubles as the leaderboard
// member name for the same user.
func UserKey(id string) string { return UserPrefix + id }

// UserIDFromMember strips the user prefix from a leaderboard member.
func UserIDFromMember(member string) string {
	return strings.TrimPrefix(member, UserPrefix)
}

// --- Movies ---

// Movie is the entity record held by the record store.
type Movie struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Year  int    `json:"year"`
}

// Source tags where a read was served from.
type Source string

const (
	SourceCache Source = "cache"
	SourceDB    Source = "db"
)

// MovieResult is a movie read tagged with its source.
type MovieResult struct {
	Source Source `json:"source"`
	Data   *Movie `json:"data"`
}

// --- Profiles ---

// FieldKind identifies the variant held by a FieldValue.
type FieldKind uint8

const (
	FieldString FieldKind = iota
	FieldBool
	FieldNumber // Text holds the JSON number literal
	FieldNull
)

// Sentinel strings for booleans stored in string-only hash fields.
const (
	encodedTrue  = "true"
	encodedFalse = "false"
)

// FieldValue is a flat profile field value.
type FieldValue struct {
	Kind FieldKind
	Text string
	Bool bool
}

// StringValue returns a string field value.
func StringValue(s string) FieldValue { return FieldValue{Kind: FieldString, Text: s} }

// BoolValue returns a boolean field value.
func BoolValue(b bool) FieldValue { return FieldValue{Kind: FieldBool, Bool: b} }

// NumberValue returns a number field value from its JSON literal.
func NumberValue(raw string) FieldValue { return FieldValue{Kind: FieldNumber, Text: raw} }

// NullValue returns a null field value.
func NullValue() FieldValue { return FieldValue{Kind: FieldNull} }

// Encode returns the string stored in the hash for v.
func (v FieldValue) Encode() string {
	switch v.Kind {
	case FieldBool:
		if v.Bool {
			return encodedTrue
		}
		return encodedFalse
	case FieldNull:
		return "null"
	default:
		return v.Text
	}
}

// DecodeField maps a stored hash value back to a FieldValue. Only the
// boolean sentinels change type; everything else reads back as a string.
func DecodeField(s string) FieldValue {
	switch s {
	case encodedTrue:
		return BoolValue(true)
	case encodedFalse:
		return BoolValue(false)
	default:
		return StringValue(s)
	}
}

// MarshalJSON renders booleans as JSON booleans, numbers as their literal,
// null as null, and strings as JSON strings.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case FieldBool:
		if v.Bool {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case FieldNumber:
		return []byte(v.Text), nil
	case FieldNull:
		return []byte("null"), nil
	default:
		return json.Marshal(v.Text)
	}
}

// Field is a named profile field in a patch.
type Field struct {
	Name  string
	Value FieldValue
}

// Profile is the decoded view of a profile hash.
type Profile struct {
	Key        string                `json:"key"`
	Data       map[string]FieldValue `json:"data"`
	TTLSeconds int64                 `json:"ttl_seconds"`
}

// --- Leaderboard ---

// ScoreResult is the outcome of a score update. Rank is nil when the
// member was not found right after the increment.
type ScoreResult struct {
	UserID string  `json:"userId"`
	Score  float64 `json:"score"`
	Rank   *int64  `json:"rank"`
}

// RankedEntry is one row of a top-N page. Rank is the one-based position
// within the page.
type RankedEntry struct {
	Member string  `json:"member"`
	UserID string  `json:"userId"`
	Score  float64 `json:"score"`
	Rank   int64   `json:"rank"`
}

// --- Context keys ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}
