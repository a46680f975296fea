package qrcodec

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/dmitrijs2005/doorkeeper/internal/logging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	eventID = "6f1c2a8e-3b4d-4e5f-9a6b-7c8d9e0f1a2b"
	entryID = "0b7e1c3d-5a6f-4b8c-8d9e-1f2a3b4c5d6e"
	token   = "9f2d4c3a5e6b1a7d8c9e0f1a2b3c4d5e"
)

func fixedResolver(id string) EventResolver {
	return func(context.Context) (string, error) { return id, nil }
}

func TestEncode(t *testing.T) {
	got, err := Encode(eventID, entryID, token)
	require.NoError(t, err)
	assert.Equal(t, eventID+":"+entryID+":"+token, got)
}

func TestEncode_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		entry   string
		token   string
		wantErr error
	}{
		{name: "event not uuid", event: "E1", entry: entryID, token: token, wantErr: ErrInvalidIdentifier},
		{name: "entry not uuid", event: eventID, entry: "sample1", token: token, wantErr: ErrInvalidIdentifier},
		{name: "empty token", event: eventID, entry: entryID, token: "", wantErr: ErrInvalidFormat},
		{name: "token with separator", event: eventID, entry: entryID, token: "a:b", wantErr: ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.event, tt.entry, tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	for i := 0; i < 50; i++ {
		e, a := uuid.NewString(), uuid.NewString()
		tok := strings.Repeat("x", i+1)

		raw, err := Encode(e, a, tok)
		require.NoError(t, err)

		got, err := Decode(context.Background(), raw, nil)
		require.NoError(t, err)
		assert.Equal(t, Payload{EventID: e, EntryID: a, Token: tok, Format: FormatV2}, got)
		assert.Equal(t, raw, got.String())
	}
}

func TestDecode_Legacy(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	d := NewDecoder(fixedResolver(eventID), logger)

	got, err := d.Decode(context.Background(), entryID+":"+token)
	require.NoError(t, err)

	assert.Equal(t, Payload{EventID: eventID, EntryID: entryID, Token: token, Format: FormatV1Legacy}, got)
	assert.True(t, got.Legacy())
	assert.Contains(t, buf.String(), "legacy qr payload decoded")
}

func TestDecode_LegacyResolverFailure(t *testing.T) {
	boom := errors.New("default event not configured")
	_, err := Decode(context.Background(), entryID+":"+token, func(context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidFormat)
}

func TestDecode_LegacyWithoutResolver(t *testing.T) {
	_, err := Decode(context.Background(), entryID+":"+token, nil)
	require.Error(t, err)
}

func TestDecode_InvalidShapes(t *testing.T) {
	resolverCalled := false
	resolve := func(context.Context) (string, error) {
		resolverCalled = true
		return eventID, nil
	}

	cases := map[string]string{
		"empty":              "",
		"single part":        "not-a-valid-payload",
		"four parts":         eventID + ":" + entryID + ":" + token + ":extra",
		"empty token v2":     eventID + ":" + entryID + ":",
		"empty middle":       eventID + "::" + token,
		"empty token legacy": entryID + ":",
		"leading separator":  ":" + entryID,
		"legacy non uuid":    "sample1:" + token,
		"v2 bad event":       "E1:" + entryID + ":" + token,
		"v2 bad entry":       eventID + ":X:" + token,
		"no dashes":          strings.ReplaceAll(entryID, "-", "") + ":" + token,
		"nil uuid":           "00000000-0000-0000-0000-000000000000:" + token,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(context.Background(), raw, resolve)
			assert.ErrorIs(t, err, ErrInvalidFormat)
		})
	}
	assert.False(t, resolverCalled, "resolver must not run for malformed payloads")
}

func TestDecode_TrimsWhitespace(t *testing.T) {
	got, err := Decode(context.Background(), "  "+eventID+":"+entryID+":"+token+"\n", nil)
	require.NoError(t, err)
	assert.Equal(t, token, got.Token)
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID(eventID))
	assert.True(t, IsUUID(strings.ToUpper(eventID)))
	assert.False(t, IsUUID("{"+eventID+"}"))
	assert.False(t, IsUUID("6f1c2a8e-3b4d-7e5f-9a6b-7c8d9e0f1a2b"), "version 7 is outside 1-5")
	assert.False(t, IsUUID("6f1c2a8e-3b4d-4e5f-ca6b-7c8d9e0f1a2b"), "variant must be RFC 4122")
}
