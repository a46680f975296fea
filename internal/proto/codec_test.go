package proto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestCodec_Registered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	assert.Equal(t, CodecName, c.Name())
}

func TestCodec_PlainMessage(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	in := &CheckInResponse{
		Outcome: "success",
		Success: true,
		Message: "Ada Lovelace checked in successfully!",
		Attendee: &Attendee{
			ID: "a1", EventID: "e1", FirstName: "Ada", LastName: "Lovelace",
			CheckedIn: true, CheckedInAt: &at,
		},
		Event: &Event{ID: "e1", Name: "Launch"},
	}

	b, err := Codec{}.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"outcome":"success"`)

	var out CheckInResponse
	require.NoError(t, Codec{}.Unmarshal(b, &out))
	assert.Equal(t, in.Message, out.Message)
	assert.True(t, out.Attendee.CheckedInAt.Equal(at))
	assert.Equal(t, "Launch", out.Event.Name)
}

func TestCodec_ProtoMessageUsesProtojson(t *testing.T) {
	b, err := Codec{}.Marshal(wrapperspb.String("OK"))
	require.NoError(t, err)
	assert.Equal(t, `"OK"`, string(b))

	out := &wrapperspb.StringValue{}
	require.NoError(t, Codec{}.Unmarshal(b, out))
	assert.Equal(t, "OK", out.GetValue())
}

func TestCodec_UnmarshalGarbage(t *testing.T) {
	var out LoginResponse
	assert.Error(t, Codec{}.Unmarshal([]byte("{nope"), &out))
}
