package mssb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialize(t *testing.T) {
	assert.Equal(t, []byte{169}, Serialize(Wire{Mode: ModeLegacy, Code: 169}, "\n"))
	assert.Equal(t, []byte("1:2\n"), Serialize(Wire{Mode: ModeText, Text: "1:2"}, "\n"))
	assert.Equal(t, []byte("Hardware?\r\n"), Serialize(Wire{Mode: ModeText, Text: "Hardware?"}, "\r\n"))
}

func TestDeserialize(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		raw  []byte
		want string
	}{
		{"legacy echo with crlf", ModeLegacy, []byte{0xa9, '\r', '\n'}, "a9"},
		{"legacy echo without crlf", ModeLegacy, []byte{0xa9}, "a9"},
		{"legacy empty", ModeLegacy, nil, ""},
		{"text ok line", ModeText, []byte("1:2 OK\r\n"), "1:2 OK"},
		{"text surrounding space", ModeText, []byte("  Entering Textmode \n"), "Entering Textmode"},
		{"text empty", ModeText, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Deserialize(tt.mode, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeserialize_InvalidUTF8(t *testing.T) {
	_, err := Deserialize(ModeText, []byte{0xff, 0xfe, '\n'})
	assert.True(t, errors.Is(err, ErrDecode))

	// legacy 模式不做 UTF-8 檢查
	got, err := Deserialize(ModeLegacy, []byte{0xff, 0xfe})
	require.NoError(t, err)
	assert.Equal(t, "fffe", got)
}

func TestValidate(t *testing.T) {
	legacyWire := Wire{Mode: ModeLegacy, Code: 169}
	textWire := Wire{Mode: ModeText, Text: "1:2"}

	assert.Equal(t, "a9", ExpectedEcho(legacyWire))
	assert.Equal(t, "1:2 OK", ExpectedEcho(textWire))

	tests := []struct {
		name    string
		wire    Wire
		decoded string
		want    bool
	}{
		{"legacy match", legacyWire, "a9", true},
		{"legacy uppercase", legacyWire, "A9", false},
		{"legacy prefixed", legacyWire, "0xa9", false},
		{"legacy other code", legacyWire, "a8", false},
		{"legacy empty", legacyWire, "", false},
		{"text match", textWire, "1:2 OK", true},
		{"text missing ok", textWire, "1:2", false},
		{"text error", textWire, "ERROR", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.wire, tt.decoded))
		})
	}
}

func TestLegacyEchoRoundTrip(t *testing.T) {
	for _, v := range Variants() {
		for _, cmd := range Plan(v) {
			w, err := Encode(v, ModeLegacy, cmd)
			require.NoError(t, err)

			echo := append(Serialize(w, DefaultLineTerminator), '\r', '\n')
			for _, raw := range [][]byte{echo, echo[:1]} {
				decoded, err := Deserialize(ModeLegacy, raw)
				require.NoError(t, err)
				assert.True(t, Validate(w, decoded), "%s %s %+v", v, cmd.Op, cmd.Addr)
			}
		}
	}
}
