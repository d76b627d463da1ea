package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		channel    Channel
		flags      byte
		msgType    uint16
		payloadLen int
	}{
		{"version request", ChannelControl, FlagsBootstrap, MsgVersionRequest, 4},
		{"empty payload", ChannelControl, FlagsSingle, MsgByeByeResponse, 0},
		{"media setup on video", ChannelVideo, FlagsSingle, MsgMediaSetup, 2},
		{"control on sensor", ChannelSensor, FlagsControlOnly, MsgChannelOpenResponse, 2},
		{"high control range", ChannelInput, FlagsSingle, 0xFFE0, 10},
		{"maximum payload", ChannelVideo, FlagsSingle, MsgMediaData, MaxFrameSize - TypeSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := EncodeHeader(tt.channel, tt.flags, tt.msgType, tt.payloadLen)
			require.NoError(t, err)

			h, err := DecodeHeader(raw[:])
			require.NoError(t, err)
			assert.Equal(t, tt.channel, h.Channel)
			assert.Equal(t, tt.flags, h.Flags)
			assert.Equal(t, tt.msgType, h.Type)
			assert.Equal(t, uint16(tt.payloadLen+2), h.Length, "length field counts the type")
			assert.Equal(t, tt.payloadLen, h.PayloadLength())
		})
	}
}

func TestEncodeHeaderRejectsOversize(t *testing.T) {
	_, err := EncodeHeader(ChannelVideo, FlagsSingle, MsgMediaData, MaxFrameSize)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &FrameError{Kind: FrameErrLength}))

	_, err = EncodeHeader(ChannelVideo, FlagsSingle, MsgMediaData, -1)
	assert.True(t, errors.Is(err, &FrameError{Kind: FrameErrLength}))
}

func TestDecodeHeaderShort(t *testing.T) {
	_, err := DecodeHeader([]byte{0, 3, 0})
	assert.True(t, errors.Is(err, &FrameError{Kind: FrameErrShort}))
	assert.False(t, errors.Is(err, &FrameError{Kind: FrameErrLength}))
}

func TestBootstrapMessages(t *testing.T) {
	assert.Equal(t,
		[]byte{0x00, 0x03, 0x00, 0x06, 0x00, 0x01, 0x00, 0x01, 0x00, 0x02},
		VersionRequest())
	assert.Equal(t,
		[]byte{0x00, 0x03, 0x00, 0x04, 0x00, 0x04, 0x08, 0x00},
		StatusOKMessage())

	frame, err := HandshakeMessage([]byte{0x16, 0x03, 0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x03, 0x00, 0x05, 0x00, 0x03, 0x16, 0x03, 0x01}, frame)
}

func TestEncryptedHeader(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		wantChannel Channel
		wantFlags   byte
		wantLength  int
		wantSize    int
		wantTotal   bool
		wantEncrypt bool
	}{
		{
			name:        "single encrypted",
			data:        []byte{0x02, 0x0B, 0x01, 0x00},
			wantChannel: ChannelVideo,
			wantFlags:   FlagsSingle,
			wantLength:  256,
			wantSize:    4,
			wantEncrypt: true,
		},
		{
			name:        "first fragment",
			data:        []byte{0x02, 0x09, 0x40, 0x00},
			wantChannel: ChannelVideo,
			wantFlags:   FlagsFragmented,
			wantLength:  0x4000,
			wantSize:    8,
			wantTotal:   true,
			wantEncrypt: true,
		},
		{
			name:        "bootstrap",
			data:        []byte{0x00, 0x03, 0x00, 0x08},
			wantChannel: ChannelControl,
			wantFlags:   FlagsBootstrap,
			wantLength:  8,
			wantSize:    4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := DecodeEncryptedHeader(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChannel, h.Channel)
			assert.Equal(t, tt.wantFlags, h.Flags)
			assert.Equal(t, tt.wantLength, h.Length)
			assert.Equal(t, tt.wantSize, h.Size())
			assert.Equal(t, tt.wantTotal, h.HasTotalSize())
			assert.Equal(t, tt.wantEncrypt, h.Encrypted())
		})
	}
}

func TestEncodeFrame(t *testing.T) {
	frame, err := EncodeFrame(ChannelSensor, FlagsSingle, []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x0B, 0x00, 0x03, 1, 2, 3}, frame)

	_, err = EncodeFrame(ChannelVideo, FlagsFragmented, []byte{1})
	assert.True(t, errors.Is(err, &FrameError{Kind: FrameErrFlags}))

	_, err = EncodeFrame(ChannelVideo, FlagsSingle, make([]byte, MaxFrameSize+1))
	assert.True(t, errors.Is(err, &FrameError{Kind: FrameErrLength}))
}

func TestParseVersionResponse(t *testing.T) {
	tests := []struct {
		name        string
		payload     []byte
		want        VersionResponse
		wantMatched bool
		wantErr     bool
	}{
		{"matched", []byte{0, 1, 0, 7, 0, 0}, VersionResponse{Major: 1, Minor: 7}, true, false},
		{"mismatch", []byte{0, 1, 0, 7, 0xFF, 0xFF}, VersionResponse{Major: 1, Minor: 7, Status: 0xFFFF}, false, false},
		{"no status", []byte{0, 1, 0, 1}, VersionResponse{Major: 1, Minor: 1}, true, false},
		{"short", []byte{0, 1}, VersionResponse{}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersionResponse(tt.payload)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantMatched, got.Matched())
		})
	}
}

func TestValidateHeader(t *testing.T) {
	tests := []struct {
		name   string
		header EncryptedHeader
		kind   FrameErrorKind
		ok     bool
	}{
		{"encrypted single", EncryptedHeader{Channel: ChannelVideo, Flags: FlagsSingle, Length: 64}, 0, true},
		{"cleartext bootstrap", EncryptedHeader{Channel: ChannelControl, Flags: FlagsBootstrap, Length: TypeSize}, 0, true},
		{"negative length", EncryptedHeader{Flags: FlagsSingle, Length: -1}, FrameErrLength, false},
		{"oversize", EncryptedHeader{Flags: FlagsSingle, Length: MaxFrameSize + 1}, FrameErrLength, false},
		{"short record", EncryptedHeader{Flags: FlagsSingle, Length: MinRecordSize - 1}, FrameErrLength, false},
		{"cleartext without type", EncryptedHeader{Flags: FlagsBootstrap, Length: 1}, FrameErrLength, false},
		{"unknown flag bits", EncryptedHeader{Flags: 0x1B, Length: 64}, FrameErrFlags, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeader(tt.header)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, &FrameError{Kind: tt.kind})
		})
	}
}
