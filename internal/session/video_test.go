package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
)

func TestReassembler(t *testing.T) {
	type step struct {
		flags byte
		data  string
		want  string // empty when no frame is expected
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "single",
			steps: []step{
				{flags: protocol.FlagsSingle, data: "frame", want: "frame"},
			},
		},
		{
			name: "fragmented",
			steps: []step{
				{flags: protocol.FlagsFragmented, data: "ab"},
				{flags: protocol.FlagsMiddle, data: "cd"},
				{flags: protocol.FlagsMiddle, data: "ef"},
				{flags: protocol.FlagsLastFragment, data: "g", want: "abcdefg"},
			},
		},
		{
			name: "orphan continuation dropped",
			steps: []step{
				{flags: protocol.FlagsMiddle, data: "xx"},
				{flags: protocol.FlagsLastFragment, data: "yy"},
				{flags: protocol.FlagsSingle, data: "ok", want: "ok"},
			},
		},
		{
			name: "new first fragment discards a partial frame",
			steps: []step{
				{flags: protocol.FlagsFragmented, data: "old"},
				{flags: protocol.FlagsFragmented, data: "new"},
				{flags: protocol.FlagsLastFragment, data: "!", want: "new!"},
			},
		},
		{
			name: "single fragment discards a partial frame",
			steps: []step{
				{flags: protocol.FlagsFragmented, data: "old"},
				{flags: protocol.FlagsSingle, data: "one", want: "one"},
				{flags: protocol.FlagsLastFragment, data: "tail"},
			},
		},
		{
			name: "unexpected flags reset",
			steps: []step{
				{flags: protocol.FlagsFragmented, data: "ab"},
				{flags: protocol.FlagsControlOnly, data: "??"},
				{flags: protocol.FlagsLastFragment, data: "cd"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r reassembler
			for i, st := range tt.steps {
				frame, ok := r.push(st.flags, []byte(st.data))
				if st.want == "" {
					assert.False(t, ok, "step %d", i)
					continue
				}
				if assert.True(t, ok, "step %d", i) {
					assert.Equal(t, st.want, string(frame), "step %d", i)
				}
			}
		})
	}
}

func TestReassemblerFramesAreIndependent(t *testing.T) {
	var r reassembler
	r.push(protocol.FlagsFragmented, []byte("first"))
	one, ok := r.push(protocol.FlagsLastFragment, []byte("-1"))
	assert.True(t, ok)

	r.push(protocol.FlagsFragmented, []byte("second"))
	two, ok := r.push(protocol.FlagsLastFragment, []byte("-2"))
	assert.True(t, ok)

	assert.Equal(t, "first-1", string(one))
	assert.Equal(t, "second-2", string(two))
}
