package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFault(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("start: %w", newFault(FaultCrypto, "handshake", cause))

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &Fault{Kind: FaultCrypto})
	assert.NotErrorIs(t, err, &Fault{Kind: FaultTransport})
	assert.Equal(t, "start: crypto fault during handshake: boom", err.Error())

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, FaultCrypto, kind)

	_, ok = KindOf(cause)
	assert.False(t, ok)

	assert.Equal(t, "framing fault during decode", newFault(FaultFraming, "decode", nil).Error())
}

func TestFaultKindString(t *testing.T) {
	assert.Equal(t, "transport", FaultTransport.String())
	assert.Equal(t, "framing", FaultFraming.String())
	assert.Equal(t, "crypto", FaultCrypto.String())
	assert.Equal(t, "protocol", FaultProtocol.String())
	assert.Equal(t, "control", FaultControl.String())
	assert.Equal(t, "unknown", FaultKind(99).String())
}
