package protocol

import (
	"testing"
	"time"

	"github.com/effective-security/infohub/mcp/transport"
	"github.com/stretchr/testify/assert"
)

func TestHandleCloseWithBufferedResponse(t *testing.T) {
	p := New()

	// a waiter that timed out can leave its buffered response undrained
	ch := make(chan *responseEnvelope, 1)
	ch <- &responseEnvelope{response: []byte(`{}`)}
	p.responseHandlers[transport.RequestId(1)] = ch

	done := make(chan struct{})
	go func() {
		p.handleClose()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleClose blocked on an undrained response channel")
	}

	assert.Empty(t, p.responseHandlers)
}
