package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	b := NewBroadcaster()
	var order []int
	b.OnLogout(func() { order = append(order, 1) })
	b.OnLogout(func() { order = append(order, 2) })
	b.OnLogout(func() { order = append(order, 3) })

	b.EmitLogout()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcaster()
	calls := 0
	off := b.OnLogout(func() { calls++ })

	b.EmitLogout()
	off()
	b.EmitLogout()
	assert.Equal(t, 1, calls)

	// A second unsubscribe is a no-op.
	off()
	b.EmitLogout()
	assert.Equal(t, 1, calls)
}

func TestSignalsAreIndependent(t *testing.T) {
	b := NewBroadcaster()
	var logins, logouts int
	b.OnLogin(func() { logins++ })
	b.OnLogout(func() { logouts++ })

	b.EmitLogin()
	b.EmitLogin()
	b.EmitLogout()
	assert.Equal(t, 2, logins)
	assert.Equal(t, 1, logouts)
}
