package accelerator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouterStatusForIsTotal(t *testing.T) {
	cases := map[Status]RouterStatus{
		Online:             ONLINE,
		SnapshotInProgress: SHUNNED,
		Maintenance:        OFFLINE_SOFT,
		Unknown:            SHUNNED,
	}
	for status, want := range cases {
		assert.Equal(t, want, RouterStatusFor(status), "status=%s", status)
	}
}

func TestStatusFromStringDefaultsToUnknown(t *testing.T) {
	assert.Equal(t, Online, statusFromString("online"))
	assert.Equal(t, SnapshotInProgress, statusFromString("snapshot in progress"))
	assert.Equal(t, Maintenance, statusFromString("maintenance mode"))
	assert.Equal(t, Unknown, statusFromString("anything else"))
}

func TestRouterStatusFromStringDefaultsToOnline(t *testing.T) {
	assert.Equal(t, ONLINE, RouterStatusFromString("ONLINE"))
	assert.Equal(t, SHUNNED, RouterStatusFromString("shunned"))
	assert.Equal(t, OFFLINE_SOFT, RouterStatusFromString("OFFLINE_SOFT"))
	assert.Equal(t, OFFLINE_HARD, RouterStatusFromString("OFFLINE_HARD"))
	assert.Equal(t, ONLINE, RouterStatusFromString("garbage"))
}

func TestHandleWithNoConnectionFailsProbesDeterministically(t *testing.T) {
	h := &Handle{Hostname: "db1", Port: 3306, RouterStatus: ONLINE}

	_, err := h.CheckReady(nil)
	assert.Error(t, err)

	ok, err := h.CheckQuerySupport(nil, "SELECT a FROM t", "app")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, h.Close())
}
