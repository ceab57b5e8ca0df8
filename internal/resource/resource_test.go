package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagepool/stagepool/internal/gateway"
	"github.com/stagepool/stagepool/internal/gateway/gatewaytest"
)

func createServer(t *testing.T, fake *gatewaytest.FakeClient, zone string) *ManagedServer {
	t.Helper()
	info, err := fake.CreateServer(context.Background(), gateway.CreateServerOpts{
		Zone: zone, InstanceClass: "t3.micro",
	})
	require.NoError(t, err)
	return NewManagedServer(info, fake)
}

func createVolume(t *testing.T, fake *gatewaytest.FakeClient, zone string) *ManagedVolume {
	t.Helper()
	info, err := fake.CreateVolume(context.Background(), gateway.CreateVolumeOpts{
		Zone: zone, SizeGiB: 10,
	})
	require.NoError(t, err)
	return NewManagedVolume(info, "scratch", fake)
}

func TestServerCurrentStatusRefreshesCache(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.NewFakeClient("us-east-1a")
	fake.InitialServerState = StatePending
	srv := createServer(t, fake, "us-east-1a")
	fake.StateSeq[srv.ID()] = []string{StatePending, StateRunning}

	state, err := srv.CurrentStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatePending, state)

	state, err = srv.CurrentStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
	assert.Equal(t, StateRunning, srv.State())
	assert.NotEmpty(t, srv.Addr())
}

func TestVolumeSetAttachmentEnforcesZone(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.NewFakeClient("us-east-1a", "us-east-1b")
	vol := createVolume(t, fake, "us-east-1a")
	far := createServer(t, fake, "us-east-1b")
	near := createServer(t, fake, "us-east-1a")

	assert.Error(t, vol.SetAttachment(far, "/dev/sdf"))
	assert.Nil(t, vol.Attachment())

	require.NoError(t, vol.SetAttachment(near, "/dev/sdf"))
	assert.Equal(t, near.ID(), vol.Attachment().ID())
	assert.Equal(t, "/dev/sdf", vol.Device())

	zone, ok := vol.AttachmentZone()
	assert.True(t, ok)
	assert.Equal(t, "us-east-1a", zone)
}

func TestVolumeClearAttachmentResetsDeviceAndMount(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.NewFakeClient("us-east-1a")
	vol := createVolume(t, fake, "us-east-1a")
	srv := createServer(t, fake, "us-east-1a")

	require.NoError(t, vol.SetAttachment(srv, "/dev/sdf"))
	vol.SetMountPath("/mnt/scratch")

	require.NoError(t, vol.SetAttachment(nil, ""))
	assert.Nil(t, vol.Attachment())
	assert.Empty(t, vol.Device())
	assert.Empty(t, vol.MountPath())

	_, ok := vol.AttachmentZone()
	assert.False(t, ok)
}

func TestAttachmentViewTracksTransition(t *testing.T) {
	t.Parallel()
	fake := gatewaytest.NewFakeClient("us-east-1a")
	vol := createVolume(t, fake, "us-east-1a")
	srv := createServer(t, fake, "us-east-1a")

	view := vol.AttachmentView()
	state, err := view.CurrentStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AttachDetached, state)

	require.NoError(t, fake.AttachVolume(context.Background(), vol.ID(), srv.ID(), "/dev/sdf"))
	state, err = view.CurrentStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AttachAttached, state)
}
