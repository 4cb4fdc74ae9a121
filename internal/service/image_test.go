package service

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nitro/annoverlay/internal/overlay"
)

func TestRemoteImageDrivesTheGate(t *testing.T) {
	t.Parallel()

	var changes int
	gate := overlay.Gate{OnChange: func() { changes++ }}
	img := newRemoteImage()
	gate.Attach(img)
	require.Equal(t, overlay.GateWaiting, gate.State())

	err := img.load(context.Background(), func(context.Context) (image.Image, error) {
		return image.NewRGBA(image.Rect(0, 0, 30, 20)), nil
	})
	require.NoError(t, err)
	require.True(t, gate.Ready())
	require.Equal(t, 1, changes)
	require.Equal(t, overlay.Target{Width: 30, Height: 20}, gate.Size())
	require.NotNil(t, img.Image())
}

func TestRemoteImageFailure(t *testing.T) {
	t.Parallel()

	gate := overlay.Gate{}
	img := newRemoteImage()
	gate.Attach(img)

	err := img.load(context.Background(), func(context.Context) (image.Image, error) {
		return nil, errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	require.True(t, img.Complete())
	require.False(t, gate.Ready())
	require.Nil(t, img.Image())
}
