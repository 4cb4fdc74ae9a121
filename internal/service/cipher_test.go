package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryStorage struct {
	mutex   sync.Mutex
	objects map[string][]byte
}

func (m *memoryStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	payload, ok := m.objects[key]
	if !ok {
		return nil, nil
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (m *memoryStorage) Put(_ context.Context, key string, payload io.Reader) error {
	content, err := io.ReadAll(payload)
	if err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = content
	return nil
}

func TestCipherInit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		message       string
		cipher        Cipher
		expectedError string
	}{
		{
			message:       "require a key",
			cipher:        Cipher{Storage: &memoryStorage{}},
			expectedError: "internal/service/Cipher.Key can't be empty",
		},
		{
			message:       "require a storage",
			cipher:        Cipher{Key: strings.Repeat("k", 32)},
			expectedError: "internal/service/Cipher.Storage can't be nil",
		},
		{
			message:       "reject an invalid key size",
			cipher:        Cipher{Key: "short", Storage: &memoryStorage{}},
			expectedError: "fail to create a cipher: crypto/aes: invalid key size 5",
		},
		{
			message: "initialize",
			cipher:  Cipher{Key: strings.Repeat("k", 32), Storage: &memoryStorage{}},
		},
	}
	for _, tt := range tests {
		t.Run("Should "+tt.message, func(t *testing.T) {
			t.Parallel()

			err := tt.cipher.Init()
			if tt.expectedError == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.expectedError)
		})
	}
}

func TestCipherRoundTrip(t *testing.T) {
	t.Parallel()

	storage := &memoryStorage{}
	c := Cipher{Key: strings.Repeat("k", 32), Storage: storage}
	require.NoError(t, c.Init())

	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "render.png", strings.NewReader("overlay")))
	require.NotContains(t, string(storage.objects["render.png"]), "overlay")

	reader, err := c.Get(ctx, "render.png")
	require.NoError(t, err)
	payload, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "overlay", string(payload))

	reader, err = c.Get(ctx, "missing.png")
	require.NoError(t, err)
	require.Nil(t, reader)

	storage.objects["moved.png"] = storage.objects["render.png"]
	_, err = c.Get(ctx, "moved.png")
	require.Error(t, err, "the key is bound to the payload")
}

func TestBypass(t *testing.T) {
	t.Parallel()

	storage := &memoryStorage{}
	b := Bypass{Service: storage}
	ctx := context.Background()
	bypassCtx := WithBypass(ctx)

	require.NoError(t, b.Put(bypassCtx, "render.png", strings.NewReader("skipped")))
	require.Empty(t, storage.objects)

	require.NoError(t, b.Put(ctx, "render.png", strings.NewReader("stored")))
	reader, err := b.Get(bypassCtx, "render.png")
	require.NoError(t, err)
	require.Nil(t, reader)

	reader, err = b.Get(ctx, "render.png")
	require.NoError(t, err)
	payload, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "stored", string(payload))
}
