package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/trajectory-animator/internal/storage"
	"github.com/OCAP2/trajectory-animator/internal/storage/storagetest"
)

func TestBackend(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		b := New()
		require.NoError(t, b.Init())
		return b
	})
}

func TestSaveBody_CopiesAnnotations(t *testing.T) {
	b := New()
	body := storagetest.Body(t, "Earth", 2, true)
	require.NoError(t, b.SaveBody(context.Background(), body))

	body.Annotations[0][0].Value = "changed"

	out, err := b.LoadBody(context.Background(), "Earth")
	require.NoError(t, err)
	assert.Equal(t, "5.97e24", out.Annotations[0][0].Value)
}

func TestBeginRun_Duplicate(t *testing.T) {
	b := New()
	require.NoError(t, b.BeginRun(context.Background(), storage.Run{ID: "a"}))
	assert.Error(t, b.BeginRun(context.Background(), storage.Run{ID: "a"}))
}
