package templates

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/dmitrijs2005/biokeeper/internal/common"
	"github.com/dmitrijs2005/biokeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_LatestWins(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	_, err := r.GetLatest(ctx, 1, biometric.ModalityFace)
	assert.ErrorIs(t, err, common.ErrNotFound)

	first, err := r.Create(ctx, &models.Template{UserID: 1, Modality: biometric.ModalityFace, EncryptedDescriptor: []byte("old")})
	require.NoError(t, err)
	_, err = r.Create(ctx, &models.Template{UserID: 1, Modality: biometric.ModalityVoice, EncryptedDescriptor: []byte("voice")})
	require.NoError(t, err)
	second, err := r.Create(ctx, &models.Template{UserID: 1, Modality: biometric.ModalityFace, EncryptedDescriptor: []byte("new")})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	got, err := r.GetLatest(ctx, 1, biometric.ModalityFace)
	require.NoError(t, err)
	assert.Equal(t, second, got.ID)
	assert.Equal(t, []byte("new"), got.EncryptedDescriptor)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = r.GetLatest(ctx, 2, biometric.ModalityFace)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	blob := []byte("sealed")
	_, err := r.Create(ctx, &models.Template{UserID: 1, Modality: biometric.ModalityFace, EncryptedDescriptor: blob})
	require.NoError(t, err)
	blob[0] = 'X'

	got, err := r.GetLatest(ctx, 1, biometric.ModalityFace)
	require.NoError(t, err)
	got.EncryptedDescriptor[1] = 'Y'

	again, err := r.GetLatest(ctx, 1, biometric.ModalityFace)
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed"), again.EncryptedDescriptor)
}
