package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDocumentNumber(t *testing.T) {
	assert.Equal(t, "VTA-2026-00000001", formatDocumentNumber("VTA", 2026, 1))
	assert.Equal(t, "CMP-2025-00012345", formatDocumentNumber("CMP", 2025, 12345))
	assert.Equal(t, "VTA-2026-123456789", formatDocumentNumber("VTA", 2026, 123456789))
}

func TestValidateDocumentKey(t *testing.T) {
	assert.NoError(t, validateDocumentKey("VTA", 2026))
	assert.NoError(t, validateDocumentKey("NC", 2000))
	assert.ErrorIs(t, validateDocumentKey("vta", 2026), ErrValidation)
	assert.ErrorIs(t, validateDocumentKey("V", 2026), ErrValidation)
	assert.ErrorIs(t, validateDocumentKey("TOOLONG", 2026), ErrValidation)
	assert.ErrorIs(t, validateDocumentKey("VT-A", 2026), ErrValidation)
	assert.ErrorIs(t, validateDocumentKey("VTA", 1999), ErrValidation)
}

func TestUniqueSorted(t *testing.T) {
	assert.Equal(t, []int{1, 3, 7}, uniqueSorted([]int{7, 1, 3, 1, 7}))
	assert.Empty(t, uniqueSorted(nil))
}
