package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	assert.Equal(t, "[MODEL_TIMEOUT] language model timed out", ErrModelTimeout.Error())

	wrapped := Wrap(ErrModelTimeout, context.DeadlineExceeded)
	assert.Equal(t, "[MODEL_TIMEOUT] language model timed out: context deadline exceeded", wrapped.Error())
}

func TestDomainError_Is(t *testing.T) {
	wrapped := fmt.Errorf("failed to complete: %w", Wrap(ErrModelUnavailable, errors.New("boom")))

	assert.ErrorIs(t, wrapped, ErrModelUnavailable)
	assert.NotErrorIs(t, wrapped, ErrModelTimeout)
	assert.Equal(t, ErrCodeModelUnavailable, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestLabelForScore(t *testing.T) {
	tests := []struct {
		score    float64
		expected QualityLabel
	}{
		{1.0, QualityExcellent},
		{0.9, QualityExcellent},
		{0.75, QualityGood},
		{0.5, QualityFair},
		{0.49, QualityPoor},
	}

	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			assert.Equal(t, tt.expected, LabelForScore(tt.score))
		})
	}
}

func TestLevelFor(t *testing.T) {
	lvl := LevelFor(LevelProjectFocused)
	assert.Equal(t, 7, lvl.MaxItems)
	assert.Equal(t, 9, lvl.ItemCap())

	assert.Equal(t, 12, LevelFor(LevelComprehensive).ItemCap())
	assert.Equal(t, LevelStandard, LevelFor("unknown").Name)
}
