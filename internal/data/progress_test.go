package data

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressFinalLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&countingSource{n: 5}, ProgressConfig{
		Desc:  "Epoch 1/1, Batch ",
		Total: 5,
		Out:   &buf,
	})

	var count int
	for p.Next() {
		count++
	}
	assert.Equal(t, 5, count)
	assert.NoError(t, p.Err())

	out := buf.String()
	assert.Contains(t, out, "Epoch 1/1, Batch 5/5 (100.00%)")
	assert.Contains(t, out, "(took ")
	assert.True(t, strings.HasSuffix(out, "\n"))

	// The 100% line is printed exactly once even if Next keeps being
	// called past the end.
	before := strings.Count(buf.String(), "100.00%")
	assert.False(t, p.Next())
	assert.Equal(t, before, strings.Count(buf.String(), "100.00%"))
}

func TestProgressThrottling(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&countingSource{n: 100}, ProgressConfig{
		Total:    100,
		MinDelay: time.Hour,
		Out:      &buf,
	})
	for p.Next() {
	}

	// Only the first intermediate line beats the throttle; the final
	// line is unconditional.
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\r")
	var nonEmpty int
	for _, l := range lines {
		if l != "" {
			nonEmpty++
		}
	}
	assert.Equal(t, 2, nonEmpty)
	assert.Contains(t, buf.String(), "100/100 (100.00%)")
}

func TestProgressEmptySequence(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&countingSource{n: 0}, ProgressConfig{Total: 0, Out: &buf})
	require.False(t, p.Next())
	assert.Contains(t, buf.String(), "0/0 (100.00%)")
}

func TestProgressPassThrough(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&countingSource{n: 3}, ProgressConfig{Total: 3, Out: &buf})

	require.True(t, p.Next())
	assert.Equal(t, float32(0), p.Batch().Features.At(0, 0))
	require.True(t, p.Next())
	assert.Equal(t, float32(1), p.Batch().Features.At(0, 0))
}
