package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"extraction failure retries", New(KindExtractionFailure, "x"), true},
		{"transport failure retries", New(KindTransportFailure, "x"), true},
		{"semantic rejection retries", New(KindSemanticRejection, "x"), true},
		{"not syncable does not retry", New(KindNotSyncable, "x"), false},
		{"webhook invalid does not retry", New(KindWebhookInvalid, "x"), false},
		{"plain error does not retry", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestSkipClassification(t *testing.T) {
	assert.True(t, Skip(New(KindNotSyncable, "digital item")))
	assert.False(t, Skip(New(KindTransportFailure, "timeout")))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(KindTransportFailure, "upsert failed", cause)

	assert.Equal(t, cause, errors.Unwrap(wrapped))
	assert.Contains(t, wrapped.Error(), "connection refused")

	classified, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindTransportFailure, classified.Kind)
}

func TestKindOfUnclassifiedError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}
