package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestKindOfUnwrapsWrappedError(t *testing.T) {
	base := New(JobUnknown, "job not found")
	wrapped := fmt.Errorf("context: %w", base)

	assert.Equal(t, JobUnknown, KindOf(wrapped))
	assert.Equal(t, Unknown, KindOf(errors.New("plain error")))
}

func TestKindCodeMapping(t *testing.T) {
	tests := []struct {
		kind Kind
		want codes.Code
	}{
		{InvalidArgument, codes.InvalidArgument},
		{BadConfig, codes.InvalidArgument},
		{BadRequest, codes.InvalidArgument},
		{Unsupported, codes.Unimplemented},
		{JobUnknown, codes.NotFound},
		{BackendNotFound, codes.NotFound},
		{InvalidState, codes.Internal},
		{PlannerUnsupportedOperator, codes.Internal},
		{BackendUnavailable, codes.Unavailable},
		{BackendSerialization, codes.Internal},
		{Unknown, codes.Internal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.Code(), tt.kind)
	}
}

func TestToGRPCStatusMapsApierrKind(t *testing.T) {
	err := New(JobUnknown, "job xyz not found")
	out := ToGRPCStatus(err)

	st, ok := status.FromError(out)
	assert.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Contains(t, st.Message(), "job xyz not found")
}

func TestToGRPCStatusFallsBackToInternalForPlainErrors(t *testing.T) {
	out := ToGRPCStatus(errors.New("unclassified failure"))

	st, ok := status.FromError(out)
	assert.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
}

func TestToGRPCStatusNilIsNil(t *testing.T) {
	assert.NoError(t, ToGRPCStatus(nil))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(BackendUnavailable, "save job metadata", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "save job metadata")
}
