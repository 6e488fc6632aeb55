package logging

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "", want: INFO},
		{in: "info", want: INFO},
		{in: "DEBUG", want: DEBUG},
		{in: " trace ", want: TRACE},
		{in: "4", want: 4},
		{in: "-1", wantErr: true},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("debug", false)
	require.NoError(t, err)
	assert.True(t, l.V(DEBUG).Enabled())
	assert.False(t, l.V(TRACE).Enabled())

	_, err = NewLogger("loud", true)
	assert.Error(t, err)
}

func TestContextLogger(t *testing.T) {
	saved := Log
	defer SetLogger(saved)

	l := NewTestLogger()
	assert.True(t, FromContext(context.Background()).V(DEBUG).Enabled())

	ctx := IntoContext(context.Background(), logr.Discard())
	assert.False(t, FromContext(ctx).Enabled())
	assert.True(t, l.Enabled())
}
