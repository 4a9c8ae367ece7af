package framesize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/framesize"
)

func TestSub(t *testing.T) {
	got, err := framesize.Sub(framesize.UnknownGlobal{Index: 0}, framesize.Immediate{Value: 16})
	require.NoError(t, err)
	assert.Equal(t, framesize.Computed{Base: framesize.UnknownGlobal{Index: 0}, Minus: 16}, got)
	assert.Equal(t, "(global[0] - 16)", got.String())
}

func TestSub_Unsupported(t *testing.T) {
	tests := []struct {
		name     string
		lhs, rhs framesize.Expr
	}{
		{"immediate-immediate", framesize.Immediate{Value: 32}, framesize.Immediate{Value: 16}},
		{"local-immediate", framesize.UnknownLocal{Index: 1}, framesize.Immediate{Value: 16}},
		{"global-global", framesize.UnknownGlobal{Index: 0}, framesize.UnknownGlobal{Index: 1}},
		{"global-local", framesize.UnknownGlobal{Index: 0}, framesize.UnknownLocal{Index: 0}},
		{"computed-immediate", framesize.Computed{Base: framesize.UnknownGlobal{}, Minus: 16}, framesize.Immediate{Value: 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := framesize.Sub(tt.lhs, tt.rhs)
			require.ErrorIs(t, err, framesize.ErrUnsupportedExpression)
		})
	}
}

func TestExprString(t *testing.T) {
	assert.Equal(t, "-8", framesize.Immediate{Value: -8}.String())
	assert.Equal(t, "global[3]", framesize.UnknownGlobal{Index: 3}.String())
	assert.Equal(t, "local[1]", framesize.UnknownLocal{Index: 1}.String())
}
