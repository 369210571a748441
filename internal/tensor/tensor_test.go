package tensor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestShapeNumElements covers the element count, including the scalar case.
func TestShapeNumElements(t *testing.T) {
	require.Equal(t, 784, Shape{1, 28, 28}.NumElements())
	require.Equal(t, 4, Shape{4}.NumElements())
	require.Equal(t, 1, Shape{}.NumElements())
}

// TestShapeValidate rejects non-positive dimensions.
func TestShapeValidate(t *testing.T) {
	require.NoError(t, Shape{3, 2}.Validate())
	require.Error(t, Shape{3, 0}.Validate())
	require.Error(t, Shape{-1}.Validate())
}

// TestShapeEqualAndClone checks equality and that Clone is independent.
func TestShapeEqualAndClone(t *testing.T) {
	s := Shape{2, 3}
	require.True(t, s.Equal(Shape{2, 3}))
	require.False(t, s.Equal(Shape{3, 2}))
	require.False(t, s.Equal(Shape{2, 3, 1}))

	c := s.Clone()
	c[0] = 9
	require.Equal(t, 2, s[0])
}

// TestNewPanicsOnInvalidShape keeps the shape contract a hard failure.
func TestNewPanicsOnInvalidShape(t *testing.T) {
	require.Panics(t, func() { New(Shape{0, 2}) })
}

// TestFromSlice checks the copy semantics and the length validation.
func TestFromSlice(t *testing.T) {
	src := []float64{1, 2, 3, 4}
	tt, err := FromSlice(src, Shape{2, 2})
	require.NoError(t, err)

	src[0] = 99
	require.Equal(t, 1.0, tt.At(0)) // the tensor owns its memory

	_, err = FromSlice(src, Shape{3})
	require.Error(t, err)
}

// TestCloneIsDeep mutating a clone must not touch the original.
func TestCloneIsDeep(t *testing.T) {
	a, err := FromSlice([]float64{1, 2}, Shape{2})
	require.NoError(t, err)
	b := a.Clone()
	b.Set(0, 42)
	require.Equal(t, 1.0, a.At(0))
}

// TestReshapeSharesData a reshaped view writes through to the original.
func TestReshapeSharesData(t *testing.T) {
	a, err := FromSlice([]float64{1, 2, 3, 4}, Shape{2, 2})
	require.NoError(t, err)

	v, err := a.Reshape(Shape{4})
	require.NoError(t, err)
	v.Set(3, 9)
	require.Equal(t, 9.0, a.At(3))

	_, err = a.Reshape(Shape{3})
	require.Error(t, err)
}

// TestFlattenCopies Flatten must not alias the tensor.
func TestFlattenCopies(t *testing.T) {
	a, err := FromSlice([]float64{1, 2}, Shape{2})
	require.NoError(t, err)
	f := a.Flatten()
	f[0] = 7
	require.Equal(t, 1.0, a.At(0))
}
