package nn

import (
	"fmt"

	"github.com/certgo-ml/certgo/internal/tensor"
)

// Conv2d implements a 2D convolutional layer.
//
// Input shape: [in_channels, height, width]
// Output shape: [out_channels, out_height, out_width]
// where out_height = (height + 2*padding - kernel) / stride + 1 and likewise
// for out_width.
//
// The kernel is square. Weights are stored flat in
// [out_channels][in_channels][kernel][kernel] order.
type Conv2d struct {
	inChannels  int
	outChannels int
	kernel      int
	stride      int
	padding     int
	weight      []float64 // [outC * inC * k * k]
	bias        []float64 // [outC]
}

// NewConv2d creates a new Conv2d layer with zero-initialized parameters.
func NewConv2d(inChannels, outChannels, kernel, stride, padding int) *Conv2d {
	if kernel <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("NewConv2d: invalid kernel=%d stride=%d padding=%d", kernel, stride, padding))
	}
	return &Conv2d{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernel:      kernel,
		stride:      stride,
		padding:     padding,
		weight:      make([]float64, outChannels*inChannels*kernel*kernel),
		bias:        make([]float64, outChannels),
	}
}

// SetWeight copies flat kernel weights in [outC][inC][k][k] order.
func (c *Conv2d) SetWeight(w []float64) error {
	if len(w) != len(c.weight) {
		return fmt.Errorf("conv2d: weight length %d, want %d", len(w), len(c.weight))
	}
	copy(c.weight, w)
	return nil
}

// SetBias copies per-output-channel biases.
func (c *Conv2d) SetBias(b []float64) error {
	if len(b) != len(c.bias) {
		return fmt.Errorf("conv2d: bias length %d, want %d", len(b), len(c.bias))
	}
	copy(c.bias, b)
	return nil
}

// Weight returns the flat kernel weights. The slice is shared, not copied.
func (c *Conv2d) Weight() []float64 { return c.weight }

// Bias returns the per-channel biases. The slice is shared, not copied.
func (c *Conv2d) Bias() []float64 { return c.bias }

// at indexes the kernel weight for (outChannel, inChannel, ky, kx).
func (c *Conv2d) at(o, i, ky, kx int) float64 {
	return c.weight[((o*c.inChannels+i)*c.kernel+ky)*c.kernel+kx]
}

// outHW computes the spatial output size for the given input size.
func (c *Conv2d) outHW(h, w int) (int, int) {
	oh := (h+2*c.padding-c.kernel)/c.stride + 1
	ow := (w+2*c.padding-c.kernel)/c.stride + 1
	return oh, ow
}

// Forward applies the convolution with zero padding.
func (c *Conv2d) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 3 || shape[0] != c.inChannels {
		panic(fmt.Sprintf("Conv2d.Forward: expected input [%d, H, W], got shape %v", c.inChannels, shape))
	}
	h, w := shape[1], shape[2]
	oh, ow := c.outHW(h, w)
	if oh <= 0 || ow <= 0 {
		panic(fmt.Sprintf("Conv2d.Forward: input %dx%d too small for kernel=%d stride=%d padding=%d", h, w, c.kernel, c.stride, c.padding))
	}

	in := input.Data()
	out := tensor.New(tensor.Shape{c.outChannels, oh, ow})
	data := out.Data()

	for o := 0; o < c.outChannels; o++ {
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				sum := c.bias[o]
				for i := 0; i < c.inChannels; i++ {
					for ky := 0; ky < c.kernel; ky++ {
						iy := y*c.stride - c.padding + ky
						if iy < 0 || iy >= h {
							continue
						}
						for kx := 0; kx < c.kernel; kx++ {
							ix := x*c.stride - c.padding + kx
							if ix < 0 || ix >= w {
								continue
							}
							sum += c.at(o, i, ky, kx) * in[(i*h+iy)*w+ix]
						}
					}
				}
				data[(o*oh+y)*ow+x] = sum
			}
		}
	}
	return out
}

// OutShape returns [out_channels, out_height, out_width] for a
// [in_channels, height, width] input shape.
func (c *Conv2d) OutShape(in tensor.Shape) tensor.Shape {
	if len(in) != 3 {
		panic(fmt.Sprintf("Conv2d.OutShape: expected 3-D input shape, got %v", in))
	}
	oh, ow := c.outHW(in[1], in[2])
	return tensor.Shape{c.outChannels, oh, ow}
}
