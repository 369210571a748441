// Copyright 2025 The CertGo Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package verify provides the public API for robustness verification.
//
// Example:
//
//	adaptor, err := verify.New(verify.MethodFastLin, "mnist", model)
//	if err != nil { ... }
//	robust, err := adaptor.Verify(input, label, verify.NormInf, 0.02)
//
// See the internal package documentation for the soundness guarantees of
// each method.
package verify

import (
	"github.com/certgo-ml/certgo/internal/nn"
	"github.com/certgo-ml/certgo/internal/verify"
)

// Norm identifies the perturbation norm family.
type Norm = verify.Norm

// NormInf is the infinity norm, the only supported norm.
const NormInf = verify.NormInf

// Adaptor is the contract every verification strategy implements.
type Adaptor = verify.Adaptor

// Method selects a verification strategy.
type Method = verify.Method

// The closed set of strategies.
const (
	MethodClean   = verify.MethodClean
	MethodPGD     = verify.MethodPGD
	MethodIBP     = verify.MethodIBP
	MethodFastLin = verify.MethodFastLin
	MethodMILP    = verify.MethodMILP
	MethodSDP     = verify.MethodSDP
)

// Errors returned for caller contract violations.
var (
	ErrUnsupportedNorm = verify.ErrUnsupportedNorm
	ErrShapeMismatch   = verify.ErrShapeMismatch
)

// Option configures adaptor construction.
type Option = verify.Option

// WithLogger routes diagnostics to the given logger.
var WithLogger = verify.WithLogger

// WithSolverOptions sets the per-solve options of the MILP/SDP strategies.
var WithSolverOptions = verify.WithSolverOptions

// New constructs the adaptor for the given method.
func New(method Method, dataset string, model *nn.Sequential, opts ...Option) (Adaptor, error) {
	return verify.New(method, dataset, model, opts...)
}
