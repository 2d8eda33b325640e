// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package math provides overflow checked 256-bit arithmetic.
package math

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("overflow")
	ErrDivisionByZero = errors.New("division by zero")
)

// Add returns:
// 1) a + b
// 2) If there is overflow, an error
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return sum, nil
}

// Mul returns:
// 1) a * b
// 2) If there is overflow, an error
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return product, nil
}

// MulDiv returns a * b / d, truncating. The intermediate product must fit in
// 256 bits.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	product, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return product.Div(product, d), nil
}
