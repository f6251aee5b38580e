// SPDX-FileCopyrightText: 2023 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wloutput

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Scale is a logical output scale kept as a reduced fraction. The zero value
// is not a valid scale; use ScaleOne.
type Scale struct {
	num int64
	den int64
}

var ScaleOne = Scale{num: 1, den: 1}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// NewScale returns num/den in lowest terms.
func NewScale(num, den int64) (Scale, error) {
	if den == 0 {
		return Scale{}, xerrors.New("scale denominator is zero")
	}
	if den < 0 {
		num, den = -num, -den
	}
	if num <= 0 {
		return Scale{}, xerrors.Errorf("scale %d/%d is not positive", num, den)
	}
	g := gcd(num, den)
	s := Scale{num: num / g, den: den / g}
	if _, ok := s.fixed(); !ok {
		return Scale{}, xerrors.Errorf("scale %d/%d is too large", num, den)
	}
	return s, nil
}

// ScaleFromFixed converts a 24.8 wire fixed point value.
func ScaleFromFixed(fixed int32) Scale {
	s, err := NewScale(int64(fixed), 256)
	if err != nil {
		return Scale{}
	}
	return s
}

func (s Scale) Num() int64 { return s.num }
func (s Scale) Den() int64 { return s.den }

func (s Scale) Valid() bool {
	return s.den > 0 && s.num > 0
}

func (s Scale) Equal(o Scale) bool {
	return s.num == o.num && s.den == o.den
}

// fixed rounds to 24.8 fixed point; ok is false when the result does not
// fit the wire's int32.
func (s Scale) fixed() (v int64, ok bool) {
	n := new(big.Int).Mul(big.NewInt(s.num), big.NewInt(256))
	n.Add(n, big.NewInt(s.den/2))
	n.Quo(n, big.NewInt(s.den))
	if !n.IsInt64() || n.Int64() > math.MaxInt32 {
		return 0, false
	}
	return n.Int64(), true
}

// Fixed rounds the scale to the nearest 24.8 fixed point value.
func (s Scale) Fixed() int32 {
	if !s.Valid() {
		return 0
	}
	v, ok := s.fixed()
	if !ok {
		return math.MaxInt32
	}
	return int32(v)
}

func (s Scale) Float64() float64 {
	if !s.Valid() {
		return 0
	}
	return float64(s.num) / float64(s.den)
}

// Divide returns v divided by the scale, rounded to the nearest integer.
func (s Scale) Divide(v int32) int32 {
	if !s.Valid() {
		return v
	}
	return int32((int64(v)*s.den + s.num/2) / s.num)
}

// String formats the scale as a minimal decimal with at least one fraction
// digit ("1.0", "1.25"). Fractions that have no finite decimal expansion are
// formatted as "n/d".
func (s Scale) String() string {
	if !s.Valid() {
		return "0.0"
	}
	den := s.den
	for den%2 == 0 {
		den /= 2
	}
	for den%5 == 0 {
		den /= 5
	}
	if den != 1 {
		return strconv.FormatInt(s.num, 10) + "/" + strconv.FormatInt(s.den, 10)
	}

	intPart := s.num / s.den
	rem := s.num % s.den
	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(intPart, 10))
	sb.WriteByte('.')
	if rem == 0 {
		sb.WriteByte('0')
		return sb.String()
	}
	for rem != 0 {
		rem *= 10
		sb.WriteByte(byte('0' + rem/s.den))
		rem %= s.den
	}
	return sb.String()
}

// ParseScale accepts a decimal ("1.25"), a fraction ("5/4") or a percentage
// ("125%").
func ParseScale(text string) (Scale, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Scale{}, xerrors.New("empty scale")
	}

	if numStr, denStr, ok := strings.Cut(text, "/"); ok {
		num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 32)
		if err != nil {
			return Scale{}, xerrors.Errorf("invalid scale %q: %w", text, err)
		}
		den, err := strconv.ParseInt(strings.TrimSpace(denStr), 10, 32)
		if err != nil {
			return Scale{}, xerrors.Errorf("invalid scale %q: %w", text, err)
		}
		return NewScale(num, den)
	}

	var den int64 = 1
	if strings.HasSuffix(text, "%") {
		text = strings.TrimSuffix(text, "%")
		den = 100
	}

	intStr, fracStr, _ := strings.Cut(text, ".")
	if intStr == "" {
		intStr = "0"
	}
	if len(fracStr) > 9 {
		return Scale{}, xerrors.Errorf("invalid scale %q: too many fraction digits", text)
	}
	num, err := strconv.ParseInt(intStr+fracStr, 10, 63)
	if err != nil {
		return Scale{}, xerrors.Errorf("invalid scale %q: %w", text, err)
	}
	for i := 0; i < len(fracStr); i++ {
		den *= 10
	}
	return NewScale(num, den)
}

func (s Scale) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, xerrors.New("invalid scale")
	}
	return []byte(s.String()), nil
}

func (s *Scale) UnmarshalText(text []byte) error {
	v, err := ParseScale(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
