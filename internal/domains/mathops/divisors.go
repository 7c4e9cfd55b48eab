package mathops

import "math/big"

// GCD is the Euclidean greatest common divisor of |a| and |b|.
func GCD(a, b int64) int64 {
	a, b = abs(a), abs(b)
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// HCF folds GCD over xs. An empty input yields 0.
func HCF(xs []int64) int64 {
	if len(xs) == 0 {
		return 0
	}
	acc := abs(xs[0])
	for _, x := range xs[1:] {
		acc = GCD(acc, x)
		if acc == 1 {
			break
		}
	}
	return acc
}

// LCM folds |a*b|/gcd(a,b) over xs in arbitrary precision, so the result
// cannot overflow regardless of the input magnitudes. Any zero element
// makes the result zero; an empty input yields 0.
func LCM(xs []int64) *big.Int {
	if len(xs) == 0 {
		return new(big.Int)
	}
	acc := new(big.Int).Abs(big.NewInt(xs[0]))
	gcd := new(big.Int)
	for _, x := range xs[1:] {
		next := new(big.Int).Abs(big.NewInt(x))
		if acc.Sign() == 0 || next.Sign() == 0 {
			return new(big.Int)
		}
		gcd.GCD(nil, nil, acc, next)
		acc.Div(acc, gcd)
		acc.Mul(acc, next)
	}
	return acc
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
