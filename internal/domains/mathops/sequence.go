package mathops

// MaxFibonacciIndex is the largest n accepted by Fibonacci; F(50) still fits int64.
const MaxFibonacciIndex = 50

// Fibonacci returns [F(0), F(1), ..., F(n)]. Callers keep n within
// [0, MaxFibonacciIndex].
func Fibonacci(n int) []int64 {
	if n <= 0 {
		return []int64{0}
	}
	seq := make([]int64, n+1)
	seq[1] = 1
	for i := 2; i <= n; i++ {
		seq[i] = seq[i-1] + seq[i-2]
	}
	return seq
}

// IsPrime reports primality by trial division up to the square root of x.
func IsPrime(x int64) bool {
	switch {
	case x < 2:
		return false
	case x < 4:
		return true
	case x%2 == 0 || x%3 == 0:
		return false
	}
	for i := int64(5); i <= x/i; i += 6 {
		if x%i == 0 || x%(i+2) == 0 {
			return false
		}
	}
	return true
}

// FilterPrimes keeps the primes of xs in their original order.
func FilterPrimes(xs []int64) []int64 {
	out := make([]int64, 0, len(xs))
	for _, x := range xs {
		if IsPrime(x) {
			out = append(out, x)
		}
	}
	return out
}
