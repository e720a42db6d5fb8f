// Package rs implements systematic Reed-Solomon encoding and
// Berlekamp-Massey/Chien/Forney decoding over internal/gf's GF(2^8),
// following the "Reed-Solomon codes for coders" construction: codewords
// are MSB-first byte slices (index 0 is the highest-degree coefficient),
// syndromes and the error locator polynomial share that convention, and
// Chien search maps a root index back to a byte position via
// len(codeword)-1-i.
package rs

import "sonicmark/internal/gf"

// ErrUncorrectableCodeword names the failure Decode reports with
// Result.Corrected == false when the syndromes are nonzero but the error
// pattern cannot be resolved (too many errors, or the locator and error
// count disagree). Decode itself does not return this error value.
type ErrUncorrectableCodeword struct{}

func (ErrUncorrectableCodeword) Error() string { return "rs: uncorrectable codeword" }

// GeneratorPoly builds the degree-nsym generator polynomial
// product_{i=0}^{nsym-1} (x - alpha^i), MSB-first.
func GeneratorPoly(nsym int) []byte {
	gen := []byte{1}
	for i := 0; i < nsym; i++ {
		gen = polyMul(gen, []byte{1, gf.Exp(i)})
	}
	return gen
}

// polyMul convolves two MSB-first polynomials.
func polyMul(a, b []byte) []byte {
	out := make([]byte, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		for j, bv := range b {
			out[i+j] ^= gf.Mul(av, bv)
		}
	}
	return out
}

// Encode systematically encodes data, appending nsym parity bytes.
func Encode(data []byte, nsym int) []byte {
	gen := GeneratorPoly(nsym)
	msg := make([]byte, len(data)+nsym)
	copy(msg, data)

	for i := 0; i < len(data); i++ {
		coef := msg[i]
		if coef == 0 {
			continue
		}
		for j, g := range gen {
			msg[i+j] ^= gf.Mul(coef, g)
		}
	}

	out := make([]byte, len(data)+nsym)
	copy(out, data)
	copy(out[len(data):], msg[len(data):])
	return out
}

// Result carries the outcome of a Decode call.
type Result struct {
	Data      []byte
	Corrected bool
	Errors    int
}

// syndromes computes S_i = codeword(alpha^i) for i in [0, nsym).
func syndromes(codeword []byte, nsym int) []byte {
	s := make([]byte, nsym)
	for i := range s {
		s[i] = gf.PolyEval(codeword, gf.Exp(i))
	}
	return s
}

// errorLocator runs Berlekamp-Massey over the syndromes, returning the
// MSB-first error locator polynomial Lambda (leading zero coefficients
// stripped).
func errorLocator(synd []byte, nsym int) []byte {
	errLoc := []byte{1}
	oldLoc := []byte{1}

	for i := 0; i < nsym; i++ {
		k := i
		delta := synd[k]
		for j := 1; j < len(errLoc); j++ {
			delta ^= gf.Mul(errLoc[len(errLoc)-1-j], synd[k-j])
		}

		oldLoc = append(oldLoc, 0)

		if delta != 0 {
			if len(oldLoc) > len(errLoc) {
				newLoc := polyScale(oldLoc, delta)
				inv, err := gf.Div(1, delta)
				if err != nil {
					// delta != 0 here, so this is unreachable.
					inv = 0
				}
				oldLoc = polyScale(errLoc, inv)
				errLoc = newLoc
			}
			errLoc = polyAdd(errLoc, polyScale(oldLoc, delta))
		}
	}

	errLoc = dropLeadingZeros(errLoc)
	return errLoc
}

func polyScale(p []byte, x byte) []byte {
	out := make([]byte, len(p))
	for i, v := range p {
		out[i] = gf.Mul(v, x)
	}
	return out
}

// polyAdd XORs two MSB-first polynomials, right-aligning the shorter one.
func polyAdd(a, b []byte) []byte {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]byte, n)
	copy(out[n-len(a):], a)
	for i, v := range b {
		out[n-len(b)+i] ^= v
	}
	return out
}

func dropLeadingZeros(p []byte) []byte {
	i := 0
	for i < len(p)-1 && p[i] == 0 {
		i++
	}
	return p[i:]
}

// chienSearch returns the byte positions (0-indexed from the start of
// codeword, length n) in error. Lambda's roots are the inverses of the
// error locators alpha^i, so the reversed polynomial is evaluated: it
// vanishes at alpha^i exactly when byte n-1-i is in error.
func chienSearch(lambda []byte, n int) []int {
	reversed := make([]byte, len(lambda))
	for i, v := range lambda {
		reversed[len(lambda)-1-i] = v
	}
	var positions []int
	for i := 0; i < n; i++ {
		if gf.PolyEval(reversed, gf.Exp(i)) == 0 {
			positions = append(positions, n-1-i)
		}
	}
	return positions
}

// derivativeEval evaluates Lambda'(x) at xi using the odd-degree term
// identity: d/dx sum lambda_j x^j = sum_{j odd} lambda_j x^{j-1}.
func derivativeEval(lambda []byte, xi byte) byte {
	deg := len(lambda) - 1
	var acc byte
	for j := 1; j <= deg; j += 2 {
		coef := lambda[deg-j]
		if coef == 0 {
			continue
		}
		acc ^= gf.Mul(coef, gf.Pow(xi, j-1))
	}
	return acc
}

// errorEvaluator computes Omega(x) = (S(x)*Lambda(x)) truncated to degree
// < nsym, with both S and the returned polynomial in ascending order
// (index j = coefficient of x^j).
func errorEvaluator(synd, lambda []byte, nsym int) []byte {
	lambdaAsc := make([]byte, len(lambda))
	for i, v := range lambda {
		lambdaAsc[len(lambda)-1-i] = v
	}

	omega := make([]byte, nsym)
	for j := 0; j < nsym; j++ {
		var acc byte
		for a := 0; a <= j && a < len(synd); a++ {
			b := j - a
			if b >= len(lambdaAsc) {
				continue
			}
			acc ^= gf.Mul(synd[a], lambdaAsc[b])
		}
		omega[j] = acc
	}
	return omega
}

func evalAscending(p []byte, x byte) byte {
	if len(p) == 0 {
		return 0
	}
	y := p[len(p)-1]
	for i := len(p) - 2; i >= 0; i-- {
		y = gf.Mul(y, x) ^ p[i]
	}
	return y
}

// Decode corrects up to nsym/2 byte errors in codeword, a data-then-parity
// layout produced by Encode, and returns the original data prefix.
func Decode(codeword []byte, dataLen, nsym int) Result {
	synd := syndromes(codeword, nsym)

	allZero := true
	for _, s := range synd {
		if s != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return Result{Data: append([]byte(nil), codeword[:dataLen]...), Corrected: true, Errors: 0}
	}

	lambda := errorLocator(synd, nsym)
	errCount := len(lambda) - 1

	positions := chienSearch(lambda, len(codeword))
	if errCount == 0 || errCount > nsym || len(positions) != errCount {
		return Result{Data: append([]byte(nil), codeword[:dataLen]...), Corrected: false, Errors: len(positions)}
	}

	omega := errorEvaluator(synd, lambda, nsym)

	corrected := append([]byte(nil), codeword...)
	for _, pos := range positions {
		// xi is the error locator found by Chien search for this
		// position: alpha^i with pos = len(codeword)-1-i. Forney's
		// formula evaluates Omega and Lambda' at its inverse.
		i := len(codeword) - 1 - pos
		xi := gf.Exp(i)
		xiInv := gf.Exp(-i)

		lambdaPrime := derivativeEval(lambda, xiInv)
		if lambdaPrime == 0 {
			return Result{Data: append([]byte(nil), codeword[:dataLen]...), Corrected: false, Errors: len(positions)}
		}

		omegaAtXi := evalAscending(omega, xiInv)
		num := gf.Mul(omegaAtXi, xi)
		y, err := gf.Div(num, lambdaPrime)
		if err != nil {
			return Result{Data: append([]byte(nil), codeword[:dataLen]...), Corrected: false, Errors: len(positions)}
		}
		if pos < len(corrected) {
			corrected[pos] ^= y
		}
	}

	return Result{Data: corrected[:dataLen], Corrected: true, Errors: len(positions)}
}
