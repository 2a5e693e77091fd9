package pcodec

// Inter-packet delta predictors.

// deltaOrder1 produces the field-class-aware order-1 residual of input
// against prev (same length required by the caller). Regions:
//
//	0-15    HEADER     XOR
//	16-63   SUBHEADER  subtract (mod 256)
//	64-255  BODY       XOR
//	256+    TAIL       subtract (mod 256)
func deltaOrder1(input, prev []byte) []byte {
	out := make([]byte, len(input))
	for i, b := range input {
		switch {
		case i < 16:
			out[i] = b ^ prev[i]
		case i < 64:
			out[i] = b - prev[i]
		case i < 256:
			out[i] = b ^ prev[i]
		default:
			out[i] = b - prev[i]
		}
	}
	return out
}

// undeltaOrder1 inverts deltaOrder1 given the same prev buffer.
func undeltaOrder1(residual, prev []byte) []byte {
	out := make([]byte, len(residual))
	for i, r := range residual {
		switch {
		case i < 16:
			out[i] = r ^ prev[i]
		case i < 64:
			out[i] = r + prev[i]
		case i < 256:
			out[i] = r ^ prev[i]
		default:
			out[i] = r + prev[i]
		}
	}
	return out
}

// deltaOrder2 predicts input[i] as 2*prev[i]-prev2[i] (mod 256) and returns
// the residual. Caller guarantees len(prev) ==
// len(prev2) == len(input).
func deltaOrder2(input, prev, prev2 []byte) []byte {
	out := make([]byte, len(input))
	for i, b := range input {
		pred := 2*prev[i] - prev2[i]
		out[i] = b - pred
	}
	return out
}

// undeltaOrder2 inverts deltaOrder2.
func undeltaOrder2(residual, prev, prev2 []byte) []byte {
	out := make([]byte, len(residual))
	for i, r := range residual {
		pred := 2*prev[i] - prev2[i]
		out[i] = r + pred
	}
	return out
}
