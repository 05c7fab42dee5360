// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package softdriver

// encodeRLE encodes p as (count, value) byte pairs with counts in [1, 255].
func encodeRLE(p []byte) []byte {
	var out []byte
	for i := 0; i < len(p); {
		v, n := p[i], 1
		for i+n < len(p) && n < 0xff && p[i+n] == v {
			n++
		}
		out = append(out, uint8(n), v)
		i += n
	}
	return out
}

// decodeRLE decodes the output of encodeRLE into a new slice of length size.
func decodeRLE(rle []byte, size int) []byte {
	out := make([]byte, 0, size)
	for i := 0; i+1 < len(rle); i += 2 {
		for n := rle[i]; n > 0; n-- {
			out = append(out, rle[i+1])
		}
	}
	return out[:size]
}
