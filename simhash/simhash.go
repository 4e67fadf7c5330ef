// Package simhash fingerprints the markup of review containers so that a
// redesign of the listing site shows up as a jump in Hamming distance
// between consecutive runs, before extraction quietly starts returning
// defaults.
package simhash

import (
	"fmt"
	"hash/fnv"
	"math/bits"
	"strconv"
)

// Fingerprint computes a 64-bit SimHash over tokens. Every token votes on
// each bit with its FNV-64a hash.
func Fingerprint(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var vector [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b are within threshold bits of each other.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// Hex renders fp as the fixed-width string carried in diagnostics.
func Hex(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

// ParseHex is the inverse of Hex.
func ParseHex(s string) (uint64, error) {
	fp, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("simhash: parse fingerprint %q: %w", s, err)
	}
	return fp, nil
}
