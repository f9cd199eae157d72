package kernel

import "github.com/rayforcedb/rayforce/rlib/value"

// AddTimestampI64 implements I64 + TIMESTAMP → TIMESTAMP (spec.md §4.5),
// adding a count of nanoseconds to an instant.
func AddTimestampI64(dst, ns []int64, deltaNs []int64) {
	for i := range dst {
		if ns[i] == value.NullI64 || deltaNs[i] == value.NullI64 {
			dst[i] = value.NullI64
			continue
		}
		dst[i] = ns[i] + deltaNs[i]
	}
}

// SubTimestamps implements TIMESTAMP − TIMESTAMP → I64 ns (spec.md §4.5).
func SubTimestamps(dst, a, b []int64) {
	for i := range dst {
		if a[i] == value.NullI64 || b[i] == value.NullI64 {
			dst[i] = value.NullI64
			continue
		}
		dst[i] = a[i] - b[i]
	}
}

// AddDateDays implements DATE + I64 days → DATE (spec.md §4.5). DATE is an
// i32 days-from-epoch count; the delta is an I64 day count.
func AddDateDays(dst, dates []int32, deltaDays []int64) {
	for i := range dst {
		if dates[i] == value.NullI32 || deltaDays[i] == value.NullI64 {
			dst[i] = value.NullI32
			continue
		}
		dst[i] = dates[i] + int32(deltaDays[i])
	}
}
