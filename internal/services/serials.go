package services

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxRangeValues caps how many values a single start::end token may expand to,
// and how many values a whole batch may produce.
const MaxRangeValues = 10000

// ExpandSerialBatch turns whitespace separated tokens into serial values. A
// token is either a literal or an inclusive integer range "start::end". Any
// malformed range rejects the whole batch. A batch producing more than
// MaxRangeValues values in total is refused with serial_slots_overflow.
func ExpandSerialBatch(input string) ([]string, error) {
	var out []string
	for _, tok := range strings.Fields(input) {
		if !strings.Contains(tok, "::") {
			if len(out) == MaxRangeValues {
				return nil, batchTooLarge()
			}
			out = append(out, tok)
			continue
		}
		lo, hi, ok := strings.Cut(tok, "::")
		start, err1 := strconv.ParseInt(lo, 10, 64)
		end, err2 := strconv.ParseInt(hi, 10, 64)
		if !ok || err1 != nil || err2 != nil || start > end {
			return nil, invalid(ErrSerialBatchMalformed, map[string]string{"token": tok})
		}
		// start <= end, so the unsigned difference is exact
		span := uint64(end) - uint64(start)
		if span >= MaxRangeValues {
			return nil, invalid(ErrSerialBatchMalformed, map[string]string{"token": tok, "reason": "range_too_large"})
		}
		count := int(span) + 1
		if len(out)+count > MaxRangeValues {
			return nil, batchTooLarge()
		}
		for i := 0; i < count; i++ {
			out = append(out, strconv.FormatInt(start+int64(i), 10))
		}
	}
	return out, nil
}

func batchTooLarge() error {
	return invalid(ErrSerialSlotsOverflow, map[string]string{"reason": "batch_too_large"})
}

// FillSerialSlots expands input and writes the values, in order, into the
// empty slots. Filled slots are kept even when values are left over; the
// overflow is then reported as an error next to the updated slots. A batch
// expanding past MaxRangeValues is refused before any slot is touched.
func FillSerialSlots(slots []string, input string) ([]string, error) {
	values, err := ExpandSerialBatch(input)
	if err != nil {
		return slots, err
	}
	out := append([]string(nil), slots...)
	next := 0
	for i := range out {
		if next == len(values) {
			break
		}
		if strings.TrimSpace(out[i]) == "" {
			out[i] = values[next]
			next++
		}
	}
	if rest := len(values) - next; rest > 0 {
		return out, invalid(ErrSerialSlotsOverflow, map[string]string{"unused": strconv.Itoa(rest)})
	}
	return out, nil
}

// ValidateSerials checks one serial per unit, none blank, none repeated.
func ValidateSerials(serials []string, qty int) error {
	details := map[string]string{}
	if len(serials) != qty {
		details["count"] = fmt.Sprintf("%d/%d", len(serials), qty)
	}
	seen := make(map[string]int, len(serials))
	for i, sn := range serials {
		key := fmt.Sprintf("serial_%d", i+1)
		sn = strings.TrimSpace(sn)
		if sn == "" {
			details[key] = "required"
			continue
		}
		if prev, dup := seen[sn]; dup {
			details[key] = fmt.Sprintf("duplicate_of_%d", prev+1)
			continue
		}
		seen[sn] = i
	}
	if len(details) > 0 {
		return invalid(ErrSerialsIncomplete, details)
	}
	return nil
}

// trimSerials returns serials without surrounding whitespace.
func trimSerials(serials []string) []string {
	out := make([]string, len(serials))
	for i, sn := range serials {
		out[i] = strings.TrimSpace(sn)
	}
	return out
}

// CollectSerials lays out one slot per unit from the serials entered one by
// one, then fills the empty slots from batch.
func CollectSerials(qty int, serials []string, batch string) ([]string, error) {
	if qty < 1 {
		return nil, invalid(ErrInvalidQuantity, map[string]string{"qty": "min_1"})
	}
	slots := make([]string, max(qty, len(serials)))
	copy(slots, serials)
	if strings.TrimSpace(batch) == "" {
		return slots, nil
	}
	return FillSerialSlots(slots, batch)
}
