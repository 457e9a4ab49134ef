package transcript

// Merge joins consecutive turns of the same speaker whose gap is at most
// maxGap seconds. It is a single pass: a segment only ever merges with the
// accumulator built from its immediate predecessor, so turns of one speaker
// separated by another speaker stay apart. The input slice is not modified.
func Merge(segments []DiarizationSegment, maxGap float64) []DiarizationSegment {
	if len(segments) == 0 {
		return []DiarizationSegment{}
	}

	out := make([]DiarizationSegment, 0, len(segments))
	cur := segments[0]
	for _, s := range segments[1:] {
		if s.Speaker == cur.Speaker && s.Start-cur.End <= maxGap {
			cur.End = s.End
			continue
		}
		out = append(out, cur)
		cur = s
	}
	return append(out, cur)
}
