package evo

// chunkIndices splits [0, total) into consecutive index slices of at most
// size elements. Each chunk is submitted to the worker pool and fully
// drained before the next, bounding peak memory.
func chunkIndices(total, size int) [][]int {
	if total <= 0 {
		return nil
	}
	if size <= 0 {
		size = total
	}
	var out [][]int
	for start := 0; start < total; start += size {
		end := start + size
		if end > total {
			end = total
		}
		chunk := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			chunk = append(chunk, i)
		}
		out = append(out, chunk)
	}
	return out
}
