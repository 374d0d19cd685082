package shard

import "fmt"

// File describes one written shard.
type File struct {
	Index         int    `json:"index"`
	Path          string `json:"path"`
	Conversations int    `json:"conversations"`
	Messages      int    `json:"messages"`
	Bytes         int64  `json:"bytes"`
}

// FileName returns the shard file name for a 1-based index out of total.
// Indexes are zero-padded to the width of total so names sort in order.
func FileName(prefix string, index, total int) string {
	width := len(fmt.Sprint(total))
	return fmt.Sprintf("%s_part_%0*d.json", prefix, width, index)
}
