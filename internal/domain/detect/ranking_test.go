package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func urls(items []ObservedURL) []string {
	out := make([]string, len(items))
	for i, o := range items {
		out[i] = o.URL
	}
	return out
}

func observed(list ...string) []ObservedURL {
	out := make([]ObservedURL, len(list))
	for i, u := range list {
		out[i] = ObservedURL{URL: u}
	}
	return out
}

func TestRank(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "empty",
			input: []string{},
			want:  []string{},
		},
		{
			name:  "master moves ahead of variants",
			input: []string{"chunk_720.m3u8", "master.m3u8"},
			want:  []string{"master.m3u8", "chunk_720.m3u8"},
		},
		{
			name:  "stable within groups",
			input: []string{"v1.m3u8", "master_a.m3u8", "v2.m3u8", "master_b.m3u8"},
			want:  []string{"master_a.m3u8", "master_b.m3u8", "v1.m3u8", "v2.m3u8"},
		},
		{
			name:  "no master keeps discovery order",
			input: []string{"c.m3u8", "a.m3u8", "b.m3u8"},
			want:  []string{"c.m3u8", "a.m3u8", "b.m3u8"},
		},
		{
			name:  "marker anywhere in url",
			input: []string{"https://x/index.m3u8", "https://masterstream.example/index.m3u8"},
			want:  []string{"https://masterstream.example/index.m3u8", "https://x/index.m3u8"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := observed(tt.input...)
			got := Rank(in)
			assert.Equal(t, tt.want, urls(got))
			assert.Equal(t, tt.input, urls(in), "input untouched")
		})
	}
}
