package indexers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	assert.Equal(t, "CRISPR in vivo", CleanText("<i>CRISPR</i>\n  in   <b>vivo</b>"))
	assert.Equal(t, "A & B", CleanText("A &amp; B"))
	assert.Equal(t, "", CleanText(""))
	assert.Equal(t, "x", CleanText("<script>alert(1)</script>x"))
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in       string
		expected int64
	}{
		{"5 MB", 5 * 1024 * 1024},
		{"549 kB", 549 * 1024},
		{"1.5 GB", 1610612736},
		{"2,5 MiB", 2621440},
		{"1024", 1024},
		{"12 bytes", 12},
		{"", 0},
		{"unknown", 0},
		{"5 XB", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseSize(tt.in))
		})
	}
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, time.Date(2023, 4, 5, 0, 0, 0, 0, time.UTC), ParseDate("2023-04-05"))
	assert.Equal(t, time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC), ParseDate("2021-01-02T03:04:05Z"))
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), ParseDate("2019"))
	assert.WithinDuration(t, time.Now().UTC(), ParseDate("not a date"), time.Minute)
	assert.WithinDuration(t, time.Now().UTC(), ParseDate(""), time.Minute)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", FirstNonEmpty("", "  ", " b ", "c"))
	assert.Equal(t, "", FirstNonEmpty())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, SplitList(" https://a.example/,\nhttps://b.example\r\n,"))
	assert.Empty(t, SplitList(" , \n"))
}
