package utils

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  AI & Privacy: What's Next?  ", "ai-privacy-whats-next"},
		{"Café Crème -- Résumé", "cafe-creme-resume"},
		{"multiple---dashes   and   spaces", "multiple-dashes-and-spaces"},
		{"!!!", ""},
		{strings.Repeat("word ", 20), "word-word-word-word-word-word-word-word-word-word"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := Slugify(tt.title)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), 50)
			assert.False(t, strings.HasSuffix(got, "-"))
		})
	}
}

func TestReadingMinutes(t *testing.T) {
	assert.Equal(t, 1, ReadingMinutes(0))
	assert.Equal(t, 1, ReadingMinutes(250))
	assert.Equal(t, 2, ReadingMinutes(300))
	assert.Equal(t, 5, ReadingMinutes(1000))
}

func TestStripTagsAndTruncate(t *testing.T) {
	assert.Equal(t, "Title here", StripTags("<h1>Title <em>here</em></h1>"))
	assert.Equal(t, "héll", TruncateRunes("héllo", 4))
	assert.Equal(t, "short", TruncateRunes("short", 10))
	assert.Equal(t, 3, WordCount(" one  two\nthree "))
}

func TestRunParallel(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")

	result := RunParallel(context.Background(), 2, []ParallelFunc{
		func(ctx context.Context) error { calls.Add(1); return nil },
		func(ctx context.Context) error { calls.Add(1); return boom },
		func(ctx context.Context) error { calls.Add(1); return nil },
	})

	assert.Equal(t, int32(3), calls.Load(), "a failure does not stop the others")
	assert.Equal(t, []error{boom}, result.Errors)
}

func TestRunParallelWithResults(t *testing.T) {
	results, errs := RunParallelWithResults(context.Background(), 0, []func(ctx context.Context) (string, error){
		func(ctx context.Context) (string, error) { return "featured", nil },
		func(ctx context.Context) (string, error) { return "", errors.New("meme failed") },
	})

	assert.Equal(t, []string{"featured", ""}, results)
	assert.NoError(t, errs[0])
	assert.EqualError(t, errs[1], "meme failed")
}
