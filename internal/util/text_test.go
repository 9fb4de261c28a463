package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "hello", Excerpt("hello", 10))
	assert.Equal(t, "hel", Excerpt("hello", 3))
	assert.Equal(t, "", Excerpt("hello", 0))
	assert.Equal(t, "при", Excerpt("привет", 3))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "great product", CleanText("\ufeff  great product \n"))
	assert.Equal(t, "", CleanText("   "))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", FirstNonEmpty("", "  ", " b ", "c"))
	assert.Equal(t, "", FirstNonEmpty())
}
