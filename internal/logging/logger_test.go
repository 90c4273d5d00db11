package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	assert.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	assert.NoError(t, w.Close())
	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	assert.NoError(t, err)
	return buf.String()
}

func TestLevelGating(t *testing.T) {
	l := New(Warning)
	out := captureStdout(t, func() {
		l.Info("should not appear")
		l.Note("should not appear either")
	})
	assert.Empty(t, out)
}

func TestEmitsAtOrAboveThreshold(t *testing.T) {
	l := New(Note)
	out := captureStdout(t, func() {
		l.Note("hello %s", "world")
	})
	assert.Contains(t, out, "[NOTE] Readyset[")
	assert.Contains(t, out, "hello world")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, Info, ParseLevel("info"))
	assert.Equal(t, Note, ParseLevel("note"))
	assert.Equal(t, Warning, ParseLevel("warning"))
	assert.Equal(t, Error, ParseLevel("error"))
	assert.Equal(t, Note, ParseLevel("garbage"))
}
