package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, v bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(v)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetVerbose(false)
	})
	return &buf
}

func TestQuietSuppressesDebugAndInfo(t *testing.T) {
	buf := capture(t, false)

	Debug("debug %d", 1)
	Info("info %d", 2)
	assert.Empty(t, buf.String())

	Warn("warn %d", 3)
	Error("error %d", 4)
	assert.Contains(t, buf.String(), "[WARN] warn 3")
	assert.Contains(t, buf.String(), "[ERROR] error 4")
}

func TestVerbosePrintsEverything(t *testing.T) {
	buf := capture(t, true)
	assert.True(t, IsVerbose())

	Debug("chunked %d documents", 20)
	Info("index ready")
	assert.Contains(t, buf.String(), "[DEBUG] chunked 20 documents")
	assert.Contains(t, buf.String(), "[INFO] index ready")
}
