package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestDocumentState(t *testing.T) {
	assert.Equal(t, DocumentProcessing, documentState(genai.FileStateProcessing))
	assert.Equal(t, DocumentReady, documentState(genai.FileStateActive))
	assert.Equal(t, DocumentFailed, documentState(genai.FileStateFailed))
	assert.Equal(t, DocumentPending, documentState(genai.FileStateUnspecified))
}

func TestToRemoteDocument(t *testing.T) {
	doc := toRemoteDocument(&genai.File{
		Name:     "files/abc",
		URI:      "https://generativelanguage.googleapis.com/v1beta/files/abc",
		MIMEType: "application/pdf",
		State:    genai.FileStateActive,
	})

	assert.Equal(t, RemoteDocument{
		Name:     "files/abc",
		URI:      "https://generativelanguage.googleapis.com/v1beta/files/abc",
		MIMEType: "application/pdf",
		State:    DocumentReady,
	}, doc)
	assert.Equal(t, DocumentPending, toRemoteDocument(nil).State)
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", genai.APIError{Code: 503, Message: "unavailable"}, true},
		{"server error pointer", &genai.APIError{Code: 500}, true},
		{"client error", genai.APIError{Code: 400, Message: "bad request"}, false},
		{"connection reset", fmt.Errorf("upload: %w", syscall.ECONNRESET), true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"truncated response", io.ErrUnexpectedEOF, true},
		{"dial failure", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("no route to host")}, true},
		{"cancelled", context.Canceled, false},
		{"deadline", fmt.Errorf("poll: %w", context.DeadlineExceeded), false},
		{"other", errors.New("invalid api key"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientError(tt.err))
		})
	}
}

func TestClassifyRemoteError(t *testing.T) {
	wrapped := classifyRemoteError(syscall.ECONNRESET)
	assert.True(t, IsTransient(wrapped))
	assert.ErrorIs(t, wrapped, syscall.ECONNRESET)

	permanent := errors.New("permission denied")
	assert.Same(t, permanent, classifyRemoteError(permanent))
}
