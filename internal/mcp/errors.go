// Package mcp exposes the docindex engine as a Model Context Protocol server.
package mcp

import (
	"context"
	"errors"
	"fmt"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// MCP error codes. Values below -32000 are reserved by JSON-RPC; the custom
// range starts at -32001.
const (
	ErrCodeStoreMismatch   = -32001
	ErrCodeEmbeddingFailed = -32002
	ErrCodeTimeout         = -32003
	ErrCodeFileNotFound    = -32004
	ErrCodeStoreLocked     = -32005
	ErrCodeStoreCorrupt    = -32006

	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is a protocol error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts an engine error to an MCPError. The message carries the
// DocError suggestion so clients can show it.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	var me *MCPError
	if errors.As(err, &me) {
		return me
	}
	if de, ok := docerrors.As(err); ok {
		return mapDocError(de)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

func mapDocError(de *docerrors.DocError) *MCPError {
	msg := de.Message
	if de.Suggestion != "" {
		msg = fmt.Sprintf("%s. %s", de.Message, de.Suggestion)
	}

	switch de.Code {
	case docerrors.ErrCodeModeMismatch, docerrors.ErrCodeDimensionMismatch, docerrors.ErrCodeQueryDimensionMismatch:
		return &MCPError{Code: ErrCodeStoreMismatch, Message: msg}
	case docerrors.ErrCodeEmbeddingFailed:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: msg}
	case docerrors.ErrCodeStoreLocked:
		return &MCPError{Code: ErrCodeStoreLocked, Message: msg}
	case docerrors.ErrCodeCorruptIndex, docerrors.ErrCodeFileCorrupt:
		return &MCPError{Code: ErrCodeStoreCorrupt, Message: msg}
	case docerrors.ErrCodeFileNotFound:
		return &MCPError{Code: ErrCodeFileNotFound, Message: msg}
	}

	switch de.Category {
	case docerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
	case docerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: msg}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: msg}
	}
}
