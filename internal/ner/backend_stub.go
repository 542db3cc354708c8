//go:build !onnx
// +build !onnx

package ner

import (
	"go.uber.org/zap"
)

// Stub implementation used when the 'onnx' build tag is not set.
func newTokenClassifierBackend(modelPath, vocabPath string, logger *zap.Logger) Backend {
	return nil
}
