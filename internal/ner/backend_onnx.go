//go:build onnx
// +build onnx

package ner

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"unicode"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// bioLabels is the output head of the token-classification model: BIO tags
// for the two label families the extractor keeps.
var bioLabels = []string{"O", "B-PER", "I-PER", "B-ORG", "I-ORG"}

const unkTokenID = 1

// onnxBackend implements Backend with a local ONNX token-classification
// model (via yalue/onnxruntime_go) and a word-level vocabulary tokenizer.
type onnxBackend struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	vocab      map[string]int64
	logger     *zap.Logger
	ready      bool
	mu         sync.RWMutex
}

// newTokenClassifierBackend initializes the ONNX backend. Requires build
// tag 'onnx'.
func newTokenClassifierBackend(modelPath, vocabPath string, logger *zap.Logger) Backend {
	if shlib := os.Getenv("ONNXRUNTIME_SHARED_LIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		logger.Error("ONNX Runtime environment init failed", zap.Error(err))
		return nil
	}

	vocabData, err := os.ReadFile(vocabPath)
	if err != nil {
		logger.Error("Failed to read tokenizer vocabulary", zap.Error(err), zap.String("vocab", vocabPath))
		return nil
	}
	vocab := make(map[string]int64)
	if err := json.Unmarshal(vocabData, &vocab); err != nil {
		logger.Error("Failed to parse tokenizer vocabulary", zap.Error(err), zap.String("vocab", vocabPath))
		return nil
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		logger.Error("Failed to inspect ONNX model IO", zap.Error(err), zap.String("model", modelPath))
		return nil
	}
	if len(outputsInfo) == 0 {
		logger.Error("ONNX model reports no outputs", zap.String("model", modelPath))
		return nil
	}

	preferred := []string{"input_ids", "attention_mask"}
	available := map[string]bool{}
	for _, ii := range inputsInfo {
		available[strings.ToLower(ii.Name)] = true
	}
	var inputNames []string
	for _, name := range preferred {
		if available[name] {
			inputNames = append(inputNames, name)
		}
	}
	if len(inputNames) == 0 && len(inputsInfo) > 0 {
		inputNames = append(inputNames, inputsInfo[0].Name)
	}

	sess, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputsInfo[0].Name}, nil)
	if err != nil {
		logger.Error("ONNX Runtime session creation failed", zap.Error(err), zap.String("model", modelPath))
		return nil
	}

	logger.Info("ONNX token classifier ready",
		zap.String("model", modelPath),
		zap.Strings("inputs", inputNames),
		zap.Int("vocab_size", len(vocab)),
	)
	return &onnxBackend{session: sess, inputNames: inputNames, vocab: vocab, logger: logger, ready: true}
}

type wordToken struct {
	start int
	end   int
	id    int64
}

// tokenize splits text into word tokens with byte offsets. Punctuation is
// separated so BIO spans end cleanly at word boundaries.
func (b *onnxBackend) tokenize(text string) []wordToken {
	var tokens []wordToken
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		word := strings.ToLower(text[start:end])
		id, ok := b.vocab[word]
		if !ok {
			id = unkTokenID
		}
		tokens = append(tokens, wordToken{start: start, end: end, id: id})
		start = -1
	}
	for i, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(text))
	return tokens
}

// Extract runs one inference pass and decodes BIO tags into spans.
func (b *onnxBackend) Extract(ctx context.Context, text string) ([]Span, error) {
	b.mu.RLock()
	ready := b.ready && b.session != nil
	b.mu.RUnlock()
	if !ready {
		return nil, fmt.Errorf("onnx backend not ready")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := b.tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}
	seqLen := len(tokens)

	inputIDs := make([]int64, seqLen)
	attention := make([]int64, seqLen)
	for i, t := range tokens {
		inputIDs[i] = t.id
		attention[i] = 1
	}

	shape := ort.NewShape(1, int64(seqLen))
	idsTensor, err := ort.NewTensor[int64](shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor[int64](shape, attention)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	inputs := make([]ort.Value, 0, len(b.inputNames))
	for _, name := range b.inputNames {
		if strings.Contains(strings.ToLower(name), "mask") {
			inputs = append(inputs, maskTensor)
		} else {
			inputs = append(inputs, idsTensor)
		}
	}

	outputs := make([]ort.Value, 1)
	if err := b.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx run failed: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type (want float32 tensor)")
	}
	logits := outTensor.GetData()
	outShape := outTensor.GetShape()
	if len(outShape) != 3 || int(outShape[1]) != seqLen {
		return nil, fmt.Errorf("unsupported output shape %v", outShape)
	}
	numLabels := int(outShape[2])
	if numLabels > len(bioLabels) {
		numLabels = len(bioLabels)
	}

	return decodeBIO(tokens, logits, seqLen, int(outShape[2]), numLabels), nil
}

// decodeBIO converts per-token logits into merged labeled spans. The score
// of a span is the mean softmax probability of its tokens.
func decodeBIO(tokens []wordToken, logits []float32, seqLen, stride, numLabels int) []Span {
	var spans []Span
	var cur *Span
	var curScores float64
	var curCount int

	flush := func() {
		if cur == nil {
			return
		}
		cur.Score = curScores / float64(curCount)
		spans = append(spans, *cur)
		cur = nil
	}

	for i := 0; i < seqLen; i++ {
		row := logits[i*stride : i*stride+numLabels]
		best, prob := argmaxSoftmax(row)
		tag := bioLabels[best]

		switch {
		case strings.HasPrefix(tag, "B-"):
			flush()
			cur = &Span{Start: tokens[i].start, End: tokens[i].end, Label: tag[2:]}
			curScores, curCount = prob, 1
		case strings.HasPrefix(tag, "I-") && cur != nil && cur.Label == tag[2:]:
			cur.End = tokens[i].end
			curScores += prob
			curCount++
		default:
			flush()
		}
	}
	flush()
	return spans
}

func argmaxSoftmax(row []float32) (int, float64) {
	best := 0
	for i := range row {
		if row[i] > row[best] {
			best = i
		}
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v - row[best]))
	}
	return best, 1.0 / sum
}
