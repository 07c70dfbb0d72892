package executors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/gaze-engine/internal/vecmath"
)

// contextLength is the fixed token sequence length the text tower
// expects, matching the CLIP family's 77-token context window.
const contextLength = 77

// ImageEmbedder is a CLIP-style dual encoder: an image tower and a
// text tower sharing one 512-D embedding space, so a text query and a
// frame thumbnail can be compared directly by cosine similarity. This
// has no analogue in the face-recognition pipeline this package was
// built from; it is grounded on the same AdvancedSession wrapper shape
// as FaceEmbedder, generalized to two sessions and a vocabulary file.
type ImageEmbedder struct {
	visionSession *ort.AdvancedSession
	visionInput   *ort.Tensor[float32]
	visionOutput  *ort.Tensor[float32]
	visionW       int
	visionH       int

	textSession *ort.AdvancedSession
	textInput   *ort.Tensor[int64]
	textOutput  *ort.Tensor[float32]

	vocab map[string]int64
}

// NewImageEmbedder loads a CLIP-style ONNX vision tower, text tower,
// and a JSON word→id vocabulary (produced alongside the model weights)
// from dir. Expected files: image.onnx, text.onnx, vocab.json.
func NewImageEmbedder(dir string) (*ImageEmbedder, error) {
	visionPath := dir + "/image.onnx"
	textPath := dir + "/text.onnx"
	vocabPath := dir + "/vocab.json"

	if err := requireModelFile(visionPath); err != nil {
		return nil, err
	}
	if err := requireModelFile(textPath); err != nil {
		return nil, err
	}

	visionW, visionH := 224, 224
	visionInShape := ort.NewShape(1, 3, int64(visionH), int64(visionW))
	visionInput, err := ort.NewEmptyTensor[float32](visionInShape)
	if err != nil {
		return nil, fmt.Errorf("image embedder: vision input tensor: %w", err)
	}
	visionOutShape := ort.NewShape(1, int64(vecmath.Dim))
	visionOutput, err := ort.NewEmptyTensor[float32](visionOutShape)
	if err != nil {
		return nil, fmt.Errorf("image embedder: vision output tensor: %w", err)
	}
	visionSession, err := ort.NewAdvancedSession(visionPath,
		[]string{"pixel_values"}, []string{"image_embeds"},
		[]ort.Value{visionInput}, []ort.Value{visionOutput}, nil)
	if err != nil {
		return nil, fmt.Errorf("image embedder: vision session: %w", err)
	}

	textInShape := ort.NewShape(1, int64(contextLength))
	textInput, err := ort.NewEmptyTensor[int64](textInShape)
	if err != nil {
		return nil, fmt.Errorf("image embedder: text input tensor: %w", err)
	}
	textOutShape := ort.NewShape(1, int64(vecmath.Dim))
	textOutput, err := ort.NewEmptyTensor[float32](textOutShape)
	if err != nil {
		return nil, fmt.Errorf("image embedder: text output tensor: %w", err)
	}
	textSession, err := ort.NewAdvancedSession(textPath,
		[]string{"input_ids"}, []string{"text_embeds"},
		[]ort.Value{textInput}, []ort.Value{textOutput}, nil)
	if err != nil {
		return nil, fmt.Errorf("image embedder: text session: %w", err)
	}

	vocab, err := loadVocab(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("image embedder: vocab: %w", err)
	}

	return &ImageEmbedder{
		visionSession: visionSession, visionInput: visionInput, visionOutput: visionOutput,
		visionW: visionW, visionH: visionH,
		textSession: textSession, textInput: textInput, textOutput: textOutput,
		vocab: vocab,
	}, nil
}

func loadVocab(path string) (map[string]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// VisionInputSize returns the expected pixel tensor dimensions.
func (e *ImageEmbedder) VisionInputSize() (int, int) {
	return e.visionW, e.visionH
}

// EmbedImage runs the vision tower over a preprocessed CHW pixel
// tensor and returns a unit-norm 512-D embedding.
func (e *ImageEmbedder) EmbedImage(pixels []float32) ([]float32, error) {
	copy(e.visionInput.GetData(), pixels)
	if err := e.visionSession.Run(); err != nil {
		return nil, fmt.Errorf("image embedder: run vision: %w", err)
	}
	out := make([]float32, vecmath.Dim)
	copy(out, e.visionOutput.GetData())
	vecmath.Normalize(out)
	return out, nil
}

// EmbedText tokenizes text against the loaded vocabulary and runs the
// text tower, returning a unit-norm 512-D embedding in the same space
// as EmbedImage's output.
func (e *ImageEmbedder) EmbedText(text string) ([]float32, error) {
	ids := e.tokenize(text)
	copy(e.textInput.GetData(), ids)
	if err := e.textSession.Run(); err != nil {
		return nil, fmt.Errorf("image embedder: run text: %w", err)
	}
	out := make([]float32, vecmath.Dim)
	copy(out, e.textOutput.GetData())
	vecmath.Normalize(out)
	return out, nil
}

// tokenize does lowercase whitespace/punctuation splitting against the
// loaded vocabulary, bracketed by the model's start/end-of-text tokens
// and padded to the context length. Unknown words map to the
// vocabulary's "<unk>" entry.
func (e *ImageEmbedder) tokenize(text string) []int64 {
	ids := make([]int64, contextLength)
	pos := 0

	if sot, ok := e.vocab["<|startoftext|>"]; ok {
		ids[pos] = sot
		pos++
	}

	for _, word := range strings.Fields(strings.ToLower(text)) {
		if pos >= contextLength-1 {
			break
		}
		word = strings.Trim(word, ".,!?\"'()[]{}")
		if word == "" {
			continue
		}
		id, ok := e.vocab[word]
		if !ok {
			id = e.vocab["<unk>"]
		}
		ids[pos] = id
		pos++
	}

	if pos < contextLength {
		if eot, ok := e.vocab["<|endoftext|>"]; ok {
			ids[pos] = eot
		}
	}

	return ids
}

func (e *ImageEmbedder) Close() {
	for _, d := range []interface{ Destroy() }{e.visionSession, e.visionInput, e.visionOutput, e.textSession, e.textInput, e.textOutput} {
		if d != nil {
			d.Destroy()
		}
	}
}
