package executors

import (
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// CocoLabels is the fixed 80-category label set the object detector
// recognizes, in class-index order.
var CocoLabels = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// ObjectDetection is one detected object in an image.
type ObjectDetection struct {
	BBox       [4]float32 // x1, y1, x2, y2 in pixel coordinates
	Confidence float32
	Label      string
}

// ObjectDetector runs a YOLO-family ONNX model whose single output is
// shaped [num_boxes, 4+1+numClasses]: box, objectness, per-class
// scores. Architecturally this mirrors FaceDetector (fixed input/output
// tensors, one Run per image, post-decode NMS) generalized from a
// fixed two-class anchor grid to a flat candidate-box list.
type ObjectDetector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
	numBoxes     int
	numClasses   int
	threshold    float32
}

// NewObjectDetector loads a YOLO-style detector expecting a 640x640
// input and producing numBoxes candidate boxes over len(CocoLabels)
// classes.
func NewObjectDetector(modelPath string, numBoxes int, threshold float32) (*ObjectDetector, error) {
	if err := requireModelFile(modelPath); err != nil {
		return nil, err
	}
	inputW, inputH := 640, 640
	numClasses := len(CocoLabels)

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("object detector: input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(numBoxes), int64(5+numClasses))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("object detector: output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"images"}, []string{"output0"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("object detector: session: %w", err)
	}

	return &ObjectDetector{
		session: session, inputTensor: inputTensor, outputTensor: outputTensor,
		inputW: inputW, inputH: inputH, numBoxes: numBoxes, numClasses: numClasses,
		threshold: threshold,
	}, nil
}

// Detect runs object detection on a preprocessed CHW image tensor,
// returning boxes scaled back to the original image dimensions.
func (d *ObjectDetector) Detect(imgData []float32, origW, origH int) ([]ObjectDetection, error) {
	copy(d.inputTensor.GetData(), imgData)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("object detector: run: %w", err)
	}

	data := d.outputTensor.GetData()
	stride := 5 + d.numClasses
	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	var dets []ObjectDetection
	for i := 0; i < d.numBoxes; i++ {
		row := data[i*stride : (i+1)*stride]
		objectness := row[4]
		bestClass, bestScore := 0, float32(0)
		for c := 0; c < d.numClasses; c++ {
			if row[5+c] > bestScore {
				bestScore = row[5+c]
				bestClass = c
			}
		}
		conf := objectness * bestScore
		if conf < d.threshold {
			continue
		}

		cx, cy, w, h := row[0], row[1], row[2], row[3]
		x1 := (cx - w/2) * scaleW
		y1 := (cy - h/2) * scaleH
		x2 := (cx + w/2) * scaleW
		y2 := (cy + h/2) * scaleH

		dets = append(dets, ObjectDetection{
			BBox:       [4]float32{clampF(x1, 0, float32(origW)), clampF(y1, 0, float32(origH)), clampF(x2, 0, float32(origW)), clampF(y2, 0, float32(origH))},
			Confidence: conf,
			Label:      CocoLabels[bestClass],
		})
	}

	return nmsObjects(dets, 0.45), nil
}

func (d *ObjectDetector) InputSize() (int, int) { return d.inputW, d.inputH }

func (d *ObjectDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
}

// nmsObjects suppresses overlapping boxes of the SAME label, unlike
// the face detector's NMS which treats all boxes as one class.
func nmsObjects(dets []ObjectDetection, iouThreshold float32) []ObjectDetection {
	if len(dets) == 0 {
		return dets
	}
	sort.Slice(dets, func(i, j int) bool { return dets[i].Confidence > dets[j].Confidence })

	keep := make([]bool, len(dets))
	for i := range keep {
		keep[i] = true
	}
	for i := range dets {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(dets); j++ {
			if !keep[j] || dets[j].Label != dets[i].Label {
				continue
			}
			if iouObjects(dets[i].BBox, dets[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var out []ObjectDetection
	for i, d := range dets {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out
}

func iouObjects(a, b [4]float32) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	inter := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))
	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
