package signals

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ST2Projects/tierscan/internal/imageio"
)

const (
	regionWindowSize    = 40
	regionSkinThreshold = 0.40
	regionMinNeighbors  = 3
)

// HeuristicNudeNetDetector is the default, self-contained implementation of
// the region NSFW detector. Like HeuristicFalconsaiScorer, it has
// no model weights; it clusters the skin mask into candidate regions (the
// same windowed-scan-plus-cluster idiom as HeuristicFaceDetector) and
// assigns each cluster a label by its vertical position in the frame, so
// the fusion and blur stages downstream have real Detections to work with
// in tests without any external model.
type HeuristicNudeNetDetector struct{}

// NewHeuristicNudeNetDetector constructs the default region detector.
func NewHeuristicNudeNetDetector() *HeuristicNudeNetDetector {
	return &HeuristicNudeNetDetector{}
}

// Detect implements NudeNetDetector.
func (d *HeuristicNudeNetDetector) Detect(_ context.Context, img image.Image) ([]Detection, error) {
	raster := imageio.ToBGRRaster(img)
	mask := SkinMask(raster)

	var candidates []Box
	var ratios []float64
	stride := regionWindowSize / 2

	for y := 0; y+regionWindowSize <= raster.Height; y += stride {
		for x := 0; x+regionWindowSize <= raster.Width; x += stride {
			ratio := regionSkinRatio(mask, raster.Width, raster.Height, x, y, x+regionWindowSize, y+regionWindowSize)
			if ratio < regionSkinThreshold {
				continue
			}
			candidates = append(candidates, Box{X1: x, Y1: y, X2: x + regionWindowSize, Y2: y + regionWindowSize})
			ratios = append(ratios, ratio)
		}
	}

	clusters, clusterRatios := clusterRegionCandidates(candidates, ratios, regionMinNeighbors)

	detections := make([]Detection, 0, len(clusters))
	for i, box := range clusters {
		label := labelForVerticalPosition(box, raster.Height)
		detections = append(detections, Detection{
			Label:      label,
			Confidence: clamp01(clusterRatios[i]),
			Box:        box,
		})
	}

	return detections, nil
}

func labelForVerticalPosition(box Box, imageHeight int) Label {
	centerY := float64(box.Y1+box.Y2) / 2
	switch {
	case centerY < float64(imageHeight)*0.35:
		return LabelFemaleBreastExposed
	case centerY < float64(imageHeight)*0.65:
		return LabelBellyExposed
	default:
		return LabelFemaleGenitaliaExposed
	}
}

func clusterRegionCandidates(boxes []Box, ratios []float64, minNeighbors int) ([]Box, []float64) {
	used := make([]bool, len(boxes))
	var clusters []Box
	var clusterRatios []float64

	for i, b := range boxes {
		if used[i] {
			continue
		}

		members := []Box{b}
		sum := ratios[i]
		used[i] = true
		for j := i + 1; j < len(boxes); j++ {
			if used[j] {
				continue
			}
			if iou(b, boxes[j]) > 0.2 {
				members = append(members, boxes[j])
				sum += ratios[j]
				used[j] = true
			}
		}

		if len(members) < minNeighbors {
			continue
		}

		clusters = append(clusters, boundingBox(members))
		clusterRatios = append(clusterRatios, sum/float64(len(members)))
	}

	return clusters, clusterRatios
}

// NSFWScore returns max{d.confidence : d.label is NSFW} or 0 if no
// detection qualifies.
func NSFWScore(detections []Detection, includeBelly bool) float64 {
	best := 0.0
	for _, d := range detections {
		if d.Label.IsNSFW(includeBelly) && d.Confidence > best {
			best = d.Confidence
		}
	}
	return best
}

// HTTPNudeNetDetector posts a base64-encoded JPEG to a configured HTTP
// endpoint and parses a list of labeled boxes, using the same
// request-building idiom as HTTPFalconsaiScorer.
type HTTPNudeNetDetector struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPNudeNetDetector constructs an HTTP-backed region detector.
func NewHTTPNudeNetDetector(endpoint string) *HTTPNudeNetDetector {
	return &HTTPNudeNetDetector{
		Endpoint: strings.TrimSuffix(endpoint, "/"),
		Client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type nudeNetRequest struct {
	Image string `json:"image"`
}

type nudeNetRawDetection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
}

type nudeNetResponse struct {
	Detections []nudeNetRawDetection `json:"detections"`
}

// Detect implements NudeNetDetector.
func (d *HTTPNudeNetDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode image for detection: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	reqBody, err := json.Marshal(nudeNetRequest{Image: encoded})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal detection request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint+"/detect", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build detection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call detection endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection endpoint returned status %d", resp.StatusCode)
	}

	var parsed nudeNetResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse detection response: %w", err)
	}

	detections := make([]Detection, 0, len(parsed.Detections))
	for _, raw := range parsed.Detections {
		label, err := NormalizeLabel(raw.Label)
		if err != nil {
			log.Warnf("dropping detection with unrecognized label: %v", err)
			continue
		}
		detections = append(detections, Detection{
			Label:      label,
			Confidence: clamp01(raw.Confidence),
			Box:        Box{X1: raw.X1, Y1: raw.Y1, X2: raw.X2, Y2: raw.Y2},
		})
	}

	return detections, nil
}
