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
)

// HeuristicFalconsaiScorer is the default, self-contained implementation of
// the general NSFW scorer. It has no model weights to load; it
// estimates P(NSFW) from the overall skin-tone coverage of the frame, which
// is a crude but deterministic and dependency-free stand-in for a real
// classifier, letting the rest of the pipeline be exercised and tested
// without any external model.
type HeuristicFalconsaiScorer struct{}

// NewHeuristicFalconsaiScorer constructs the default general scorer.
func NewHeuristicFalconsaiScorer() *HeuristicFalconsaiScorer {
	return &HeuristicFalconsaiScorer{}
}

// Score implements FalconsaiScorer.
func (s *HeuristicFalconsaiScorer) Score(_ context.Context, img image.Image) (float64, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return 0, fmt.Errorf("empty image")
	}

	skin := 0
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 2 {
		for x := bounds.Min.X; x < bounds.Max.X; x += 2 {
			r, g, b, _ := img.At(x, y).RGBA()
			hh, ss, vv := rgbToHSV(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			if isSkinHSV(hh, ss, vv) {
				skin++
			}
			total++
		}
	}

	if total == 0 {
		return 0, nil
	}

	ratio := float64(skin) / float64(total)
	return clamp01(ratio * 1.8), nil
}

// HTTPFalconsaiScorer posts a base64-encoded JPEG to a configured HTTP
// endpoint and parses a {"score": float} response. It is modeled on the
// request-building idiom of an Ollama-backed classifier (base64 image,
// single POST, generous timeout), generalized from Ollama's prompt/response
// scheme to a plain scoring endpoint so it can front either an Ollama
// vision model instructed to return a bare score, or a small HTTP shim in
// front of a real Falconsai-style model.
type HTTPFalconsaiScorer struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPFalconsaiScorer constructs an HTTP-backed general scorer.
func NewHTTPFalconsaiScorer(endpoint string) *HTTPFalconsaiScorer {
	return &HTTPFalconsaiScorer{
		Endpoint: strings.TrimSuffix(endpoint, "/"),
		Client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type falconsaiScoreRequest struct {
	Image string `json:"image"`
}

type falconsaiScoreResponse struct {
	Score float64 `json:"score"`
}

// Score implements FalconsaiScorer.
func (s *HTTPFalconsaiScorer) Score(ctx context.Context, img image.Image) (float64, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return 0, fmt.Errorf("failed to encode image for scoring: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	reqBody, err := json.Marshal(falconsaiScoreRequest{Image: encoded})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal scoring request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint+"/score", bytes.NewReader(reqBody))
	if err != nil {
		return 0, fmt.Errorf("failed to build scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debugf("scoring image via %s (%d bytes encoded)", s.Endpoint, len(encoded))

	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call scoring endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("scoring endpoint returned status %d", resp.StatusCode)
	}

	var parsed falconsaiScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("failed to parse scoring response: %w", err)
	}

	return clamp01(parsed.Score), nil
}
