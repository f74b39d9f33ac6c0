package analysis

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/LeonardoBeccarini/plantcare/internal/model"
	"github.com/LeonardoBeccarini/plantcare/pkg/upstream"
)

// Prompt is sent with every image.
const Prompt = "Analyze this image of a plant. 1) Identify the plant status/health. 2) Check for any pests, rot, or dehydration. 3) Give a short recommendation."

const DefaultFetchTimeout = 5 * time.Second

// Fetcher downloads the image behind a direct or indirect reference.
type Fetcher interface {
	Get(ctx context.Context, url string) (*upstream.Response, error)
}

// Model runs one inference call and returns the generated text.
type Model interface {
	Generate(ctx context.Context, prompt string, img Image) (string, error)
}

type Config struct {
	Fetch        Fetcher
	Model        Model
	FetchTimeout time.Duration
	Logger       *log.Logger
}

// Pipeline turns an image reference into a health assessment text.
// It keeps no state between calls and never retries.
type Pipeline struct {
	fetch        Fetcher
	model        Model
	fetchTimeout time.Duration
	logger       *log.Logger
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Fetch == nil || cfg.Model == nil {
		return nil, errors.New("analysis: fetcher and model are required")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Pipeline{fetch: cfg.Fetch, model: cfg.Model, fetchTimeout: cfg.FetchTimeout, logger: cfg.Logger}, nil
}

// Analyze resolves the image, encodes it and asks the model once.
// Every failure is an *Error.
func (p *Pipeline) Analyze(ctx context.Context, ref model.ImageReference) (string, error) {
	if ref.IsPlaceholder() {
		return "", invalidInput("no image yet", nil)
	}

	img, err := p.resolve(ctx, ref)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := p.model.Generate(ctx, Prompt, img)
	if err != nil {
		p.logger.Printf("analysis: inference failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return "", inferenceErr("inference request failed", err)
	}
	if text == "" {
		return "", inferenceErr("model returned no text", nil)
	}
	p.logger.Printf("analysis: done kind=%s mime=%s in %s", ref.Kind, img.MIME, time.Since(start).Round(time.Millisecond))
	return text, nil
}

func (p *Pipeline) resolve(ctx context.Context, ref model.ImageReference) (Image, error) {
	switch ref.Kind {
	case model.ImageEmbedded:
		img, err := decodeDataURL(ref.URL)
		if err != nil {
			return Image{}, invalidInput("embedded image is not valid base64", err)
		}
		return img, nil

	case model.ImageDirect, model.ImageIndirect:
		fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
		defer cancel()
		res, err := p.fetch.Get(fctx, ref.URL)
		if err != nil {
			if errors.Is(err, upstream.ErrEmptyBody) {
				return Image{}, invalidInput("image is empty", err)
			}
			return Image{}, fetchErr("image fetch failed", err)
		}
		img, err := Normalize(res.Body, res.ContentType)
		if err != nil {
			return Image{}, invalidInput("image could not be encoded", err)
		}
		return img, nil

	default:
		return Image{}, invalidInput("unsupported image reference", nil)
	}
}
