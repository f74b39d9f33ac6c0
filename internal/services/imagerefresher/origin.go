package imagerefresher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/plantcare/internal/model"
	"github.com/LeonardoBeccarini/plantcare/pkg/upstream"
)

// Origin yields the reference to the most recent plant photo.
type Origin interface {
	Latest(ctx context.Context) (model.ImageReference, error)
}

// Fetcher is the HTTP side of an origin; *upstream.Upstream implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*upstream.Response, error)
}

// ===== device origin =====

// DeviceOrigin pulls a JPEG straight from the camera board and embeds it.
type DeviceOrigin struct {
	url   string
	fetch Fetcher
	now   func() time.Time
}

// NewDeviceOrigin targets http://<camera>/capture. camera may be a bare
// host/IP or a full base URL.
func NewDeviceOrigin(camera string, fetch Fetcher) *DeviceOrigin {
	base := strings.TrimRight(strings.TrimSpace(camera), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &DeviceOrigin{url: base + "/capture", fetch: fetch, now: time.Now}
}

func (o *DeviceOrigin) Latest(ctx context.Context) (model.ImageReference, error) {
	res, err := o.fetch.Get(ctx, o.url)
	if err != nil {
		return model.ImageReference{}, fmt.Errorf("camera capture: %w", err)
	}
	m := imageMIME(res.ContentType, res.Body)
	return model.ImageReference{
		Kind:      model.ImageEmbedded,
		URL:       "data:" + m + ";base64," + base64.StdEncoding.EncodeToString(res.Body),
		FetchedAt: o.now(),
	}, nil
}

// ===== script origin =====

// ScriptOrigin asks an intermediary script for the id of the newest upload
// and resolves it through the thumbnail prefix.
type ScriptOrigin struct {
	url    string
	prefix string
	fetch  Fetcher
	now    func() time.Time
}

func NewScriptOrigin(scriptURL, prefix string, fetch Fetcher) *ScriptOrigin {
	return &ScriptOrigin{url: strings.TrimSpace(scriptURL), prefix: prefix, fetch: fetch, now: time.Now}
}

func (o *ScriptOrigin) Latest(ctx context.Context) (model.ImageReference, error) {
	if o.url == "" {
		return model.ImageReference{}, errors.New("image script url not configured")
	}
	res, err := o.fetch.Get(ctx, o.url)
	if err != nil {
		return model.ImageReference{}, fmt.Errorf("image script: %w", err)
	}
	token := strings.TrimSpace(string(res.Body))
	if token == "" {
		return model.ImageReference{}, fmt.Errorf("image script: %w", upstream.ErrEmptyBody)
	}
	ref := model.ResolveIndirect(o.prefix, token)
	ref.FetchedAt = o.now()
	return ref, nil
}

// imageMIME picks the declared image type, falling back to sniffing and
// finally to image/jpeg (what the camera produces).
func imageMIME(contentType string, body []byte) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	if sniff := http.DetectContentType(body); strings.HasPrefix(sniff, "image/") {
		return sniff
	}
	return "image/jpeg"
}
