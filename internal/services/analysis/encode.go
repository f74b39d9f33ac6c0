package analysis

import (
	"bytes"
	"encoding/base64"
	"errors"
	"mime"
	"net/http"
	"regexp"
	"strings"
)

const defaultMIME = "image/jpeg"

var dataPrefix = regexp.MustCompile(`^data:(image/[A-Za-z0-9.+-]+);base64,`)

// Image is what the model receives: base64 text without any data: prefix.
type Image struct {
	MIME string
	Data string
}

// StripDataPrefix removes a leading "data:image/<subtype>;base64," and
// returns the declared MIME type with the remaining payload. ok is false
// when s has no such prefix.
func StripDataPrefix(s string) (mimeType, payload string, ok bool) {
	m := dataPrefix.FindStringSubmatchIndex(s)
	if m == nil {
		return "", s, false
	}
	return s[m[2]:m[3]], s[m[1]:], true
}

// Normalize converts a fetched body into model input. A body that is
// itself a data URL (some relays answer that way) is only stripped, raw
// bytes are base64 encoded.
func Normalize(body []byte, contentType string) (Image, error) {
	if len(body) == 0 {
		return Image{}, errors.New("empty image")
	}
	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("data:")) {
		return decodeDataURL(string(trimmed))
	}
	return Image{
		MIME: pickMIME(contentType, body),
		Data: base64.StdEncoding.EncodeToString(body),
	}, nil
}

// decodeDataURL checks that an embedded reference carries valid base64.
func decodeDataURL(s string) (Image, error) {
	mt, payload, ok := StripDataPrefix(s)
	if !ok {
		return Image{}, errors.New("not a base64 image data url")
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Image{}, errors.New("empty image")
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return Image{}, err
	}
	return Image{MIME: mt, Data: payload}, nil
}

func pickMIME(contentType string, body []byte) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	if sniff := http.DetectContentType(body); strings.HasPrefix(sniff, "image/") {
		return sniff
	}
	return defaultMIME
}
