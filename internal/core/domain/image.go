package domain

// ImageRequest asks the image service to render a plan preview.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"` // e.g. "1024x1024"
}

// Image is a rendered preview.
type Image struct {
	URL      string `json:"url,omitempty"`
	B64      string `json:"b64_json,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}
