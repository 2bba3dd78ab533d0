package model

type CertificateUploadRequest struct {
	// Image is base64 (optionally a data URI) or an http(s) URL.
	Image string `json:"image" binding:"required"`
}

type UploadResponse struct {
	URL string `json:"url"`
}
