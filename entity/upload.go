package entity

import (
	"io"
)

// UploadPayload is the file part of an upload request. Body is read once by
// the pinning gateway and is owned by the request.
type UploadPayload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// PinReceipt is produced once per successful pin.
type PinReceipt struct {
	ContentID      string         `json:"IpfsHash"`
	Size           int64          `json:"PinSize"`
	LocalDigest    string         `json:"localDigest"`
	RemoteMetadata map[string]any `json:"-"`
	PinnedBy       string         `json:"pinnedBy"`
}

// Response merges the pinning service's fields with the local ones. Local
// fields win over any remote field of the same name.
func (r *PinReceipt) Response() map[string]any {
	out := make(map[string]any, len(r.RemoteMetadata)+2)
	for k, v := range r.RemoteMetadata {
		out[k] = v
	}
	out["localDigest"] = r.LocalDigest
	out["pinnedBy"] = r.PinnedBy
	return out
}
