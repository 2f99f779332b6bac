package request

import (
	"errors"
	"mime/multipart"
)

// UploadAndPinReq is the multipart part of an upload. Text fields may also
// arrive as query parameters, see UploadAndPinQuery.
type UploadAndPinReq struct {
	Address  string                `form:"address"`
	Mnemonic string                `form:"mnemonic"`
	Stake    bool                  `form:"stake"`
	File     *multipart.FileHeader `form:"file" binding:"required"`
}

type UploadAndPinQuery struct {
	Address  string `form:"address"`
	Mnemonic string `form:"mnemonic"`
	Stake    *bool  `form:"stake"`
}

// Merge fills fields the form left empty from the query string.
func (r *UploadAndPinReq) Merge(q UploadAndPinQuery) {
	if r.Address == "" {
		r.Address = q.Address
	}
	if r.Mnemonic == "" {
		r.Mnemonic = q.Mnemonic
	}
	if q.Stake != nil && *q.Stake {
		r.Stake = true
	}
}

func (r *UploadAndPinReq) Validate() error {
	if r.Address == "" {
		return errors.New("address is required")
	}
	if r.Mnemonic == "" {
		return errors.New("mnemonic is required")
	}
	return nil
}
