package pinning

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/torus-agents/pin_service/entity"
	wrapErrors "github.com/torus-agents/pin_service/errors"
)

// Gateway turns pinning service responses into receipts. It makes exactly
// one upload attempt per call.
type Gateway struct {
	client *PinataClient
}

func NewGateway(client *PinataClient) *Gateway {
	return &Gateway{client: client}
}

// PinAndStore uploads the payload and attributes the pin to pinnedBy, the
// already verified address.
func (g *Gateway) PinAndStore(ctx context.Context, p *entity.UploadPayload, pinnedBy string) (*entity.PinReceipt, error) {
	res, err := g.client.PinFile(ctx, p, map[string]string{"pinnedBy": pinnedBy})
	if err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			return nil, wrapErrors.WrapWithCode(wrapErrors.CodeUploadService, "pin file", err)
		}
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeUploadTransport, "pin file", err)
	}

	digest, err := localDigest(res.SHA256)
	if err != nil {
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeUploadTransport, "encode digest", err)
	}

	return &entity.PinReceipt{
		ContentID:      res.IpfsHash,
		Size:           res.PinSize,
		LocalDigest:    digest,
		RemoteMetadata: res.Fields,
		PinnedBy:       pinnedBy,
	}, nil
}

// localDigest expresses the sha256 of the uploaded bytes as a CIDv1 (raw).
func localDigest(sum []byte) (string, error) {
	mh, err := multihash.Encode(sum, multihash.SHA2_256)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}
