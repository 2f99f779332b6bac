package pinning

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/torus-agents/pin_service/config"
	"github.com/torus-agents/pin_service/entity"
)

const (
	maxResponseBytes = 1 << 20
	maxErrorBody     = 64 << 10
)

var (
	errUploadAborted = errors.New("upload aborted")
	quoteEscaper     = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// ServiceError is a response from a reachable pinning service that did not
// accept the upload.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("pinning service returned status %d: %s", e.Status, e.Body)
}

func (e *ServiceError) HTTPStatus() int {
	return e.Status
}

// pinResult is the decoded body of a successful pinFileToIPFS call.
type pinResult struct {
	Fields   map[string]any
	IpfsHash string
	PinSize  int64
	SHA256   []byte
}

// PinataClient talks to Pinata's pinFileToIPFS endpoint. One client is
// shared by all requests; its transport pools connections.
type PinataClient struct {
	endpoint   string
	apiKey     string
	secretKey  string
	cidVersion int
	httpClient *http.Client
}

func NewPinataClient(cfg config.PinataConfig) *PinataClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 32
	return &PinataClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		cidVersion: cfg.CIDVersion,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
	}
}

// PinFile streams the payload as a multipart upload. Errors are either a
// *ServiceError or a transport failure.
func (c *PinataClient) PinFile(ctx context.Context, p *entity.UploadPayload, keyvalues map[string]string) (*pinResult, error) {
	metadata, err := json.Marshal(map[string]any{"name": p.Filename, "keyvalues": keyvalues})
	if err != nil {
		return nil, err
	}
	options, err := json.Marshal(map[string]any{"cidVersion": c.cidVersion})
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	digest := sha256.New()
	done := make(chan error, 1)
	go func() {
		err := writeParts(mw, p, digest, metadata, options)
		pw.CloseWithError(err)
		done <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		pr.CloseWithError(err)
		<-done
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.secretKey)

	resp, err := c.httpClient.Do(req)
	// the transport is done with the body; unblock the writer if it is not
	pr.CloseWithError(errUploadAborted)
	writeErr := <-done
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read pinning response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServiceError{Status: resp.StatusCode, Body: truncate(body)}
	}
	if writeErr != nil {
		return nil, fmt.Errorf("upload stream interrupted: %w", writeErr)
	}

	res, err := decodePinResponse(body)
	if err != nil {
		return nil, &ServiceError{Status: resp.StatusCode, Body: fmt.Sprintf("%v: %s", err, truncate(body))}
	}
	res.SHA256 = digest.Sum(nil)
	return res, nil
}

func writeParts(mw *multipart.Writer, p *entity.UploadPayload, digest hash.Hash, metadata, options []byte) error {
	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(p.Filename)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, io.TeeReader(p.Body, digest)); err != nil {
		return err
	}
	if err := mw.WriteField("pinataMetadata", string(metadata)); err != nil {
		return err
	}
	if err := mw.WriteField("pinataOptions", string(options)); err != nil {
		return err
	}
	return mw.Close()
}

func decodePinResponse(body []byte) (*pinResult, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if fields == nil {
		return nil, errors.New("empty response")
	}

	ipfsHash, _ := fields["IpfsHash"].(string)
	if ipfsHash == "" {
		return nil, errors.New("response has no IpfsHash")
	}
	if _, err := cid.Decode(ipfsHash); err != nil {
		return nil, fmt.Errorf("invalid IpfsHash %q: %w", ipfsHash, err)
	}
	var size int64
	if n, ok := fields["PinSize"].(json.Number); ok {
		v, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("invalid PinSize: %w", err)
		}
		size = v
	}
	return &pinResult{Fields: fields, IpfsHash: ipfsHash, PinSize: size}, nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}
