package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/node"
	"github.com/starknuts/starknuts/node/storage"
)

// HTTPClient is the default NodeClient: plain net/http GET/POST against
// the routes transport/httpapi exposes, one function per node operation,
// grounded on the teacher's wallet/client.go get/post/parse idiom.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) url(path string) string { return c.BaseURL + path }

func (c *HTTPClient) get(path string, out any) error {
	resp, err := c.HTTP.Get(c.url(path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return parse(resp, out)
}

func (c *HTTPClient) post(path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Post(c.url(path), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return parse(resp, out)
}

// parse decodes a 200 response into out, a 400 into a *cashu.Error, a
// 422 into a *cashu.ProofError, and anything else into a raw-body error.
func parse(resp *http.Response, out any) error {
	switch resp.StatusCode {
	case http.StatusOK:
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusBadRequest:
		var e cashu.Error
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			return fmt.Errorf("could not decode error response from node: %v", err)
		}
		return &e
	case http.StatusUnprocessableEntity:
		var e cashu.ProofError
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			return fmt.Errorf("could not decode proof error response from node: %v", err)
		}
		return &e
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, body)
	}
}

func (c *HTTPClient) GetNodeInfo() (node.Info, error) {
	var out node.Info
	err := c.get("/v1/info", &out)
	return out, err
}

func (c *HTTPClient) GetKeysets() ([]node.KeysetSummary, error) {
	var out []node.KeysetSummary
	err := c.get("/v1/keysets", &out)
	return out, err
}

func (c *HTTPClient) GetKeys(id *cashu.KeysetId) ([]KeysetKeys, error) {
	path := "/v1/keys"
	if id != nil {
		path += "/" + id.String()
	}
	var out []KeysetKeys
	err := c.get(path, &out)
	return out, err
}

func (c *HTTPClient) PostMintQuote(req node.MintQuoteRequest) (storage.MintQuote, error) {
	var out storage.MintQuote
	err := c.post("/v1/mint/quote/"+req.Method.String(), req, &out)
	return out, err
}

func (c *HTTPClient) GetMintQuoteState(quoteId string) (storage.MintQuote, error) {
	var out storage.MintQuote
	err := c.get("/v1/mint/quote/"+quoteId, &out)
	return out, err
}

func (c *HTTPClient) PostMint(req node.MintRequest) (cashu.BlindSignatures, error) {
	var out cashu.BlindSignatures
	err := c.post("/v1/mint/"+req.Method.String(), req, &out)
	return out, err
}

func (c *HTTPClient) PostMeltQuote(req node.MeltQuoteRequest) (storage.MeltQuote, error) {
	var out storage.MeltQuote
	err := c.post("/v1/melt/quote/"+req.Method.String(), req, &out)
	return out, err
}

func (c *HTTPClient) GetMeltQuoteState(quoteId string) (storage.MeltQuote, error) {
	var out storage.MeltQuote
	err := c.get("/v1/melt/quote/"+quoteId, &out)
	return out, err
}

func (c *HTTPClient) PostMelt(req node.MeltRequest) (node.MeltResult, error) {
	var out node.MeltResult
	err := c.post("/v1/melt/"+req.Method.String(), req, &out)
	return out, err
}

func (c *HTTPClient) PostSwap(req node.SwapRequest) (cashu.BlindSignatures, error) {
	var out cashu.BlindSignatures
	err := c.post("/v1/swap", req, &out)
	return out, err
}

func (c *HTTPClient) PostCheckState(ys []string) ([]node.YState, error) {
	var out []node.YState
	err := c.post("/v1/checkstate", map[string][]string{"Ys": ys}, &out)
	return out, err
}

func (c *HTTPClient) PostRestore(req node.RestoreRequest) (node.RestoreResponse, error) {
	var out node.RestoreResponse
	err := c.post("/v1/restore", req, &out)
	return out, err
}

func (c *HTTPClient) PostAcknowledge(route string, requestHash uint64) error {
	return c.post("/v1/acknowledge", map[string]string{
		"route":       route,
		"requestHash": strconv.FormatUint(requestHash, 10),
	}, nil)
}
