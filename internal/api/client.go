package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shielder/internal/shielder"
)

// Client talks to a pool daemon. Error responses come back as *RemoteError, which matches the
// pool's sentinel errors under errors.Is.
type Client struct {
	baseURL    string
	httpClient *http.Client
	adminToken string
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.httpClient = h
	return c
}

// WithAdminToken sets the bearer token sent on admin routes.
func (c *Client) WithAdminToken(token string) *Client {
	c.adminToken = token
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, admin bool) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Code == "" {
			return &RemoteError{Status: resp.StatusCode, Code: codeInternal, Message: resp.Status}
		}
		return &RemoteError{Status: resp.StatusCode, Code: e.Code, Message: e.Error, LeafIndex: e.LeafIndex}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) CurrentRoot(ctx context.Context) (RootResponse, error) {
	var out RootResponse
	err := c.do(ctx, http.MethodGet, "/v1/root", nil, &out, false)
	return out, err
}

func (c *Client) IsHistoricalRoot(ctx context.Context, root shielder.Scalar) (bool, error) {
	var out RootStatusResponse
	err := c.do(ctx, http.MethodGet, "/v1/roots/"+root.String(), nil, &out, false)
	return out.Known, err
}

// MerklePath returns the path of leaf and the root it leads to.
func (c *Client) MerklePath(ctx context.Context, leaf uint32) (shielder.MerklePath, shielder.Scalar, error) {
	var out PathResponse
	err := c.do(ctx, http.MethodGet, "/v1/path/"+strconv.FormatUint(uint64(leaf), 10), nil, &out, false)
	return out.Path, out.Root, err
}

func (c *Client) ContainsNullifier(ctx context.Context, n shielder.Scalar) (bool, error) {
	var out NullifierResponse
	err := c.do(ctx, http.MethodGet, "/v1/nullifiers/"+n.String(), nil, &out, false)
	return out.Used, err
}

func (c *Client) RegisteredTokens(ctx context.Context) ([]shielder.Scalar, error) {
	var out TokensResponse
	err := c.do(ctx, http.MethodGet, "/v1/tokens", nil, &out, false)
	return out.Tokens, err
}

func (c *Client) Register(ctx context.Context, st shielder.CreationStatement, proof []byte) (uint32, error) {
	var out LeafResponse
	err := c.do(ctx, http.MethodPost, "/v1/notes", RegisterRequest{NewNote: st.NewNote, Tokens: st.Tokens, Proof: proof}, &out, false)
	return out.LeafIndex, err
}

func (c *Client) Update(ctx context.Context, st shielder.UpdateStatement, proof []byte) (uint32, error) {
	req := UpdateRequest{Op: st.Op, NewNote: st.NewNote, MerkleRoot: st.MerkleRoot, OldNullifier: st.OldNullifier, Proof: proof}
	var out LeafResponse
	err := c.do(ctx, http.MethodPost, "/v1/notes/update", req, &out, false)
	var re *RemoteError
	if errors.As(err, &re) && re.LeafIndex != nil {
		return *re.LeafIndex, err
	}
	return out.LeafIndex, err
}

// RegisterToken needs an admin token, see WithAdminToken.
func (c *Client) RegisterToken(ctx context.Context, id shielder.Scalar) error {
	return c.do(ctx, http.MethodPost, "/v1/admin/tokens", RegisterTokenRequest{ID: id}, nil, true)
}
