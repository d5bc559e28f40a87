// Package api serves masks and forward passes over HTTP for inspection and
// integration testing.
package api

import (
	"io"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/bandmask/internal/tensor"
)

type Server struct {
	provider *Provider
}

func NewServer(provider *Provider) *Server {
	return &Server{provider: provider}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/masks", s.handleGetMask)
	e.POST("/v1/attention", s.handleAttention)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetMask(c *echo.Context) error {
	capacity, err := intParam(c, "capacity")
	if err != nil {
		return writeError(c, err)
	}
	window, err := intParam(c, "window")
	if err != nil {
		return writeError(c, err)
	}
	m, err := s.provider.Mask(capacity, window)
	if err != nil {
		return writeError(c, err)
	}

	resp := MaskResponse{
		ID:              "mask_" + uuid.NewString(),
		Object:          "mask",
		Capacity:        m.Size(),
		Window:          m.Window(),
		RequestedWindow: window,
		Count:           m.Count(),
		RowSums:         m.RowSums(),
		ColSums:         m.ColSums(),
	}
	if c.QueryParam("rows") != "false" {
		resp.Rows = make([]string, m.Size())
		for i := range resp.Rows {
			row := make([]byte, m.Size())
			for j := range row {
				row[j] = '.'
				if m.At(i, j) {
					row[j] = '1'
				}
			}
			resp.Rows[i] = string(row)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAttention(c *echo.Context) error {
	req, err := decodeJSON[AttentionRequest](c.Request().Body)
	if err != nil {
		return writeError(c, newInvalidRequest("", "invalid JSON body: "+err.Error()))
	}
	q, err := tensor.FromNested(req.Query)
	if err != nil {
		return writeError(c, newInvalidRequest("query", err.Error()))
	}
	k, err := tensor.FromNested(req.Key)
	if err != nil {
		return writeError(c, newInvalidRequest("key", err.Error()))
	}
	v, err := tensor.FromNested(req.Value)
	if err != nil {
		return writeError(c, newInvalidRequest("value", err.Error()))
	}

	a, err := s.provider.Attention(req.Capacity, req.Window)
	if err != nil {
		return writeError(c, err)
	}
	out, err := a.Forward(q, k, v)
	if err != nil {
		return writeError(c, err)
	}
	resp := AttentionResponse{
		ID:       "attn_" + uuid.NewString(),
		Object:   "attention",
		Capacity: a.Capacity(),
		Window:   a.Window(),
		Shape:    out.Shape(),
		Output:   out.Nested(),
	}
	if req.Probabilities {
		probs, err := a.Probabilities(q, k)
		if err != nil {
			return writeError(c, err)
		}
		resp.Probabilities = probs.Nested()
	}
	return c.JSON(http.StatusOK, resp)
}

func intParam(c *echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, newInvalidRequest(name, name+" is required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, newInvalidRequest(name, name+" must be an integer")
	}
	return n, nil
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
