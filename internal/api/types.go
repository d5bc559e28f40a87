package api

// MaskResponse describes one mask.
type MaskResponse struct {
	ID              string   `json:"id"`
	Object          string   `json:"object"`
	Capacity        int      `json:"capacity"`
	Window          int      `json:"window"`
	RequestedWindow int      `json:"requested_window"`
	Count           int      `json:"count"`
	RowSums         []int    `json:"row_sums"`
	ColSums         []int    `json:"col_sums"`
	Rows            []string `json:"rows,omitempty"`
}

// AttentionRequest runs one forward pass. Tensors are indexed
// [batch][head][position][feature].
type AttentionRequest struct {
	Capacity      int             `json:"capacity"`
	Window        int             `json:"window"`
	Query         [][][][]float32 `json:"query"`
	Key           [][][][]float32 `json:"key"`
	Value         [][][][]float32 `json:"value"`
	Probabilities bool            `json:"probabilities,omitempty"`
}

// AttentionResponse carries the attended values.
type AttentionResponse struct {
	ID            string          `json:"id"`
	Object        string          `json:"object"`
	Capacity      int             `json:"capacity"`
	Window        int             `json:"window"`
	Shape         [4]int          `json:"shape"`
	Output        [][][][]float32 `json:"output"`
	Probabilities [][][][]float32 `json:"probabilities,omitempty"`
}

// ErrorBody is the payload of every non-2xx response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names what went wrong.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
