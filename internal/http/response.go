package http

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	// StatusSuccess indicates an operation completed successfully.
	StatusSuccess Status = "success"

	// StatusError indicates an operation failed.
	StatusError Status = "error"
)

// Response represents the standard API response format.
type Response struct {
	Status   Status   `json:"status,omitempty"`
	Owner    string   `json:"owner,omitempty"`
	Topics   int      `json:"topics,omitempty"`
	Released int      `json:"released,omitempty"`
	Nodes    []string `json:"nodes,omitempty"`
	Owned    []string `json:"owned,omitempty"`
	Ensemble []string `json:"ensemble,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

func NewSuccessResponse() Response {
	return Response{Status: StatusSuccess}
}

func NewOwnerResponse(owner string) Response {
	return Response{Status: StatusSuccess, Owner: owner}
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}
