package models

// Envelope is the shape of every API response. Success responses carry
// OfficialEmail and (for operations) Data; failures carry only Error.
type Envelope struct {
	IsSuccess     bool   `json:"is_success"`
	OfficialEmail string `json:"official_email,omitempty"`
	Data          any    `json:"data,omitempty"`
	Error         string `json:"error,omitempty"`
}

func Success(officialEmail string, data any) Envelope {
	return Envelope{IsSuccess: true, OfficialEmail: officialEmail, Data: data}
}

func Failure(message string) Envelope {
	return Envelope{IsSuccess: false, Error: message}
}

// Docs is the payload of GET /bfhl.
type Docs struct {
	Message   string        `json:"message"`
	Endpoints DocsEndpoints `json:"endpoints"`
}

type DocsEndpoints struct {
	Health   string                    `json:"GET /health"`
	BFHL     string                    `json:"POST /bfhl"`
	Examples map[string]map[string]any `json:"examples"`
}
