package models

// HealthOK is the only status the health endpoint reports.
const HealthOK = "OK"

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// IndexPage feeds the HTML template served at GET /.
type IndexPage struct {
	Title       string
	Hostname    string
	Environment string
}
