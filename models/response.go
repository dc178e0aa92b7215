package models

// APIResponse is the envelope for every /api/v1 response.
type APIResponse struct {
	// Success indicates whether the request completed without errors.
	Success bool `json:"success"`

	// Data carries the endpoint payload when Success is true.
	Data any `json:"data,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// CourseHistory is the API view of one persisted history record.
type CourseHistory struct {
	Title             string         `json:"title"`
	Type              string         `json:"type"`
	CreationDate      string         `json:"creation_date"`
	DaysSinceCreation string         `json:"days_since_creation"`
	TrainingMaterials string         `json:"training_materials"`
	Enrollments       map[string]int `json:"enrollments"`
	Completed         map[string]int `json:"completed"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"` // "healthy" or "degraded"
	Uptime  string `json:"uptime"`
	Running bool   `json:"running"`
	LastRun any    `json:"last_run,omitempty"`
	Version string `json:"version"`
}
