package models

type Officer struct {
	OfficerID        string   `json:"officer_id"`
	OutletID         string   `json:"outlet_id"`
	Name             string   `json:"name,omitempty"`
	CounterNumber    *int     `json:"counter_number,omitempty"`
	AssignedServices []string `json:"assigned_services"`
	Languages        []string `json:"languages"`
	Status           string   `json:"status"`
}

const (
	OfficerOffline   = "offline"
	OfficerAvailable = "available"
	OfficerServing   = "serving"
	OfficerOnBreak   = "on_break"
)

type Outlet struct {
	OutletID     string `json:"outlet_id"`
	Name         string `json:"name"`
	CounterCount int    `json:"counter_count"`
	IsActive     bool   `json:"is_active"`
}

type Customer struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Mobile     string `json:"mobile"`
}
