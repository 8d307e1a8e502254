package entity

// Project belongs to one client
type Project struct {
	ID              int64         `json:"id"`
	ClientID        int64         `json:"client_id"`
	Name            string        `json:"name"`
	Status          ProjectStatus `json:"status"`
	StartDate       Date          `json:"start_date"`
	ExpectedEndDate Date          `json:"expected_end_date"`
}

// WithStatus returns a copy of the project with the given status
func (p Project) WithStatus(status ProjectStatus) Project {
	p.Status = status
	return p
}
