package models

// NamedRef is a (id, display name) pair for an expanded GLPI dropdown.
type NamedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimeTracking carries GLPI's ticket timing counters, in seconds.
type TimeTracking struct {
	Total      int `json:"total"`
	Waiting    int `json:"waiting"`
	SolveDelay int `json:"solve_delay"`
	CloseDelay int `json:"close_delay"`
}

// Ticket is the single-ticket detail payload.
type Ticket struct {
	ID           int          `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Phone        string       `json:"phone,omitempty"`
	Status       string       `json:"status"`
	Priority     string       `json:"priority"`
	Category     string       `json:"category"`
	Type         string       `json:"type"`
	Urgency      string       `json:"urgency"`
	Impact       string       `json:"impact"`
	Source       string       `json:"source"`
	Location     string       `json:"location"`
	Entity       string       `json:"entity"`
	CreatedAt    string       `json:"created_at"`
	UpdatedAt    string       `json:"updated_at"`
	DueDate      string       `json:"due_date,omitempty"`
	CloseDate    string       `json:"close_date,omitempty"`
	SolveDate    string       `json:"solve_date,omitempty"`
	Requester    NamedRef     `json:"requester"`
	Technician   NamedRef     `json:"technician"`
	Group        NamedRef     `json:"group"`
	TimeTracking TimeTracking `json:"time_tracking"`
}

// NewTicket is one row of the recent "new tickets" listing.
type NewTicket struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Requester   string `json:"requester"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	Status      string `json:"status"`
}
