package models

import "time"

// Rating is a client's review of a completed consultation.
type Rating struct {
	ID        int64     `json:"id"`
	QueryID   int64     `json:"query_id"`
	ClientID  int64     `json:"client_id"`
	LawyerID  int64     `json:"lawyer_id"`
	Rating    int       `json:"rating"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"created_at"`

	ClientName string `json:"client_name,omitempty"`
	LawyerName string `json:"lawyer_name,omitempty"`
	QueryTitle string `json:"query_title,omitempty"`
}
