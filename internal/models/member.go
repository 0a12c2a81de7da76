package models

// Member is a gym patron. Distinct from User, which is the account that
// owns the gym.
type Member struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Photo          string `json:"photo,omitempty"`
	JoinedDate     string `json:"joined_date"`
	Active         bool   `json:"active"`
	MembershipType string `json:"membership_type"`
	IsTrial        bool   `json:"is_trial"`
	TrialEndDate   string `json:"trial_end_date,omitempty"`
}

// FeeRecord is a single month's payment for a member.
type FeeRecord struct {
	Amount   float64 `json:"amount"`
	PaidDate string  `json:"paid_date"`
	Notes    string  `json:"notes"`
}

// FeeHistoryEntry is a FeeRecord together with the month it pays for.
type FeeHistoryEntry struct {
	Month string `json:"month"`
	FeeRecord
}

// PaidMember is a member enriched with the fee paid for a given month.
type PaidMember struct {
	Member
	LastPaid string  `json:"last_paid"`
	Amount   float64 `json:"amount"`
}

// PaymentStatus partitions members by whether they paid for a month.
type PaymentStatus struct {
	Month  string       `json:"month"`
	Paid   []PaidMember `json:"paid"`
	Unpaid []Member     `json:"unpaid"`
}

// Class is a scheduled fitness class.
type Class struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Day        string   `json:"day"`
	Time       string   `json:"time"`
	Instructor string   `json:"instructor"`
	Capacity   int      `json:"capacity"`
	Attendees  []string `json:"attendees"`
}

// Spots returns how many places are left in the class.
func (c Class) Spots() int {
	if n := c.Capacity - len(c.Attendees); n > 0 {
		return n
	}
	return 0
}

// GymDetails holds the gym profile shown on pages and documents.
type GymDetails struct {
	Name     string `json:"name"`
	Logo     string `json:"logo,omitempty"`
	Currency string `json:"currency"`
}
