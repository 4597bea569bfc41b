package domain

import "time"

// TimeLayout is the fixed-width UTC timestamp format stored in every *_at column.
// Fixed width keeps lexical and chronological order identical.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

type GrievanceStatus string

const (
	GrievancePending    GrievanceStatus = "Pending"
	GrievanceInProgress GrievanceStatus = "In Progress"
	GrievanceResolved   GrievanceStatus = "Resolved"
	GrievanceRejected   GrievanceStatus = "Rejected"
)

// Closed reports whether the status is one of the closing states.
func (s GrievanceStatus) Closed() bool {
	return s == GrievanceResolved || s == GrievanceRejected
}

func (s GrievanceStatus) Valid() bool {
	switch s {
	case GrievancePending, GrievanceInProgress, GrievanceResolved, GrievanceRejected:
		return true
	}
	return false
}

type FileStatus string

const (
	FileDraft           FileStatus = "Draft"
	FileInReview        FileStatus = "In Review"
	FilePendingApproval FileStatus = "Pending Approval"
	FileApproved        FileStatus = "Approved"
	FileRejected        FileStatus = "Rejected"
)

func (s FileStatus) Valid() bool {
	switch s {
	case FileDraft, FileInReview, FilePendingApproval, FileApproved, FileRejected:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// GoalLevel says what a goal's RelatedID points at.
type GoalLevel string

const (
	GoalOrganization GoalLevel = "Organization"
	GoalTeam         GoalLevel = "Team"
	GoalIndividual   GoalLevel = "Individual"
)

func (l GoalLevel) Valid() bool {
	switch l {
	case GoalOrganization, GoalTeam, GoalIndividual:
		return true
	}
	return false
}

type GoalStatus string

const (
	GoalPending    GoalStatus = "Pending"
	GoalInProgress GoalStatus = "In Progress"
	GoalCompleted  GoalStatus = "Completed"
	// GoalOverdue is accepted in stored data but no operation sets it.
	GoalOverdue GoalStatus = "Overdue"
)

// Goal is a measurable target for a department, team or employee.
type Goal struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Level        GoalLevel  `json:"level"`
	RelatedID    string     `json:"related_id"`
	DepartmentID string     `json:"department_id"`
	TargetValue  float64    `json:"target_value"`
	CurrentValue float64    `json:"current_value"`
	Unit         string     `json:"unit"`
	Deadline     *string    `json:"deadline,omitempty" format:"date-time"`
	Status       GoalStatus `json:"status"`
	CreatedAt    string     `json:"created_at" format:"date-time"`
	UpdatedAt    string     `json:"updated_at" format:"date-time"`
	Version      int64      `json:"version"`
}

type Grievance struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	DepartmentID    string          `json:"department_id"`
	RaisedBy        string          `json:"raised_by"`
	AddressedTo     *string         `json:"addressed_to,omitempty"`
	Status          GrievanceStatus `json:"status"`
	ResolutionNotes *string         `json:"resolution_notes,omitempty"`
	IsAnonymous     bool            `json:"is_anonymous"`
	ReopenedCount   int             `json:"reopened_count"`
	CanReopen       bool            `json:"can_reopen"`
	ClosedAt        *string         `json:"closed_at,omitempty" format:"date-time"`
	CreatedAt       string          `json:"created_at" format:"date-time"`
	UpdatedAt       string          `json:"updated_at" format:"date-time"`
	Version         int64           `json:"version"`
}

type File struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	ReferenceNumber string         `json:"reference_number"`
	DepartmentID    string         `json:"department_id"`
	Status          FileStatus     `json:"status"`
	Priority        Priority       `json:"priority"`
	AssignedTo      string         `json:"assigned_to,omitempty"`
	Description     string         `json:"description,omitempty"`
	History         []HistoryEntry `json:"history"`
	CreatedAt       string         `json:"created_at" format:"date-time"`
	UpdatedAt       string         `json:"updated_at" format:"date-time"`
	Version         int64          `json:"version"`
}

// HistoryEntry is one immutable step in a file's movement trail.
type HistoryEntry struct {
	Stage     string `json:"stage"`
	Timestamp string `json:"timestamp" format:"date-time"`
	Notes     string `json:"notes"`
	UpdatedBy string `json:"updated_by"`
}

type Department struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Username    string  `json:"username,omitempty"`
	Head        string  `json:"head"`
	Budget      float64 `json:"budget"`
	Expenditure float64 `json:"expenditure"`
	Description string  `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Employee struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Role            string  `json:"role"`
	DepartmentID    string  `json:"department_id"`
	TeamID          *string `json:"team_id,omitempty"`
	Email           string  `json:"email"`
	Rank            int     `json:"rank"`
	IsPublicContact bool    `json:"is_public_contact"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
}

type Team struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	DepartmentID string   `json:"department_id"`
	Lead         string   `json:"lead"`
	Project      string   `json:"project,omitempty"`
	Members      []string `json:"members"`
	CreatedAt    string   `json:"created_at" format:"date-time"`
}

type Scheme struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	DepartmentID string `json:"department_id"`
	Active       bool   `json:"active"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Message struct {
	ID           string  `json:"id"`
	SenderID     string  `json:"sender_id"`
	SenderRole   string  `json:"sender_role" enum:"citizen,employee,admin"`
	RecipientID  string  `json:"recipient_id"`
	DepartmentID *string `json:"department_id,omitempty"`
	Content      string  `json:"content"`
	IsRead       bool    `json:"is_read"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts" format:"date-time"`
	Type         string `json:"type"`
	DepartmentID string `json:"department_id,omitempty"`
	EntityKind   string `json:"entity_kind"`
	EntityID     string `json:"entity_id,omitempty"`
	ActorID      string `json:"actor_id"`
	Payload      string `json:"payload_json"`
}

type APIKey struct {
	ID        string   `json:"id"`
	ActorID   string   `json:"actor_id"`
	Roles     []string `json:"roles"`
	Name      string   `json:"name,omitempty"`
	KeyHash   string   `json:"key_hash"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

// LedgerEntry is an FIR as reported by the ledger relay.
type LedgerEntry struct {
	ID              string `json:"id"`
	Description     string `json:"description"`
	Reporter        string `json:"reporter"`
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp" format:"date-time"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`
}

// LedgerReceipt identifies the relay transaction that carried a write.
type LedgerReceipt struct {
	Hash string `json:"hash"`
}
