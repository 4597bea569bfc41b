package server

import (
	"civicdesk/internal/domain"
)

// Request payloads

type CreateDepartmentRequest struct {
	Name        string  `json:"name"`
	Username    string  `json:"username,omitempty"`
	Head        string  `json:"head"`
	Budget      float64 `json:"budget,omitempty" minimum:"0"`
	Description string  `json:"description,omitempty"`
}

type CreateUserRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
}

type CreateEmployeeRequest struct {
	Name            string  `json:"name"`
	Role            string  `json:"role"`
	DepartmentID    string  `json:"department_id"`
	TeamID          *string `json:"team_id,omitempty"`
	Email           string  `json:"email"`
	Rank            int     `json:"rank,omitempty" minimum:"0" maximum:"10"`
	IsPublicContact bool    `json:"is_public_contact,omitempty"`
}

type CreateTeamRequest struct {
	Name         string   `json:"name"`
	DepartmentID string   `json:"department_id"`
	Lead         string   `json:"lead,omitempty"`
	Project      string   `json:"project,omitempty"`
	Members      []string `json:"members,omitempty"`
}

type CreateSchemeRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	DepartmentID string `json:"department_id"`
	Inactive     bool   `json:"inactive,omitempty"`
}

type SendMessageRequest struct {
	SenderRole   string  `json:"sender_role" enum:"citizen,employee,admin"`
	RecipientID  string  `json:"recipient_id"`
	DepartmentID *string `json:"department_id,omitempty"`
	Content      string  `json:"content"`
}

type CreateGrievanceRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	DepartmentID string  `json:"department_id"`
	RaisedBy     string  `json:"raised_by,omitempty" doc:"Defaults to the authenticated actor"`
	AddressedTo  *string `json:"addressed_to,omitempty"`
	IsAnonymous  bool    `json:"is_anonymous,omitempty"`
}

type SetGrievanceStatusRequest struct {
	Status          string  `json:"status" enum:"Pending,In Progress,Resolved,Rejected"`
	ResolutionNotes *string `json:"resolution_notes,omitempty"`
	ExpectedVersion *int64  `json:"expected_version,omitempty"`
}

type ReopenGrievanceRequest struct {
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

type CreateFileRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Priority        string `json:"priority,omitempty" enum:"High,Medium,Low"`
	DepartmentID    string `json:"department_id"`
	AssignedTo      string `json:"assigned_to,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`
}

type UpdateFileRequest struct {
	Status          *string `json:"status,omitempty" enum:"Draft,In Review,Pending Approval,Approved,Rejected"`
	Notes           *string `json:"notes,omitempty"`
	AssignedTo      *string `json:"assigned_to,omitempty"`
	Priority        *string `json:"priority,omitempty" enum:"High,Medium,Low"`
	ExpectedVersion *int64  `json:"expected_version,omitempty"`
}

type SubmitFIRRequest struct {
	Description string `json:"description"`
}

type UpdateFIRRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

type DevLoginRequest struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles,omitempty"`
}

// Responses

type GrievanceResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	DepartmentID    string  `json:"department_id"`
	RaisedBy        *string `json:"raised_by,omitempty"`
	AddressedTo     *string `json:"addressed_to,omitempty"`
	Status          string  `json:"status"`
	ResolutionNotes *string `json:"resolution_notes,omitempty"`
	IsAnonymous     bool    `json:"is_anonymous"`
	ReopenedCount   int     `json:"reopened_count"`
	CanReopen       bool    `json:"can_reopen"`
	ClosedAt        *string `json:"closed_at,omitempty" format:"date-time"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
	Version         int64   `json:"version"`
}

type EventResponse struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts" format:"date-time"`
	Type         string `json:"type"`
	DepartmentID string `json:"department_id,omitempty"`
	EntityKind   string `json:"entity_kind"`
	EntityID     string `json:"entity_id,omitempty"`
	ActorID      string `json:"actor_id"`
	PayloadJSON  string `json:"payload_json"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type ReceiptResponse struct {
	Hash string `json:"hash"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Source      string   `json:"source"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// grievanceResponse hides the raiser of an anonymous grievance from everyone but the raiser.
func grievanceResponse(g domain.Grievance, viewer string) GrievanceResponse {
	resp := GrievanceResponse{
		ID:              g.ID,
		Title:           g.Title,
		Description:     g.Description,
		DepartmentID:    g.DepartmentID,
		AddressedTo:     g.AddressedTo,
		Status:          string(g.Status),
		ResolutionNotes: g.ResolutionNotes,
		IsAnonymous:     g.IsAnonymous,
		ReopenedCount:   g.ReopenedCount,
		CanReopen:       g.CanReopen,
		ClosedAt:        g.ClosedAt,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
		Version:         g.Version,
	}
	if !g.IsAnonymous || (viewer != "" && viewer == g.RaisedBy) {
		raisedBy := g.RaisedBy
		resp.RaisedBy = &raisedBy
	}
	return resp
}

func mapGrievances(items []domain.Grievance, viewer string) []GrievanceResponse {
	out := make([]GrievanceResponse, 0, len(items))
	for _, g := range items {
		out = append(out, grievanceResponse(g, viewer))
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:           e.ID,
		TS:           e.TS,
		Type:         e.Type,
		DepartmentID: e.DepartmentID,
		EntityKind:   e.EntityKind,
		EntityID:     e.EntityID,
		ActorID:      e.ActorID,
		PayloadJSON:  e.Payload,
	}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

type CreateGoalRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Level       string  `json:"level" enum:"Organization,Team,Individual"`
	RelatedID   string  `json:"related_id"`
	TargetValue float64 `json:"target_value"`
	Unit        string  `json:"unit"`
	Deadline    *string `json:"deadline,omitempty"`
}

type GoalProgressRequest struct {
	Progress        float64 `json:"progress"`
	ExpectedVersion *int64  `json:"expected_version,omitempty"`
}
