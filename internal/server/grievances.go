package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"civicdesk/internal/domain"
	"civicdesk/internal/engine"
	"civicdesk/internal/engine/auth"
)

func registerGrievances(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-grievance",
		Method:        http.MethodPost,
		Path:          "/grievances",
		Summary:       "File a grievance",
		Tags:          []string{"grievances"},
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateGrievanceRequest
	}) (*bodyOutput[GrievanceResponse], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, err := requirePermission(ctx, auth.PermGrievanceCreate)
		if err != nil {
			return nil, err
		}
		raisedBy := strings.TrimSpace(input.Body.RaisedBy)
		if raisedBy == "" {
			raisedBy = principal.ActorID
		}
		g, err := e.CreateGrievance(ctx, engine.GrievanceCreateOptions{
			Title:        input.Body.Title,
			Description:  input.Body.Description,
			DepartmentID: input.Body.DepartmentID,
			RaisedBy:     raisedBy,
			AddressedTo:  input.Body.AddressedTo,
			IsAnonymous:  input.Body.IsAnonymous,
			ActorID:      principal.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(grievanceResponse(g, principal.ActorID)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-grievance",
		Method:      http.MethodGet,
		Path:        "/grievances/{id}",
		Summary:     "Get grievance",
		Tags:        []string{"grievances"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*bodyOutput[GrievanceResponse], error) {
		principal, err := requirePermission(ctx, auth.PermGrievanceRead)
		if err != nil {
			return nil, err
		}
		g, err := e.GetGrievance(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(grievanceResponse(g, principal.ActorID)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-grievance-status",
		Method:      http.MethodPatch,
		Path:        "/grievances/{id}/status",
		Summary:     "Resolve, reject or return a grievance to pending",
		Tags:        []string{"grievances"},
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body SetGrievanceStatusRequest
	}) (*bodyOutput[GrievanceResponse], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, err := requirePermission(ctx, auth.PermGrievanceResolve)
		if err != nil {
			return nil, err
		}
		g, err := e.SetGrievanceStatus(ctx, engine.GrievanceStatusOptions{
			ID:              input.ID,
			Status:          domain.GrievanceStatus(input.Body.Status),
			ResolutionNotes: input.Body.ResolutionNotes,
			ExpectedVersion: input.Body.ExpectedVersion,
			ActorID:         principal.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(grievanceResponse(g, principal.ActorID)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reopen-grievance",
		Method:      http.MethodPut,
		Path:        "/grievances/{id}/reopen",
		Summary:     "Reopen a closed grievance",
		Tags:        []string{"grievances"},
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body *ReopenGrievanceRequest
	}) (*bodyOutput[GrievanceResponse], error) {
		principal, err := requirePermission(ctx, auth.PermGrievanceReopen)
		if err != nil {
			return nil, err
		}
		var expected *int64
		if input.Body != nil {
			expected = input.Body.ExpectedVersion
		}
		g, err := e.ReopenGrievance(ctx, input.ID, expected, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(grievanceResponse(g, principal.ActorID)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-department-grievances",
		Method:      http.MethodGet,
		Path:        "/departments/{id}/grievances",
		Summary:     "Grievances of a department, newest first",
		Tags:        []string{"grievances"},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*bodyOutput[[]GrievanceResponse], error) {
		principal, err := requirePermission(ctx, auth.PermGrievanceRead)
		if err != nil {
			return nil, err
		}
		items, err := e.ListGrievancesByDepartment(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(mapGrievances(items, principal.ActorID)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-citizen-grievances",
		Method:      http.MethodGet,
		Path:        "/users/{id}/grievances",
		Summary:     "Grievances raised by a citizen, newest first",
		Tags:        []string{"grievances"},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*bodyOutput[[]GrievanceResponse], error) {
		principal, err := requirePermission(ctx, auth.PermGrievanceRead)
		if err != nil {
			return nil, err
		}
		items, err := e.ListGrievancesByCitizen(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(mapGrievances(items, principal.ActorID)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "employee-queue",
		Method:      http.MethodGet,
		Path:        "/employees/{id}/grievances",
		Summary:     "Grievances routed to an employee",
		Tags:        []string{"grievances"},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*bodyOutput[[]GrievanceResponse], error) {
		principal, err := requirePermission(ctx, auth.PermGrievanceRead)
		if err != nil {
			return nil, err
		}
		items, err := e.EmployeeQueue(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(mapGrievances(items, principal.ActorID)), nil
	})
}
