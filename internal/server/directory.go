package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"civicdesk/internal/domain"
	"civicdesk/internal/engine"
	"civicdesk/internal/engine/auth"
)

var createErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
}

func registerDirectory(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-department",
		Method:        http.MethodPost,
		Path:          "/departments",
		Summary:       "Create department",
		Tags:          []string{"directory"},
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateDepartmentRequest
	}) (*bodyOutput[domain.Department], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, err := requirePermission(ctx, auth.PermDirectoryWrite)
		if err != nil {
			return nil, err
		}
		d, err := e.CreateDepartment(ctx, domain.Department{
			Name:        input.Body.Name,
			Username:    input.Body.Username,
			Head:        input.Body.Head,
			Budget:      input.Body.Budget,
			Description: input.Body.Description,
		}, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(d), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-departments",
		Method:      http.MethodGet,
		Path:        "/departments",
		Summary:     "List departments",
		Tags:        []string{"directory"},
	}, func(ctx context.Context, _ *struct{}) (*bodyOutput[[]domain.Department], error) {
		if _, err := requirePermission(ctx, auth.PermDirectoryRead); err != nil {
			return nil, err
		}
		items, err := e.ListDepartments(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-department",
		Method:      http.MethodGet,
		Path:        "/departments/{id}",
		Summary:     "Get department",
		Tags:        []string{"directory"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*bodyOutput[domain.Department], error) {
		if _, err := requirePermission(ctx, auth.PermDirectoryRead); err != nil {
			return nil, err
		}
		d, err := e.GetDepartment(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(d), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-public-contacts",
		Method:      http.MethodGet,
		Path:        "/departments/{id}/employees/public",
		Summary:     "Public contacts of a department",
		Tags:        []string{"directory"},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*bodyOutput[[]domain.Employee], error) {
		if _, err := requirePermission(ctx, auth.PermDirectoryRead); err != nil {
			return nil, err
		}
		items, err := e.PublicContacts(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Register citizen",
		Tags:          []string{"directory"},
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest
	}) (*bodyOutput[domain.User], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, err := requirePermission(ctx, auth.PermDirectoryWrite)
		if err != nil {
			return nil, err
		}
		u, err := e.CreateUser(ctx, domain.User{
			Name:    input.Body.Name,
			Email:   input.Body.Email,
			Phone:   input.Body.Phone,
			Address: input.Body.Address,
			City:    input.Body.City,
			State:   input.Body.State,
		}, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(u), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get citizen",
		Tags:        []string{"directory"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*bodyOutput[domain.User], error) {
		if _, err := requirePermission(ctx, auth.PermDirectoryRead); err != nil {
			return nil, err
		}
		u, err := e.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(u), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-employee",
		Method:        http.MethodPost,
		Path:          "/employees",
		Summary:       "Create employee",
		Tags:          []string{"directory"},
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateEmployeeRequest
	}) (*bodyOutput[domain.Employee], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, err := requirePermission(ctx, auth.PermDirectoryWrite)
		if err != nil {
			return nil, err
		}
		emp, err := e.CreateEmployee(ctx, domain.Employee{
			Name:            input.Body.Name,
			Role:            input.Body.Role,
			DepartmentID:    input.Body.DepartmentID,
			TeamID:          input.Body.TeamID,
			Email:           input.Body.Email,
			Rank:            input.Body.Rank,
			IsPublicContact: input.Body.IsPublicContact,
		}, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(emp), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-employees",
		Method:      http.MethodGet,
		Path:        "/employees",
		Summary:     "List employees",
		Tags:        []string{"directory"},
	}, func(ctx context.Context, input *struct {
		DepartmentID string `query:"department_id"`
	}) (*bodyOutput[[]domain.Employee], error) {
		if _, err := requirePermission(ctx, auth.PermDirectoryRead); err != nil {
			return nil, err
		}
		items, err := e.ListEmployees(ctx, input.DepartmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-team",
		Method:        http.MethodPost,
		Path:          "/teams",
		Summary:       "Create team",
		Tags:          []string{"directory"},
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTeamRequest
	}) (*bodyOutput[domain.Team], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, err := requirePermission(ctx, auth.PermDirectoryWrite)
		if err != nil {
			return nil, err
		}
		t, err := e.CreateTeam(ctx, domain.Team{
			Name:         input.Body.Name,
			DepartmentID: input.Body.DepartmentID,
			Lead:         input.Body.Lead,
			Project:      input.Body.Project,
			Members:      input.Body.Members,
		}, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-teams",
		Method:      http.MethodGet,
		Path:        "/teams",
		Summary:     "List teams",
		Tags:        []string{"directory"},
	}, func(ctx context.Context, input *struct {
		DepartmentID string `query:"department_id"`
	}) (*bodyOutput[[]domain.Team], error) {
		if _, err := requirePermission(ctx, auth.PermDirectoryRead); err != nil {
			return nil, err
		}
		items, err := e.ListTeams(ctx, input.DepartmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-scheme",
		Method:        http.MethodPost,
		Path:          "/schemes",
		Summary:       "Publish scheme",
		Tags:          []string{"directory"},
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateSchemeRequest
	}) (*bodyOutput[domain.Scheme], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, err := requirePermission(ctx, auth.PermDirectoryWrite)
		if err != nil {
			return nil, err
		}
		s, err := e.CreateScheme(ctx, domain.Scheme{
			Title:        input.Body.Title,
			Description:  input.Body.Description,
			DepartmentID: input.Body.DepartmentID,
		}, input.Body.Inactive, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-schemes",
		Method:      http.MethodGet,
		Path:        "/schemes",
		Summary:     "List schemes, newest first",
		Tags:        []string{"directory"},
	}, func(ctx context.Context, input *struct {
		DepartmentID    string `query:"department_id"`
		IncludeInactive bool   `query:"include_inactive"`
	}) (*bodyOutput[[]domain.Scheme], error) {
		if _, err := requirePermission(ctx, auth.PermDirectoryRead); err != nil {
			return nil, err
		}
		items, err := e.ListSchemes(ctx, input.DepartmentID, input.IncludeInactive)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNilSlice(items)), nil
	})
}

func registerMessages(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "send-message",
		Method:        http.MethodPost,
		Path:          "/messages",
		Summary:       "Send message",
		Tags:          []string{"messages"},
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body SendMessageRequest
	}) (*bodyOutput[domain.Message], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, err := requirePermission(ctx, auth.PermMessageSend)
		if err != nil {
			return nil, err
		}
		m, err := e.SendMessage(ctx, domain.Message{
			SenderID:     principal.ActorID,
			SenderRole:   input.Body.SenderRole,
			RecipientID:  input.Body.RecipientID,
			DepartmentID: input.Body.DepartmentID,
			Content:      input.Body.Content,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(m), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "inbox",
		Method:      http.MethodGet,
		Path:        "/messages",
		Summary:     "Inbox of the authenticated actor",
		Tags:        []string{"messages"},
	}, func(ctx context.Context, _ *struct{}) (*bodyOutput[[]domain.Message], error) {
		principal, err := requirePermission(ctx, auth.PermMessageRead)
		if err != nil {
			return nil, err
		}
		items, err := e.Inbox(ctx, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "mark-message-read",
		Method:        http.MethodPatch,
		Path:          "/messages/{id}/read",
		Summary:       "Mark message read",
		Tags:          []string{"messages"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if _, err := requirePermission(ctx, auth.PermMessageRead); err != nil {
			return nil, err
		}
		if err := e.MarkMessageRead(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
