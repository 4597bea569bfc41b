package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"civicdesk/internal/domain"
	"civicdesk/internal/engine"
	"civicdesk/internal/engine/auth"
)

func registerFiles(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-file",
		Method:        http.MethodPost,
		Path:          "/files",
		Summary:       "Create e-Office file",
		Tags:          []string{"files"},
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateFileRequest
	}) (*bodyOutput[domain.File], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, err := requirePermission(ctx, auth.PermFileCreate)
		if err != nil {
			return nil, err
		}
		f, err := e.CreateFile(ctx, engine.FileCreateOptions{
			Title:           input.Body.Title,
			Description:     input.Body.Description,
			Priority:        domain.Priority(input.Body.Priority),
			DepartmentID:    input.Body.DepartmentID,
			AssignedTo:      input.Body.AssignedTo,
			ReferenceNumber: input.Body.ReferenceNumber,
			ActorID:         principal.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(f), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-files",
		Method:      http.MethodGet,
		Path:        "/files",
		Summary:     "Files of a department, most recently updated first",
		Tags:        []string{"files"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		DepartmentID string `query:"department_id"`
	}) (*bodyOutput[[]domain.File], error) {
		if _, err := requirePermission(ctx, auth.PermFileRead); err != nil {
			return nil, err
		}
		items, err := e.ListFilesByDepartment(ctx, input.DepartmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-file",
		Method:      http.MethodGet,
		Path:        "/files/{id}",
		Summary:     "Get file with its history",
		Tags:        []string{"files"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*bodyOutput[domain.File], error) {
		if _, err := requirePermission(ctx, auth.PermFileRead); err != nil {
			return nil, err
		}
		f, err := e.GetFile(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(f), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-file",
		Method:      http.MethodPatch,
		Path:        "/files/{id}",
		Summary:     "Move a file or edit its details",
		Tags:        []string{"files"},
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateFileRequest
	}) (*bodyOutput[domain.File], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, err := requirePermission(ctx, auth.PermFileMove)
		if err != nil {
			return nil, err
		}
		opts := engine.FileUpdateOptions{
			ID:              input.ID,
			Notes:           input.Body.Notes,
			AssignedTo:      input.Body.AssignedTo,
			ExpectedVersion: input.Body.ExpectedVersion,
			ActorID:         principal.ActorID,
		}
		if input.Body.Status != nil {
			status := domain.FileStatus(*input.Body.Status)
			opts.Status = &status
		}
		if input.Body.Priority != nil {
			priority := domain.Priority(*input.Body.Priority)
			opts.Priority = &priority
		}
		f, err := e.UpdateFile(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(f), nil
	})
}

func registerFIRs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-fir",
		Method:        http.MethodPost,
		Path:          "/firs",
		Summary:       "Record an FIR on the ledger",
		Tags:          []string{"justice"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body SubmitFIRRequest
	}) (*bodyOutput[ReceiptResponse], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if _, err := requirePermission(ctx, auth.PermFIRSubmit); err != nil {
			return nil, err
		}
		receipt, err := e.SubmitFIR(ctx, input.Body.Description)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(ReceiptResponse{Hash: receipt.Hash}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-firs",
		Method:      http.MethodGet,
		Path:        "/firs",
		Summary:     "List FIRs from the ledger",
		Tags:        []string{"justice"},
		Errors:      []int{http.StatusForbidden, http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*bodyOutput[[]domain.LedgerEntry], error) {
		if _, err := requirePermission(ctx, auth.PermFIRRead); err != nil {
			return nil, err
		}
		items, err := e.ListFIRs(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-fir",
		Method:      http.MethodPatch,
		Path:        "/firs/{id}",
		Summary:     "Update FIR status on the ledger",
		Tags:        []string{"justice"},
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateFIRRequest
	}) (*bodyOutput[ReceiptResponse], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if _, err := requirePermission(ctx, auth.PermFIRUpdate); err != nil {
			return nil, err
		}
		receipt, err := e.UpdateFIRStatus(ctx, input.ID, input.Body.Status, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(ReceiptResponse{Hash: receipt.Hash}), nil
	})
}
