package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"civicdesk/internal/domain"
	"civicdesk/internal/engine"
	"civicdesk/internal/engine/auth"
	"civicdesk/internal/repo"
)

func registerGoals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-goal",
		Method:        http.MethodPost,
		Path:          "/goals",
		Summary:       "Set a department, team or individual goal",
		Tags:          []string{"goals"},
		DefaultStatus: http.StatusCreated,
		Errors:        createErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateGoalRequest
	}) (*bodyOutput[domain.Goal], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, err := requirePermission(ctx, auth.PermGoalWrite)
		if err != nil {
			return nil, err
		}
		g, err := e.CreateGoal(ctx, engine.GoalCreateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Level:       domain.GoalLevel(input.Body.Level),
			RelatedID:   input.Body.RelatedID,
			TargetValue: input.Body.TargetValue,
			Unit:        input.Body.Unit,
			Deadline:    input.Body.Deadline,
			ActorID:     principal.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(g), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-goals",
		Method:      http.MethodGet,
		Path:        "/goals",
		Summary:     "Goals, newest first",
		Tags:        []string{"goals"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Level        string `query:"level"`
		RelatedID    string `query:"related_id"`
		DepartmentID string `query:"department_id"`
	}) (*bodyOutput[[]domain.Goal], error) {
		if _, err := requirePermission(ctx, auth.PermGoalRead); err != nil {
			return nil, err
		}
		items, err := e.ListGoals(ctx, repo.GoalFilter{
			Level:        domain.GoalLevel(input.Level),
			RelatedID:    input.RelatedID,
			DepartmentID: input.DepartmentID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-goal",
		Method:      http.MethodGet,
		Path:        "/goals/{id}",
		Summary:     "Get goal",
		Tags:        []string{"goals"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*bodyOutput[domain.Goal], error) {
		if _, err := requirePermission(ctx, auth.PermGoalRead); err != nil {
			return nil, err
		}
		g, err := e.GetGoal(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(g), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-goal-progress",
		Method:      http.MethodPatch,
		Path:        "/goals/{id}/progress",
		Summary:     "Report progress on a goal",
		Tags:        []string{"goals"},
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body GoalProgressRequest
	}) (*bodyOutput[domain.Goal], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		principal, err := requirePermission(ctx, auth.PermGoalProgress)
		if err != nil {
			return nil, err
		}
		g, err := e.UpdateGoalProgress(ctx, input.ID, input.Body.Progress, input.Body.ExpectedVersion, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(g), nil
	})
}
