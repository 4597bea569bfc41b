package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"civicdesk/internal/app"
	"civicdesk/internal/domain"
	"civicdesk/internal/engine"
	"civicdesk/internal/repo"
)

func departmentCmd() *cobra.Command {
	dept := &cobra.Command{Use: "department", Short: "Manage departments"}

	var d domain.Department
	create := &cobra.Command{
		Use:   "create",
		Short: "Create department",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.Engine.CreateDepartment(ctx, d, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	create.Flags().StringVar(&d.Name, "name", "", "department name")
	create.Flags().StringVar(&d.Username, "username", "", "login name (unique)")
	create.Flags().StringVar(&d.Head, "head", "", "head of department")
	create.Flags().Float64Var(&d.Budget, "budget", 0, "budget")
	create.Flags().StringVar(&d.Description, "description", "", "description")
	dept.AddCommand(create)

	dept.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListDepartments(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Name", "Head", "Budget", "Expenditure"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.ID, d.Name, d.Head, d.Budget, d.Expenditure})
				}
				tw.Render()
				return nil
			})
		},
	})
	return dept
}

func userCmd() *cobra.Command {
	users := &cobra.Command{Use: "user", Short: "Manage citizens"}
	var u domain.User
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a citizen",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.Engine.CreateUser(ctx, u, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	create.Flags().StringVar(&u.Name, "name", "", "name")
	create.Flags().StringVar(&u.Email, "email", "", "email (unique)")
	create.Flags().StringVar(&u.Phone, "phone", "", "phone")
	create.Flags().StringVar(&u.Address, "address", "", "address")
	create.Flags().StringVar(&u.City, "city", "", "city")
	create.Flags().StringVar(&u.State, "state", "", "state")
	users.AddCommand(create)
	return users
}

func employeeCmd() *cobra.Command {
	emps := &cobra.Command{Use: "employee", Short: "Manage employees"}

	var emp domain.Employee
	var teamID string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			emp.TeamID = optionalString(teamID)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.Engine.CreateEmployee(ctx, emp, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	create.Flags().StringVar(&emp.Name, "name", "", "name")
	create.Flags().StringVar(&emp.Role, "role", "", "job title")
	create.Flags().StringVar(&emp.DepartmentID, "department", "", "department id")
	create.Flags().StringVar(&teamID, "team", "", "team id")
	create.Flags().StringVar(&emp.Email, "email", "", "email (unique)")
	create.Flags().IntVar(&emp.Rank, "rank", 0, "rank 0-10")
	create.Flags().BoolVar(&emp.IsPublicContact, "public", false, "list as a public contact")
	emps.AddCommand(create)

	var dept string
	var publicOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List employees, highest rank first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var (
					items []domain.Employee
					err   error
				)
				if publicOnly {
					items, err = a.Engine.PublicContacts(ctx, dept)
				} else {
					items, err = a.Engine.ListEmployees(ctx, dept)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Name", "Role", "Department", "Rank", "Public"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.ID, e.Name, e.Role, e.DepartmentID, e.Rank, e.IsPublicContact})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&dept, "department", "", "department id")
	list.Flags().BoolVar(&publicOnly, "public", false, "only public contacts")
	emps.AddCommand(list)
	return emps
}

func grievanceCmd() *cobra.Command {
	g := &cobra.Command{
		Use:   "grievance",
		Short: "Manage grievances",
		Long:  "Grievances start Pending, are Resolved or Rejected by the department, and can be reopened back to Pending.",
	}
	g.AddCommand(grievanceCreateCmd())
	g.AddCommand(grievanceStatusCmd())
	g.AddCommand(grievanceReopenCmd())
	g.AddCommand(grievanceListCmd())
	g.AddCommand(grievanceQueueCmd())
	return g
}

func grievanceCreateCmd() *cobra.Command {
	var opts engine.GrievanceCreateOptions
	var addressedTo string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a grievance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.RaisedBy == "" {
				opts.RaisedBy = actorID()
			}
			opts.AddressedTo = optionalString(addressedTo)
			opts.ActorID = actorID()
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.Engine.CreateGrievance(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.DepartmentID, "department", "", "department id")
	cmd.Flags().StringVar(&opts.RaisedBy, "raised-by", "", "citizen id (defaults to --actor-id)")
	cmd.Flags().StringVar(&addressedTo, "addressed-to", "", "employee id for private routing")
	cmd.Flags().BoolVar(&opts.IsAnonymous, "anonymous", false, "hide the raiser from other viewers")
	return cmd
}

func grievanceStatusCmd() *cobra.Command {
	var status, notes string
	var expected int64
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Set status to Resolved, Rejected or Pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.GrievanceStatusOptions{
				ID:              args[0],
				Status:          domain.GrievanceStatus(status),
				ExpectedVersion: optionalVersion(cmd, expected),
				ActorID:         actorID(),
			}
			if cmd.Flags().Changed("notes") {
				opts.ResolutionNotes = &notes
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.Engine.SetGrievanceStatus(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Resolved, Rejected or Pending")
	cmd.Flags().StringVar(&notes, "notes", "", "resolution notes")
	cmd.Flags().Int64Var(&expected, "expected-version", 0, "fail unless the grievance is at this version")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func grievanceReopenCmd() *cobra.Command {
	var expected int64
	cmd := &cobra.Command{
		Use:   "reopen <id>",
		Short: "Reopen a resolved or rejected grievance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.Engine.ReopenGrievance(ctx, args[0], optionalVersion(cmd, expected), actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().Int64Var(&expected, "expected-version", 0, "fail unless the grievance is at this version")
	return cmd
}

func grievanceListCmd() *cobra.Command {
	var citizen, dept string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List grievances of a citizen or a department, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (citizen == "") == (dept == "") {
				return fmt.Errorf("exactly one of --citizen or --department is required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var (
					items []domain.Grievance
					err   error
				)
				if citizen != "" {
					items, err = a.Engine.ListGrievancesByCitizen(ctx, citizen)
				} else {
					items, err = a.Engine.ListGrievancesByDepartment(ctx, dept)
				}
				if err != nil {
					return err
				}
				return printGrievances(items)
			})
		},
	}
	cmd.Flags().StringVar(&citizen, "citizen", "", "citizen id")
	cmd.Flags().StringVar(&dept, "department", "", "department id")
	return cmd
}

func grievanceQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue <employee-id>",
		Short: "Grievances addressed to an employee or unrouted in their department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.EmployeeQueue(ctx, args[0])
				if err != nil {
					return err
				}
				return printGrievances(items)
			})
		},
	}
}

func printGrievances(items []domain.Grievance) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable(table.Row{"ID", "Title", "Status", "Department", "Reopened", "Created"})
	for _, g := range items {
		tw.AppendRow(table.Row{g.ID, g.Title, g.Status, g.DepartmentID, g.ReopenedCount, g.CreatedAt})
	}
	tw.Render()
	return nil
}

func fileCmd() *cobra.Command {
	f := &cobra.Command{
		Use:   "file",
		Short: "Manage e-Office files",
		Long:  "Files move Draft -> In Review -> Pending Approval -> Approved/Rejected; In Review and Pending Approval can step back.",
	}
	f.AddCommand(fileCreateCmd())
	f.AddCommand(fileMoveCmd())
	f.AddCommand(fileListCmd())
	f.AddCommand(fileShowCmd())
	return f
}

func fileCreateCmd() *cobra.Command {
	var opts engine.FileCreateOptions
	var priority string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Priority = domain.Priority(priority)
			opts.ActorID = actorID()
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.Engine.CreateFile(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "High, Medium or Low (default Medium)")
	cmd.Flags().StringVar(&opts.DepartmentID, "department", "", "department id")
	cmd.Flags().StringVar(&opts.AssignedTo, "assigned-to", "", "assignee")
	cmd.Flags().StringVar(&opts.ReferenceNumber, "reference", "", "reference number (generated when empty)")
	return cmd
}

func fileMoveCmd() *cobra.Command {
	var to, notes, assignedTo, priority string
	var expected int64
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a file or update its details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.FileUpdateOptions{
				ID:              args[0],
				ExpectedVersion: optionalVersion(cmd, expected),
				ActorID:         actorID(),
			}
			if to != "" {
				status := domain.FileStatus(to)
				opts.Status = &status
			}
			if cmd.Flags().Changed("notes") {
				opts.Notes = &notes
			}
			if cmd.Flags().Changed("assigned-to") {
				opts.AssignedTo = &assignedTo
			}
			if priority != "" {
				p := domain.Priority(priority)
				opts.Priority = &p
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.Engine.UpdateFile(ctx, opts)
				if err != nil {
					return err
				}
				return printFile(out)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target status")
	cmd.Flags().StringVar(&notes, "notes", "", "history notes")
	cmd.Flags().StringVar(&assignedTo, "assigned-to", "", "new assignee")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().Int64Var(&expected, "expected-version", 0, "fail unless the file is at this version")
	return cmd
}

func fileListCmd() *cobra.Command {
	var dept string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files of a department, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListFilesByDepartment(ctx, dept)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Reference", "Title", "Status", "Priority", "Assigned", "Updated"})
				for _, f := range items {
					tw.AppendRow(table.Row{f.ID, f.ReferenceNumber, f.Title, f.Status, f.Priority, f.AssignedTo, f.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dept, "department", "", "department id")
	_ = cmd.MarkFlagRequired("department")
	return cmd
}

func fileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a file and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				f, err := a.Engine.GetFile(ctx, args[0])
				if err != nil {
					return err
				}
				return printFile(f)
			})
		},
	}
}

func printFile(f domain.File) error {
	if viper.GetBool("json") {
		return printJSON(f)
	}
	fmt.Printf("%s  %s  [%s, %s]  v%d\n", f.ReferenceNumber, f.Title, f.Status, f.Priority, f.Version)
	tw := newTable(table.Row{"#", "Stage", "When", "By", "Notes"})
	for i, h := range f.History {
		tw.AppendRow(table.Row{i + 1, h.Stage, h.Timestamp, h.UpdatedBy, h.Notes})
	}
	tw.Render()
	return nil
}

func firCmd() *cobra.Command {
	fir := &cobra.Command{
		Use:   "fir",
		Short: "Justice desk: FIRs on the ledger relay",
	}

	var description string
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Record an FIR",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				receipt, err := a.Engine.SubmitFIR(ctx, description)
				if err != nil {
					return err
				}
				return printJSONOrTable(receipt)
			})
		},
	}
	submit.Flags().StringVar(&description, "description", "", "what happened")
	fir.AddCommand(submit)

	fir.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List FIRs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListFIRs(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Status", "Reporter", "Timestamp", "Description"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.ID, e.Status, e.Reporter, e.Timestamp, e.Description})
				}
				tw.Render()
				return nil
			})
		},
	})

	var status, notes string
	update := &cobra.Command{
		Use:   "status <id>",
		Short: "Update an FIR status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				receipt, err := a.Engine.UpdateFIRStatus(ctx, args[0], status, notes)
				if err != nil {
					return err
				}
				return printJSONOrTable(receipt)
			})
		},
	}
	update.Flags().StringVar(&status, "status", "", "new status")
	update.Flags().StringVar(&notes, "notes", "", "resolution notes")
	fir.AddCommand(update)
	return fir
}

func goalCmd() *cobra.Command {
	g := &cobra.Command{
		Use:   "goal",
		Short: "Manage department, team and individual goals",
		Long:  "Goals start Pending, become In Progress on the first positive report and Completed once the target is reached.",
	}

	var opts engine.GoalCreateOptions
	var level, deadline string
	create := &cobra.Command{
		Use:   "create",
		Short: "Set a goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Level = domain.GoalLevel(level)
			if deadline != "" {
				opts.Deadline = &deadline
			}
			opts.ActorID = actorID()
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.Engine.CreateGoal(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	create.Flags().StringVar(&opts.Title, "title", "", "title")
	create.Flags().StringVar(&opts.Description, "description", "", "description")
	create.Flags().StringVar(&level, "level", "", "Organization, Team or Individual")
	create.Flags().StringVar(&opts.RelatedID, "related", "", "department, team or employee id")
	create.Flags().Float64Var(&opts.TargetValue, "target", 0, "target value")
	create.Flags().StringVar(&opts.Unit, "unit", "", "unit, e.g. Files or Hours")
	create.Flags().StringVar(&deadline, "deadline", "", "RFC 3339 deadline")
	g.AddCommand(create)

	var filter repo.GoalFilter
	var listLevel string
	list := &cobra.Command{
		Use:   "list",
		Short: "List goals, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Level = domain.GoalLevel(listLevel)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListGoals(ctx, filter)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Title", "Level", "Related", "Progress", "Status", "Deadline"})
				for _, goal := range items {
					due := ""
					if goal.Deadline != nil {
						due = *goal.Deadline
					}
					progress := fmt.Sprintf("%g/%g %s", goal.CurrentValue, goal.TargetValue, goal.Unit)
					tw.AppendRow(table.Row{goal.ID, goal.Title, goal.Level, goal.RelatedID, progress, goal.Status, due})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&listLevel, "level", "", "only goals at this level")
	list.Flags().StringVar(&filter.RelatedID, "related", "", "only goals of this department, team or employee")
	list.Flags().StringVar(&filter.DepartmentID, "department", "", "only goals owned by this department")
	g.AddCommand(list)

	var value float64
	var expected int64
	progress := &cobra.Command{
		Use:   "progress <id>",
		Short: "Report the current value of a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out, err := a.Engine.UpdateGoalProgress(ctx, args[0], value, optionalVersion(cmd, expected), actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	progress.Flags().Float64Var(&value, "value", 0, "current value")
	progress.Flags().Int64Var(&expected, "expected-version", 0, "fail unless the goal is at this version")
	_ = progress.MarkFlagRequired("value")
	g.AddCommand(progress)
	return g
}
