package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	server string
}

type session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      map[string]any `json:"user"`
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "jdue",
		Short:        "JDue command-line client",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "server base URL")

	cmd.AddCommand(
		newVersionCommand(),
		newRegisterCommand(opts),
		newLoginCommand(opts),
		newLogoutCommand(),
		newMeCommand(opts),
		newProjectsCommand(opts),
		newTasksCommand(opts),
		newNotificationsCommand(opts),
		newAdminCommand(opts),
	)
	return cmd
}

// authed returns a client carrying the stored session token.
func (o *rootOptions) authed() (*apiClient, error) {
	tok, err := loadToken()
	if err != nil {
		return nil, err
	}
	return newClient(o.server, tok), nil
}

// get runs an authenticated GET and prints the JSON result.
func (o *rootOptions) get(cmd *cobra.Command, path string) error {
	c, err := o.authed()
	if err != nil {
		return err
	}
	var out any
	if err := c.do(cmd.Context(), http.MethodGet, path, nil, &out); err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), out)
	return nil
}

func passwordOrPrompt(cmd *cobra.Command, pw string) (string, error) {
	if pw != "" {
		return pw, nil
	}
	return promptPassword(cmd.ErrOrStderr())
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jdue %s (%s)\n", version, buildDate)
		},
	}
}

func storeSession(cmd *cobra.Command, server string, s session) error {
	if err := saveToken(tokenFile{AccessToken: s.Token, ExpiresAt: s.ExpiresAt, Server: server}); err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), s.User)
	return nil
}

func newRegisterCommand(opts *rootOptions) *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}
			var s session
			body := map[string]string{"username": username, "email": email, "password": pw}
			if err := newClient(opts.server, "").do(cmd.Context(), http.MethodPost, "/api/auth/register", body, &s); err != nil {
				return err
			}
			return storeSession(cmd, opts.server, s)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var login, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email or username and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}
			body := map[string]string{"password": pw}
			if strings.Contains(login, "@") {
				body["email"] = login
			} else {
				body["username"] = login
			}
			var s session
			if err := newClient(opts.server, "").do(cmd.Context(), http.MethodPost, "/api/auth/login", body, &s); err != nil {
				return err
			}
			return storeSession(cmd, opts.server, s)
		},
	}
	cmd.Flags().StringVarP(&login, "login", "u", "", "email or username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("login")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return removeToken()
		},
	}
}

func newMeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.get(cmd, "/api/users/me")
		},
	}
}

func newProjectsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "projects", Short: "Manage projects"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List projects",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.get(cmd, "/api/projects")
			},
		},
		&cobra.Command{
			Use:   "add <name>",
			Short: "Create a project",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.authed()
				if err != nil {
					return err
				}
				var out any
				if err := c.do(cmd.Context(), http.MethodPost, "/api/projects", map[string]string{"name": args[0]}, &out); err != nil {
					return err
				}
				printJSON(cmd.OutOrStdout(), out)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rename <id> <name>",
			Short: "Rename a project",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.authed()
				if err != nil {
					return err
				}
				return c.do(cmd.Context(), http.MethodPut, "/api/projects/"+url.PathEscape(args[0]), map[string]string{"name": args[1]}, nil)
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Delete a project and its tasks",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.authed()
				if err != nil {
					return err
				}
				return c.do(cmd.Context(), http.MethodDelete, "/api/projects/"+url.PathEscape(args[0]), nil, nil)
			},
		},
	)
	return cmd
}

type taskFlags struct {
	project   string
	due       string
	priority  string
	repeat    string
	days      []int
	interval  int
	reminders []string
	labels    []string
}

// parseReminder reads "30m", "2h" or "1d", optionally prefixed with "+" for after the due date.
func parseReminder(s string) (map[string]any, error) {
	before := true
	if strings.HasPrefix(s, "+") {
		before = false
		s = s[1:]
	}
	if len(s) < 2 {
		return nil, fmt.Errorf("bad reminder %q", s)
	}
	units := map[byte]string{'m': "minutes", 'h': "hours", 'd': "days"}
	unit, ok := units[s[len(s)-1]]
	if !ok {
		return nil, fmt.Errorf("bad reminder unit in %q (want m, h or d)", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("bad reminder value in %q", s)
	}
	return map[string]any{"value": n, "unit": unit, "isBefore": before}, nil
}

func (f taskFlags) body(title string) (map[string]any, error) {
	body := map[string]any{"projectId": f.project, "title": title}
	if f.due != "" {
		body["dueDate"] = f.due
	}
	if f.priority != "" {
		body["priority"] = f.priority
	}
	switch f.repeat {
	case "":
	case "daily", "monthly":
		body["recurrence"] = map[string]any{"type": f.repeat}
	case "weekly":
		body["recurrence"] = map[string]any{"type": "weekly", "daysOfWeek": f.days}
	case "yearly":
		body["recurrence"] = map[string]any{"type": "yearly", "yearlyInterval": f.interval}
	default:
		return nil, fmt.Errorf("unknown --repeat %q", f.repeat)
	}
	reminders := make([]map[string]any, 0, len(f.reminders))
	for _, r := range f.reminders {
		rm, err := parseReminder(r)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, rm)
	}
	body["reminders"] = reminders
	if len(f.labels) > 0 {
		body["labels"] = f.labels
	}
	return body, nil
}

// firstProject picks the oldest project when --project is not given.
func firstProject(ctx context.Context, c *apiClient) (string, error) {
	var projects []struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &projects); err != nil {
		return "", err
	}
	if len(projects) == 0 {
		return "", errors.New("no projects; create one with `jdue projects add`")
	}
	return projects[0].ID, nil
}

func newTasksCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "tasks", Short: "Manage tasks"}

	var listProject string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/tasks"
			if listProject != "" {
				path += "?projectId=" + url.QueryEscape(listProject)
			}
			return opts.get(cmd, path)
		},
	}
	list.Flags().StringVar(&listProject, "project", "", "only tasks of this project")

	var tf taskFlags
	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.authed()
			if err != nil {
				return err
			}
			if tf.project == "" {
				if tf.project, err = firstProject(cmd.Context(), c); err != nil {
					return err
				}
			}
			body, err := tf.body(args[0])
			if err != nil {
				return err
			}
			var out any
			if err := c.do(cmd.Context(), http.MethodPost, "/api/tasks", body, &out); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	add.Flags().StringVar(&tf.project, "project", "", "project id (defaults to the first project)")
	add.Flags().StringVar(&tf.due, "due", "", "due date, RFC 3339 or 2006-01-02T15:04 in server time")
	add.Flags().StringVar(&tf.priority, "priority", "", "Low, Medium or High")
	add.Flags().StringVar(&tf.repeat, "repeat", "", "daily, weekly, monthly or yearly")
	add.Flags().IntSliceVar(&tf.days, "days", nil, "weekdays for --repeat weekly (0=Sunday)")
	add.Flags().IntVar(&tf.interval, "every", 1, "years between repeats for --repeat yearly")
	add.Flags().StringSliceVar(&tf.reminders, "remind", nil, "reminder offsets like 30m, 2h, 1d or +1h")
	add.Flags().StringSliceVar(&tf.labels, "label", nil, "labels")

	idCommand := func(use, short, method, suffix string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.authed()
				if err != nil {
					return err
				}
				var out any
				if err := c.do(cmd.Context(), method, "/api/tasks/"+url.PathEscape(args[0])+suffix, nil, &out); err != nil {
					return err
				}
				if out != nil {
					printJSON(cmd.OutOrStdout(), out)
				}
				return nil
			},
		}
	}

	cmd.AddCommand(
		list,
		add,
		idCommand("done", "Toggle completion (advances recurring tasks)", http.MethodPost, "/toggle"),
		idCommand("rm", "Delete a task", http.MethodDelete, ""),
	)
	return cmd
}

func newNotificationsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List unread notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.get(cmd, "/api/notifications")
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.authed()
			if err != nil {
				return err
			}
			return c.do(cmd.Context(), http.MethodPost, "/api/notifications/"+url.PathEscape(args[0])+"/read", nil, nil)
		},
	})
	return cmd
}

func newAdminCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "Administrator commands"}

	var password string
	create := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.authed()
			if err != nil {
				return err
			}
			pw, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}
			var out any
			if err := c.do(cmd.Context(), http.MethodPost, "/api/admin/users", map[string]string{"username": args[0], "password": pw}, &out); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	create.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "users",
			Short: "List accounts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.get(cmd, "/api/admin/users")
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Show user, project and task counts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.get(cmd, "/api/admin/stats")
			},
		},
		&cobra.Command{
			Use:   "status <user-id> <active|banned|deactivated>",
			Short: "Change an account status",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.authed()
				if err != nil {
					return err
				}
				return c.do(cmd.Context(), http.MethodPut, "/api/admin/users/"+url.PathEscape(args[0])+"/status", map[string]string{"status": args[1]}, nil)
			},
		},
		&cobra.Command{
			Use:   "rm-user <user-id>",
			Short: "Delete an account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.authed()
				if err != nil {
					return err
				}
				return c.do(cmd.Context(), http.MethodDelete, "/api/admin/users/"+url.PathEscape(args[0]), nil, nil)
			},
		},
		create,
	)
	return cmd
}
