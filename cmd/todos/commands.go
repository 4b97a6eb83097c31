package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/querycache/auth"
	"github.com/unkn0wn-root/querycache/internal/app"
	"github.com/unkn0wn-root/querycache/querykey"
	"github.com/unkn0wn-root/querycache/todos"
)

func newLoginCmd(open opener) *cobra.Command {
	var c auth.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a username or email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.Password == "" {
				c.Password = password(cmd)
			}
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				u, err := a.Auth.Login(ctx, c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (id %d).\n", u.Username, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&c.Identifier, "user", "u", "", "username or email")
	cmd.Flags().StringVarP(&c.Password, "password", "p", "", "password (default: $QC_PASSWORD, then prompt)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newRegisterCmd(open opener) *cobra.Command {
	var r auth.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if r.Password == "" {
				r.Password = password(cmd)
			}
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				u, err := a.Auth.Register(ctx, r)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (id %d).\n", u.Username, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&r.Username, "username", "", "username, at least 5 characters")
	cmd.Flags().StringVar(&r.Email, "email", "", "email address")
	cmd.Flags().StringVarP(&r.Password, "password", "p", "", "password, at least 8 characters")
	return cmd
}

func newLogoutCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				if err := a.Auth.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			})
		},
	}
}

func newWhoamiCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				s, ok := a.Sessions.Session(ctx)
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d)\n", s.Username, s.UserID)
				return nil
			})
		},
	}
}

func newListCmd(open opener) *cobra.Command {
	var (
		page, size int
		sort       string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all todos, one page at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := querykey.ParseSort(sort)
			if err != nil {
				return err
			}
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				p, err := a.Todos.ListPage(ctx, page, size, dir)
				if err != nil {
					return err
				}
				printTodos(cmd.OutOrStdout(), p.Items)
				fmt.Fprintf(cmd.OutOrStdout(), "\npage %d of %d, %d total\n", p.Page, p.PageCount, p.Total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number, from 1")
	cmd.Flags().IntVar(&size, "size", 10, "page size: 10, 50 or 100")
	cmd.Flags().StringVar(&sort, "sort", "desc", "creation order: asc or desc")
	return cmd
}

func newMineCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List the todos you own",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				o, err := a.Todos.Mine(ctx)
				if err != nil {
					return err
				}
				printTodos(cmd.OutOrStdout(), o.Todos)
				return nil
			})
		},
	}
}

func newCreateCmd(open opener) *cobra.Command {
	var in todos.Input
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a todo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				t, err := a.Todos.Create(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created todo %d.\n", t.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&in.Title, "title", "t", "", "title")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "description")
	return cmd
}

func newUpdateCmd(open opener) *cobra.Command {
	var in todos.Input
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a todo's title and description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				if _, err := a.Todos.Update(ctx, id, in); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated todo %d.\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&in.Title, "title", "t", "", "title")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "description")
	return cmd
}

func newDeleteCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				if err := a.Todos.Remove(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted todo %d.\n", id)
				return nil
			})
		},
	}
}

func newSeedCmd(open opener) *cobra.Command {
	var (
		count int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create sample todos for the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("count must be positive")
			}
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			return run(cmd, open, func(ctx context.Context, a *app.App) error {
				gen := todos.SampleInput(rand.New(rand.NewPCG(seed, seed>>1)))
				res := a.Todos.Seed(ctx, count, gen)
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d, failed %d.\n", res.Created, res.Failed)
				return res.FirstErr
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 100, "number of todos")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (default: time based)")
	return cmd
}

func printTodos(w io.Writer, items []todos.Todo) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No todos.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTITLE\tDESCRIPTION")
	for _, t := range items {
		created := ""
		if !t.CreatedAt.IsZero() {
			created = t.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, created, t.Title, t.Description)
	}
	_ = tw.Flush()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// password reads $QC_PASSWORD or one line from stdin.
func password(cmd *cobra.Command) string {
	if p := os.Getenv("QC_PASSWORD"); p != "" {
		return p
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}
