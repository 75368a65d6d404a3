// deskcli is a terminal consumer of the support-desk client core: it
// authenticates against the remote authority, manages requests and
// prints aggregation reports.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/spec-kit/support-desk/internal/authority"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/dashboard"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/lifecycle"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/sentiment"
	"github.com/spec-kit/support-desk/internal/session"
)

const usage = `usage: deskcli [flags] <command> [args]

commands:
  login <email> <password>       authenticate and persist the token
  logout                         discard the stored credential
  whoami                         show the authenticated account
  list                           list all visible requests
  list-mine                      list the caller's own requests
  list-assigned                  list requests assigned to the caller
  show <id>                      show one request with comments
  create <title> <description> <department> <priority>
  comment <id> <content...>      add a comment (scored automatically)
  status <id> <new-status>       move a request to a status
  assign <id> <technician-id>    route a request to a technician
  delete <id>                    delete a request (admin)
  stats                          dashboard metrics for the snapshot
  sentiment                      sentiment report, global and by department
`

func main() {
	baseURL := pflag.String("base-url", "", "authority base URL (overrides env)")
	tokenFile := pflag.String("token-file", "", "credential file path (overrides env)")
	pflag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *baseURL != "" {
		cfg.Authority.BaseURL = *baseURL
	}
	if *tokenFile != "" {
		cfg.Session.TokenPath = *tokenFile
	}

	logger, err := observability.NewLogger(config.LoggerConfig{Level: "warn"})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	args := pflag.Args()
	if len(args) == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	store := session.NewFileStore(cfg.Session.TokenPath)
	sess := session.New(cfg.Authority.BaseURL, cfg.Authority.Timeout(), store, logger)
	manager := lifecycle.NewManager(lifecycle.Dependencies{Session: sess, Logger: logger})

	ctx := context.Background()
	if err := run(ctx, sess, manager, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, sess *session.Session, manager *lifecycle.Manager, args []string) error {
	command, rest := args[0], args[1:]

	if command == "login" {
		if len(rest) != 2 {
			return fmt.Errorf("login requires <email> <password>")
		}
		if err := sess.Login(ctx, rest[0], rest[1]); err != nil {
			return err
		}
		return printJSON(sess.User())
	}

	if err := sess.CheckAuth(ctx); err != nil {
		return err
	}

	switch command {
	case "logout":
		sess.Logout(ctx)
		fmt.Println("logged out")
		return nil
	case "whoami":
		if !sess.IsAuthenticated() {
			return fmt.Errorf("not authenticated")
		}
		return printJSON(sess.User())
	case "list":
		requests, err := manager.ListAll(ctx)
		if err != nil {
			return err
		}
		return printJSON(requests)
	case "list-mine":
		user := sess.User()
		if user == nil {
			return fmt.Errorf("not authenticated")
		}
		requests, err := manager.ListForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		return printJSON(requests)
	case "list-assigned":
		user := sess.User()
		if user == nil {
			return fmt.Errorf("not authenticated")
		}
		requests, err := manager.ListAssignedTo(ctx, user.ID)
		if err != nil {
			return err
		}
		return printJSON(requests)
	case "show":
		if len(rest) != 1 {
			return fmt.Errorf("show requires <id>")
		}
		request, err := manager.GetByID(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(request)
	case "create":
		if len(rest) != 4 {
			return fmt.Errorf("create requires <title> <description> <department> <priority>")
		}
		priority, err := strconv.Atoi(rest[3])
		if err != nil {
			return fmt.Errorf("priority must be a number 1-5")
		}
		created, err := manager.Create(ctx, authority.RequestDraft{
			Title:       rest[0],
			Description: rest[1],
			Department:  domain.Department(rest[2]),
			Priority:    domain.Priority(priority),
		})
		if err != nil {
			return err
		}
		return printJSON(created)
	case "comment":
		if len(rest) < 2 {
			return fmt.Errorf("comment requires <id> <content>")
		}
		comment, err := manager.AddComment(ctx, rest[0], strings.Join(rest[1:], " "))
		if err != nil {
			return err
		}
		return printJSON(comment)
	case "status":
		if len(rest) != 2 {
			return fmt.Errorf("status requires <id> <new-status>")
		}
		updated, err := manager.UpdateStatus(ctx, rest[0], domain.RequestStatus(rest[1]))
		if err != nil {
			return err
		}
		return printJSON(updated)
	case "assign":
		if len(rest) != 2 {
			return fmt.Errorf("assign requires <id> <technician-id>")
		}
		updated, err := manager.Assign(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		return printJSON(updated)
	case "delete":
		if len(rest) != 1 {
			return fmt.Errorf("delete requires <id>")
		}
		if err := manager.Delete(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Println("deleted", rest[0])
		return nil
	case "stats":
		if _, err := manager.ListAll(ctx); err != nil {
			return err
		}
		return printJSON(dashboard.Compute(manager.Snapshot()))
	case "sentiment":
		if _, err := manager.ListAll(ctx); err != nil {
			return err
		}
		snapshot := manager.Snapshot()
		return printJSON(map[string]any{
			"overall":      sentiment.Aggregate(snapshot),
			"byDepartment": sentiment.ByDepartment(snapshot),
		})
	default:
		pflag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
