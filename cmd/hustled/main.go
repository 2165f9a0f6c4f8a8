package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cl "hustled/internal/cli"
	"hustled/internal/config"
)

var cliCfg config.CLIConfig

func main() {
	cliCfg = config.LoadCLIFromEnv()
	apiBase := cliCfg.APIBaseURL

	root := &cobra.Command{
		Use:          "hustled",
		Short:        "Hustled economy game client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newIdentityCmd(),
		newBalanceCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newWorkCmd(&apiBase),
		newRobCmd(&apiBase),
		newRouletteCmd(&apiBase),
		newBusinessCmd(&apiBase),
		newApplicationsCmd(&apiBase),
		newAdminCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newClient resolves the acting identity from the saved identity file,
// falling back to the HUSTLED_ACTOR_ID environment.
func newClient(apiBase *string) (*cl.Client, error) {
	id, err := cl.LoadIdentity()
	if err != nil {
		id = cl.Identity{ActorID: cliCfg.ActorID, AdminToken: cliCfg.AdminToken}
	}
	if strings.TrimSpace(id.ActorID) == "" {
		return nil, fmt.Errorf("no identity set, run `hustled identity set <actor-id>` first")
	}
	c := cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"), id.ActorID)
	c.ActorName = id.Name
	c.AdminToken = id.AdminToken
	return c, nil
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 90*time.Second)
}

func newIdentityCmd() *cobra.Command {
	identity := &cobra.Command{
		Use:   "identity",
		Short: "Manage the actor the CLI acts as",
	}
	var name, adminToken string
	set := &cobra.Command{
		Use:   "set <actor-id>",
		Short: "Set the active actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := cl.Identity{ActorID: strings.TrimSpace(args[0]), Name: name, AdminToken: adminToken}
			if err := cl.SaveIdentity(id); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Acting as %s.", id.ActorID))
			return nil
		},
	}
	set.Flags().StringVar(&name, "name", "", "display name")
	set.Flags().StringVar(&adminToken, "admin-token", "", "admin token for credit commands")

	identity.AddCommand(set, &cobra.Command{
		Use:   "show",
		Short: "Show the active actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cl.LoadIdentity()
			if err != nil {
				return err
			}
			printInfo(fmt.Sprintf("actor: %s name: %s", id.ActorID, id.Name))
			return nil
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Forget the active actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.ClearIdentity()
		},
	})
	return identity
}

func newBalanceCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "bal [actor-id]",
		Short: "Show a wallet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			target := ""
			if len(args) > 0 {
				target = args[0]
			}
			out, err := client.Balance(ctx, target)
			if err != nil {
				return err
			}
			printInfo(fmt.Sprintf("wallet $%v | bank $%v | net worth $%v",
				out["balance"], out["bank"], out["net_worth"]))
			return nil
		},
	}
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Richest players by net worth",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.Leaderboard(ctx, topN)
			if err != nil {
				return err
			}
			renderLeaderboard(out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topN, "count", "n", 10, "number of rows")
	return cmd
}

func newWorkCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Run a work session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.Work(ctx)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%v You earned $%v. Balance: $%v",
				out["scenario"], out["payout"], out["balance"]))
			return nil
		},
	}
}

func newRobCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rob <actor-id>",
		Short: "Attempt a robbery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.Rob(ctx, args[0])
			if err != nil {
				return err
			}
			if success, _ := out["success"].(bool); success {
				printSuccess(fmt.Sprintf("Got away with $%v! Balance: $%v", out["amount"], out["robber_balance"]))
			} else {
				printWarn(fmt.Sprintf("Caught! Fined $%v. Balance: $%v", out["amount"], out["robber_balance"]))
			}
			return nil
		},
	}
}

func newRouletteCmd(apiBase *string) *cobra.Command {
	roulette := &cobra.Command{
		Use:   "roulette",
		Short: "Bet on the wheel",
	}
	roulette.AddCommand(&cobra.Command{
		Use:   "bet <red|black> <amount>",
		Short: "Place a bet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.Roulette(ctx, args[0], amount)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Bet placed: $%v on %v. Resolves at %v.",
				out["amount"], out["color"], out["resolve_at"]))
			return nil
		},
	}, &cobra.Command{
		Use:   "status",
		Short: "Show your pending bet",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.RoulettePending(ctx)
			if err != nil {
				return err
			}
			if pending, _ := out["pending"].(bool); !pending {
				printInfo("No pending bet.")
				return nil
			}
			bet, _ := out["bet"].(map[string]any)
			printInfo(fmt.Sprintf("$%v on %v, resolves at %v", bet["amount"], bet["color"], bet["resolve_at"]))
			return nil
		},
	})
	return roulette
}

func newBusinessCmd(apiBase *string) *cobra.Command {
	biz := &cobra.Command{
		Use:   "business",
		Short: "Create, browse, and run businesses",
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Start a business",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.CreateBusiness(ctx, strings.Join(args, " "), description)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%v is open for business.", out["name"]))
			return nil
		},
	}
	create.Flags().StringVar(&description, "description", "", "what the business does")

	biz.AddCommand(create, &cobra.Command{
		Use:   "list",
		Short: "List all businesses",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.ListBusinesses(ctx)
			if err != nil {
				return err
			}
			renderBusinesses(out)
			return nil
		},
	}, &cobra.Command{
		Use:   "apply <name>",
		Short: "Apply for a job (interactive)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			return runApplication(cmd.Context(), client, strings.Join(args, " "))
		},
	}, &cobra.Command{
		Use:   "manage",
		Short: "Review your business, employees, and applicants",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.ManageBusiness(ctx)
			if err != nil {
				return err
			}
			renderManage(out)
			return nil
		},
	}, newUpgradeCmd(apiBase), &cobra.Command{
		Use:   "fire <actor-id>",
		Short: "Fire an employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			if _, err := client.Fire(ctx, args[0]); err != nil {
				return err
			}
			printSuccess("Employee dismissed.")
			return nil
		},
	})
	return biz
}

func newUpgradeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade [selection]",
		Short: "Buy a business upgrade",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			selection := ""
			if len(args) > 0 {
				selection = args[0]
			} else {
				options, err := client.UpgradeOptions(ctx)
				if err != nil {
					return err
				}
				renderUpgrades(options)
				selection, err = promptRequired("Selection (number or name, `cancel` to abort)")
				if err != nil {
					return err
				}
				if strings.EqualFold(strings.TrimSpace(selection), "cancel") {
					printInfo("Cancelled.")
					return nil
				}
			}

			out, err := client.PurchaseUpgrade(ctx, selection)
			if err != nil {
				return err
			}
			upgrade, _ := out["upgrade"].(map[string]any)
			printSuccess(fmt.Sprintf("Purchased %v for $%v.", upgrade["name"], upgrade["cost"]))
			return nil
		},
	}
}

func newApplicationsCmd(apiBase *string) *cobra.Command {
	apps := &cobra.Command{
		Use:   "applications",
		Short: "Review job applications to your business",
	}
	apps.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.Applications(ctx)
			if err != nil {
				return err
			}
			renderApplications(out)
			return nil
		},
	}, &cobra.Command{
		Use:   "approve <application-id>",
		Short: "Hire an applicant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.Approve(ctx, args[0])
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%v hired.", out["applicant_name"]))
			return nil
		},
	}, &cobra.Command{
		Use:   "deny <application-id>",
		Short: "Turn an applicant down",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.Deny(ctx, args[0])
			if err != nil {
				return err
			}
			printWarn(fmt.Sprintf("Application from %v denied.", out["applicant_name"]))
			return nil
		},
	})
	return apps
}

func newAdminCmd(apiBase *string) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands",
	}
	admin.AddCommand(&cobra.Command{
		Use:   "credit <actor-id> <amount>",
		Short: "Credit an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			client, err := newClient(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.AdminCredit(ctx, args[0], amount)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Credited. New balance: $%v", out["balance"]))
			return nil
		},
	})
	return admin
}

// runApplication drives the multi-step capture: start the session, then
// answer each prompt from stdin until the server reports completion.
func runApplication(ctx context.Context, client *cl.Client, businessName string) error {
	step, err := client.ApplyStart(ctx, businessName)
	if err != nil {
		return err
	}
	sessionID, _ := step["session_id"].(string)
	for {
		if done, _ := step["done"].(bool); done {
			result, _ := step["result"].(map[string]any)
			printSuccess(fmt.Sprintf("Application to %v submitted.", result["business_name"]))
			return nil
		}
		prompt, _ := step["prompt"].(string)
		answer, err := promptRequired(prompt)
		if err != nil {
			return err
		}
		step, err = client.ApplyReply(ctx, sessionID, answer)
		if err != nil {
			return err
		}
	}
}
