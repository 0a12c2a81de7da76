// Command gymctl manages gym manager accounts and subscriptions from the
// command line.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"gym-manager/internal/config"
	"gym-manager/internal/logging"
	"gym-manager/internal/models"
	"gym-manager/internal/storage"
	"gym-manager/internal/subscription"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := newRootCmd(stdin, stdout)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

// cli carries the flags shared by every subcommand.
type cli struct {
	configPath string
	dbPath     string
	verbose    bool
	stdin      io.Reader
	stdout     io.Writer
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	c := &cli{stdin: stdin, stdout: stdout}

	root := &cobra.Command{
		Use:           "gymctl",
		Short:         "Manage gym manager accounts and subscriptions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("GYM_CONFIG"), "Path to YAML config file")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "Path to database file (defaults to the configured path)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log to stderr")

	root.AddCommand(
		c.addUserCmd(),
		c.pendingCmd(),
		c.approveCmd(),
		c.renewCmd(),
		c.statusCmd(),
		c.promoteCmd(),
		c.expiringCmd(),
	)
	return root
}

// open loads configuration and returns the account service over the database.
func (c *cli) open(cmd *cobra.Command) (*subscription.Service, func(), error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	if c.dbPath != "" {
		cfg.Storage.DBPath = c.dbPath
	}

	logger := zap.NewNop()
	if c.verbose {
		logger, err = logging.New(config.LogConfig{Level: "debug", Format: "console"})
		if err != nil {
			return nil, nil, err
		}
	}

	db, err := storage.NewDB(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	opts := subscription.DefaultOptions()
	opts.AdminEmails = cfg.Admin.Emails
	opts.RenewalDays = cfg.Billing.RenewalDays
	opts.CardAmount = cfg.Billing.CardAmount
	opts.CardMethod = cfg.Billing.CardMethod
	opts.ManualAmount = cfg.Billing.ManualAmount
	opts.ManualMethod = cfg.Billing.ManualMethod
	opts.DataDir = cfg.Storage.GymDataDir

	closeFn := func() {
		_ = logger.Sync()
		db.Close()
	}
	return subscription.NewService(db, opts, logger.Named(cmd.Name())), closeFn, nil
}

func (c *cli) addUserCmd() *cobra.Command {
	var username, password, referral string
	var admin bool

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				return errors.New("missing required flags: user")
			}
			if password == "" {
				fmt.Fprint(c.stdout, "Password: ")
				var err error
				password, err = readPassword(c.stdin)
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				fmt.Fprintln(c.stdout)
			}
			if strings.TrimSpace(password) == "" {
				return errors.New("password cannot be empty")
			}

			subs, closeFn, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			var u *models.User
			if admin {
				u, err = subs.CreateAdmin(username, password)
			} else {
				u, err = subs.CreateUser(username, password, referral)
			}
			if errors.Is(err, subscription.ErrUserExists) {
				return fmt.Errorf("user %s already exists", username)
			}
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			fmt.Fprintf(c.stdout, "User %s created successfully with ID %d (plan %s, role %s)\n", u.Username, u.ID, u.Plan, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password (optional, will prompt if omitted)")
	cmd.Flags().StringVar(&referral, "referral", "", "Referral code")
	cmd.Flags().BoolVar(&admin, "admin", false, "Create an administrator with a lifetime plan")
	return cmd
}

func (c *cli) pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List manual payments awaiting approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subs, closeFn, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			pending, err := subs.PendingApprovals()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Fprintln(c.stdout, "No pending payments.")
				return nil
			}
			tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USERNAME\tPROOF\tJOINED")
			for _, p := range pending {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Username, p.Proof, p.Joined.Format(time.DateOnly))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) approveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <username>",
		Short: "Approve a pending manual payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, closeFn, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := subs.ApproveManualPayment(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "User %s approved!\n", args[0])
			return nil
		},
	}
}

func (c *cli) renewCmd() *cobra.Command {
	var days int
	var reference string

	cmd := &cobra.Command{
		Use:   "renew <username>",
		Short: "Extend a subscription and record a card payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, closeFn, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := subs.Renew(args[0], days, reference); err != nil {
				return err
			}
			u, err := subs.User(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "User %s renewed until %s\n", u.Username, u.SubscriptionExpiry.Format(time.DateOnly))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Days to extend (defaults to the configured renewal period)")
	cmd.Flags().StringVar(&reference, "reference", "", "Payment reference")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <username>",
		Short: "Show an account's subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, closeFn, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			u, err := subs.User(args[0])
			if err != nil {
				return err
			}
			state := subscription.StateOf(u, time.Now())
			expiry := "-"
			if u.SubscriptionExpiry != nil {
				expiry = u.SubscriptionExpiry.Format(time.DateOnly)
			}
			fmt.Fprintf(c.stdout, "%s: %s (plan %s, role %s, expires %s)\n", u.Username, state, u.Plan, u.Role, expiry)
			return nil
		},
	}
}

func (c *cli) promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <username>",
		Short: "Grant the admin role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, closeFn, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := subs.Promote(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "User %s is now an admin\n", args[0])
			return nil
		},
	}
}

func (c *cli) expiringCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "expiring",
		Short: "List subscriptions that expire soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subs, closeFn, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			users, err := subs.ExpiringWithin(days)
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintf(c.stdout, "%s\t%s\n", u.Username, u.SubscriptionExpiry.Format(time.DateOnly))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 3, "Look-ahead window in days")
	return cmd
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
