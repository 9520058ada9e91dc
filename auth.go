package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/pcloud-go/internal/api"
	"github.com/tonimelisma/pcloud-go/internal/credstore"
	"github.com/tonimelisma/pcloud-go/internal/oauth"
	"github.com/tonimelisma/pcloud-go/internal/task"
)

var errLoginCancelled = errors.New("login cancelled")

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize pcloud-go to access your pCloud account",
		Long: `Open the pCloud authorization page, then paste the address your browser
is redirected to. The access token is saved in the configured credential store.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().String("client-id", "", "OAuth client id (overrides auth.client_id)")
	cmd.Flags().Bool("no-browser", false, "print the authorization URL instead of opening a browser")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout [userid]",
		Short: "Remove a saved access token",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the authenticated account",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	clientID, _ := cmd.Flags().GetString("client-id")
	if clientID == "" {
		clientID = cc.Cfg.Auth.ClientID
	}

	if clientID == "" {
		return usageError{msg: "no OAuth client id: set auth.client_id in the config file or pass --client-id"}
	}

	store, closeStore, err := openStore(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer closeStore()

	opener := openBrowser
	if noBrowser, _ := cmd.Flags().GetBool("no-browser"); noBrowser {
		opener = nil
	}

	view := oauth.NewTerminalView(cmd.InOrStdin(), cc.Err, opener, cc.Logger)
	flow := oauth.NewFlow(clientID, view, oauth.SaveTo(store), cc.Logger)

	res, err := flow.Run(ctx)
	if err != nil {
		return err
	}

	switch r := res.(type) {
	case oauth.Success:
		return confirmLogin(cc, store, r)
	case oauth.Failure:
		return r
	default:
		return errLoginCancelled
	}
}

// confirmLogin checks the token reached the store; the flow itself only logs
// a failed save.
func confirmLogin(cc *CLIContext, store credstore.Store, s oauth.Success) error {
	key := oauth.AccountKey(s.UserID)

	if _, err := store.Get(key); err != nil {
		return fmt.Errorf("authorization succeeded but the token could not be saved: %w", err)
	}

	cc.Statusf("Logged in as account %s.\n", key)

	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	store, closeStore, err := openStore(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer closeStore()

	account := cc.Cfg.Auth.Account
	if len(args) > 0 {
		account = args[0]
	}

	account, err = resolveAccount(store, account)
	if err != nil {
		return err
	}

	if err := store.Delete(account); err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			return fmt.Errorf("account %s: %w", account, errNotLoggedIn)
		}

		return err
	}

	cc.Logger.Info("logout successful", "account", account)
	cc.Statusf("Logged out account %s.\n", account)

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	UserID        uint64 `json:"userid"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Premium       bool   `json:"premium"`
	QuotaUsed     int64  `json:"quota_used"`
	QuotaTotal    int64  `json:"quota_total"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	sess, err := openSession(ctx, cc)
	if err != nil {
		return err
	}
	defer sess.Close()

	user, err := task.Call[api.User](sess.Ctrl, api.UserInfo{}, "").Run(ctx)
	if err != nil {
		return fmt.Errorf("fetching account info: %w", err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, whoamiOutput{
			UserID:        user.UserID,
			Email:         user.Email,
			EmailVerified: user.EmailVerified,
			Premium:       user.Premium,
			QuotaUsed:     user.UsedQuota,
			QuotaTotal:    user.Quota,
		})
	}

	printWhoamiText(cc, user)

	return nil
}

func printWhoamiText(cc *CLIContext, u api.User) {
	plan := "free"
	if u.Premium {
		plan = "premium"
	}

	fmt.Fprintf(cc.Out, "User:  %s\n", u.Email)
	fmt.Fprintf(cc.Out, "ID:    %d\n", u.UserID)
	fmt.Fprintf(cc.Out, "Plan:  %s\n", plan)
	fmt.Fprintf(cc.Out, "Quota: %s / %s\n", formatSize(u.UsedQuota), formatSize(u.Quota))
}
